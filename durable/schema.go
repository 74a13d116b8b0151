package durable

import (
	"fmt"

	tcl "github.com/tofudevice/tcl"
)

// currentSchemaVersion is the on-disk schema this build writes and reads.
// Bumping it requires adding a step to migrateSteps (spec §4.6, "schema
// migration: V_old < V_cur runs migrations in order; V_old > V_cur is
// refused").
const currentSchemaVersion = 1

// migrateSteps holds one function per schema version transition, indexed by
// the version being migrated FROM. There are none yet since this is schema
// version 1; the slice exists so the next bump has a home.
var migrateSteps = []func(*index){}

// migrate brings idx from fromVersion up to currentSchemaVersion, applying
// each step in order. A fromVersion newer than currentSchemaVersion means
// this binary is older than the data it is reading and must refuse rather
// than silently drop fields (spec §4.6, "never downgrade").
func migrate(idx *index, fromVersion int) error {
	if fromVersion > currentSchemaVersion {
		return tcl.NewError(tcl.KindSchemaTooNew,
			fmt.Sprintf("on-disk schema version %d is newer than this build's version %d", fromVersion, currentSchemaVersion))
	}
	for v := fromVersion; v < currentSchemaVersion; v++ {
		if v < len(migrateSteps) && migrateSteps[v] != nil {
			migrateSteps[v](idx)
		}
	}
	return nil
}
