package durable

import (
	"encoding/json"
	"os"
	"path/filepath"

	tcl "github.com/tofudevice/tcl"
)

const metadataFile = "metadata.bin"

// storageMetadata mirrors the original firmware's metadata.bin: running
// totals that survive across process restarts (spec §4.6, grounded on
// tcl_storage.c's read_metadata/write_metadata and its tcl_storage_stats_t).
type storageMetadata struct {
	SchemaVersion  int   `json:"schema_version"`
	TotalSaves     int64 `json:"total_saves"`
	TotalLoads     int64 `json:"total_loads"`
	LastSaveTimeMS int64 `json:"last_save_time_ms"`
}

func readMetadata(dir string) (storageMetadata, error) {
	path := filepath.Join(dir, metadataFile)
	data, err := os.ReadFile(path) // #nosec G304 - dir is operator-configured, not request input
	if os.IsNotExist(err) {
		return storageMetadata{SchemaVersion: currentSchemaVersion}, nil
	}
	if err != nil {
		return storageMetadata{}, tcl.WrapError(tcl.KindStorageError, "reading metadata.bin", err)
	}
	var meta storageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return storageMetadata{}, tcl.WrapError(tcl.KindInvalidFormat, "parsing metadata.bin", err)
	}
	return meta, nil
}

// writeMetadata writes atomically: encode to a temp file, fsync, rename
// over the target (spec §4.6, "atomic tmp-then-rename", same discipline as
// batch files).
func writeMetadata(dir string, meta storageMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return tcl.WrapError(tcl.KindInternal, "encoding metadata.bin", err)
	}
	return atomicWriteFile(filepath.Join(dir, metadataFile), data)
}
