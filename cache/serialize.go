package cache

import (
	"encoding/json"
	"fmt"

	tcl "github.com/tofudevice/tcl"
)

// remoteEntrySchemaVersion is the current wire schema for entries stored in
// the L2 remote tier. Bumping it without a migration path is a breaking
// change to every existing key (spec §4.5, "self-describing, versioned").
const remoteEntrySchemaVersion = 1

// remoteEntryEnvelope is the versioned, self-describing representation of an
// Entry on the wire: the unit stored under a single Redis key.
type remoteEntryEnvelope struct {
	Version     int     `json:"v"`
	Key         string  `json:"key"`
	SourceText  string  `json:"source_text"`
	SourceLang  string  `json:"source_lang"`
	TargetLang  string  `json:"target_lang"`
	Translation string  `json:"translation"`
	Confidence  float64 `json:"confidence"`
	Timestamp   int64   `json:"timestamp"`
	TTL         int64   `json:"ttl"`
	Flags       uint32  `json:"flags"`
	UsageCount  int64   `json:"usage_count"`
	LastUsed    int64   `json:"last_used"`
	Context     string  `json:"context,omitempty"`
	Origin      string  `json:"origin,omitempty"`
	Domain      string  `json:"domain,omitempty"`
}

func encodeEntry(e *tcl.Entry) ([]byte, error) {
	env := remoteEntryEnvelope{
		Version:     remoteEntrySchemaVersion,
		Key:         e.Key,
		SourceText:  e.SourceText,
		SourceLang:  e.SourceLang,
		TargetLang:  e.TargetLang,
		Translation: e.Translation,
		Confidence:  e.Confidence,
		Timestamp:   e.Timestamp,
		TTL:         e.TTL,
		Flags:       uint32(e.Flags),
		UsageCount:  e.Metadata.UsageCount,
		LastUsed:    e.Metadata.LastUsed,
		Context:     e.Metadata.Context,
		Origin:      e.Metadata.Origin,
		Domain:      e.Metadata.Domain,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, tcl.WrapError(tcl.KindInternal, "encoding remote cache entry", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (*tcl.Entry, error) {
	var env remoteEntryEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, tcl.WrapError(tcl.KindInvalidFormat, "decoding remote cache entry", err)
	}
	if env.Version > remoteEntrySchemaVersion {
		return nil, tcl.NewError(tcl.KindSchemaTooNew,
			fmt.Sprintf("remote entry schema version %d is newer than supported version %d", env.Version, remoteEntrySchemaVersion))
	}
	if env.Version < remoteEntrySchemaVersion {
		return nil, tcl.NewError(tcl.KindInvalidFormat,
			fmt.Sprintf("remote entry schema version %d has no migration path to %d", env.Version, remoteEntrySchemaVersion))
	}
	return &tcl.Entry{
		Key:         env.Key,
		SourceText:  env.SourceText,
		SourceLang:  env.SourceLang,
		TargetLang:  env.TargetLang,
		Translation: env.Translation,
		Confidence:  env.Confidence,
		Timestamp:   env.Timestamp,
		TTL:         env.TTL,
		Flags:       tcl.EntryFlags(env.Flags),
		Metadata: tcl.EntryMetadata{
			UsageCount: env.UsageCount,
			LastUsed:   env.LastUsed,
			Context:    env.Context,
			Origin:     env.Origin,
			Domain:     env.Domain,
		},
	}, nil
}
