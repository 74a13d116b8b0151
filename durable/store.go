// Package durable implements the crash-safe L3 tier: periodic batch-file
// snapshots of cache content, written atomically and replayed on restart.
package durable

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	tcl "github.com/tofudevice/tcl"
)

// batchMagic identifies a valid batch file ("TCLB" as a big-endian uint32
// read left to right), grounded on tcl_storage.c's tcl_storage_save_batch.
const batchMagic uint32 = 0x54434C42

const batchFilePrefix = "batch_"
const batchFileSuffix = ".bin"

// index is the in-memory merged view of every key this store holds.
type index map[string]*tcl.Entry

// entryPayload carries the fields of an Entry not already present as raw
// header fields in the batch record (key, timestamp, ttl, flags mirror the
// original tcl_entry_t layout exactly; everything else rides along as JSON
// so the format can grow without another binary-layout revision).
type entryPayload struct {
	SourceText  string  `json:"source_text"`
	SourceLang  string  `json:"source_lang"`
	TargetLang  string  `json:"target_lang"`
	Translation string  `json:"translation"`
	Confidence  float64 `json:"confidence"`
	UsageCount  int64   `json:"usage_count"`
	LastUsed    int64   `json:"last_used"`
	Context     string  `json:"context,omitempty"`
	Origin      string  `json:"origin,omitempty"`
	Domain      string  `json:"domain,omitempty"`
}

// FileStoreConfig configures the durable L3 tier (spec §4.6).
type FileStoreConfig struct {
	Dir              string
	MaxBatchSize     int // auto-save once this many changes accumulate
	AutoSaveInterval time.Duration
	Logger           *zap.Logger
}

// FileStore is a crash-safe, file-backed L3 durable store. Compaction
// happens on every flush: the full index is rewritten as one new batch
// file and older batch files are removed, so a deleted key cannot
// resurface from a stale batch on the next load (spec §4.6 extends the
// original firmware's append-only batches with this compaction so Delete
// stays durable across restarts).
type FileStore struct {
	mu               sync.Mutex
	dir              string
	idx              index
	pendingChanges   int
	maxBatchSize     int
	autoSaveInterval time.Duration
	lastAutoSave     time.Time
	meta             storageMetadata
	logger           *zap.Logger
}

// NewFileStore opens (creating if absent) the storage directory, replays
// any existing batch files, and returns a ready FileStore.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, tcl.NewError(tcl.KindInvalidInput, "durable store requires a directory")
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}
	if cfg.AutoSaveInterval <= 0 {
		cfg.AutoSaveInterval = 5 * time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, tcl.WrapError(tcl.KindStorageError, "creating storage directory", err)
	}

	meta, err := readMetadata(cfg.Dir)
	if err != nil {
		return nil, err
	}

	fs := &FileStore{
		dir:              cfg.Dir,
		idx:              make(index),
		maxBatchSize:     cfg.MaxBatchSize,
		autoSaveInterval: cfg.AutoSaveInterval,
		lastAutoSave:     time.Now(),
		meta:             meta,
		logger:           logger,
	}

	if err := fs.loadBatches(); err != nil {
		return nil, err
	}
	if err := migrate(&fs.idx, meta.SchemaVersion); err != nil {
		return nil, err
	}
	fs.meta.SchemaVersion = currentSchemaVersion
	return fs, nil
}

func (fs *FileStore) batchFiles() ([]string, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, tcl.WrapError(tcl.KindStorageError, "listing storage directory", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && len(name) > len(batchFilePrefix)+len(batchFileSuffix) &&
			name[:len(batchFilePrefix)] == batchFilePrefix && filepath.Ext(name) == batchFileSuffix {
			files = append(files, name)
		}
	}
	sort.Strings(files) // timestamp-named, so lexical order is chronological
	return files, nil
}

func (fs *FileStore) loadBatches() error {
	files, err := fs.batchFiles()
	if err != nil {
		return err
	}
	for _, name := range files {
		path := filepath.Join(fs.dir, name)
		if err := fs.loadBatchFile(path); err != nil {
			fs.logger.Warn("skipping corrupt batch file", zap.String("file", name), zap.Error(err))
		}
	}
	return nil
}

func (fs *FileStore) loadBatchFile(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 - path built from our own directory listing
	if err != nil {
		return err
	}
	r := bytes.NewReader(data)

	var magic, version, count uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return fmt.Errorf("reading magic: %w", err)
	}
	if magic != batchMagic {
		return fmt.Errorf("bad magic %#x", magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("reading version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("batch file schema version %d newer than supported version %d", version, currentSchemaVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("reading count: %w", err)
	}

	for i := uint32(0); i < count; i++ {
		entry, err := readBatchRecord(r)
		if err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				fs.logger.Warn("truncated batch record, stopping replay of this file",
					zap.Int("records_recovered", int(i)))
				return nil
			}
			return err
		}
		fs.idx[entry.Key] = entry
	}
	return nil
}

func readBatchRecord(r io.Reader) (*tcl.Entry, error) {
	var keyLen, valueLen uint32
	if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &valueLen); err != nil {
		return nil, err
	}

	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	value := make([]byte, valueLen)
	if _, err := io.ReadFull(r, value); err != nil {
		return nil, io.ErrUnexpectedEOF
	}

	var timestamp int64
	var ttl, flags uint32
	if err := binary.Read(r, binary.LittleEndian, &timestamp); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	if err := binary.Read(r, binary.LittleEndian, &ttl); err != nil {
		return nil, io.ErrUnexpectedEOF
	}
	if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return nil, io.ErrUnexpectedEOF
	}

	var payload entryPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		return nil, fmt.Errorf("decoding entry payload: %w", err)
	}

	return &tcl.Entry{
		Key:         string(key),
		SourceText:  payload.SourceText,
		SourceLang:  payload.SourceLang,
		TargetLang:  payload.TargetLang,
		Translation: payload.Translation,
		Confidence:  payload.Confidence,
		Timestamp:   timestamp,
		TTL:         int64(ttl),
		Flags:       tcl.EntryFlags(flags),
		Metadata: tcl.EntryMetadata{
			UsageCount: payload.UsageCount,
			LastUsed:   payload.LastUsed,
			Context:    payload.Context,
			Origin:     payload.Origin,
			Domain:     payload.Domain,
		},
	}, nil
}

func writeBatchRecord(w io.Writer, e *tcl.Entry) error {
	payload := entryPayload{
		SourceText:  e.SourceText,
		SourceLang:  e.SourceLang,
		TargetLang:  e.TargetLang,
		Translation: e.Translation,
		Confidence:  e.Confidence,
		UsageCount:  e.Metadata.UsageCount,
		LastUsed:    e.Metadata.LastUsed,
		Context:     e.Metadata.Context,
		Origin:      e.Metadata.Origin,
		Domain:      e.Metadata.Domain,
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	key := []byte(e.Key)

	fields := []any{uint32(len(key)), uint32(len(value))}
	for _, f := range fields {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	if _, err := w.Write(key); err != nil {
		return err
	}
	if _, err := w.Write(value); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, e.Timestamp); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(e.TTL)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, uint32(e.Flags))
}

// atomicWriteFile writes data to a temp file in the same directory as path
// and renames it into place, so a crash mid-write never leaves a partially
// written file at path (spec §4.6, "atomic tmp-then-rename").
func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return tcl.WrapError(tcl.KindStorageError, "writing temp file", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return tcl.WrapError(tcl.KindStorageError, "writing temp file", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return tcl.WrapError(tcl.KindStorageError, "syncing temp file", err)
	}
	if err := f.Close(); err != nil {
		return tcl.WrapError(tcl.KindStorageError, "closing temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return tcl.WrapError(tcl.KindStorageError, "renaming temp file into place", err)
	}
	return nil
}

func (fs *FileStore) maybeAutoSaveLocked() {
	if fs.pendingChanges >= fs.maxBatchSize || time.Since(fs.lastAutoSave) >= fs.autoSaveInterval {
		if err := fs.flushLocked(); err != nil {
			fs.logger.Error("auto-save flush failed", zap.Error(err))
		}
	}
}

// Get implements tcl.DurableBackend.
func (fs *FileStore) Get(_ context.Context, key string) (*tcl.Entry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	e, ok := fs.idx[key]
	if !ok {
		return nil, nil
	}
	return e.Clone(), nil
}

// Set implements tcl.DurableBackend.
func (fs *FileStore) Set(_ context.Context, entry *tcl.Entry) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.idx[entry.Key] = entry.Clone()
	fs.pendingChanges++
	fs.maybeAutoSaveLocked()
	return nil
}

// Delete implements tcl.DurableBackend. Deleting an absent key is a no-op
// success (spec §8, "Delete is idempotent").
func (fs *FileStore) Delete(_ context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.idx, key)
	fs.pendingChanges++
	fs.maybeAutoSaveLocked()
	return nil
}

// Flush implements tcl.DurableBackend: forces an immediate compacted save
// (spec §4.6, "deinit flush").
func (fs *FileStore) Flush(_ context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.flushLocked()
}

func (fs *FileStore) flushLocked() error {
	oldFiles, err := fs.batchFiles()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	count := uint32(len(fs.idx))
	_ = binary.Write(&buf, binary.LittleEndian, batchMagic)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(currentSchemaVersion))
	_ = binary.Write(&buf, binary.LittleEndian, count)
	for _, e := range fs.idx {
		if err := writeBatchRecord(&buf, e); err != nil {
			return tcl.WrapError(tcl.KindStorageError, "encoding batch record", err)
		}
	}

	path := filepath.Join(fs.dir, fmt.Sprintf("%s%d%s", batchFilePrefix, time.Now().UnixNano(), batchFileSuffix))
	if err := atomicWriteFile(path, buf.Bytes()); err != nil {
		return err
	}

	for _, name := range oldFiles {
		if err := os.Remove(filepath.Join(fs.dir, name)); err != nil {
			fs.logger.Warn("failed to remove superseded batch file", zap.String("file", name), zap.Error(err))
		}
	}

	fs.meta.TotalSaves++
	fs.meta.LastSaveTimeMS = time.Now().UnixMilli()
	if err := writeMetadata(fs.dir, fs.meta); err != nil {
		return err
	}
	fs.pendingChanges = 0
	fs.lastAutoSave = time.Now()
	return nil
}

// Backup copies the current on-disk state (metadata + batch files) to
// destDir, grounded on tcl_redis_schema_backup's file-copy-on-demand
// pattern. It flushes first so the backup reflects the latest in-memory
// state.
func (fs *FileStore) Backup(destDir string) error {
	fs.mu.Lock()
	if err := fs.flushLocked(); err != nil {
		fs.mu.Unlock()
		return err
	}
	files, err := fs.batchFiles()
	fs.mu.Unlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return tcl.WrapError(tcl.KindStorageError, "creating backup directory", err)
	}
	for _, name := range append(files, metadataFile) {
		data, err := os.ReadFile(filepath.Join(fs.dir, name)) // #nosec G304 - name from our own listing
		if err != nil {
			return tcl.WrapError(tcl.KindStorageError, "reading file for backup", err)
		}
		if err := atomicWriteFile(filepath.Join(destDir, name), data); err != nil {
			return err
		}
	}
	return nil
}

// Restore replaces the current in-memory index with the contents of
// srcDir, grounded on tcl_redis_schema_restore's deinit-then-replace-file
// protocol.
func (fs *FileStore) Restore(srcDir string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	meta, err := readMetadata(srcDir)
	if err != nil {
		return err
	}

	restored := &FileStore{dir: srcDir, idx: make(index), logger: fs.logger}
	if err := restored.loadBatches(); err != nil {
		return err
	}
	if err := migrate(&restored.idx, meta.SchemaVersion); err != nil {
		return err
	}

	fs.idx = restored.idx
	fs.meta = meta
	fs.meta.SchemaVersion = currentSchemaVersion
	fs.pendingChanges = 0
	return nil
}

var _ tcl.DurableBackend = (*FileStore)(nil)
