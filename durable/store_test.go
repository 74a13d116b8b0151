package durable

import (
	"context"
	"testing"
	"time"

	tcl "github.com/tofudevice/tcl"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(FileStoreConfig{Dir: t.TempDir(), MaxBatchSize: 1000, AutoSaveInterval: time.Hour})
	if err != nil {
		t.Fatalf("unexpected error creating file store: %v", err)
	}
	return fs
}

func testEntry(key, text string) *tcl.Entry {
	return &tcl.Entry{
		Key:        key,
		SourceText: text,
		SourceLang: "eng",
		TargetLang: "fra",
		Timestamp:  1000,
		TTL:        60000,
	}
}

func TestFileStoreSetGetRoundTrip(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()

	if err := fs.Set(ctx, testEntry("k1", "hello")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := fs.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.SourceText != "hello" {
		t.Fatalf("expected to find entry, got %+v", got)
	}
}

func TestFileStoreGetMissReturnsNilNil(t *testing.T) {
	fs := newTestFileStore(t)
	got, err := fs.Get(context.Background(), "absent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil entry for absent key")
	}
}

func TestFileStoreSurvivesFlushAndReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fs, err := NewFileStore(FileStoreConfig{Dir: dir, MaxBatchSize: 1000, AutoSaveInterval: time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fs.Set(ctx, testEntry("k1", "hello"))
	fs.Set(ctx, testEntry("k2", "world"))
	if err := fs.Flush(ctx); err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}

	reopened, err := NewFileStore(FileStoreConfig{Dir: dir, MaxBatchSize: 1000, AutoSaveInterval: time.Hour})
	if err != nil {
		t.Fatalf("unexpected error reopening store: %v", err)
	}
	got, err := reopened.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.SourceText != "hello" {
		t.Fatalf("expected entry to survive restart, got %+v", got)
	}
}

func TestFileStoreDeleteDoesNotResurfaceAfterFlush(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fs, err := NewFileStore(FileStoreConfig{Dir: dir, MaxBatchSize: 1000, AutoSaveInterval: time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fs.Set(ctx, testEntry("k1", "hello"))
	fs.Flush(ctx)
	fs.Delete(ctx, "k1")
	fs.Flush(ctx)

	reopened, err := NewFileStore(FileStoreConfig{Dir: dir, MaxBatchSize: 1000, AutoSaveInterval: time.Hour})
	if err != nil {
		t.Fatalf("unexpected error reopening store: %v", err)
	}
	got, _ := reopened.Get(ctx, "k1")
	if got != nil {
		t.Fatalf("expected deleted key to stay absent after reload, got %+v", got)
	}
}

func TestFileStoreAutoSaveTriggersOnBatchSize(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fs, err := NewFileStore(FileStoreConfig{Dir: dir, MaxBatchSize: 2, AutoSaveInterval: time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fs.Set(ctx, testEntry("k1", "a"))
	fs.Set(ctx, testEntry("k2", "b"))

	files, err := fs.batchFiles()
	if err != nil {
		t.Fatalf("unexpected error listing batch files: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("expected auto-save to have written a batch file once max_batch_size was reached")
	}
}

func TestFileStoreBackupAndRestore(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()
	ctx := context.Background()

	src, err := NewFileStore(FileStoreConfig{Dir: srcDir, MaxBatchSize: 1000, AutoSaveInterval: time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	src.Set(ctx, testEntry("k1", "hello"))

	if err := src.Backup(destDir); err != nil {
		t.Fatalf("unexpected backup error: %v", err)
	}

	other, err := NewFileStore(FileStoreConfig{Dir: t.TempDir(), MaxBatchSize: 1000, AutoSaveInterval: time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := other.Restore(destDir); err != nil {
		t.Fatalf("unexpected restore error: %v", err)
	}
	got, err := other.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.SourceText != "hello" {
		t.Fatalf("expected restored entry, got %+v", got)
	}
}
