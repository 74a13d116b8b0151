package tcl

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeRemote struct {
	mu    sync.Mutex
	store map[string]*Entry
}

func newFakeRemote() *fakeRemote { return &fakeRemote{store: make(map[string]*Entry)} }

func (f *fakeRemote) Get(_ context.Context, key string) (*Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.store[key]
	if !ok {
		return nil, nil
	}
	return e.Clone(), nil
}

func (f *fakeRemote) Set(_ context.Context, e *Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[e.Key] = e.Clone()
	return nil
}

func (f *fakeRemote) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.store, key)
	return nil
}

type fakeDurable struct {
	fakeRemote
}

func (f *fakeDurable) Flush(_ context.Context) error { return nil }

func TestCoordinatorPromotesFromL2(t *testing.T) {
	remote := newFakeRemote()
	c := NewCoordinator(CoordinatorConfig{EntryStore: EntryStoreConfig{MaxEntries: 10, DefaultTTLMS: 60000}},
		WithRemoteAdapter(remote))

	e := newTestEntry("k1", "hello")
	e.Timestamp = NowMS()
	remote.store["k1"] = e

	got, err := c.Get(context.Background(), "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SourceText != "hello" {
		t.Fatalf("unexpected source text: %q", got.SourceText)
	}
	if c.L1().Count() != 1 {
		t.Fatalf("expected promotion to populate L1, count=%d", c.L1().Count())
	}
}

func TestCoordinatorGetMissReturnsNotFound(t *testing.T) {
	c := NewCoordinator(CoordinatorConfig{EntryStore: EntryStoreConfig{MaxEntries: 10, DefaultTTLMS: 60000}})
	_, err := c.Get(context.Background(), "absent")
	if !IsKind(err, KindNotFound) {
		t.Fatalf("expected KindNotFound, got %v", err)
	}
}

func TestCoordinatorSetWritesThroughToAllTiers(t *testing.T) {
	remote := newFakeRemote()
	durable := &fakeDurable{fakeRemote: *newFakeRemote()}
	c := NewCoordinator(CoordinatorConfig{EntryStore: EntryStoreConfig{MaxEntries: 10, DefaultTTLMS: 60000}},
		WithRemoteAdapter(remote), WithDurableBackend(durable))

	e := newTestEntry("k1", "hello")
	if err := c.Set(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := remote.store["k1"]; !ok {
		t.Fatalf("expected L2 write-through")
	}
	if _, ok := durable.store["k1"]; !ok {
		t.Fatalf("expected L3 write-through")
	}
}

func TestCoordinatorDeleteIsIdempotent(t *testing.T) {
	c := NewCoordinator(CoordinatorConfig{EntryStore: EntryStoreConfig{MaxEntries: 10, DefaultTTLMS: 60000}})
	c.Set(context.Background(), newTestEntry("k1", "hello"))

	if err := c.Delete(context.Background(), "k1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Delete(context.Background(), "k1"); err != nil {
		t.Fatalf("expected second delete to also succeed, got %v", err)
	}
}

type sliceWarmSource struct {
	entries []*Entry
	idx     int
}

func (s *sliceWarmSource) Next() (*Entry, bool) {
	if s.idx >= len(s.entries) {
		return nil, false
	}
	e := s.entries[s.idx]
	s.idx++
	return e, true
}

func TestCoordinatorWarmConsumesUpToCount(t *testing.T) {
	c := NewCoordinator(CoordinatorConfig{EntryStore: EntryStoreConfig{MaxEntries: 10, DefaultTTLMS: 60000}})
	source := &sliceWarmSource{entries: []*Entry{
		newTestEntry("k1", "a"),
		newTestEntry("k2", "b"),
		newTestEntry("k3", "c"),
	}}

	warmed := c.Warm(context.Background(), source, 2)
	if warmed != 2 {
		t.Fatalf("expected 2 warmed entries, got %d", warmed)
	}
	if c.L1().Count() != 2 {
		t.Fatalf("expected 2 entries in L1, got %d", c.L1().Count())
	}
}

func TestCoordinatorStartWarmRunsAsynchronouslyAndReportsCompletion(t *testing.T) {
	c := NewCoordinator(CoordinatorConfig{EntryStore: EntryStoreConfig{MaxEntries: 10, DefaultTTLMS: 60000}})
	source := &sliceWarmSource{entries: []*Entry{
		newTestEntry("k1", "a"),
		newTestEntry("k2", "b"),
	}}

	job := c.StartWarm(context.Background(), source, 2)
	if job.ID.String() == "" {
		t.Fatalf("expected a non-empty job handle")
	}

	deadline := time.Now().Add(time.Second)
	for job.Status() != WarmDone && job.Status() != WarmFailed {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for warm job to finish, status=%v", job.Status())
		}
		time.Sleep(time.Millisecond)
	}

	if job.Status() != WarmDone {
		t.Fatalf("expected WarmDone, got %v (err=%v)", job.Status(), job.Err())
	}
	if job.Warmed() != 2 {
		t.Fatalf("expected 2 warmed entries, got %d", job.Warmed())
	}
	if c.L1().Count() != 2 {
		t.Fatalf("expected 2 entries in L1, got %d", c.L1().Count())
	}
}
