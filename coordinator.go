package tcl

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RemoteCacheAdapter is the L2 tier contract (spec §4.5): an opaque
// key/value store with native TTL. Implementations live in package cache.
type RemoteCacheAdapter interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
}

// DurableBackend is the L3 tier contract (spec §4.6): crash-safe bulk
// snapshots of cache content. Implementations live in package durable.
type DurableBackend interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
}

// CoordinatorConfig configures the multi-tier coordinator.
type CoordinatorConfig struct {
	EntryStore EntryStoreConfig
	Logger     *zap.Logger
}

// CoordinatorOption configures a Coordinator at construction time.
type CoordinatorOption func(*Coordinator)

// WithRemoteAdapter attaches an L2 remote cache adapter.
func WithRemoteAdapter(adapter RemoteCacheAdapter) CoordinatorOption {
	return func(c *Coordinator) { c.l2 = adapter }
}

// WithDurableBackend attaches an L3 durable store.
func WithDurableBackend(backend DurableBackend) CoordinatorOption {
	return func(c *Coordinator) { c.l3 = backend }
}

// WithCoordinatorLogger sets the structured logger used for best-effort
// write-through failures and tier degradation events.
func WithCoordinatorLogger(logger *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = logger }
}

// Coordinator implements the multi-tier read-through/write-through protocol
// of spec §4.8: L1 (memory) → L2 (remote) → L3 (durable), with promotion on
// a slower-tier hit and best-effort write-through on writes.
type Coordinator struct {
	l1     *EntryStore
	l2     RemoteCacheAdapter
	l3     DurableBackend
	logger *zap.Logger
}

// NewCoordinator builds a Coordinator. L1 is always present; L2/L3 are
// optional and supplied via WithRemoteAdapter/WithDurableBackend.
func NewCoordinator(cfg CoordinatorConfig, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		l1:     NewEntryStore(cfg.EntryStore),
		logger: cfg.Logger,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger.Info("coordinator initialized", zap.String("build", FullVersion()))
	return c
}

// L1 exposes the in-memory tier for direct inspection (metrics, tests).
func (c *Coordinator) L1() *EntryStore { return c.l1 }

// Get implements the read-through protocol: L1 → L2 (promote) → L3
// (promote to L2 and L1) → Miss.
func (c *Coordinator) Get(ctx context.Context, key string) (*Entry, error) {
	start := time.Now()
	defer func() { c.l1.metrics.RecordResponseNS(int64(time.Since(start))) }()

	if entry, ok := c.l1.Find(key); ok {
		return entry, nil
	}

	if c.l2 != nil {
		entry, err := c.l2.Get(ctx, key)
		if err != nil {
			c.logger.Debug("l2 get degraded", zap.String("key", key), zap.Error(err))
		} else if entry != nil {
			c.promoteToL1(entry)
			return entry, nil
		}
	}

	if c.l3 != nil {
		entry, err := c.l3.Get(ctx, key)
		if err != nil {
			c.logger.Debug("l3 get degraded", zap.String("key", key), zap.Error(err))
		} else if entry != nil {
			c.promoteToL1(entry)
			if c.l2 != nil {
				if err := c.l2.Set(ctx, entry); err != nil {
					c.logger.Warn("l2 promotion write-through failed", zap.String("key", key), zap.Error(err))
				}
			}
			return entry, nil
		}
	}

	return nil, NewError(KindNotFound, "entry not found in any tier")
}

// promoteToL1 inserts entry into L1 using its remaining TTL rather than a
// fresh one (spec §4.8, "Promotion uses the source entry's remaining TTL").
func (c *Coordinator) promoteToL1(entry *Entry) {
	promoted := entry.Clone()
	if promoted.Timestamp > 0 {
		ttl := promoted.TTL
		if ttl == 0 {
			ttl = c.l1.cfg.DefaultTTLMS
		}
		if ttl > 0 {
			remaining := ttl - (NowMS() - promoted.Timestamp)
			if remaining <= 0 {
				return
			}
			promoted.TTL = remaining
		}
	}
	c.l1.Add(promoted)
}

// Set writes entry to L1 (authoritative for the caller) and best-effort to
// L2/L3 (spec §4.8 "set" protocol). If L1 is at capacity and eviction cannot
// make room, Set returns a KindFull error and writes nothing to L2/L3.
func (c *Coordinator) Set(ctx context.Context, entry *Entry) error {
	result := c.l1.Add(entry)
	if result == AddAlreadyExists {
		c.l1.Update(entry.Key, entry)
	} else if result == AddFull {
		return NewError(KindFull, "L1 at capacity and eviction could not make room")
	}

	if c.l2 != nil {
		if err := c.l2.Set(ctx, entry); err != nil {
			c.logger.Warn("l2 write-through failed", zap.String("key", entry.Key), zap.Error(err))
		}
	}
	if c.l3 != nil {
		if err := c.l3.Set(ctx, entry); err != nil {
			c.logger.Warn("l3 write-through failed", zap.String("key", entry.Key), zap.Error(err))
		}
	}
	return nil
}

// Update is equivalent to Set on tiers that upsert on write (spec §4.8).
func (c *Coordinator) Update(ctx context.Context, entry *Entry) error {
	return c.Set(ctx, entry)
}

// Delete removes key from all three tiers. Idempotent across repeated calls
// (spec §8 property 9).
func (c *Coordinator) Delete(ctx context.Context, key string) error {
	c.l1.Remove(key)
	if c.l2 != nil {
		if err := c.l2.Delete(ctx, key); err != nil {
			c.logger.Warn("l2 delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	if c.l3 != nil {
		if err := c.l3.Delete(ctx, key); err != nil {
			c.logger.Warn("l3 delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// EvictExpiredAll clears expired entries from L1. L2 expires entries through
// the remote store's native TTL; the durable L3 backends do not expire entries.
func (c *Coordinator) EvictExpiredAll() int {
	return c.l1.ClearExpired()
}

// WarmSource yields candidate entries in descending frequency order for
// Warm to consume (spec §4.8, resolving the "tcl_warm_cache is a TODO" open
// question from spec.md §9).
type WarmSource interface {
	Next() (*Entry, bool)
}

// Warm consumes up to count entries from source (sorted by frequency) and
// installs them via Set.
func (c *Coordinator) Warm(ctx context.Context, source WarmSource, count int) int {
	warmed := 0
	for warmed < count && ctx.Err() == nil {
		entry, ok := source.Next()
		if !ok {
			break
		}
		if err := c.Set(ctx, entry); err != nil {
			c.logger.Warn("warm set failed", zap.String("key", entry.Key), zap.Error(err))
			continue
		}
		warmed++
	}
	return warmed
}

// WarmStatus is the lifecycle state of an asynchronous warm job.
type WarmStatus int

const (
	WarmPending WarmStatus = iota
	WarmRunning
	WarmDone
	WarmFailed
)

// WarmJob is the handle returned for an asynchronous cache-preload request
// (spec.md §6, `POST /cache/preload` → "202 with job handle"). Callers poll
// Status/Warmed/Err instead of blocking on Warm directly.
type WarmJob struct {
	ID uuid.UUID

	mu     sync.Mutex
	status WarmStatus
	warmed int
	err    error
}

// Status returns the job's current lifecycle state.
func (j *WarmJob) Status() WarmStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Warmed returns the number of entries installed so far.
func (j *WarmJob) Warmed() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.warmed
}

// Err returns the job's terminal error, if it failed.
func (j *WarmJob) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *WarmJob) setRunning() {
	j.mu.Lock()
	j.status = WarmRunning
	j.mu.Unlock()
}

func (j *WarmJob) finish(warmed int, err error) {
	j.mu.Lock()
	j.warmed = warmed
	j.err = err
	if err != nil {
		j.status = WarmFailed
	} else {
		j.status = WarmDone
	}
	j.mu.Unlock()
}

// StartWarm launches Warm in the background and returns immediately with a
// job handle, matching the preload endpoint's async contract. The context
// passed in governs the whole background warm, not just the call that
// started it, so callers own cancellation.
func (c *Coordinator) StartWarm(ctx context.Context, source WarmSource, count int) *WarmJob {
	job := &WarmJob{ID: uuid.New(), status: WarmPending}
	go func() {
		job.setRunning()
		warmed := c.Warm(ctx, source, count)
		job.finish(warmed, ctx.Err())
	}()
	return job
}

// Metrics returns the L1 tier's snapshot, the only tier whose metrics this
// Coordinator tracks. The L2/L3 adapters keep no metrics of their own;
// AggregateSnapshot combines per-tier snapshots with request-count weighting.
func (c *Coordinator) Metrics() Snapshot {
	return c.l1.metrics.Snapshot()
}
