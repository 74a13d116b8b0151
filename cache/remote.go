package cache

import (
	"context"
	"crypto/tls"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	tcl "github.com/tofudevice/tcl"
)

// RemoteConfig configures a RemoteCache (spec §4.5).
type RemoteConfig struct {
	URL                  string // redis://host:port or rediss://host:port for TLS
	KeyPrefix            string // default "tcl:"
	PoolSize             int    // bounded connection pool (default 10)
	CommandTimeout       time.Duration
	MaxConsecutiveErrors int64 // reconnect after this many back-to-back command failures
	TLSConfig            *tls.Config
	Logger               *zap.Logger
}

// RemoteCache is the L2 remote cache adapter: a Redis-backed, Entry-aware,
// versioned store with bounded connections and automatic reconnect on a
// run of consecutive errors (spec §4.5).
type RemoteCache struct {
	cfg    RemoteConfig
	logger *zap.Logger

	client      atomic.Pointer[redis.Client]
	consecutive int64
}

// NewRemoteCache dials Redis and returns a RemoteCache.
func NewRemoteCache(cfg RemoteConfig) (*RemoteCache, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "tcl:"
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 2 * time.Second
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rc := &RemoteCache{cfg: cfg, logger: logger}
	client, err := rc.dial()
	if err != nil {
		return nil, err
	}
	rc.client.Store(client)
	return rc, nil
}

// NewRemoteCacheFromClient builds a RemoteCache around an existing client,
// bypassing dial/ping — used to inject a redismock client in tests.
func NewRemoteCacheFromClient(client *redis.Client, cfg RemoteConfig) *RemoteCache {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "tcl:"
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = 2 * time.Second
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rc := &RemoteCache{cfg: cfg, logger: logger}
	rc.client.Store(client)
	return rc
}

func (r *RemoteCache) dial() (*redis.Client, error) {
	opts, err := redis.ParseURL(r.cfg.URL)
	if err != nil {
		return nil, tcl.WrapError(tcl.KindInvalidInput, "parsing redis URL", err)
	}
	opts.PoolSize = r.cfg.PoolSize
	if r.cfg.TLSConfig != nil {
		opts.TLSConfig = r.cfg.TLSConfig
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.CommandTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, tcl.WrapError(tcl.KindRemoteUnavailable, "connecting to remote cache", err)
	}
	return client, nil
}

// recordOutcome tracks consecutive command failures and triggers a
// reconnect once the threshold is crossed (spec §4.5, "automatic reconnect
// after K consecutive errors").
func (r *RemoteCache) recordOutcome(err error) {
	if err == nil || err == redis.Nil {
		atomic.StoreInt64(&r.consecutive, 0)
		return
	}
	n := atomic.AddInt64(&r.consecutive, 1)
	if n < r.cfg.MaxConsecutiveErrors {
		return
	}
	atomic.StoreInt64(&r.consecutive, 0)
	r.logger.Warn("remote cache reconnecting after consecutive errors", zap.Int64("errors", n))
	newClient, dialErr := r.dial()
	if dialErr != nil {
		r.logger.Error("remote cache reconnect failed", zap.Error(dialErr))
		return
	}
	old := r.client.Swap(newClient)
	if old != nil {
		_ = old.Close()
	}
}

func (r *RemoteCache) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.cfg.CommandTimeout)
}

// Get implements tcl.RemoteCacheAdapter.
func (r *RemoteCache) Get(ctx context.Context, key string) (*tcl.Entry, error) {
	client := r.client.Load()
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	data, err := client.Get(ctx, r.cfg.KeyPrefix+key).Bytes()
	if err == redis.Nil {
		r.recordOutcome(nil)
		return nil, nil
	}
	if err != nil {
		r.recordOutcome(err)
		return nil, tcl.WrapError(tcl.KindRemoteUnavailable, "remote cache get", err)
	}
	r.recordOutcome(nil)
	return decodeEntry(data)
}

// Set implements tcl.RemoteCacheAdapter. entry.TTL of 0 stores without
// expiration; otherwise the TTL is pushed down as Redis's native EX.
func (r *RemoteCache) Set(ctx context.Context, entry *tcl.Entry) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	client := r.client.Load()
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var ttl time.Duration
	if entry.TTL > 0 {
		ttl = time.Duration(entry.TTL) * time.Millisecond
	}
	err = client.Set(ctx, r.cfg.KeyPrefix+entry.Key, data, ttl).Err()
	r.recordOutcome(err)
	if err != nil {
		return tcl.WrapError(tcl.KindRemoteUnavailable, "remote cache set", err)
	}
	return nil
}

// Delete implements tcl.RemoteCacheAdapter. Deleting an absent key is not an
// error (spec §8, "Delete is idempotent").
func (r *RemoteCache) Delete(ctx context.Context, key string) error {
	client := r.client.Load()
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	err := client.Del(ctx, r.cfg.KeyPrefix+key).Err()
	r.recordOutcome(err)
	if err != nil {
		return tcl.WrapError(tcl.KindRemoteUnavailable, "remote cache delete", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *RemoteCache) Close() error {
	client := r.client.Load()
	if client == nil {
		return nil
	}
	return client.Close()
}

var _ tcl.RemoteCacheAdapter = (*RemoteCache)(nil)
