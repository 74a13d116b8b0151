package durable

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	tcl "github.com/tofudevice/tcl"
)

// RedisBackend is an alternate L3 durable backend that persists through
// Redis's own RDB snapshotting rather than hand-rolled batch files,
// grounded on tcl_redis_schema.c (CONFIG SET save, the SAVE-triggered
// backup/restore pair). Unlike RemoteCache in package cache — a volatile
// L2 tier with per-entry native TTL — RedisBackend is durability-first: it
// disables key-level TTL and relies on Redis persistence plus Flush
// issuing an explicit SAVE.
type RedisBackend struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// RedisBackendConfig configures a RedisBackend.
type RedisBackendConfig struct {
	URL              string
	KeyPrefix        string // default "tcl:durable:"
	SaveIntervalSec  int    // CONFIG SET save "<interval> <changes>"
	MinChangesToSave int
	Logger           *zap.Logger
}

// NewRedisBackend dials Redis, applies the configured persistence
// parameters, and returns a ready RedisBackend.
func NewRedisBackend(cfg RedisBackendConfig) (*RedisBackend, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "tcl:durable:"
	}
	if cfg.SaveIntervalSec <= 0 {
		cfg.SaveIntervalSec = 300
	}
	if cfg.MinChangesToSave <= 0 {
		cfg.MinChangesToSave = 100
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, tcl.WrapError(tcl.KindInvalidInput, "parsing redis URL", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, tcl.WrapError(tcl.KindRemoteUnavailable, "connecting to durable redis backend", err)
	}
	if err := client.ConfigSet(ctx, "save",
		fmt.Sprintf("%d %d", cfg.SaveIntervalSec, cfg.MinChangesToSave)).Err(); err != nil {
		logger.Warn("CONFIG SET save failed, continuing with server defaults", zap.Error(err))
	}

	return &RedisBackend{client: client, keyPrefix: cfg.KeyPrefix, logger: logger}, nil
}

// Get implements tcl.DurableBackend.
func (b *RedisBackend) Get(ctx context.Context, key string) (*tcl.Entry, error) {
	data, err := b.client.Get(ctx, b.keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, tcl.WrapError(tcl.KindRemoteUnavailable, "durable redis get", err)
	}
	var record struct {
		Key       string `json:"key"`
		Timestamp int64  `json:"timestamp"`
		TTL       int64  `json:"ttl"`
		Flags     uint32 `json:"flags"`
		entryPayload
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, tcl.WrapError(tcl.KindInvalidFormat, "decoding durable redis entry", err)
	}
	payload := record.entryPayload
	return &tcl.Entry{
		Key:         record.Key,
		SourceText:  payload.SourceText,
		SourceLang:  payload.SourceLang,
		TargetLang:  payload.TargetLang,
		Translation: payload.Translation,
		Confidence:  payload.Confidence,
		Timestamp:   record.Timestamp,
		TTL:         record.TTL,
		Flags:       tcl.EntryFlags(record.Flags),
		Metadata: tcl.EntryMetadata{
			UsageCount: payload.UsageCount,
			LastUsed:   payload.LastUsed,
			Context:    payload.Context,
			Origin:     payload.Origin,
			Domain:     payload.Domain,
		},
	}, nil
}

// Set implements tcl.DurableBackend. Keys never carry a Redis-native TTL:
// durability here means "survives until explicitly deleted", unlike the
// volatile L2 adapter.
func (b *RedisBackend) Set(ctx context.Context, entry *tcl.Entry) error {
	record := struct {
		Key       string `json:"key"`
		Timestamp int64  `json:"timestamp"`
		TTL       int64  `json:"ttl"`
		Flags     uint32 `json:"flags"`
		entryPayload
	}{
		Key:       entry.Key,
		Timestamp: entry.Timestamp,
		TTL:       entry.TTL,
		Flags:     uint32(entry.Flags),
		entryPayload: entryPayload{
			SourceText:  entry.SourceText,
			SourceLang:  entry.SourceLang,
			TargetLang:  entry.TargetLang,
			Translation: entry.Translation,
			Confidence:  entry.Confidence,
			UsageCount:  entry.Metadata.UsageCount,
			LastUsed:    entry.Metadata.LastUsed,
			Context:     entry.Metadata.Context,
			Origin:      entry.Metadata.Origin,
			Domain:      entry.Metadata.Domain,
		},
	}
	data, err := json.Marshal(record)
	if err != nil {
		return tcl.WrapError(tcl.KindInternal, "encoding durable redis entry", err)
	}
	if err := b.client.Set(ctx, b.keyPrefix+entry.Key, data, 0).Err(); err != nil {
		return tcl.WrapError(tcl.KindRemoteUnavailable, "durable redis set", err)
	}
	return nil
}

// Delete implements tcl.DurableBackend.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.keyPrefix+key).Err(); err != nil {
		return tcl.WrapError(tcl.KindRemoteUnavailable, "durable redis delete", err)
	}
	return nil
}

// Flush implements tcl.DurableBackend by issuing a blocking SAVE, mirroring
// tcl_redis_schema_backup's "trigger Redis SAVE command" step.
func (b *RedisBackend) Flush(ctx context.Context) error {
	if err := b.client.Save(ctx).Err(); err != nil {
		return tcl.WrapError(tcl.KindStorageError, "durable redis SAVE", err)
	}
	return nil
}

// Close releases the underlying connection.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

var _ tcl.DurableBackend = (*RedisBackend)(nil)
