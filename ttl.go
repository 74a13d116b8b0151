package tcl

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs a background TTL sweep against an EntryStore at a fixed
// interval (spec §4.4, "A background sweep runs at cleanup_interval").
// Lazy expiry on Find is handled by EntryStore itself; Sweeper exists for
// entries that are never looked up again but still occupy capacity.
type Sweeper struct {
	store    *EntryStore
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a sweeper for store. Pass a nil logger to use a no-op logger.
func NewSweeper(store *EntryStore, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Start launches the background sweep goroutine. Call Stop to end it.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n := s.store.ClearExpired()
				if n > 0 {
					s.logger.Debug("ttl sweep cleared expired entries", zap.Int("count", n))
				}
			}
		}
	}()
}

// Stop cancels the sweep goroutine and blocks until it has exited.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}
