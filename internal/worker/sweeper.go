package worker

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often expired cache entries are removed.
const DefaultSweepInterval = 60 * time.Second

// Sweeper removes expired entries from a response cache.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// CacheSweeper periodically sweeps expired response cache entries so the
// table does not grow with keys nobody reads again. Lazy expiry on read
// keeps correctness without it.
type CacheSweeper struct {
	cache    Sweeper
	interval time.Duration
}

// NewCacheSweeper creates a CacheSweeper. A non-positive interval selects
// DefaultSweepInterval.
func NewCacheSweeper(cache Sweeper, interval time.Duration) *CacheSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &CacheSweeper{cache: cache, interval: interval}
}

// Name returns the worker identifier.
func (w *CacheSweeper) Name() string { return "cache_sweeper" }

// Run sweeps on every tick until ctx is cancelled.
func (w *CacheSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := w.cache.Sweep(ctx); n > 0 {
				slog.LogAttrs(ctx, slog.LevelDebug, "cache sweep",
					slog.Int("removed", n),
				)
			}
		}
	}
}
