package worker

import (
	"context"
	"log/slog"
	"time"
)

// Evicter drops per-client state idle since cutoff.
type Evicter interface {
	EvictStale(cutoff time.Time) int
}

// LimiterJanitor periodically evicts idle rate limiter buckets.
type LimiterJanitor struct {
	limiter  Evicter
	interval time.Duration
	idle     time.Duration
}

// NewLimiterJanitor creates a LimiterJanitor that runs every interval and
// evicts buckets idle for longer than idle.
func NewLimiterJanitor(limiter Evicter, interval, idle time.Duration) *LimiterJanitor {
	return &LimiterJanitor{limiter: limiter, interval: interval, idle: idle}
}

// Name returns the worker identifier.
func (w *LimiterJanitor) Name() string { return "ratelimit_janitor" }

// Run evicts on every tick until ctx is cancelled.
func (w *LimiterJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := w.limiter.EvictStale(now.Add(-w.idle)); n > 0 {
				slog.LogAttrs(ctx, slog.LevelDebug, "rate limiter eviction",
					slog.Int("evicted", n),
				)
			}
		}
	}
}
