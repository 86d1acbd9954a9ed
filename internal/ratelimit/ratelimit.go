// Package ratelimit implements per-client request limiting with lazy-refill
// token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int64 // requests per minute
	Remaining  int64
	RetryAfter time.Duration // zero when allowed
}

// Config holds limiter parameters.
type Config struct {
	RPM   int64 // sustained requests per minute per client
	Burst int64 // bucket capacity; 0 means RPM

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// bucket is a token bucket with lazy refill (no background goroutine).
type bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
	lastUsed time.Time
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

func (b *bucket) take(now time.Time) bool {
	b.refill(now)
	b.lastUsed = now
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// retryAfter returns the wait until one token is available.
func (b *bucket) retryAfter() time.Duration {
	if b.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
}

// Limiter tracks one bucket per client key. Safe for concurrent use.
type Limiter struct {
	rpm   int64
	burst float64
	rate  float64
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// New creates a Limiter. RPM must be positive.
func New(cfg Config) *Limiter {
	if cfg.RPM <= 0 {
		panic("ratelimit: RPM must be positive")
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RPM
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Limiter{
		rpm:     cfg.RPM,
		burst:   float64(cfg.Burst),
		rate:    float64(cfg.RPM) / 60.0,
		now:     cfg.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes one token from key's bucket.
func (l *Limiter) Allow(key string) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, max: l.burst, rate: l.rate, lastFill: now}
		l.buckets[key] = b
	}
	if b.take(now) {
		return Result{Allowed: true, Limit: l.rpm, Remaining: int64(b.tokens)}
	}
	return Result{Limit: l.rpm, RetryAfter: b.retryAfter()}
}

// EvictStale drops buckets not used since cutoff. An evicted client starts
// over with a full bucket, so cutoff should be older than a full refill.
func (l *Limiter) EvictStale(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for k, b := range l.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(l.buckets, k)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
