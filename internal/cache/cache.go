// Package cache provides the TTL response cache that fronts the catalog API.
//
// The cache keeps one entry per request signature (method plus path and
// query). Entries are fresh while now < ExpiresAt; expired entries are treated
// as absent on read and removed by a periodic sweep. Requests carrying
// credentials and non-GET requests never touch the entry table.
package cache

import (
	"context"
	"time"
)

// entryOverhead approximates the per-entry bookkeeping cost (map slot,
// timestamps, slice headers) added to key and payload sizes in Stats.
const entryOverhead = 64

// Entry is one stored response.
type Entry struct {
	Payload     []byte    `json:"payload"`
	Status      int       `json:"status"`
	ContentType string    `json:"content_type,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Fresh reports whether the entry may still be served at now.
func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Remaining returns the freshness left at now, never negative.
func (e Entry) Remaining(now time.Time) time.Duration {
	return max(0, e.ExpiresAt.Sub(now))
}

func (e Entry) size(key string) int64 {
	return int64(len(key)+len(e.Payload)+len(e.ContentType)) + entryOverhead
}

// Stats summarizes the entry table at a point in time.
type Stats struct {
	TotalEntries     int   `json:"total_entries"`
	ValidEntries     int   `json:"valid_entries"`
	ExpiredEntries   int   `json:"expired_entries"`
	MemoryUsageBytes int64 `json:"memory_usage_bytes"`
}

func (s *Stats) add(key string, e Entry, now time.Time) {
	s.TotalEntries++
	if e.Fresh(now) {
		s.ValidEntries++
	} else {
		s.ExpiredEntries++
	}
	s.MemoryUsageBytes += e.size(key)
}

// Store is the entry table behind a ResponseCache.
// Implementations must be safe for concurrent use. Store methods never fail
// from the caller's point of view: backend errors degrade to misses.
type Store interface {
	// Get returns the entry stored under key regardless of freshness.
	Get(ctx context.Context, key string) (Entry, bool)
	// Set stores e under key, replacing any previous entry. ttl is the
	// freshness window e was built with.
	Set(ctx context.Context, key string, e Entry, ttl time.Duration)
	// DeleteMatching removes every entry whose key contains substr literally
	// and returns how many were removed.
	DeleteMatching(ctx context.Context, substr string) int
	// Purge removes all entries.
	Purge(ctx context.Context)
	// Sweep removes entries that are no longer fresh at now.
	Sweep(ctx context.Context, now time.Time) int
	// Stats scans the table once and classifies entries by freshness at now.
	Stats(ctx context.Context, now time.Time) Stats
}

// Key returns the entry table key for a request signature.
// path must include the query string.
func Key(method, path string) string {
	return method + ":" + path
}
