package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/maypok86/otter/v2"
)

// Memory is an in-process entry table backed by otter.
// Freshness is decided by the entry's own ExpiresAt, never by otter, so the
// response cache clock stays the single source of truth. MaximumSize bounds
// the table; beyond it otter's W-TinyLFU policy picks victims.
type Memory struct {
	cache *otter.Cache[string, Entry]
}

// NewMemory creates an in-memory entry table holding at most maxSize entries.
func NewMemory(maxSize int) (*Memory, error) {
	c, err := otter.New(&otter.Options[string, Entry]{
		MaximumSize: maxSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Memory{cache: c}, nil
}

// Get retrieves an entry if present.
func (m *Memory) Get(_ context.Context, key string) (Entry, bool) {
	return m.cache.GetIfPresent(key)
}

// Set stores an entry, overwriting any previous one under key.
func (m *Memory) Set(_ context.Context, key string, e Entry, _ time.Duration) {
	m.cache.Set(key, e)
}

// DeleteMatching removes entries whose key contains substr.
func (m *Memory) DeleteMatching(_ context.Context, substr string) int {
	return m.deleteWhere(func(key string, _ Entry) bool {
		return strings.Contains(key, substr)
	})
}

// Purge removes all entries.
func (m *Memory) Purge(_ context.Context) {
	m.cache.InvalidateAll()
}

// Sweep removes entries expired at now.
func (m *Memory) Sweep(_ context.Context, now time.Time) int {
	return m.deleteWhere(func(_ string, e Entry) bool {
		return !e.Fresh(now)
	})
}

// Stats scans every entry once.
func (m *Memory) Stats(_ context.Context, now time.Time) Stats {
	var s Stats
	for k, e := range m.cache.All() {
		s.add(k, e, now)
	}
	return s
}

// deleteWhere collects matching keys first so the table is not mutated
// while it is being iterated.
func (m *Memory) deleteWhere(match func(string, Entry) bool) int {
	var keys []string
	for k, e := range m.cache.All() {
		if match(k, e) {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		m.cache.Invalidate(k)
	}
	return len(keys)
}
