package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eugener/storefront/internal/circuitbreaker"
)

const (
	// DefaultRedisPrefix namespaces entry keys inside a shared Redis database.
	DefaultRedisPrefix = "storefront:cache:"

	scanCount = 256
	delBatch  = 512
)

// globEscaper escapes Redis glob metacharacters so a substring is matched literally.
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// Redis is an entry table shared by several replicas through Redis.
// Entries are JSON-encoded with a native Redis TTL equal to their freshness
// window, so expired entries mostly disappear without a sweep.
//
// With a breaker attached, an unhealthy server is skipped entirely: reads
// miss and writes are dropped until a probe succeeds.
type Redis struct {
	client  *redis.Client
	prefix  string
	breaker *circuitbreaker.Breaker
}

// NewRedis returns a Redis entry table using prefix for all keys.
// An empty prefix selects DefaultRedisPrefix.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// WithBreaker guards every backend call with b and returns r.
func (r *Redis) WithBreaker(b *circuitbreaker.Breaker) *Redis {
	r.breaker = b
	return r
}

func (r *Redis) allow() bool {
	return r.breaker == nil || r.breaker.Allow()
}

// done records the outcome of an allowed call. redis.Nil is a normal miss.
func (r *Redis) done(ctx context.Context, op string, err error) {
	if errors.Is(err, redis.Nil) {
		err = nil
	}
	if err != nil {
		logBackendError(ctx, op, err)
	}
	if r.breaker != nil {
		r.breaker.Record(err)
	}
}

// Get retrieves and decodes an entry. Backend errors are logged and reported as a miss.
func (r *Redis) Get(ctx context.Context, key string) (Entry, bool) {
	if !r.allow() {
		return Entry{}, false
	}
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	r.done(ctx, "get", err)
	if err != nil {
		return Entry{}, false
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		logBackendError(ctx, "decode", err)
		return Entry{}, false
	}
	return e, true
}

// Set stores e with a Redis TTL of ttl. Non-positive TTLs are not stored.
func (r *Redis) Set(ctx context.Context, key string, e Entry, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		logBackendError(ctx, "encode", err)
		return
	}
	if !r.allow() {
		return
	}
	r.done(ctx, "set", r.client.Set(ctx, r.prefix+key, data, ttl).Err())
}

// DeleteMatching removes keys containing substr after the prefix.
func (r *Redis) DeleteMatching(ctx context.Context, substr string) int {
	if !r.allow() {
		return 0
	}
	pattern := globEscaper.Replace(r.prefix) + "*" + globEscaper.Replace(substr) + "*"
	keys, err := r.scanKeys(ctx, pattern)
	n, delErr := r.deleteKeys(ctx, keys)
	r.done(ctx, "delete", errors.Join(err, delErr))
	return n
}

// Purge removes every key under the prefix.
func (r *Redis) Purge(ctx context.Context) {
	if !r.allow() {
		return
	}
	keys, err := r.scanKeys(ctx, globEscaper.Replace(r.prefix)+"*")
	_, delErr := r.deleteKeys(ctx, keys)
	r.done(ctx, "purge", errors.Join(err, delErr))
}

// Sweep removes entries that are stale at now but whose Redis TTL has not
// fired yet, which only happens when clocks disagree.
func (r *Redis) Sweep(ctx context.Context, now time.Time) int {
	if !r.allow() {
		return 0
	}
	var stale []string
	err := r.eachEntry(ctx, func(key string, e Entry) {
		if !e.Fresh(now) {
			stale = append(stale, key)
		}
	})
	n, delErr := r.deleteKeys(ctx, stale)
	r.done(ctx, "sweep", errors.Join(err, delErr))
	return n
}

// Stats scans and decodes every entry under the prefix.
func (r *Redis) Stats(ctx context.Context, now time.Time) Stats {
	var s Stats
	if !r.allow() {
		return s
	}
	err := r.eachEntry(ctx, func(key string, e Entry) {
		s.add(strings.TrimPrefix(key, r.prefix), e, now)
	})
	r.done(ctx, "stats", err)
	return s
}

func (r *Redis) scanKeys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

// eachEntry calls fn with the full Redis key and decoded entry of every
// key under the prefix. Keys that vanish between SCAN and GET are skipped.
func (r *Redis) eachEntry(ctx context.Context, fn func(string, Entry)) error {
	keys, err := r.scanKeys(ctx, globEscaper.Replace(r.prefix)+"*")
	if err != nil || len(keys) == 0 {
		return err
	}
	pipe := r.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.Get(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}
		var e Entry
		if json.Unmarshal(data, &e) != nil {
			continue
		}
		fn(keys[i], e)
	}
	return nil
}

func (r *Redis) deleteKeys(ctx context.Context, keys []string) (int, error) {
	removed := 0
	for start := 0; start < len(keys); start += delBatch {
		end := min(start+delBatch, len(keys))
		n, err := r.client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, nil
}

func logBackendError(ctx context.Context, op string, err error) {
	slog.LogAttrs(ctx, slog.LevelWarn, "cache backend error",
		slog.String("backend", "redis"),
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
