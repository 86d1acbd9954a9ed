package cache

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/eugener/storefront/internal/telemetry"
)

// Response header names and X-Cache values.
const (
	HeaderCache        = "X-Cache"
	HeaderCacheControl = "Cache-Control"

	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// TokenCookie is the session cookie whose presence marks a request as authenticated.
const TokenCookie = "token"

// Request is the part of an inbound request the cache looks at.
type Request struct {
	Method        string
	Path          string // path including the raw query string
	Authorization string // Authorization header value, if any
	SessionToken  string // value of the token cookie, if any
}

// RequestFromHTTP extracts a Request from r.
func RequestFromHTTP(r *http.Request) Request {
	req := Request{
		Method:        r.Method,
		Path:          r.URL.RequestURI(),
		Authorization: r.Header.Get("Authorization"),
	}
	if c, err := r.Cookie(TokenCookie); err == nil {
		req.SessionToken = c.Value
	}
	return req
}

// Authenticated reports whether the request carries any credential.
func (r Request) Authenticated() bool {
	return r.Authorization != "" || r.SessionToken != ""
}

// Cacheable reports whether the request may read or populate the cache:
// an anonymous GET.
func (r Request) Cacheable() bool {
	return r.Method == http.MethodGet && !r.Authenticated()
}

// Result is a handler's response as seen by the cache.
type Result struct {
	Status int
	Header http.Header
	Body   []byte
}

// Handler produces the real response for a request that missed the cache.
type Handler func(ctx context.Context) Result

// Options configures a ResponseCache.
type Options struct {
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// Metrics receives hit/miss/store counters. Nil disables metrics.
	Metrics *telemetry.Metrics
	// Coalesce makes concurrent misses for the same key share one handler
	// invocation. Off by default: each miss runs the handler and the last
	// write wins.
	Coalesce bool
}

// ResponseCache caches successful JSON responses to anonymous GET requests.
// It is safe for concurrent use.
type ResponseCache struct {
	store   Store
	now     func() time.Time
	metrics *telemetry.Metrics
	tracer  trace.Tracer
	group   *singleflight.Group // nil unless Options.Coalesce
}

// New returns a ResponseCache over store.
func New(store Store, opts Options) *ResponseCache {
	c := &ResponseCache{
		store:   store,
		now:     opts.Clock,
		metrics: opts.Metrics,
		tracer:  telemetry.Tracer("storefront/cache"),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if opts.Coalesce {
		c.group = &singleflight.Group{}
	}
	return c
}

// Intercept serves req from the cache when a fresh entry exists, otherwise
// runs next and stores its result for ttl if it is a 2xx JSON response.
// Non-GET and authenticated requests pass straight through to next with no
// headers added and no entry read or written.
func (c *ResponseCache) Intercept(ctx context.Context, req Request, ttl time.Duration, next Handler) Result {
	if !req.Cacheable() {
		c.countBypass()
		return next(ctx)
	}

	key := Key(req.Method, req.Path)
	ctx, span := c.tracer.Start(ctx, "cache.intercept", trace.WithAttributes(
		attribute.String("cache.key", key),
	))
	defer span.End()

	now := c.now()
	if e, ok := c.store.Get(ctx, key); ok && e.Fresh(now) {
		if c.metrics != nil {
			c.metrics.CacheHits.Inc()
		}
		span.SetAttributes(attribute.String("cache.result", CacheHit))
		return hitResult(e, now)
	}

	if c.metrics != nil {
		c.metrics.CacheMisses.Inc()
	}
	span.SetAttributes(attribute.String("cache.result", CacheMiss))

	res := c.load(ctx, key, ttl, next)
	res.Header.Set(HeaderCache, CacheMiss)
	if storable(res) {
		res.Header.Set(HeaderCacheControl, publicMaxAge(ttl))
	}
	return res
}

// load runs next and stores a storable result. With coalescing enabled,
// concurrent callers for the same key share one run; each gets its own
// header map.
func (c *ResponseCache) load(ctx context.Context, key string, ttl time.Duration, next Handler) Result {
	run := func() Result {
		res := next(ctx)
		if res.Header == nil {
			res.Header = make(http.Header)
		}
		if storable(res) && ttl > 0 {
			c.store.Set(ctx, key, Entry{
				Payload:     res.Body,
				Status:      res.Status,
				ContentType: res.Header.Get("Content-Type"),
				ExpiresAt:   c.now().Add(ttl),
			}, ttl)
			if c.metrics != nil {
				c.metrics.CacheStores.Inc()
			}
		}
		return res
	}
	if c.group == nil {
		return run()
	}
	v, _, shared := c.group.Do(key, func() (any, error) {
		return run(), nil
	})
	res := v.(Result)
	if shared {
		res.Header = res.Header.Clone()
	}
	return res
}

// Invalidate removes every entry whose key contains substr as a literal.
// An empty substr clears the whole table. Matching is coarse on purpose:
// "/api/products" also removes "/api/products/123".
func (c *ResponseCache) Invalidate(ctx context.Context, substr string) int {
	if substr == "" {
		c.InvalidateAll(ctx)
		return 0
	}
	n := c.store.DeleteMatching(ctx, substr)
	if c.metrics != nil {
		c.metrics.CacheInvalidated.Add(float64(n))
	}
	slog.LogAttrs(ctx, slog.LevelDebug, "cache invalidated",
		slog.String("match", substr),
		slog.Int("removed", n),
	)
	return n
}

// InvalidateAll empties the entry table.
func (c *ResponseCache) InvalidateAll(ctx context.Context) {
	c.store.Purge(ctx)
	slog.LogAttrs(ctx, slog.LevelDebug, "cache purged")
}

// Sweep removes all expired entries and returns how many were removed.
func (c *ResponseCache) Sweep(ctx context.Context) int {
	n := c.store.Sweep(ctx, c.now())
	if c.metrics != nil {
		c.metrics.CacheSwept.Add(float64(n))
	}
	return n
}

// Stats reports entry counts and an estimate of memory held by the table.
func (c *ResponseCache) Stats(ctx context.Context) Stats {
	s := c.store.Stats(ctx, c.now())
	if c.metrics != nil {
		c.metrics.CacheEntries.Set(float64(s.TotalEntries))
	}
	return s
}

func (c *ResponseCache) countBypass() {
	if c.metrics != nil {
		c.metrics.CacheBypasses.Inc()
	}
}

// storable reports whether a handler result may be cached: a 2xx status
// with a well-formed JSON body.
func storable(res Result) bool {
	return res.Status >= 200 && res.Status < 300 && gjson.ValidBytes(res.Body)
}

func hitResult(e Entry, now time.Time) Result {
	h := make(http.Header, 3)
	if e.ContentType != "" {
		h.Set("Content-Type", e.ContentType)
	}
	h.Set(HeaderCache, CacheHit)
	h.Set(HeaderCacheControl, publicMaxAge(e.Remaining(now)))
	return Result{Status: e.Status, Header: h, Body: e.Payload}
}

// publicMaxAge renders a public Cache-Control value, rounding partial
// seconds up so a fresh entry never advertises max-age=0.
func publicMaxAge(d time.Duration) string {
	secs := int64(math.Ceil(max(0, d).Seconds()))
	return "public, max-age=" + strconv.FormatInt(secs, 10)
}
