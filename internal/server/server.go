// Package server implements the HTTP transport layer for the storefront API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	storefront "github.com/eugener/storefront/internal"
	"github.com/eugener/storefront/internal/app"
	"github.com/eugener/storefront/internal/cache"
	"github.com/eugener/storefront/internal/ratelimit"
	"github.com/eugener/storefront/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// CacheTTLs are the freshness windows of the cached read routes.
// A zero field falls back to Default.
type CacheTTLs struct {
	Default    time.Duration
	Products   time.Duration
	Product    time.Duration
	Categories time.Duration
}

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Auth           storefront.Authenticator
	Catalog        *app.CatalogService
	Cache          *cache.ResponseCache // nil = no response caching
	TTLs           CacheTTLs
	ReadyCheck     ReadyChecker       // nil = always ready (for tests)
	Metrics        *telemetry.Metrics // nil = no metrics
	MetricsHandler http.Handler       // nil = /metrics not mounted
	Static         http.FileSystem    // nil = /static not mounted
	RateLimit      *ratelimit.Limiter // nil = no per-client limit on /api
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// System endpoints (no auth)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if deps.Static != nil {
		r.With(cache.Headers(cache.CategoryStatic)).
			Handle("/static/*", http.StripPrefix("/static/", http.FileServer(deps.Static)))
	}

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(s.rateLimit)
		}

		// Public catalog reads, served through the response cache.
		r.With(s.cached(deps.TTLs.Products)).Get("/products", s.handleListProducts)
		r.With(s.cached(deps.TTLs.Product)).Get("/products/{id}", s.handleGetProduct)
		r.With(s.cached(deps.TTLs.Categories)).Get("/categories", s.handleListCategories)
		r.With(s.cached(deps.TTLs.Categories)).Get("/categories/{id}", s.handleGetCategory)
		r.Post("/stock/validate", s.handleValidateStock)

		// Catalog writes (admin key required)
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Use(s.requireAdmin)

			r.Post("/products", s.handleCreateProduct)
			r.Put("/products/{id}", s.handleUpdateProduct)
			r.Delete("/products/{id}", s.handleDeleteProduct)
			r.Post("/products/{id}/stock", s.handleAdjustStock)
			r.Post("/stock/decrement", s.handleDecrementStock)

			r.Post("/categories", s.handleCreateCategory)
			r.Put("/categories/{id}", s.handleUpdateCategory)
			r.Delete("/categories/{id}", s.handleDeleteCategory)
		})
	})

	// Cache administration (admin key required, never cached downstream)
	r.Route("/admin/cache", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Use(s.requireAdmin)
		r.Use(cache.Headers(cache.CategoryUser))

		r.Get("/stats", s.handleCacheStats)
		r.Delete("/", s.handleCacheInvalidate)
		r.Post("/sweep", s.handleCacheSweep)
	})

	return r
}

type server struct {
	deps Deps
}

// cached wraps a read route in the response cache, or passes it through
// when caching is disabled.
func (s *server) cached(ttl time.Duration) func(http.Handler) http.Handler {
	if s.deps.Cache == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if ttl == 0 {
		ttl = s.deps.TTLs.Default
	}
	return s.deps.Cache.Middleware(ttl)
}
