package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/eugener/storefront/internal/app"
	"github.com/eugener/storefront/internal/cache"
	"github.com/eugener/storefront/internal/telemetry"
	"github.com/eugener/storefront/internal/testutil"
)

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	mem, err := cache.NewMemory(100)
	if err != nil {
		t.Fatal(err)
	}
	rc := cache.New(mem, cache.Options{Metrics: metrics})

	h := New(Deps{
		Auth:           testutil.FakeAuth{},
		Catalog:        app.NewCatalogService(testutil.NewFakeStore(), rc, metrics),
		Cache:          rc,
		TTLs:           CacheTTLs{Products: 5 * time.Minute},
		Metrics:        metrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	for range 2 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("products: status = %d; body = %s", rec.Code, rec.Body.String())
		}
	}

	if got := promtest.ToFloat64(metrics.CacheMisses); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}
	if got := promtest.ToFloat64(metrics.CacheHits); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := promtest.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "/api/products", "200")); got != 2 {
		t.Errorf("requests_total{/api/products} = %v, want 2", got)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: status = %d; body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, name := range []string{
		"storefront_requests_total",
		"storefront_request_duration_seconds",
		"storefront_cache_hits_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics should contain %s", name)
		}
	}
}

func TestRoutePatternUnmatched(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(reg)
	h := New(Deps{Auth: testutil.FakeAuth{}, Metrics: metrics})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/no/such/path", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := promtest.ToFloat64(metrics.RequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
}
