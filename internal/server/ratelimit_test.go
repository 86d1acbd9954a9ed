package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/eugener/storefront/internal/app"
	"github.com/eugener/storefront/internal/ratelimit"
	"github.com/eugener/storefront/internal/testutil"
)

func TestRateLimit(t *testing.T) {
	t.Parallel()
	h := New(Deps{
		Auth:      &testutil.FakeAuth{},
		Catalog:   app.NewCatalogService(testutil.NewFakeStore(), nil, nil),
		RateLimit: ratelimit.New(ratelimit.Config{RPM: 60, Burst: 2}),
	})

	get := func(target, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := range 2 {
		rec := get("/api/products", "192.0.2.1:4000")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "60" {
			t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
		}
	}

	// Same client from another source port shares the bucket.
	rec := get("/api/categories", "192.0.2.1:4001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After should be set")
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
	if body := decodeBody[apiError](t, rec); body.Error.Type != "rate_limit_error" {
		t.Errorf("error type = %q", body.Error.Type)
	}

	if rec := get("/api/products", "198.51.100.7:4000"); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
	if rec := get("/healthz", "192.0.2.1:4000"); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200 (not limited)", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:4000", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"pipe", "pipe"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}
