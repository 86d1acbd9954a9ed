// Package telemetry provides observability primitives for the storefront API.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   prometheus.Gauge
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheBypasses    prometheus.Counter
	CacheStores      prometheus.Counter
	CacheInvalidated prometheus.Counter
	CacheSwept       prometheus.Counter
	CacheEntries     prometheus.Gauge
	CacheBackendOpen prometheus.Gauge
	CatalogWrites    *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "storefront",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "cache_hits_total",
			Help:      "Total response cache hits.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "cache_misses_total",
			Help:      "Total response cache misses.",
		}),

		CacheBypasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "cache_bypasses_total",
			Help:      "Requests that skipped the response cache (non-GET or authenticated).",
		}),

		CacheStores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "cache_stores_total",
			Help:      "Responses written to the response cache.",
		}),

		CacheInvalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "cache_invalidated_entries_total",
			Help:      "Entries removed by explicit invalidation.",
		}),

		CacheSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "cache_swept_entries_total",
			Help:      "Expired entries removed by the periodic sweep.",
		}),

		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Name:      "cache_entries",
			Help:      "Entries in the response cache after the last sweep.",
		}),

		CacheBackendOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Name:      "cache_backend_breaker_open",
			Help:      "1 while the cache backend circuit breaker is not closed.",
		}),

		CatalogWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "catalog_writes_total",
			Help:      "Catalog mutations by entity and operation.",
		}, []string{"entity", "op"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.CacheHits,
		m.CacheMisses,
		m.CacheBypasses,
		m.CacheStores,
		m.CacheInvalidated,
		m.CacheSwept,
		m.CacheEntries,
		m.CacheBackendOpen,
		m.CatalogWrites,
	)

	return m
}
