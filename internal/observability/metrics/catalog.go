// Package metrics provides custom Prometheus metrics for the catalog sync components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// CatalogMetrics contains all Prometheus metrics related to BoardGameGeek API calls.
type CatalogMetrics struct {
	Requests        *prometheus.CounterVec
	RequestErrors   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	registry        *prometheus.Registry
}

// NewCatalogMetrics creates a new instance of CatalogMetrics and registers it
// with the given registry.
func NewCatalogMetrics(registry *prometheus.Registry) (*CatalogMetrics, error) {
	m := &CatalogMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize Catalog metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register Catalog metrics: %w", err)
	}
	return m, nil
}

func (m *CatalogMetrics) initMetrics() error {
	m.Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bgg_catalog_requests_total",
		Help: "Total number of catalog API requests.",
	}, []string{"endpoint", "status"}) // endpoint: search, thing; status: success, error

	m.RequestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bgg_catalog_request_errors_total",
		Help: "Total number of failed catalog API requests by error category.",
	}, []string{"endpoint", "category"})

	m.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bgg_catalog_request_duration_seconds",
		Help:    "Duration of catalog API requests including retries.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"endpoint"})

	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bgg_catalog_cache_hits_total",
		Help: "Total number of catalog response cache hits.",
	})

	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bgg_catalog_cache_misses_total",
		Help: "Total number of catalog response cache misses.",
	})

	return nil
}

// RecordRequest records a finished catalog request and its duration in seconds.
func (m *CatalogMetrics) RecordRequest(endpoint, status string, durationSeconds float64) {
	m.Requests.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordError counts a failed request under its error category.
func (m *CatalogMetrics) RecordError(endpoint, category string) {
	m.RequestErrors.WithLabelValues(endpoint, category).Inc()
}

// IncrementCacheHits increases the cache hit counter by one.
func (m *CatalogMetrics) IncrementCacheHits() {
	m.CacheHits.Inc()
}

// IncrementCacheMisses increases the cache miss counter by one.
func (m *CatalogMetrics) IncrementCacheMisses() {
	m.CacheMisses.Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *CatalogMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Requests.Collect(ch)
	m.RequestErrors.Collect(ch)
	m.RequestDuration.Collect(ch)
	ch <- m.CacheHits
	ch <- m.CacheMisses
}

// Describe implements the prometheus.Collector interface.
func (m *CatalogMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Requests.Describe(ch)
	m.RequestErrors.Describe(ch)
	m.RequestDuration.Describe(ch)
	ch <- m.CacheHits.Desc()
	ch <- m.CacheMisses.Desc()
}
