// Package observability exposes the Prometheus metrics of the sync components.
// Sentry error telemetry is handled in the errors package.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/MrGangrene/bgg-flashcards/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	Catalog      *metrics.CatalogMetrics
	ImageService *metrics.ImageServiceMetrics
	Tasks        *metrics.TaskMetrics
	Sync         *metrics.SyncMetrics
}

// NewMetrics creates a new instance of Metrics on a private registry.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}

	catalogMetrics, err := metrics.NewCatalogMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Catalog metrics: %w", err)
	}

	imageMetrics, err := metrics.NewImageServiceMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create ImageService metrics: %w", err)
	}

	taskMetrics, err := metrics.NewTaskMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Task metrics: %w", err)
	}

	syncMetrics, err := metrics.NewSyncMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sync metrics: %w", err)
	}

	return &Metrics{
		registry:     registry,
		Catalog:      catalogMetrics,
		ImageService: imageMetrics,
		Tasks:        taskMetrics,
		Sync:         syncMetrics,
	}, nil
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
