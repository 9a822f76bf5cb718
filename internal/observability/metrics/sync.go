package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics counts batch updater progress.
type SyncMetrics struct {
	Items    *prometheus.CounterVec
	Runs     prometheus.Counter
	registry *prometheus.Registry
}

// NewSyncMetrics creates and registers batch sync metrics.
func NewSyncMetrics(registry *prometheus.Registry) (*SyncMetrics, error) {
	m := &SyncMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize Sync metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register Sync metrics: %w", err)
	}
	return m, nil
}

func (m *SyncMetrics) initMetrics() error {
	m.Items = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bgg_sync_items_total",
		Help: "Total number of items handled by the batch updater by result.",
	}, []string{"result"}) // result: successful, skipped

	m.Runs = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bgg_sync_runs_total",
		Help: "Total number of batch updater runs.",
	})

	return nil
}

// RecordItem counts one processed item.
func (m *SyncMetrics) RecordItem(success bool) {
	if success {
		m.Items.WithLabelValues("successful").Inc()
		return
	}
	m.Items.WithLabelValues("skipped").Inc()
}

// IncrementRuns increases the run counter by one.
func (m *SyncMetrics) IncrementRuns() {
	m.Runs.Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *SyncMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Items.Collect(ch)
	ch <- m.Runs
}

// Describe implements the prometheus.Collector interface.
func (m *SyncMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Items.Describe(ch)
	ch <- m.Runs.Desc()
}
