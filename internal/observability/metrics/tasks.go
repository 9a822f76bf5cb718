package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Task outcome labels.
const (
	TaskOutcomeCompleted = "completed"
	TaskOutcomeCancelled = "cancelled"
	TaskOutcomeFailed    = "failed"
)

// TaskMetrics tracks background task lifecycles.
type TaskMetrics struct {
	Started  prometheus.Counter
	Finished *prometheus.CounterVec
	Running  prometheus.Gauge
	registry *prometheus.Registry
}

// NewTaskMetrics creates and registers background task metrics.
func NewTaskMetrics(registry *prometheus.Registry) (*TaskMetrics, error) {
	m := &TaskMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize Task metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register Task metrics: %w", err)
	}
	return m, nil
}

func (m *TaskMetrics) initMetrics() error {
	m.Started = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "background_tasks_started_total",
		Help: "Total number of background tasks started.",
	})

	m.Finished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "background_tasks_finished_total",
		Help: "Total number of background tasks finished by outcome.",
	}, []string{"outcome"})

	m.Running = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "background_tasks_running",
		Help: "Number of background tasks currently running.",
	})

	return nil
}

// TaskStarted records a task launch.
func (m *TaskMetrics) TaskStarted() {
	m.Started.Inc()
	m.Running.Inc()
}

// TaskFinished records a task reaching a terminal state.
func (m *TaskMetrics) TaskFinished(outcome string) {
	m.Finished.WithLabelValues(outcome).Inc()
	m.Running.Dec()
}

// Collect implements the prometheus.Collector interface.
func (m *TaskMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.Started
	m.Finished.Collect(ch)
	ch <- m.Running
}

// Describe implements the prometheus.Collector interface.
func (m *TaskMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.Started.Desc()
	m.Finished.Describe(ch)
	ch <- m.Running.Desc()
}
