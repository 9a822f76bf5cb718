package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ImageServiceMetrics contains all Prometheus metrics related to image acquisition.
type ImageServiceMetrics struct {
	ImageDownloads         prometheus.Counter
	DownloadErrors         *prometheus.CounterVec
	DownloadDuration       prometheus.Histogram
	StoredBytes            prometheus.Histogram
	AggressiveCompressions prometheus.Counter
	registry               *prometheus.Registry
}

// NewImageServiceMetrics creates a new instance of ImageServiceMetrics.
// It returns an error if metric registration fails.
func NewImageServiceMetrics(registry *prometheus.Registry) (*ImageServiceMetrics, error) {
	m := &ImageServiceMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize ImageService metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ImageService metrics: %w", err)
	}
	return m, nil
}

func (m *ImageServiceMetrics) initMetrics() error {
	m.ImageDownloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_service_downloads_total",
		Help: "Total number of image downloads.",
	})

	m.DownloadErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "image_service_errors_total",
		Help: "Total number of image acquisition failures by stage.",
	}, []string{"stage"}) // stage: download, process, store

	m.DownloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_service_download_duration_seconds",
		Help:    "Duration of image downloads in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	m.StoredBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_service_stored_bytes",
		Help:    "Size of stored images after processing.",
		Buckets: prometheus.ExponentialBuckets(4096, 2, 10),
	})

	m.AggressiveCompressions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_service_aggressive_compressions_total",
		Help: "Total number of images that needed the aggressive compression pass.",
	})

	return nil
}

// IncrementImageDownloads increases the image download counter by one.
func (m *ImageServiceMetrics) IncrementImageDownloads() {
	m.ImageDownloads.Inc()
}

// IncrementErrors increases the error counter for the given stage.
func (m *ImageServiceMetrics) IncrementErrors(stage string) {
	m.DownloadErrors.WithLabelValues(stage).Inc()
}

// ObserveDownloadDuration records the duration of an image download in seconds.
func (m *ImageServiceMetrics) ObserveDownloadDuration(durationSeconds float64) {
	m.DownloadDuration.Observe(durationSeconds)
}

// ObserveStoredBytes records the size of a stored image.
func (m *ImageServiceMetrics) ObserveStoredBytes(size int) {
	m.StoredBytes.Observe(float64(size))
}

// IncrementAggressiveCompressions increases the aggressive pass counter by one.
func (m *ImageServiceMetrics) IncrementAggressiveCompressions() {
	m.AggressiveCompressions.Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *ImageServiceMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.ImageDownloads
	m.DownloadErrors.Collect(ch)
	ch <- m.DownloadDuration
	ch <- m.StoredBytes
	ch <- m.AggressiveCompressions
}

// Describe implements the prometheus.Collector interface.
func (m *ImageServiceMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.ImageDownloads.Desc()
	m.DownloadErrors.Describe(ch)
	ch <- m.DownloadDuration.Desc()
	ch <- m.StoredBytes.Desc()
	ch <- m.AggressiveCompressions.Desc()
}
