package device

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks block device access
type Metrics struct {
	registry *prometheus.Registry

	BlocksRead     prometheus.Counter
	BytesRead      prometheus.Counter
	ReadErrors     prometheus.Counter
	ReadDuration   prometheus.Histogram
	BuffersInUse   prometheus.Gauge
	ReadOperations *prometheus.CounterVec
}

// NewMetrics creates block device metrics in a private registry
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.BlocksRead = promauto.With(m.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "f2fs_device_blocks_read_total",
			Help: "Total number of blocks read from the image",
		},
	)

	m.BytesRead = promauto.With(m.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "f2fs_device_bytes_read_total",
			Help: "Total number of bytes read from the image",
		},
	)

	m.ReadErrors = promauto.With(m.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "f2fs_device_read_errors_total",
			Help: "Total number of failed block reads",
		},
	)

	m.ReadDuration = promauto.With(m.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "f2fs_device_read_duration_seconds",
			Help:    "Block read duration in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		},
	)

	m.BuffersInUse = promauto.With(m.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "f2fs_device_buffers_in_use",
			Help: "Number of block buffers handed out and not yet released",
		},
	)

	m.ReadOperations = promauto.With(m.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "f2fs_device_read_operations_total",
			Help: "Total number of read operations by kind",
		},
		[]string{"kind"},
	)

	return m
}

// Gatherer returns the registry holding the device metrics
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
