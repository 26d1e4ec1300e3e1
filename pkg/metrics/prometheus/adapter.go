package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittoraid/pkg/metrics"
)

func init() {
	metrics.RegisterAdapterMetricsConstructor(func() metrics.AdapterMetrics {
		return NewAdapterMetrics()
	})
}

// adapterMetrics is the Prometheus implementation of metrics.AdapterMetrics.
type adapterMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	bytes    *prometheus.CounterVec
}

// NewAdapterMetrics creates a new Prometheus-backed AdapterMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewAdapterMetrics() *adapterMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &adapterMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoraid_adapter_requests_total",
				Help: "Total number of block-device requests by operation and errno",
			},
			[]string{"operation", "errno"}, // errno: "" on success, EIO, EINVAL, ENOSPC
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittoraid_adapter_request_duration_milliseconds",
				Help:    "Duration of block-device requests in milliseconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"operation"},
		),
		inFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoraid_adapter_requests_in_flight",
				Help: "Block-device requests currently being served",
			},
			[]string{"operation"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoraid_adapter_bytes_total",
				Help: "Payload bytes moved through the block-device adapter",
			},
			[]string{"operation"},
		),
	}
}

func (m *adapterMetrics) RecordRequest(op string, duration time.Duration, errno string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, errno).Inc()
	m.duration.WithLabelValues(op).Observe(float64(duration.Microseconds()) / 1000)
}

func (m *adapterMetrics) RecordRequestStart(op string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(op).Inc()
}

func (m *adapterMetrics) RecordRequestEnd(op string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(op).Dec()
}

func (m *adapterMetrics) RecordBytesTransferred(op string, bytes uint64) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues(op).Add(float64(bytes))
}
