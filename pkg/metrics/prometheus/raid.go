// Package prometheus implements the metrics interfaces on top of the
// process registry from pkg/metrics. Importing it registers the
// constructors used by metrics.NewRaidMetrics and metrics.NewAdapterMetrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittoraid/pkg/metrics"
	"github.com/marmos91/dittoraid/pkg/raid"
)

func init() {
	metrics.RegisterRaidMetricsConstructor(func() raid.Metrics {
		return NewRaidMetrics()
	})
}

// raidMetrics is the Prometheus implementation of raid.Metrics.
type raidMetrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	bytes          *prometheus.CounterVec
	reconstructed  prometheus.Counter
	reconstructedB prometheus.Counter
	parityUpdates  *prometheus.CounterVec
	progressDone   *prometheus.GaugeVec
	progressTotal  *prometheus.GaugeVec
}

// NewRaidMetrics creates a new Prometheus-backed raid.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewRaidMetrics() *raidMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &raidMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoraid_array_requests_total",
				Help: "Total number of logical array requests by operation and status",
			},
			[]string{"operation", "status"}, // status: ok, out_of_range, io_error, data_loss, error
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittoraid_array_request_duration_milliseconds",
				Help: "Duration of logical array requests in milliseconds",
				Buckets: []float64{
					0.05, // 50us - single block from page cache
					0.1,
					0.5,
					1,
					5,
					10,
					50,
					100,
					500, // flush on spinning disks
					1000,
				},
			},
			[]string{"operation"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoraid_array_bytes_total",
				Help: "Total bytes transferred by successful array requests",
			},
			[]string{"operation"},
		),
		reconstructed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittoraid_array_reconstructions_total",
				Help: "Extents served by reconstruction from parity while degraded",
			},
		),
		reconstructedB: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittoraid_array_reconstructed_bytes_total",
				Help: "Bytes served by reconstruction from parity while degraded",
			},
		),
		parityUpdates: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittoraid_array_parity_updates_total",
				Help: "Parity block writes by update mode",
			},
			[]string{"mode"}, // rmw, recompute
		),
		progressDone: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoraid_procedure_stripes_done",
				Help: "Stripes processed by the running offline procedure",
			},
			[]string{"phase"}, // rebuild, init, verify
		),
		progressTotal: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittoraid_procedure_stripes_total",
				Help: "Stripes the offline procedure will process",
			},
			[]string{"phase"},
		),
	}
}

func (m *raidMetrics) ObserveRequest(op, status string, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}

	m.requests.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(float64(duration.Microseconds()) / 1000)
	if status == raid.StatusOK && bytes > 0 {
		m.bytes.WithLabelValues(op).Add(float64(bytes))
	}
}

func (m *raidMetrics) ObserveReconstruction(bytes int) {
	if m == nil {
		return
	}
	m.reconstructed.Inc()
	m.reconstructedB.Add(float64(bytes))
}

func (m *raidMetrics) ObserveParityUpdate(mode string) {
	if m == nil {
		return
	}
	m.parityUpdates.WithLabelValues(mode).Inc()
}

func (m *raidMetrics) SetProgress(phase string, done, total int64) {
	if m == nil {
		return
	}
	m.progressDone.WithLabelValues(phase).Set(float64(done))
	m.progressTotal.WithLabelValues(phase).Set(float64(total))
}
