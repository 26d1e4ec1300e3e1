package metrics

import (
	"github.com/marmos91/dittoraid/pkg/raid"
)

// NewRaidMetrics creates a Prometheus-backed raid.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or the
// Prometheus implementation has not been linked in. Passing nil to
// raid.Options disables instrumentation.
//
// Example usage:
//
//	metrics.InitRegistry()
//	arr, err := raid.New(set, raid.Options{Metrics: metrics.NewRaidMetrics()})
func NewRaidMetrics() raid.Metrics {
	if !IsEnabled() || newPrometheusRaidMetrics == nil {
		return nil
	}
	return newPrometheusRaidMetrics()
}

// newPrometheusRaidMetrics is set by pkg/metrics/prometheus.
// This indirection avoids import cycles while keeping the API clean.
var newPrometheusRaidMetrics func() raid.Metrics

// RegisterRaidMetricsConstructor registers the Prometheus array metrics
// constructor. Called by pkg/metrics/prometheus during package initialization.
func RegisterRaidMetricsConstructor(constructor func() raid.Metrics) {
	newPrometheusRaidMetrics = constructor
}
