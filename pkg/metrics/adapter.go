package metrics

import (
	"time"
)

// AdapterMetrics provides observability for block-device adapter requests.
//
// This interface is optional: pass nil to disable collection with zero
// overhead.
//
// Example usage:
//
//	backend := adapter.New(arr, metrics.NewAdapterMetrics())
type AdapterMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - op: "read", "write", "flush" or "disconnect"
	//   - duration: Time taken to serve the request
	//   - errno: Errno name returned to the transport ("EIO"), empty on success
	RecordRequest(op string, duration time.Duration, errno string)

	// RecordRequestStart increments the in-flight gauge for op.
	RecordRequestStart(op string)

	// RecordRequestEnd decrements the in-flight gauge for op.
	RecordRequestEnd(op string)

	// RecordBytesTransferred records payload bytes moved by a read or write.
	RecordBytesTransferred(op string, bytes uint64)
}

// NewAdapterMetrics creates a Prometheus-backed AdapterMetrics instance.
//
// Returns nil if metrics are not enabled.
func NewAdapterMetrics() AdapterMetrics {
	if !IsEnabled() || newPrometheusAdapterMetrics == nil {
		return nil
	}
	return newPrometheusAdapterMetrics()
}

var newPrometheusAdapterMetrics func() AdapterMetrics

// RegisterAdapterMetricsConstructor registers the Prometheus adapter metrics
// constructor.
func RegisterAdapterMetricsConstructor(constructor func() AdapterMetrics) {
	newPrometheusAdapterMetrics = constructor
}
