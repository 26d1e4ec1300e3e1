package raid

import (
	"errors"
	"time"
)

// Metrics receives array instrumentation.
//
// Implementations must be safe for concurrent use. A nil Metrics disables
// instrumentation with zero overhead; the Prometheus implementation lives in
// pkg/metrics/prometheus.
type Metrics interface {
	// ObserveRequest records one completed logical request.
	// op is "read", "write" or "flush"; status is one of the Status* values.
	ObserveRequest(op string, status string, bytes int64, duration time.Duration)

	// ObserveReconstruction records one extent served from parity because
	// its device is missing.
	ObserveReconstruction(bytes int)

	// ObserveParityUpdate records one parity block write. mode is
	// "rmw" for the read-modify-write path and "recompute" when parity was
	// recomputed from the surviving data devices.
	ObserveParityUpdate(mode string)

	// SetProgress reports offline procedure progress ("rebuild", "init",
	// "verify") in stripes.
	SetProgress(phase string, done, total int64)
}

// Request status labels.
const (
	StatusOK         = "ok"
	StatusOutOfRange = "out_of_range"
	StatusIOError    = "io_error"
	StatusDataLoss   = "data_loss"
	StatusError      = "error"
)

// Parity update modes.
const (
	ParityModeRMW       = "rmw"
	ParityModeRecompute = "recompute"
)

// Status classifies err into a request status label.
func Status(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrOutOfRange):
		return StatusOutOfRange
	case errors.Is(err, ErrDataLoss):
		return StatusDataLoss
	case errors.Is(err, ErrIO):
		return StatusIOError
	default:
		return StatusError
	}
}
