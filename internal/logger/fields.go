package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Array Geometry
	// ========================================================================
	KeyLevel     = "raid_level" // RAID level: raid0, raid4
	KeyBlockSize = "block_size" // Bytes per block
	KeyDevices   = "devices"    // Number of device slots
	KeyStripes   = "stripes"    // Number of stripes
	KeySize      = "size"       // Size in bytes (logical or device)
	KeyTarget    = "target"     // Exported block device path

	// ========================================================================
	// Devices
	// ========================================================================
	KeyDevice = "device" // Device slot index
	KeyPath   = "path"   // Device path
	KeyState  = "state"  // Slot state: live, missing, rebuilding
	KeyStripe = "stripe" // Stripe index

	// ========================================================================
	// I/O Operations
	// ========================================================================
	KeyOffset    = "offset"     // Logical or physical byte offset
	KeyLength    = "length"     // Request length in bytes
	KeyRequestID = "request_id" // Adapter request identifier

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyOperation  = "operation"   // Operation: read, write, flush, rebuild, init, verify
	KeyStatus     = "status"      // Request status: ok, out_of_range, io_error, data_loss
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrno      = "errno"       // Block-protocol error code
	KeyProgress   = "progress"    // Completion percentage of an offline procedure
	KeyDone       = "done"        // Stripes processed so far
	KeyMismatches = "mismatches"  // Parity mismatches found

	// ========================================================================
	// Manifest
	// ========================================================================
	KeyArrayID  = "array_id"  // Manifest array UUID
	KeyManifest = "manifest"  // Manifest directory
)

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ----------------------------------------------------------------------------
// Array Geometry
// ----------------------------------------------------------------------------

// RaidLevel returns a slog.Attr for the RAID level name
func RaidLevel(name string) slog.Attr {
	return slog.String(KeyLevel, name)
}

// BlockSize returns a slog.Attr for the block size
func BlockSize(n int64) slog.Attr {
	return slog.Int64(KeyBlockSize, n)
}

// Devices returns a slog.Attr for the number of device slots
func Devices(n int) slog.Attr {
	return slog.Int(KeyDevices, n)
}

// Stripes returns a slog.Attr for a stripe count
func Stripes(n int64) slog.Attr {
	return slog.Int64(KeyStripes, n)
}

// Size returns a slog.Attr for a size in bytes
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}

// Target returns a slog.Attr for the exported block device path
func Target(p string) slog.Attr {
	return slog.String(KeyTarget, p)
}

// ----------------------------------------------------------------------------
// Devices
// ----------------------------------------------------------------------------

// Device returns a slog.Attr for a device slot index
func Device(index int) slog.Attr {
	return slog.Int(KeyDevice, index)
}

// Path returns a slog.Attr for a device path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// State returns a slog.Attr for a slot state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// Stripe returns a slog.Attr for a stripe index
func Stripe(s int64) slog.Attr {
	return slog.Int64(KeyStripe, s)
}

// ----------------------------------------------------------------------------
// I/O Operations
// ----------------------------------------------------------------------------

// Offset returns a slog.Attr for a byte offset
func Offset(off int64) slog.Attr {
	return slog.Int64(KeyOffset, off)
}

// Length returns a slog.Attr for a request length
func Length(n int) slog.Attr {
	return slog.Int(KeyLength, n)
}

// RequestID returns a slog.Attr for the adapter request ID
func RequestID(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// ----------------------------------------------------------------------------
// Operation Metadata
// ----------------------------------------------------------------------------

// Operation returns a slog.Attr for the operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Status returns a slog.Attr for a request status label
func Status(s string) slog.Attr {
	return slog.String(KeyStatus, s)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Errno returns a slog.Attr for a block-protocol error code
func Errno(code uint32) slog.Attr {
	return slog.Any(KeyErrno, code)
}

// Progress returns a slog.Attr for completion percentage
func Progress(done, total int64) slog.Attr {
	if total <= 0 {
		return slog.Float64(KeyProgress, 100)
	}
	return slog.Float64(KeyProgress, float64(done)*100/float64(total))
}

// Done returns a slog.Attr for stripes processed so far
func Done(n int64) slog.Attr {
	return slog.Int64(KeyDone, n)
}

// Mismatches returns a slog.Attr for the number of parity mismatches
func Mismatches(n int) slog.Attr {
	return slog.Int(KeyMismatches, n)
}

// ----------------------------------------------------------------------------
// Manifest
// ----------------------------------------------------------------------------

// ArrayID returns a slog.Attr for the manifest array UUID
func ArrayID(id string) slog.Attr {
	return slog.String(KeyArrayID, id)
}

// Manifest returns a slog.Attr for the manifest directory
func Manifest(dir string) slog.Attr {
	return slog.String(KeyManifest, dir)
}
