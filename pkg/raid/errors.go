package raid

import (
	"errors"
	"fmt"
)

// ============================================================================
// Standard Array Errors
// ============================================================================

// These errors classify every failure the array can report. Adapters check
// them with errors.Is and map them to block-protocol error codes.

var (
	// ErrOutOfRange indicates a request extends past the logical size of the
	// array. No device I/O is performed for such a request.
	//
	// Protocol Mapping:
	//   - NBD read: EINVAL
	//   - NBD write: ENOSPC
	ErrOutOfRange = errors.New("request exceeds array size")

	// ErrIO indicates an underlying device read or write failed or returned
	// a short transfer.
	//
	// Protocol Mapping:
	//   - NBD: EIO
	ErrIO = errors.New("device I/O error")

	// ErrDataLoss indicates the data lives on an absent device and cannot be
	// reconstructed (striped arrays carry no redundancy).
	//
	// Protocol Mapping:
	//   - NBD: EIO
	ErrDataLoss = errors.New("data unavailable: device missing and no redundancy")

	// ErrConfig indicates an invalid array configuration. Fatal at startup.
	ErrConfig = errors.New("invalid array configuration")

	// ErrDegraded indicates the operation requires every device to be present.
	ErrDegraded = fmt.Errorf("%w: array is degraded", ErrConfig)

	// ErrClosed is returned when the device set has been closed.
	ErrClosed = errors.New("array is closed")
)

// configError wraps a formatted message with ErrConfig.
func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// ioError wraps a device failure with ErrIO and the location it happened at.
func ioError(op string, device int, offset int64, err error) error {
	return fmt.Errorf("%w: %s device %d at offset %d: %w", ErrIO, op, device, offset, err)
}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfig)
}
