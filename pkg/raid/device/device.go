// Package device provides the backing storage handles an array is built on.
//
// A Device is a fixed-size, randomly addressable byte store: a block device
// node, a regular image file, or an in-memory buffer. The array never grows
// or truncates a device; it only reads and writes within [0, Size()).
//
// Implementations:
//   - File: an os.File opened read-write with an exclusive advisory lock
//   - Memory: an in-process buffer, used by tests and dry runs
//   - Faulty: a wrapper that injects errors and short transfers
package device

import (
	"errors"
	"io"
)

// Device is a backing storage handle.
//
// ReadAt and WriteAt follow io.ReaderAt / io.WriterAt semantics: a transfer
// shorter than the buffer is always accompanied by a non-nil error.
// Implementations must be safe for concurrent use on disjoint ranges.
type Device interface {
	io.ReaderAt
	io.WriterAt

	// Sync flushes written data to durable storage.
	Sync() error

	// Size returns the usable size of the device in bytes.
	Size() int64

	// Close releases the handle.
	Close() error
}

var (
	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("device is closed")

	// ErrLocked is returned when another process holds the device lock.
	ErrLocked = errors.New("device is in use by another process")

	// ErrOutOfBounds is returned for transfers outside [0, Size()).
	ErrOutOfBounds = errors.New("transfer outside device bounds")
)
