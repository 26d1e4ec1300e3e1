package device

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// ErrInjected is a ready-made error for FailReads, FailWrites and FailSync.
var ErrInjected = errors.New("injected device fault")

// Faulty wraps a Device and fails or truncates transfers on demand.
// It also counts every transfer, which lets callers assert that an
// operation performed no I/O at all.
type Faulty struct {
	Device

	mu         sync.Mutex
	readErr    error
	writeErr   error
	syncErr    error
	shortReads bool

	reads  atomic.Int64
	writes atomic.Int64
}

// NewFaulty wraps dev. With no faults configured it is transparent.
func NewFaulty(dev Device) *Faulty {
	return &Faulty{Device: dev}
}

// FailReads makes every subsequent read return err (nil clears the fault).
func (f *Faulty) FailReads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

// FailWrites makes every subsequent write return err (nil clears the fault).
func (f *Faulty) FailWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// FailSync makes every subsequent Sync return err (nil clears the fault).
func (f *Faulty) FailSync(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncErr = err
}

// ShortReads makes every subsequent read transfer one byte less than asked.
func (f *Faulty) ShortReads(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shortReads = on
}

// Reads returns the number of ReadAt calls that reached the wrapper.
func (f *Faulty) Reads() int64 { return f.reads.Load() }

// Writes returns the number of WriteAt calls that reached the wrapper.
func (f *Faulty) Writes() int64 { return f.writes.Load() }

// ReadAt implements io.ReaderAt with fault injection.
func (f *Faulty) ReadAt(p []byte, off int64) (int, error) {
	f.reads.Add(1)

	f.mu.Lock()
	readErr, short := f.readErr, f.shortReads
	f.mu.Unlock()

	if readErr != nil {
		return 0, readErr
	}
	if short && len(p) > 0 {
		n, err := f.Device.ReadAt(p[:len(p)-1], off)
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return n, err
	}
	return f.Device.ReadAt(p, off)
}

// WriteAt implements io.WriterAt with fault injection.
func (f *Faulty) WriteAt(p []byte, off int64) (int, error) {
	f.writes.Add(1)

	f.mu.Lock()
	writeErr := f.writeErr
	f.mu.Unlock()

	if writeErr != nil {
		return 0, writeErr
	}
	return f.Device.WriteAt(p, off)
}

// Sync implements Device with fault injection.
func (f *Faulty) Sync() error {
	f.mu.Lock()
	syncErr := f.syncErr
	f.mu.Unlock()

	if syncErr != nil {
		return syncErr
	}
	return f.Device.Sync()
}

var _ Device = (*Faulty)(nil)
