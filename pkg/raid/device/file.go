package device

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// File is a Device backed by a block device node or a regular file.
type File struct {
	mu     sync.RWMutex
	f      *os.File
	path   string
	size   int64
	closed bool
}

// FileOptions controls how a file device is opened.
type FileOptions struct {
	// ReadOnly opens the file without write access and takes a shared lock
	// instead of an exclusive one.
	ReadOnly bool

	// NoLock skips advisory locking entirely.
	NoLock bool
}

// OpenFile opens path as a device and measures its size by seeking to the
// end, which works for both regular files and block device nodes.
func OpenFile(path string, opts FileOptions) (*File, error) {
	flag := os.O_RDWR
	if opts.ReadOnly {
		flag = os.O_RDONLY
	}

	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %q: %w", path, err)
	}

	if !opts.NoLock {
		if err := lockFile(f, !opts.ReadOnly); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to lock device %q: %w", path, err)
		}
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to measure device %q: %w", path, err)
	}

	return &File{f: f, path: path, size: size}, nil
}

// Path returns the path the device was opened from.
func (d *File) Path() string {
	return d.path
}

// Size returns the size measured at open time.
func (d *File) Size() int64 {
	return d.size
}

// ReadAt reads len(p) bytes at off.
func (d *File) ReadAt(p []byte, off int64) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return 0, ErrClosed
	}
	return d.f.ReadAt(p, off)
}

// WriteAt writes len(p) bytes at off. Writes past the measured size are
// rejected so a regular image file never grows.
func (d *File) WriteAt(p []byte, off int64) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return 0, ErrClosed
	}
	if off < 0 || off+int64(len(p)) > d.size {
		return 0, fmt.Errorf("%w: offset=%d length=%d size=%d", ErrOutOfBounds, off, len(p), d.size)
	}
	return d.f.WriteAt(p, off)
}

// Sync flushes the file's data to stable storage.
func (d *File) Sync() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}
	return syncData(d.f)
}

// Close releases the lock and the file descriptor. Closing twice is a no-op.
func (d *File) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.f.Close()
}

var _ Device = (*File)(nil)
