package device

import (
	"fmt"
	"io"
	"sync"
)

// Memory is an in-process Device. Fresh memory devices read as zeros.
type Memory struct {
	mu     sync.RWMutex
	data   []byte
	syncs  int
	closed bool
}

// NewMemory creates a zero-filled memory device of the given size.
func NewMemory(size int64) *Memory {
	return &Memory{data: make([]byte, size)}
}

// NewMemoryFrom creates a memory device holding a copy of data.
func NewMemoryFrom(data []byte) *Memory {
	m := &Memory{data: make([]byte, len(data))}
	copy(m.data, data)
	return m
}

// Size returns the device size.
func (m *Memory) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.data))
}

// ReadAt copies device bytes into p. Reading past the end is a short read
// with io.EOF.
func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrOutOfBounds, off)
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt copies p into the device. Writes never extend the device.
func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("%w: offset=%d length=%d size=%d", ErrOutOfBounds, off, len(p), len(m.data))
	}
	return copy(m.data[off:], p), nil
}

// Sync counts flushes; memory is always "durable".
func (m *Memory) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.syncs++
	return nil
}

// Syncs returns how many times Sync has been called.
func (m *Memory) Syncs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.syncs
}

// Bytes returns a copy of the device contents.
func (m *Memory) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// Close marks the device closed. Data stays readable through Bytes.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Device = (*Memory)(nil)
