// Package bufpool provides block-sized scratch buffers for array I/O.
//
// Every parity update and degraded reconstruction needs one or two
// temporary buffers of at most one block. A Pool hands out slices backed by
// block-sized arrays so that steady-state I/O does not allocate.
//
// # Thread Safety
//
// All operations are thread-safe via sync.Pool.
//
// # Usage
//
//	pool := bufpool.NewPool(blockSize)
//	buf := pool.Get(n) // n <= blockSize
//	defer pool.Put(buf)
package bufpool

import (
	"sync"
)

// Pool manages byte slices of one fixed capacity.
type Pool struct {
	pool sync.Pool
	size int
}

// NewPool creates a pool of buffers with capacity size. A non-positive size
// yields a pool that allocates on every Get.
func NewPool(size int) *Pool {
	p := &Pool{size: size}
	p.pool = sync.Pool{
		New: func() any {
			buf := make([]byte, p.size)
			return &buf
		},
	}
	return p
}

// Size returns the capacity of pooled buffers.
func (p *Pool) Size() int {
	return p.size
}

// Get returns a zeroed slice of length n.
//
// Requests larger than the pool size are allocated directly and are not
// pooled when returned.
func (p *Pool) Get(n int) []byte {
	if n > p.size || p.size <= 0 {
		return make([]byte, n)
	}

	buf := (*p.pool.Get().(*[]byte))[:n]
	clear(buf)
	return buf
}

// Put returns a buffer obtained from Get. Buffers of a foreign capacity are
// dropped.
func (p *Pool) Put(buf []byte) {
	if buf == nil || cap(buf) != p.size {
		return
	}
	full := buf[:cap(buf)]
	p.pool.Put(&full)
}
