package raid

import "sync"

// defaultLockShards is the number of stripe lock shards. Must be a power of two.
const defaultLockShards = 256

// stripeLocks serializes writers of the same stripe and keeps readers from
// observing a half-applied parity update.
//
// Stripes hash onto a fixed set of RWMutex shards, so two unrelated stripes
// may share a shard. Callers hold at most one shard at a time, which rules
// out lock-ordering deadlocks.
type stripeLocks struct {
	shards []sync.RWMutex
	mask   int64
}

// newStripeLocks creates a lock table. n is rounded up to a power of two.
func newStripeLocks(n int) *stripeLocks {
	if n <= 0 {
		n = defaultLockShards
	}
	size := 1
	for size < n {
		size <<= 1
	}
	return &stripeLocks{
		shards: make([]sync.RWMutex, size),
		mask:   int64(size - 1),
	}
}

func (l *stripeLocks) shard(stripe int64) *sync.RWMutex {
	return &l.shards[stripe&l.mask]
}

// lock acquires the exclusive lock for stripe and returns its release func.
func (l *stripeLocks) lock(stripe int64) func() {
	mu := l.shard(stripe)
	mu.Lock()
	return mu.Unlock
}

// rlock acquires the shared lock for stripe and returns its release func.
func (l *stripeLocks) rlock(stripe int64) func() {
	mu := l.shard(stripe)
	mu.RLock()
	return mu.RUnlock
}
