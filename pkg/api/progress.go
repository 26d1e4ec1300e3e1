package api

import (
	"sync"
	"time"

	"github.com/marmos91/dittoraid/pkg/raid"
)

// ProgressSnapshot describes the offline procedure currently running.
type ProgressSnapshot struct {
	Phase     string    `json:"phase"`
	Done      int64     `json:"done"`
	Total     int64     `json:"total"`
	StartedAt time.Time `json:"started_at"`
	Finished  bool      `json:"finished"`
}

// Percent returns completion in the range [0, 100].
func (p ProgressSnapshot) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Done) * 100 / float64(p.Total)
}

// Progress records the latest progress of rebuild, init and verify so the
// status endpoint can report it.
type Progress struct {
	mu   sync.Mutex
	snap ProgressSnapshot
	set  bool
}

// Track returns a raid.ProgressFunc that records progress under phase.
func (p *Progress) Track(phase string) raid.ProgressFunc {
	p.mu.Lock()
	p.snap = ProgressSnapshot{Phase: phase, StartedAt: time.Now()}
	p.set = true
	p.mu.Unlock()

	return func(done, total int64) {
		p.mu.Lock()
		p.snap.Done, p.snap.Total = done, total
		p.snap.Finished = done >= total
		p.mu.Unlock()
	}
}

// Snapshot returns the latest progress. ok is false before any procedure ran.
func (p *Progress) Snapshot() (snap ProgressSnapshot, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap, p.set
}
