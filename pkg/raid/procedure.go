package raid

import (
	"time"

	"github.com/marmos91/dittoraid/internal/logger"
)

// ProgressFunc is called after each processed stripe of an offline
// procedure. It must be fast; it runs on the procedure goroutine.
type ProgressFunc func(done, total int64)

// ProcedureOptions configures Rebuild, Initialize and Verify.
type ProcedureOptions struct {
	// Progress receives per-stripe progress. Optional.
	Progress ProgressFunc

	// Metrics receives a progress gauge. Optional.
	Metrics Metrics

	// LogInterval throttles progress log lines (default 5s).
	LogInterval time.Duration
}

const defaultLogInterval = 5 * time.Second

// progress fans one procedure's progress out to the callback, the metrics
// gauge and a throttled log line.
type progress struct {
	phase    string
	total    int64
	opts     ProcedureOptions
	interval time.Duration
	lastLog  time.Time
}

func newProgress(phase string, total int64, opts ProcedureOptions) *progress {
	interval := opts.LogInterval
	if interval <= 0 {
		interval = defaultLogInterval
	}
	p := &progress{phase: phase, total: total, opts: opts, interval: interval, lastLog: time.Now()}
	p.report(0)
	return p
}

func (p *progress) report(done int64) {
	if p.opts.Progress != nil {
		p.opts.Progress(done, p.total)
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.SetProgress(p.phase, done, p.total)
	}
	if now := time.Now(); now.Sub(p.lastLog) >= p.interval {
		p.lastLog = now
		logger.Info("Procedure progress",
			logger.Operation(p.phase),
			logger.Done(done),
			logger.Stripes(p.total),
			logger.Progress(done, p.total))
	}
}
