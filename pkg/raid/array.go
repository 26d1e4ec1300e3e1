// Package raid implements striped (RAID0) and parity-striped (RAID4) block
// arrays over a set of fixed-size devices.
//
// # Layout
//
// Logical blocks are distributed round-robin over the data devices. With
// LevelParity the last device holds, for each stripe, the XOR of the data
// blocks of that stripe. See Layout for the address translation.
//
// # Modes
//
// A parity array keeps serving when one device is missing: reads of the
// missing device are reconstructed from the others and writes keep parity
// consistent so the data can be rebuilt later. A striped array has no
// redundancy; requests touching its missing half fail with ErrDataLoss.
//
// # Lifecycle
//
//	set, _ := raid.Open(layout, specs, device.FileOptions{})
//	_ = raid.Rebuild(ctx, set, raid.ProcedureOptions{})    // if a slot is rebuilding
//	_ = raid.Initialize(ctx, set, raid.ProcedureOptions{}) // fresh arrays only
//	arr, _ := raid.New(set, raid.Options{})
//	defer arr.Close()
//
// Rebuild, Initialize and Verify run before New, with no request traffic.
package raid

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittoraid/internal/logger"
	"github.com/marmos91/dittoraid/internal/telemetry"
	"github.com/marmos91/dittoraid/pkg/bufpool"
)

// Options configures an Array.
type Options struct {
	// Metrics receives request instrumentation. Nil disables it.
	Metrics Metrics

	// LockShards is the size of the stripe lock table (default 256).
	LockShards int
}

// Array services logical reads and writes over a DeviceSet.
//
// Array is safe for concurrent use. Writes to the same stripe are
// serialized; requests touching different stripes proceed in parallel.
type Array struct {
	set     *DeviceSet
	layout  Layout
	size    int64
	locks   *stripeLocks
	pool    *bufpool.Pool
	metrics Metrics

	closed atomic.Bool
}

// New builds an Array over set. A slot still marked for rebuild must be
// rebuilt first.
func New(set *DeviceSet, opts Options) (*Array, error) {
	if idx, ok := set.RebuildIndex(); ok {
		return nil, configError("slot %d awaits rebuild", idx)
	}

	layout := set.Layout()
	a := &Array{
		set:     set,
		layout:  layout,
		size:    set.LogicalSize(),
		locks:   newStripeLocks(opts.LockShards),
		pool:    bufpool.NewPool(int(layout.BlockSize)),
		metrics: opts.Metrics,
	}

	args := []any{
		logger.RaidLevel(layout.Level.String()),
		logger.BlockSize(layout.BlockSize),
		logger.Devices(layout.Devices),
		logger.Stripes(set.StripeCount()),
		logger.Size(a.size),
	}
	if idx, ok := set.MissingIndex(); ok {
		logger.Warn("Array assembled in degraded mode", append(args, logger.Device(idx))...)
	} else {
		logger.Info("Array assembled", args...)
	}

	return a, nil
}

// Size returns the logical size in bytes.
func (a *Array) Size() int64 {
	return a.size
}

// BlockSize returns the bytes per block.
func (a *Array) BlockSize() int64 {
	return a.layout.BlockSize
}

// Blocks returns the number of logical blocks.
func (a *Array) Blocks() int64 {
	return a.size / a.layout.BlockSize
}

// Layout returns the array geometry.
func (a *Array) Layout() Layout {
	return a.layout
}

// Set returns the underlying device set.
func (a *Array) Set() *DeviceSet {
	return a.set
}

// Degraded reports whether a device is missing.
func (a *Array) Degraded() bool {
	return a.set.Degraded()
}

// missing returns the index of the missing slot or -1.
func (a *Array) missing() int {
	idx, ok := a.set.MissingIndex()
	if !ok {
		return -1
	}
	return idx
}

// Flush makes every previously acknowledged write durable on all present
// devices. It is not ordered against writes racing with the call.
func (a *Array) Flush(ctx context.Context) (err error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanArrayFlush)
	defer span.End()

	start := time.Now()
	defer func() {
		a.observe("flush", 0, start, err)
		telemetry.RecordError(ctx, err)
	}()

	if a.closed.Load() {
		return ErrClosed
	}
	return a.set.Flush(ctx)
}

// Disconnect is the client-disconnect hook. It changes no state.
func (a *Array) Disconnect(ctx context.Context) {
	logger.DebugCtx(ctx, "Client disconnected", logger.Size(a.size))
}

// Close closes the array and every device of its set.
func (a *Array) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	return a.set.Close()
}

// ReadAt implements io.ReaderAt on top of Read.
func (a *Array) ReadAt(p []byte, off int64) (int, error) {
	if err := a.Read(context.Background(), p, off); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteAt implements io.WriterAt on top of Write.
func (a *Array) WriteAt(p []byte, off int64) (int, error) {
	if err := a.Write(context.Background(), p, off); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (a *Array) observe(op string, n int, start time.Time, err error) {
	if a.metrics == nil {
		return
	}
	a.metrics.ObserveRequest(op, Status(err), int64(n), time.Since(start))
}
