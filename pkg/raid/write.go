package raid

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittoraid/internal/telemetry"
)

// Write stores p at logical offset off.
//
// For LevelParity every affected block is updated under its stripe lock:
//   - healthy: old data and old parity are read first, then new data and
//     new parity (old parity ^ old data ^ new data) are written
//   - data device missing: parity is recomputed from the surviving data
//     devices and the new data; only parity is written
//   - parity device missing: data is written without parity maintenance
//
// A failed read aborts the request before that block is mutated. Blocks
// completed earlier in the same request are not rolled back.
func (a *Array) Write(ctx context.Context, p []byte, off int64) (err error) {
	ctx, span := telemetry.StartArraySpan(ctx, telemetry.SpanArrayWrite, off, len(p))
	defer span.End()

	start := time.Now()
	defer func() {
		a.observe("write", len(p), start, err)
		telemetry.RecordError(ctx, err)
	}()

	if a.closed.Load() {
		return ErrClosed
	}
	if err := a.layout.CheckRange(off, int64(len(p)), a.size); err != nil {
		return err
	}

	missing := a.missing()
	for ext := range a.layout.Extents(off, int64(len(p))) {
		src := p[ext.BufOffset : ext.BufOffset+ext.Length]
		if err := a.writeExtent(ext, src, missing); err != nil {
			return err
		}
	}
	return nil
}

func (a *Array) writeExtent(ext Extent, src []byte, missing int) error {
	if !a.layout.HasParity() {
		if ext.Device == missing {
			return fmt.Errorf("%w: block %d lives on missing device %d", ErrDataLoss, ext.Block, missing)
		}
		return a.set.writeFull(ext.Device, src, ext.Offset)
	}

	unlock := a.locks.lock(ext.Stripe)
	defer unlock()

	switch parity := a.layout.ParityIndex(); missing {
	case parity:
		return a.set.writeFull(ext.Device, src, ext.Offset)
	case ext.Device:
		return a.recomputeParity(ext, src)
	default:
		return a.updateParity(ext, src)
	}
}

// updateParity is the read-modify-write path for a healthy stripe.
func (a *Array) updateParity(ext Extent, src []byte) error {
	parity := a.layout.ParityIndex()

	oldData := a.pool.Get(len(src))
	defer a.pool.Put(oldData)
	newParity := a.pool.Get(len(src))
	defer a.pool.Put(newParity)

	if err := a.set.readFull(ext.Device, oldData, ext.Offset); err != nil {
		return err
	}
	if err := a.set.readFull(parity, newParity, ext.Offset); err != nil {
		return err
	}

	xorInto(newParity, oldData)
	xorInto(newParity, src)

	if err := a.set.writeFull(ext.Device, src, ext.Offset); err != nil {
		return err
	}
	if err := a.set.writeFull(parity, newParity, ext.Offset); err != nil {
		return err
	}

	if a.metrics != nil {
		a.metrics.ObserveParityUpdate(ParityModeRMW)
	}
	return nil
}

// recomputeParity handles a write to the missing data device: the block
// itself cannot be stored, so parity is set to the XOR of every surviving
// data device and the new data. A later degraded read or rebuild recovers
// the written bytes from it.
func (a *Array) recomputeParity(ext Extent, src []byte) error {
	newParity := a.pool.Get(len(src))
	defer a.pool.Put(newParity)
	tmp := a.pool.Get(len(src))
	defer a.pool.Put(tmp)

	copy(newParity, src)
	for d := range a.layout.DataWidth() {
		if d == ext.Device {
			continue
		}
		if err := a.set.readFull(d, tmp, ext.Offset); err != nil {
			return err
		}
		xorInto(newParity, tmp)
	}

	if err := a.set.writeFull(a.layout.ParityIndex(), newParity, ext.Offset); err != nil {
		return err
	}

	if a.metrics != nil {
		a.metrics.ObserveParityUpdate(ParityModeRecompute)
	}
	return nil
}
