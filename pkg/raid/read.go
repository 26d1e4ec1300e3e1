package raid

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittoraid/internal/telemetry"
)

// Read fills p with the logical bytes at off.
//
// Blocks on a missing device are reconstructed from the other devices of
// their stripe (LevelParity) or fail with ErrDataLoss (LevelStripe). A request
// extending past Size fails with ErrOutOfRange before any device I/O.
func (a *Array) Read(ctx context.Context, p []byte, off int64) (err error) {
	ctx, span := telemetry.StartArraySpan(ctx, telemetry.SpanArrayRead, off, len(p))
	defer span.End()

	start := time.Now()
	defer func() {
		a.observe("read", len(p), start, err)
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
		dst := p[ext.BufOffset : ext.BufOffset+ext.Length]
		if err := a.readExtent(ctx, ext, dst, missing); err != nil {
			return err
		}
	}
	return nil
}

func (a *Array) readExtent(ctx context.Context, ext Extent, dst []byte, missing int) error {
	if !a.layout.HasParity() {
		if ext.Device == missing {
			return fmt.Errorf("%w: block %d lives on missing device %d", ErrDataLoss, ext.Block, missing)
		}
		return a.set.readFull(ext.Device, dst, ext.Offset)
	}

	unlock := a.locks.rlock(ext.Stripe)
	defer unlock()

	if ext.Device != missing {
		return a.set.readFull(ext.Device, dst, ext.Offset)
	}
	telemetry.AddEvent(ctx, telemetry.EventReconstruct,
		telemetry.Device(missing), telemetry.Stripe(ext.Stripe))
	return a.reconstruct(missing, dst, ext.Offset)
}

// reconstruct sets dst to the XOR of the same byte range on every device
// except skip, which yields the bytes skip would hold.
func (a *Array) reconstruct(skip int, dst []byte, off int64) error {
	clear(dst)

	tmp := a.pool.Get(len(dst))
	defer a.pool.Put(tmp)

	for i := range a.layout.Devices {
		if i == skip {
			continue
		}
		if err := a.set.readFull(i, tmp, off); err != nil {
			return err
		}
		xorInto(dst, tmp)
	}

	if a.metrics != nil {
		a.metrics.ObserveReconstruction(len(dst))
	}
	return nil
}
