package raid

import (
	"context"
	"time"

	"github.com/marmos91/dittoraid/internal/logger"
	"github.com/marmos91/dittoraid/internal/telemetry"
)

// Rebuild repopulates the slot marked SlotRebuilding from the other devices.
//
// For every stripe the block at stripe*BlockSize is read from every other
// device, XORed and written to the target. This reconstructs a data block
// and a parity block alike. On success the slot becomes live; any error
// aborts the procedure and leaves the slot marked for rebuild.
//
// Rebuild must run before the array serves requests.
func Rebuild(ctx context.Context, set *DeviceSet, opts ProcedureOptions) (err error) {
	target, ok := set.RebuildIndex()
	if !ok {
		return configError("no slot is marked for rebuild")
	}
	if _, missing := set.MissingIndex(); missing {
		return ErrDegraded
	}
	layout := set.Layout()
	if !layout.HasParity() {
		return configError("%s has no redundancy to rebuild from", layout.Level)
	}

	total := set.StripeCount()
	ctx, span := telemetry.StartProcedureSpan(ctx, telemetry.SpanRebuild,
		telemetry.Target(target),
		telemetry.DevicePath(set.Slot(target).Path),
		telemetry.Stripes(total),
		telemetry.BlockSize(layout.BlockSize))
	defer span.End()
	defer func() { telemetry.RecordError(ctx, err) }()

	logger.InfoCtx(ctx, "Rebuild started",
		logger.Device(target),
		logger.Path(set.Slot(target).Path),
		logger.Stripes(total))
	start := time.Now()

	block := make([]byte, layout.BlockSize)
	tmp := make([]byte, layout.BlockSize)
	prog := newProgress("rebuild", total, opts)

	for stripe := range total {
		if err := ctx.Err(); err != nil {
			return err
		}

		off := stripe * layout.BlockSize
		clear(block)
		for i := range layout.Devices {
			if i == target {
				continue
			}
			if err := set.readFull(i, tmp, off); err != nil {
				return err
			}
			xorInto(block, tmp)
		}
		if err := set.writeFull(target, block, off); err != nil {
			return err
		}

		prog.report(stripe + 1)
	}

	set.markLive(target)
	logger.InfoCtx(ctx, "Rebuild complete",
		logger.Device(target),
		logger.Stripes(total),
		logger.DurationMs(logger.Duration(start)))
	return nil
}
