package raid

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittoraid/internal/logger"
	"github.com/marmos91/dittoraid/internal/telemetry"
)

// Initialize zero-fills the first StripeCount*BlockSize bytes of every
// device, which makes every parity block consistent with its stripe.
//
// It refuses to run while a device is missing. It must run before the array
// serves requests; when a rebuild is also pending, rebuild first.
func Initialize(ctx context.Context, set *DeviceSet, opts ProcedureOptions) (err error) {
	if idx, ok := set.MissingIndex(); ok {
		return fmt.Errorf("%w: cannot initialize with device %d missing", ErrDegraded, idx)
	}

	layout := set.Layout()
	total := set.StripeCount()
	ctx, span := telemetry.StartProcedureSpan(ctx, telemetry.SpanInit,
		telemetry.Devices(layout.Devices),
		telemetry.Stripes(total),
		telemetry.BlockSize(layout.BlockSize))
	defer span.End()
	defer func() { telemetry.RecordError(ctx, err) }()

	logger.InfoCtx(ctx, "Initialization started",
		logger.Devices(layout.Devices),
		logger.Stripes(total),
		logger.Size(total*layout.BlockSize))
	start := time.Now()

	zero := make([]byte, layout.BlockSize)
	prog := newProgress("init", total, opts)

	for stripe := range total {
		if err := ctx.Err(); err != nil {
			return err
		}
		off := stripe * layout.BlockSize
		for i := range layout.Devices {
			if err := set.writeFull(i, zero, off); err != nil {
				return err
			}
		}
		prog.report(stripe + 1)
	}

	logger.InfoCtx(ctx, "Initialization complete",
		logger.Stripes(total),
		logger.DurationMs(logger.Duration(start)))
	return nil
}
