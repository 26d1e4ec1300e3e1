package raid

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittoraid/internal/logger"
	"github.com/marmos91/dittoraid/internal/telemetry"
)

// maxReportedMismatches caps VerifyReport.Mismatches; Count keeps the total.
const maxReportedMismatches = 1024

// VerifyReport is the result of a parity check.
type VerifyReport struct {
	// Stripes is the number of stripes checked.
	Stripes int64

	// Count is the number of stripes whose parity is inconsistent.
	Count int64

	// Mismatches lists the first inconsistent stripes in ascending order.
	Mismatches []int64
}

// Consistent reports whether every stripe passed.
func (r VerifyReport) Consistent() bool {
	return r.Count == 0
}

// Verify reads every stripe of a healthy parity array and reports stripes
// whose parity block differs from the XOR of their data blocks. It never
// writes.
func Verify(ctx context.Context, set *DeviceSet, opts ProcedureOptions) (report VerifyReport, err error) {
	layout := set.Layout()
	if !layout.HasParity() {
		return report, configError("%s has no parity to verify", layout.Level)
	}
	if idx, ok := set.MissingIndex(); ok {
		return report, fmt.Errorf("%w: cannot verify with device %d missing", ErrDegraded, idx)
	}
	if idx, ok := set.RebuildIndex(); ok {
		return report, fmt.Errorf("%w: slot %d awaits rebuild", ErrConfig, idx)
	}

	total := set.StripeCount()
	ctx, span := telemetry.StartProcedureSpan(ctx, telemetry.SpanVerify,
		telemetry.Stripes(total),
		telemetry.BlockSize(layout.BlockSize))
	defer span.End()
	defer func() {
		telemetry.SetAttributes(ctx, telemetry.Mismatches(int(report.Count)))
		telemetry.RecordError(ctx, err)
	}()

	start := time.Now()
	parity := layout.ParityIndex()
	expected := make([]byte, layout.BlockSize)
	stored := make([]byte, layout.BlockSize)
	prog := newProgress("verify", total, opts)

	for stripe := range total {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		off := stripe * layout.BlockSize
		clear(expected)
		for d := range layout.DataWidth() {
			if err := set.readFull(d, stored, off); err != nil {
				return report, err
			}
			xorInto(expected, stored)
		}
		if err := set.readFull(parity, stored, off); err != nil {
			return report, err
		}

		report.Stripes++
		if !bytes.Equal(expected, stored) {
			report.Count++
			if len(report.Mismatches) < maxReportedMismatches {
				report.Mismatches = append(report.Mismatches, stripe)
			}
			logger.DebugCtx(ctx, "Parity mismatch", logger.Stripe(stripe))
		}
		prog.report(stripe + 1)
	}

	logger.InfoCtx(ctx, "Verification complete",
		logger.Stripes(report.Stripes),
		logger.Mismatches(int(report.Count)),
		logger.DurationMs(logger.Duration(start)))
	return report, nil
}
