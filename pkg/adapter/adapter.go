// Package adapter exposes an assembled array to a block-device transport.
//
// A transport (an NBD server, a ublk queue, a test harness) receives requests
// from a kernel or remote client and hands them to a BlockDevice. The adapter
// owns the translation from array errors to protocol error codes, and tags
// each request with an ID, a span and a log context so a slow or failing
// request can be followed from the transport down to the device that served
// it.
package adapter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittoraid/internal/logger"
	"github.com/marmos91/dittoraid/internal/telemetry"
	"github.com/marmos91/dittoraid/pkg/metrics"
	"github.com/marmos91/dittoraid/pkg/raid"
)

// Request operation names, as used in logs and metric labels.
const (
	OpRead       = "read"
	OpWrite      = "write"
	OpFlush      = "flush"
	OpDisconnect = "disconnect"
)

// BlockDevice is the contract a block-device transport serves.
//
// Offsets and lengths are in bytes and need not be block aligned.
//
// Thread safety:
// Implementations must be safe for concurrent use. A transport may issue
// requests from several connections or queues at once.
type BlockDevice interface {
	// Size returns the exported size in bytes.
	Size() int64

	// BlockSize returns the preferred I/O size advertised to clients.
	BlockSize() int64

	// Blocks returns Size() / BlockSize().
	Blocks() int64

	// Read fills buf from offset off. A non-nil error is a ProtocolError.
	Read(ctx context.Context, buf []byte, off int64) error

	// Write stores buf at offset off. A non-nil error is a ProtocolError.
	Write(ctx context.Context, buf []byte, off int64) error

	// Flush makes every acknowledged write durable.
	Flush(ctx context.Context) error

	// Disconnect is called when a client goes away.
	Disconnect(ctx context.Context)
}

// Backend serves BlockDevice requests from a raid.Array.
type Backend struct {
	array   *raid.Array
	metrics metrics.AdapterMetrics
}

var _ BlockDevice = (*Backend)(nil)

// New creates a Backend over arr. m may be nil.
func New(arr *raid.Array, m metrics.AdapterMetrics) *Backend {
	return &Backend{array: arr, metrics: m}
}

// Size returns the logical size of the array.
func (b *Backend) Size() int64 { return b.array.Size() }

// BlockSize returns the array block size.
func (b *Backend) BlockSize() int64 { return b.array.BlockSize() }

// Blocks returns the number of logical blocks.
func (b *Backend) Blocks() int64 { return b.array.Blocks() }

// Read serves a read request.
func (b *Backend) Read(ctx context.Context, buf []byte, off int64) error {
	return b.serve(ctx, OpRead, telemetry.SpanAdapterRead, off, len(buf), func(ctx context.Context) error {
		return b.array.Read(ctx, buf, off)
	})
}

// Write serves a write request.
func (b *Backend) Write(ctx context.Context, buf []byte, off int64) error {
	return b.serve(ctx, OpWrite, telemetry.SpanAdapterWrite, off, len(buf), func(ctx context.Context) error {
		return b.array.Write(ctx, buf, off)
	})
}

// Flush serves a flush request.
func (b *Backend) Flush(ctx context.Context) error {
	return b.serve(ctx, OpFlush, telemetry.SpanAdapterFlush, 0, 0, b.array.Flush)
}

// Disconnect forwards the client-disconnect hook to the array.
func (b *Backend) Disconnect(ctx context.Context) {
	_ = b.serve(ctx, OpDisconnect, telemetry.SpanAdapterDisconnect, 0, 0, func(ctx context.Context) error {
		b.array.Disconnect(ctx)
		return nil
	})
}

// serve wraps one request with its ID, span, log context and metrics, and
// maps the array error to a ProtocolError.
func (b *Backend) serve(ctx context.Context, op, spanName string, off int64, length int, fn func(context.Context) error) error {
	reqID := uuid.NewString()

	ctx, span := telemetry.StartArraySpan(ctx, spanName, off, length,
		telemetry.Operation(op), telemetry.RequestID(reqID),
		telemetry.Degraded(b.array.Degraded()))
	defer span.End()

	lc := logger.NewLogContext(op, reqID).
		WithRange(off, length).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	if b.metrics != nil {
		b.metrics.RecordRequestStart(op)
		defer b.metrics.RecordRequestEnd(op)
	}

	start := time.Now()
	err := fn(ctx)
	perr := MapError(op, err)

	var code uint32
	if perr != nil {
		code = perr.Code()
		telemetry.RecordError(ctx, err)
		telemetry.SetAttributes(ctx, telemetry.Status(CodeName(code)))
		if code == CodeEIO {
			// The device or the array lost data; the client sees a failed I/O.
			logger.ErrorCtx(ctx, "Request failed", logger.Errno(code), logger.Err(err))
		} else {
			logger.WarnCtx(ctx, "Request rejected", logger.Errno(code), logger.Err(err))
		}
	} else if logger.IsDebugEnabled() {
		logger.DebugCtx(ctx, "Request served", logger.DurationMs(lc.DurationMs()))
	}

	if b.metrics != nil {
		errno := CodeName(code)
		b.metrics.RecordRequest(op, time.Since(start), errno)
		if perr == nil && length > 0 {
			b.metrics.RecordBytesTransferred(op, uint64(length))
		}
	}

	if perr != nil {
		return perr
	}
	return nil
}
