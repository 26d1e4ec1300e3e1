package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Array geometry uses the raid. namespace, per-request
// fields io., member devices device.
const (
	AttrBlockSize = "raid.block_size"
	AttrDevices   = "raid.devices"
	AttrDegraded  = "raid.degraded"
	AttrStripe    = "raid.stripe"
	AttrStripes   = "raid.stripes"
	AttrTarget    = "raid.target_slot" // slot being rebuilt
	AttrMismatch  = "raid.mismatches"

	AttrOperation = "io.operation"
	AttrOffset    = "io.offset"
	AttrLength    = "io.length"
	AttrStatus    = "io.status" // protocol error name, empty on success
	AttrRequestID = "io.request_id"

	AttrDevice     = "device.index"
	AttrDevicePath = "device.path"
)

// Span names, <component>.<operation>.
const (
	SpanArrayRead  = "array.read"
	SpanArrayWrite = "array.write"
	SpanArrayFlush = "array.flush"

	SpanRebuild = "raid.rebuild"
	SpanInit    = "raid.init"
	SpanVerify  = "raid.verify"

	SpanAdapterRead       = "adapter.read"
	SpanAdapterWrite      = "adapter.write"
	SpanAdapterFlush      = "adapter.flush"
	SpanAdapterDisconnect = "adapter.disconnect"
)

// EventReconstruct marks a block served from parity instead of its device.
const EventReconstruct = "reconstruct"

func BlockSize(size int64) attribute.KeyValue { return attribute.Int64(AttrBlockSize, size) }
func Devices(n int) attribute.KeyValue { return attribute.Int(AttrDevices, n) }
func Degraded(d bool) attribute.KeyValue { return attribute.Bool(AttrDegraded, d) }
func Stripe(s int64) attribute.KeyValue { return attribute.Int64(AttrStripe, s) }
func Stripes(n int64) attribute.KeyValue { return attribute.Int64(AttrStripes, n) }
func Target(slot int) attribute.KeyValue { return attribute.Int(AttrTarget, slot) }
func Mismatches(n int) attribute.KeyValue { return attribute.Int(AttrMismatch, n) }

func Operation(op string) attribute.KeyValue { return attribute.String(AttrOperation, op) }
func Offset(off int64) attribute.KeyValue { return attribute.Int64(AttrOffset, off) }
func Length(n int) attribute.KeyValue { return attribute.Int(AttrLength, n) }
func Status(s string) attribute.KeyValue { return attribute.String(AttrStatus, s) }
func RequestID(id string) attribute.KeyValue { return attribute.String(AttrRequestID, id) }

func Device(slot int) attribute.KeyValue { return attribute.Int(AttrDevice, slot) }
func DevicePath(p string) attribute.KeyValue { return attribute.String(AttrDevicePath, p) }

// StartArraySpan starts a span for a logical request covering
// [offset, offset+length).
func StartArraySpan(ctx context.Context, name string, offset int64, length int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Offset(offset), Length(length)}, attrs...)
	return StartSpan(ctx, name, trace.WithAttributes(all...))
}

// StartProcedureSpan starts a span for rebuild, init or verify.
func StartProcedureSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, name, trace.WithAttributes(attrs...), trace.WithSpanKind(trace.SpanKindInternal))
}
