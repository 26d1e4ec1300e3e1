package logger

import (
	"context"
	"log/slog"
	"time"
)

type logContextKey struct{}

// LogContext holds the fields of one adapter request. Records logged with a
// context carrying it get these fields first.
type LogContext struct {
	TraceID   string
	SpanID    string
	Operation string // read, write, flush, disconnect
	RequestID string
	Offset    int64 // logical byte offset
	Length    int
	StartTime time.Time
}

// NewLogContext creates a new LogContext for one adapter request
func NewLogContext(operation, requestID string) *LogContext {
	return &LogContext{
		Operation: operation,
		RequestID: requestID,
		StartTime: time.Now(),
	}
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey{}, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey{}).(*LogContext)
	return lc
}

// WithRange returns a copy with the request range set
func (lc *LogContext) WithRange(offset int64, length int) *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	c.Offset, c.Length = offset, length
	return &c
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	c.TraceID, c.SpanID = traceID, spanID
	return &c
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Duration(lc.StartTime)
}

// attrs returns the non-empty fields in a stable order.
func (lc *LogContext) attrs() []slog.Attr {
	out := make([]slog.Attr, 0, 6)
	if lc.TraceID != "" {
		out = append(out, TraceID(lc.TraceID))
	}
	if lc.SpanID != "" {
		out = append(out, SpanID(lc.SpanID))
	}
	if lc.Operation != "" {
		out = append(out, Operation(lc.Operation))
	}
	if lc.RequestID != "" {
		out = append(out, RequestID(lc.RequestID))
	}
	if lc.Length != 0 {
		out = append(out, Offset(lc.Offset), Length(lc.Length))
	}
	return out
}

// contextHandler prepends the LogContext of the record's context.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	lc := FromContext(ctx)
	if lc == nil {
		return h.Handler.Handle(ctx, r)
	}

	nr := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	nr.AddAttrs(lc.attrs()...)
	r.Attrs(func(a slog.Attr) bool {
		nr.AddAttrs(a)
		return true
	})
	return h.Handler.Handle(ctx, nr)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}
