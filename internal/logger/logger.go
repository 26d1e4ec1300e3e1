package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// Level represents log levels
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// slogLevel maps the level onto slog's scale. Unknown levels log as info.
func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel parses DEBUG, INFO, WARN or ERROR, ignoring case.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stderr (default), stdout, or file path
}

// state is the process-wide logger. The level lives in a LevelVar shared
// by every handler generation, so changing it never rebuilds the handler.
var state = struct {
	mu       sync.RWMutex
	level    slog.LevelVar
	format   string
	out      io.Writer
	closer   io.Closer
	useColor bool
	log      *slog.Logger
}{format: "text", out: os.Stderr}

func init() {
	// Logs go to stderr so stdout stays free for data streamed by the read
	// command.
	state.useColor = isTerminal(os.Stderr)
	rebuild()
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// rebuild swaps in a handler for the current format and output.
func rebuild() {
	state.mu.Lock()
	defer state.mu.Unlock()

	opts := &slog.HandlerOptions{Level: &state.level}
	var h slog.Handler
	if state.format == "json" {
		h = slog.NewJSONHandler(state.out, opts)
	} else {
		h = NewColorTextHandler(state.out, opts, state.useColor)
	}
	state.log = slog.New(contextHandler{h})
}

// Init initializes the logger with the given configuration.
// Output can be "stdout", "stderr", or a file path. Empty fields keep the
// current setting.
func Init(cfg Config) error {
	if cfg.Output != "" {
		if err := setOutput(cfg.Output); err != nil {
			return err
		}
	}
	if cfg.Level != "" {
		setLevel(cfg.Level)
	}
	if cfg.Format != "" {
		setFormat(cfg.Format)
	}
	rebuild()
	return nil
}

func setOutput(dest string) error {
	var (
		w      io.Writer
		closer io.Closer
		color  bool
	)
	switch strings.ToLower(dest) {
	case "stdout":
		w, color = os.Stdout, isTerminal(os.Stdout)
	case "stderr":
		w, color = os.Stderr, isTerminal(os.Stderr)
	default:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", dest, err)
		}
		w, closer = f, f
	}

	state.mu.Lock()
	prev := state.closer
	state.out, state.closer, state.useColor = w, closer, color
	state.mu.Unlock()

	if prev != nil {
		_ = prev.Close()
	}
	return nil
}

// setLevel ignores unknown level names.
func setLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		state.level.Set(l.slogLevel())
	}
}

// setFormat ignores anything but text and json.
func setFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	state.mu.Lock()
	state.format = format
	state.mu.Unlock()
}

func current() *slog.Logger {
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.log
}

func logAt(ctx context.Context, level slog.Level, msg string, args []any) {
	if !enabledFor(level) {
		return
	}
	current().Log(ctx, level, msg, args...)
}

// enabledFor reports whether records at level are emitted.
func enabledFor(level slog.Level) bool {
	return level >= state.level.Level()
}

// Debug logs at debug level with structured fields
// Usage: Debug("message", "key1", value1, "key2", value2)
func Debug(msg string, args ...any) { logAt(context.Background(), slog.LevelDebug, msg, args) }

// Info logs at info level with structured fields
func Info(msg string, args ...any) { logAt(context.Background(), slog.LevelInfo, msg, args) }

// Warn logs at warn level with structured fields
func Warn(msg string, args ...any) { logAt(context.Background(), slog.LevelWarn, msg, args) }

// Error logs at error level with structured fields
func Error(msg string, args ...any) { logAt(context.Background(), slog.LevelError, msg, args) }

// DebugCtx logs at debug level, adding the request fields carried by ctx
// (see WithContext).
func DebugCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelDebug, msg, args)
}

// InfoCtx logs at info level with the request fields of ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelInfo, msg, args)
}

// WarnCtx logs at warn level with the request fields of ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelWarn, msg, args)
}

// ErrorCtx logs at error level with the request fields of ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelError, msg, args)
}

// Duration returns duration since start time in milliseconds
func Duration(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// IsDebugEnabled reports whether debug records are emitted. Hot paths use it
// to skip building attributes that would be discarded.
func IsDebugEnabled() bool {
	return enabledFor(slog.LevelDebug)
}
