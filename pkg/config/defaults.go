package config

import (
	"slices"
	"strings"
	"time"

	"github.com/marmos91/dittoraid/internal/bytesize"
	"github.com/marmos91/dittoraid/internal/logger"
	"github.com/marmos91/dittoraid/internal/telemetry"
)

// DefaultBlockSize is the stripe unit used when none is configured.
const DefaultBlockSize = 64 * bytesize.KiB

// DefaultLevel is the RAID level used when array.level is omitted.
const DefaultLevel = 4

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults; explicit values are preserved.
// The array level is defaulted by Load, where an omitted key can be told
// apart from an explicit 0. The device list is never filled in.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyArrayDefaults(&cfg.Array)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if l, ok := logger.ParseLevel(cfg.Level); ok {
		cfg.Level = l.String()
	} else {
		cfg.Level = strings.ToUpper(cfg.Level)
	}

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = slices.Clone(telemetry.DefaultProfileTypes)
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyArrayDefaults(cfg *ArrayConfig) {
	if cfg.BlockSize == 0 {
		cfg.BlockSize = DefaultBlockSize
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// The result has no devices; it is the base that command-line arguments
// are layered on and the template for `dittoraid config init`.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Array: ArrayConfig{
			Level: DefaultLevel,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
