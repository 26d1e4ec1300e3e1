package config

import (
	"testing"
	"time"

	"github.com/marmos91/dittoraid/internal/bytesize"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default log output 'stderr', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_LogLevelAlias(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "warning"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected 'warning' to normalize to 'WARN', got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected default shutdown timeout 10s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_Metrics(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 0 {
		t.Errorf("Expected no port while metrics are disabled, got %d", cfg.Metrics.Port)
	}

	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)
	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_Telemetry(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Expected default sample rate 1.0, got %v", cfg.Telemetry.SampleRate)
	}
	if cfg.Telemetry.Profiling.Endpoint != "http://localhost:4040" {
		t.Errorf("Expected default profiling endpoint, got %q", cfg.Telemetry.Profiling.Endpoint)
	}
	if len(cfg.Telemetry.Profiling.ProfileTypes) == 0 {
		t.Error("Expected default profile types")
	}
}

func TestApplyDefaults_Array(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Array.BlockSize != 64*bytesize.KiB {
		t.Errorf("Expected default block size 64KiB, got %v", cfg.Array.BlockSize)
	}
	if cfg.Array.Devices != nil {
		t.Errorf("Expected devices to stay empty, got %v", cfg.Array.Devices)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "json",
			Output: "/var/log/dittoraid.log",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9100,
		},
		Array: ArrayConfig{
			BlockSize: 4 * bytesize.KiB,
		},
		ShutdownTimeout: time.Minute,
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit format 'json' to be preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "/var/log/dittoraid.log" {
		t.Errorf("Expected explicit output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.Metrics.Port != 9100 {
		t.Errorf("Expected explicit port 9100 to be preserved, got %d", cfg.Metrics.Port)
	}
	if cfg.Array.BlockSize != 4*bytesize.KiB {
		t.Errorf("Expected explicit block size to be preserved, got %v", cfg.Array.BlockSize)
	}
	if cfg.ShutdownTimeout != time.Minute {
		t.Errorf("Expected explicit shutdown timeout to be preserved, got %v", cfg.ShutdownTimeout)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}
