package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoraid/internal/bytesize"
	"github.com/marmos91/dittoraid/internal/logger"
	"github.com/marmos91/dittoraid/internal/telemetry"
	"github.com/marmos91/dittoraid/pkg/api"
	"github.com/marmos91/dittoraid/pkg/config"
	"github.com/marmos91/dittoraid/pkg/manifest"
	"github.com/marmos91/dittoraid/pkg/metrics"
	"github.com/marmos91/dittoraid/pkg/raid"
	"github.com/marmos91/dittoraid/pkg/raid/device"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/dittoraid/pkg/metrics/prometheus"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadConfig loads the configuration (the file is optional), applies the
// command-line overrides and initializes the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}
	if err := applyArrayFlags(cmd, cfg); err != nil {
		return nil, err
	}
	if err := InitLogger(cfg); err != nil {
		return nil, err
	}
	logger.Debug("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	return cfg, nil
}

// applyArrayFlags copies explicitly set global flags over the configuration.
func applyArrayFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("level") {
		cfg.Array.Level = arrayLevel
	}
	if flags.Changed("block-size") {
		size, err := bytesize.ParseByteSize(arrayBlockSize)
		if err != nil {
			return fmt.Errorf("%w: --block-size: %w", raid.ErrConfig, err)
		}
		cfg.Array.BlockSize = size
	}
	if flags.Changed("device") {
		cfg.Array.Devices = arrayDevices
	}
	if flags.Changed("manifest") {
		cfg.Manifest.Path = manifestPath
	}
	return nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// startTelemetry initializes tracing, profiling and the metrics registry.
// The returned function flushes exporters within cfg.ShutdownTimeout.
func startTelemetry(ctx context.Context, cfg *config.Config) (func(), error) {
	tracingShutdown, err := telemetry.Init(ctx, cfg.TracingConfig(Version))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	profilingShutdown, err := telemetry.InitProfiling(cfg.ProfilingConfig(Version))
	if err != nil {
		_ = tracingShutdown(ctx)
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := tracingShutdown(shutdownCtx); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
	}, nil
}

// startStatusServer serves health, status and metrics while ctx is live.
// It does nothing unless metrics are enabled.
func startStatusServer(ctx context.Context, cfg *config.Config, source api.StatusSource, progress *api.Progress) {
	if !cfg.Metrics.Enabled {
		return
	}

	srv := api.NewServer(api.Config{Port: cfg.Metrics.Port}, api.NewHandler(source, progress))
	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("Status server error", logger.Err(err))
		}
	}()
}

// resolveArray validates the array section of cfg.
func resolveArray(cfg *config.Config) (config.ArraySpec, error) {
	spec, err := cfg.Array.Resolve()
	if err != nil {
		return config.ArraySpec{}, err
	}
	logger.Debug("Array resolved",
		logger.RaidLevel(spec.Layout.Level.String()),
		logger.BlockSize(spec.Layout.BlockSize),
		logger.Devices(spec.Layout.Devices))
	return spec, nil
}

// openSet opens every present device of spec.
func openSet(spec config.ArraySpec, readOnly bool) (*raid.DeviceSet, error) {
	return raid.Open(spec.Layout, spec.Slots, device.FileOptions{ReadOnly: readOnly})
}

// openManifest opens the configured manifest store, or returns nil when
// none is configured.
func openManifest(cfg *config.Config) (*manifest.Store, error) {
	if cfg.Manifest.Path == "" {
		return nil, nil
	}
	return manifest.Open(cfg.Manifest.Path)
}

// slotPaths returns the device paths recorded in the manifest.
func slotPaths(spec config.ArraySpec) []string {
	paths := make([]string, len(spec.Slots))
	for i, s := range spec.Slots {
		paths[i] = s.Path
	}
	return paths
}

// withArray opens the configured array for request I/O, runs fn and closes
// it again. The array must not need a rebuild.
func withArray(cmd *cobra.Command, readOnly bool, fn func(ctx context.Context, arr *raid.Array) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	spec, err := resolveArray(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	shutdown, err := startTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdown()

	if err := checkManifest(ctx, cfg, spec); err != nil {
		return err
	}

	set, err := openSet(spec, readOnly)
	if err != nil {
		return err
	}
	arr, err := raid.New(set, raid.Options{Metrics: metrics.NewRaidMetrics()})
	if err != nil {
		_ = set.Close()
		return err
	}
	defer func() {
		if err := arr.Close(); err != nil {
			logger.Error("Failed to close array", logger.Err(err))
		}
	}()

	return fn(ctx, arr)
}

// checkManifest compares spec with the manifest without modifying it.
func checkManifest(ctx context.Context, cfg *config.Config, spec config.ArraySpec) error {
	store, err := openManifest(cfg)
	if err != nil || store == nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return matchManifest(ctx, store, spec)
}

// matchManifest compares spec with the recorded layout. An empty store
// matches anything.
func matchManifest(ctx context.Context, store *manifest.Store, spec config.ArraySpec) error {
	m, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, manifest.ErrNotFound) {
			return nil
		}
		return err
	}
	return m.Match(spec.Layout)
}
