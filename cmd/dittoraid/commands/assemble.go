package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoraid/internal/bytesize"
	"github.com/marmos91/dittoraid/internal/cli/output"
	"github.com/marmos91/dittoraid/internal/cli/prompt"
	"github.com/marmos91/dittoraid/internal/logger"
	"github.com/marmos91/dittoraid/pkg/adapter"
	"github.com/marmos91/dittoraid/pkg/api"
	"github.com/marmos91/dittoraid/pkg/config"
	"github.com/marmos91/dittoraid/pkg/manifest"
	"github.com/marmos91/dittoraid/pkg/metrics"
	"github.com/marmos91/dittoraid/pkg/raid"
)

var (
	assembleInit bool
	assembleYes  bool
	assembleHold bool
)

var assembleCmd = &cobra.Command{
	Use:   "assemble [BLOCKSIZE TARGET DEVICE...]",
	Short: "Assemble the array, rebuilding or initializing it first",
	Long: `Open the member devices, check them against the manifest, run a
pending rebuild and the optional zero-fill, and print the array summary.

The positional form overrides the configuration file. Mark an absent device
with MISSING and the device to rebuild with a leading '+'.

Examples:
  # Assemble from the configuration file
  dittoraid assemble

  # RAID4 over three devices with 64KiB blocks, zero-filled first
  dittoraid assemble --init 64Ki /dev/nbd0 /dev/sdb /dev/sdc /dev/sdd

  # Rebuild the replacement for slot 1
  dittoraid assemble 64Ki /dev/nbd0 /dev/sdb +/dev/sde /dev/sdd

  # Keep the array assembled and serve /status until interrupted
  DITTORAID_METRICS_ENABLED=true dittoraid assemble --hold`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 && len(args) < 4 {
			return fmt.Errorf("expected BLOCKSIZE TARGET and at least two devices, got %d arguments", len(args))
		}
		return nil
	},
	RunE: runAssemble,
}

func init() {
	assembleCmd.Flags().BoolVar(&assembleInit, "init", false, "zero-fill every device before use (destroys data)")
	assembleCmd.Flags().BoolVarP(&assembleYes, "yes", "y", false, "do not ask before zero-filling")
	assembleCmd.Flags().BoolVar(&assembleHold, "hold", false, "keep the array assembled until interrupted")
}

// applyAssembleArgs applies the positional BLOCKSIZE TARGET DEVICE... form.
func applyAssembleArgs(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return nil
	}
	size, err := bytesize.ParseByteSize(args[0])
	if err != nil {
		return fmt.Errorf("%w: block size %q: %w", raid.ErrConfig, args[0], err)
	}
	cfg.Array.BlockSize = size
	cfg.Array.Target = args[1]
	cfg.Array.Devices = args[2:]
	return nil
}

func runAssemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyAssembleArgs(cfg, args); err != nil {
		return err
	}
	if cmd.Flags().Changed("init") {
		cfg.Array.Init = assembleInit
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

	if spec.Init {
		ok, err := prompt.ConfirmUnless(assembleYes,
			fmt.Sprintf("Zero-fill all %d devices? Existing data is lost", spec.Layout.Devices), "yes")
		if err != nil {
			return err
		}
		if !ok {
			return prompt.ErrAborted
		}
	}

	store, err := openManifest(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	set, record, err := openAssembly(ctx, spec, store)
	if err != nil {
		return err
	}

	raidMetrics := metrics.NewRaidMetrics()
	progress := &api.Progress{}
	startStatusServer(ctx, cfg, set, progress)

	if err := prepareSet(ctx, set, spec, store, raidMetrics, progress); err != nil {
		_ = set.Close()
		return err
	}

	arr, err := raid.New(set, raid.Options{Metrics: raidMetrics})
	if err != nil {
		_ = set.Close()
		return err
	}
	defer func() {
		if err := arr.Close(); err != nil {
			logger.Error("Failed to close array", logger.Err(err))
		}
	}()

	backend := adapter.New(arr, metrics.NewAdapterMetrics())
	if err := printSummary(cmd, spec, backend, arr.Degraded(), record); err != nil {
		return err
	}

	if !assembleHold {
		return backend.Flush(ctx)
	}

	logger.Info("Array ready, press Ctrl+C to stop", logger.Target(spec.Target))
	<-ctx.Done()

	// ctx is cancelled; flush on a fresh one
	flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	backend.Disconnect(flushCtx)
	return backend.Flush(flushCtx)
}

// openAssembly opens the devices of spec for writing. With a manifest, the
// layout is checked before any device is touched and the assembly is only
// recorded once every device opened.
func openAssembly(ctx context.Context, spec config.ArraySpec, store *manifest.Store) (*raid.DeviceSet, *manifest.Manifest, error) {
	if store != nil {
		if err := matchManifest(ctx, store, spec); err != nil {
			return nil, nil, err
		}
	}

	set, err := openSet(spec, false)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return set, nil, nil
	}

	record, err := store.Reconcile(ctx, spec.Layout, slotPaths(spec))
	if err != nil {
		_ = set.Close()
		return nil, nil, err
	}
	return set, record, nil
}

// prepareSet runs the pending rebuild and the requested zero-fill, in that
// order, and records both in the manifest.
func prepareSet(ctx context.Context, set *raid.DeviceSet, spec config.ArraySpec, store *manifest.Store, m raid.Metrics, progress *api.Progress) error {
	if slot, ok := spec.Rebuild(); ok {
		opts := raid.ProcedureOptions{Progress: progress.Track("rebuild"), Metrics: m}
		if err := raid.Rebuild(ctx, set, opts); err != nil {
			return fmt.Errorf("rebuild of slot %d failed: %w", slot, err)
		}
		if store != nil {
			if err := store.MarkRebuilt(ctx, slot); err != nil {
				return err
			}
		}
	}

	if spec.Init {
		opts := raid.ProcedureOptions{Progress: progress.Track("init"), Metrics: m}
		if err := raid.Initialize(ctx, set, opts); err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		if store != nil {
			if err := store.MarkInitialized(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func printSummary(cmd *cobra.Command, spec config.ArraySpec, dev adapter.BlockDevice, degraded bool, record *manifest.Manifest) error {
	pairs := [][2]string{
		{"Level", spec.Layout.Level.String()},
		{"Block size", output.Bytes(dev.BlockSize())},
		{"Devices", strconv.Itoa(spec.Layout.Devices)},
		{"Size", output.Bytes(dev.Size())},
		{"Blocks", strconv.FormatInt(dev.Blocks(), 10)},
		{"Degraded", strconv.FormatBool(degraded)},
	}
	if spec.Target != "" {
		pairs = append(pairs, [2]string{"Target", spec.Target})
	}
	if record != nil {
		pairs = append(pairs, [2]string{"Array ID", record.ID.String()})
	}

	return output.KeyValue(cmd.OutOrStdout(), pairs)
}
