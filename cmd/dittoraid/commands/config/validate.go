package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoraid/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load the configuration file, validate every section and resolve the
array layout without opening any device.

Examples:
  dittoraid config validate --config /etc/dittoraid/config.yaml`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(cfg.Array.Devices) == 0 {
		_, _ = fmt.Fprintln(out, "Configuration is valid (no devices configured)")
		return nil
	}

	spec, err := cfg.Array.Resolve()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Configuration is valid: %s, %d devices, %s blocks\n",
		spec.Layout.Level, spec.Layout.Devices, cfg.Array.BlockSize)
	return nil
}
