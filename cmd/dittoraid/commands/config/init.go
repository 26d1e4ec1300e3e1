package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoraid/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample DittoRAID configuration file.

By default the file is created at $XDG_CONFIG_HOME/dittoraid/config.yaml.
Use --config to choose another path.

Examples:
  dittoraid config init
  dittoraid config init --config /etc/dittoraid/config.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	configPath := configFile
	var err error
	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. List the member devices under array.devices")
	_, _ = fmt.Fprintln(out, "  2. Check the layout with: dittoraid status")
	_, _ = fmt.Fprintln(out, "  3. Assemble a new array with: dittoraid assemble --init")
	return nil
}
