// Package commands implements the dittoraid command line.
package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittoraid/cmd/dittoraid/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile        string
	arrayLevel     int
	arrayBlockSize string
	arrayDevices   []string
	manifestPath   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "dittoraid",
	Short: "DittoRAID - Software RAID0/RAID4 block device core",
	Long: `DittoRAID maps one logical block address space onto two or more
devices, either striped (RAID0) or striped with a dedicated parity device
(RAID4). A RAID4 array keeps serving with one device missing and can rebuild
a replacement device offline.

The array is described by the configuration file, by DITTORAID_* environment
variables, or by the --level, --block-size and --device flags. In a device
list the literal MISSING marks an absent device and a leading '+' marks the
device to rebuild.

Use "dittoraid [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.
//
// SIGINT and SIGTERM cancel the command context, which stops a running
// rebuild, init or verify at the next stripe boundary.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/dittoraid/config.yaml)")
	flags.IntVar(&arrayLevel, "level", 4, "RAID level (0 or 4)")
	flags.StringVar(&arrayBlockSize, "block-size", "", "block size, e.g. 4Ki or 64KiB")
	flags.StringSliceVar(&arrayDevices, "device", nil, "member device in slot order (repeatable; MISSING or +path allowed)")
	flags.StringVar(&manifestPath, "manifest", "", "array manifest directory (overrides manifest.path)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(assembleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(config.Cmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
