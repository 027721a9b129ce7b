// Package commands implements the CLI commands for zcore management.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	bookmarkcmd "github.com/marmos91/zcore/cmd/zcore/commands/bookmark"
	configcmd "github.com/marmos91/zcore/cmd/zcore/commands/config"
	datasetcmd "github.com/marmos91/zcore/cmd/zcore/commands/dataset"
	holdcmd "github.com/marmos91/zcore/cmd/zcore/commands/hold"
	journalcmd "github.com/marmos91/zcore/cmd/zcore/commands/journal"
	snapshotcmd "github.com/marmos91/zcore/cmd/zcore/commands/snapshot"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "zcore",
	Short: "zcore - Storage engine management plane",
	Long: `zcore manages datasets, snapshots, bookmarks and holds on a ZFS-style
storage engine, and moves replication streams between engines, files
and object storage.

Operations run against the engine named in the configuration: the
in-process simulator by default, or the kernel ioctl boundary on hosts
that have one.

Use "zcore [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Sync flags to cmdutil.Flags for subcommands
		cmdutil.Flags.ConfigFile, _ = cmd.Flags().GetString("config")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().String("config", "", "config file (default: $XDG_CONFIG_HOME/zcore/config.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(receiveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(datasetcmd.Cmd)
	rootCmd.AddCommand(snapshotcmd.Cmd)
	rootCmd.AddCommand(bookmarkcmd.Cmd)
	rootCmd.AddCommand(holdcmd.Cmd)
	rootCmd.AddCommand(journalcmd.Cmd)
	rootCmd.AddCommand(configcmd.Cmd)
}

// PrintErr prints an error message to stderr.
func PrintErr(format string, args ...any) {
	rootCmd.PrintErrf(format+"\n", args...)
}

// Exit prints an error and exits with code 1.
func Exit(format string, args ...any) {
	PrintErr(format, args...)
	os.Exit(1)
}
