// Package config implements configuration management subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the config subcommand.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage zcore configuration files.

Use 'zcore init' to create a new configuration file.

Subcommands:
  show    Display current configuration
  schema  Generate JSON schema for IDE/validation
  passwd  Set the admin password for the REST API`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(schemaCmd)
	Cmd.AddCommand(passwdCmd)
}
