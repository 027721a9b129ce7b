package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/internal/cli/prompt"
	"github.com/marmos91/zcore/pkg/api/auth"
	"github.com/marmos91/zcore/pkg/config"
)

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Set the admin password for the REST API",
	Long: `Set the admin password for the REST API.

Prompts for a new password and stores its bcrypt hash in the
configuration file. The REST API's /auth/login accepts the admin
username with this password.

Examples:
  # Set the admin password in the default config
  zcore config passwd

  # Set it in a specific config file
  zcore config passwd --config /etc/zcore/config.yaml`,
	RunE: runPasswd,
}

func runPasswd(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		if !config.DefaultConfigExists() {
			return fmt.Errorf("no configuration file found; run 'zcore init' first")
		}
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	password, err := prompt.NewPassword()
	if err != nil {
		if prompt.IsAborted(err) {
			fmt.Println("\nAborted.")
			return nil
		}
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if cfg.Admin.Username == "" {
		cfg.Admin.Username = "admin"
	}
	cfg.Admin.PasswordHash = hash

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return err
	}

	fmt.Printf("Admin password updated for %q in %s\n", cfg.Admin.Username, configPath)
	return nil
}
