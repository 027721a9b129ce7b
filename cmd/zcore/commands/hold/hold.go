// Package hold implements hold management commands for zcore.
package hold

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for hold management.
var Cmd = &cobra.Command{
	Use:   "hold",
	Short: "Hold management",
	Long: `Manage holds on snapshots.

A held snapshot cannot be destroyed until every hold is released.
Hold commands place holds under a tag, release them, and list the
holds a snapshot carries.

Examples:
  # Hold a snapshot under a backup tag
  zcore hold create backup tank/data@friday

  # List the holds on a snapshot
  zcore hold list tank/data@friday

  # Release the hold again
  zcore hold release backup tank/data@friday`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(releaseCmd)
	Cmd.AddCommand(listCmd)
}
