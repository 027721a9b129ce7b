// Package journal implements operation journal commands for zcore.
package journal

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for the operation journal.
var Cmd = &cobra.Command{
	Use:   "journal",
	Short: "Operation journal",
	Long: `Inspect the operation journal.

Every management operation records one journal entry: the operation
name, its targets, the outcome, and timing. Journal commands list the
recorded entries and prune old ones.

Examples:
  # Show recent operations
  zcore journal list

  # Show failed operations on one snapshot
  zcore journal list --outcome fault --target tank/data@friday

  # Drop entries older than thirty days
  zcore journal prune --older-than 720h`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(pruneCmd)
}
