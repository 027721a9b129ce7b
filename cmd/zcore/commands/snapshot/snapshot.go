// Package snapshot implements snapshot management commands for zcore.
package snapshot

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for snapshot management.
var Cmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Snapshot management",
	Long: `Manage snapshots on the storage engine.

Snapshot commands create and destroy snapshots in atomic batches,
list them, and estimate the space a snapshot range holds.

Examples:
  # Snapshot two filesystems atomically
  zcore snapshot create tank/data@friday tank/logs@friday

  # List the snapshots of a filesystem
  zcore snapshot list tank/data

  # Destroy snapshots, ignoring ones already gone
  zcore snapshot destroy tank/data@monday tank/data@tuesday`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(destroyCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(spaceCmd)
}
