// Package bookmark implements bookmark management commands for zcore.
package bookmark

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for bookmark management.
var Cmd = &cobra.Command{
	Use:   "bookmark",
	Short: "Bookmark management",
	Long: `Manage bookmarks on the storage engine.

A bookmark preserves a snapshot's birth point for incremental sends
without holding the snapshot's blocks. Bookmark commands create,
destroy and list them.

Examples:
  # Bookmark a snapshot before destroying it
  zcore bookmark create tank/data@friday tank/data#friday

  # Send an incremental stream from the bookmark
  zcore send -i tank/data#friday tank/data@saturday

  # List the bookmarks of a filesystem
  zcore bookmark list tank/data`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(destroyCmd)
	Cmd.AddCommand(listCmd)
}
