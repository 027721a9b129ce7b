// Package dataset implements dataset management commands for zcore.
package dataset

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for dataset management.
var Cmd = &cobra.Command{
	Use:   "dataset",
	Short: "Dataset management",
	Long: `Manage filesystems and volumes on the storage engine.

Dataset commands create, clone, rename, roll back and destroy
filesystems and volumes, and enumerate them with their properties.

Examples:
  # Create a filesystem
  zcore dataset create tank/data

  # Create a 10 GiB volume
  zcore dataset create tank/vol --type volume --volsize 10Gi

  # Clone a snapshot into a new filesystem
  zcore dataset clone tank/data@friday tank/copy

  # List every dataset under a pool
  zcore dataset list tank -r

  # Destroy a filesystem
  zcore dataset destroy tank/scratch`,
}

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(cloneCmd)
	Cmd.AddCommand(destroyCmd)
	Cmd.AddCommand(renameCmd)
	Cmd.AddCommand(promoteCmd)
	Cmd.AddCommand(rollbackCmd)
	Cmd.AddCommand(existsCmd)
	Cmd.AddCommand(listCmd)
}
