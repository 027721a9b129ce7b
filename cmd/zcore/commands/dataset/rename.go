package dataset

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
)

var renameCmd = &cobra.Command{
	Use:   "rename <name> <newname>",
	Short: "Rename a dataset",
	Long: `Rename a dataset within its pool.

Renames cannot cross pools and cannot move a dataset under one of its
own descendants.

Examples:
  # Rename a filesystem
  zcore dataset rename tank/scratch tank/archive`,
	Args: cobra.ExactArgs(2),
	RunE: runRename,
}

func runRename(cmd *cobra.Command, args []string) error {
	name, newname := args[0], args[1]

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		if err := rt.Client.Rename(ctx, name, newname); err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Renamed %q to %q", name, newname))
		return nil
	})
}
