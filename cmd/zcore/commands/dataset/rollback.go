package dataset

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
)

var rollbackTo string

var rollbackCmd = &cobra.Command{
	Use:   "rollback <filesystem>",
	Short: "Roll a filesystem back to its latest snapshot",
	Long: `Roll a filesystem back to its latest snapshot, discarding every
change made since.

With --to the rollback is validated against the named snapshot: it
fails if a more recent snapshot exists instead of silently picking it.

Examples:
  # Roll back to the most recent snapshot
  zcore dataset rollback tank/data

  # Roll back only if tank/data@friday is the most recent snapshot
  zcore dataset rollback tank/data --to tank/data@friday`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

func init() {
	rollbackCmd.Flags().StringVar(&rollbackTo, "to", "", "Snapshot the rollback must land on")
}

func runRollback(cmd *cobra.Command, args []string) error {
	filesystem := args[0]

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		if rollbackTo != "" {
			if err := rt.Client.RollbackTo(ctx, filesystem, rollbackTo); err != nil {
				return err
			}
			cmdutil.PrintSuccess(fmt.Sprintf("Rolled %q back to %q", filesystem, rollbackTo))
			return nil
		}

		snapshot, err := rt.Client.Rollback(ctx, filesystem)
		if err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Rolled %q back to %q", filesystem, snapshot))
		return nil
	})
}
