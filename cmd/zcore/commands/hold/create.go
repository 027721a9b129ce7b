package hold

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs"
)

var createCmd = &cobra.Command{
	Use:   "create <tag> <snapshot>...",
	Short: "Hold snapshots under a tag",
	Long: `Hold one or more snapshots under a tag.

Held snapshots refuse ordinary destruction until the hold is
released. Snapshots that do not exist are reported, not treated as
errors; a tag already present on an existing snapshot fails the whole
batch.

Examples:
  # Hold a snapshot while a backup runs
  zcore hold create backup tank/data@friday

  # Hold several snapshots under one tag
  zcore hold create backup tank/data@friday tank/logs@friday`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	tag, snaps := args[0], args[1:]

	reqs := make([]zfs.HoldRequest, 0, len(snaps))
	for _, snap := range snaps {
		reqs = append(reqs, zfs.HoldRequest{Snapshot: snap, Tag: tag})
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		misses, err := rt.Client.Hold(ctx, reqs, engine.NoFD)
		if err != nil {
			return err
		}
		return cmdutil.PrintBatchResult(os.Stdout, cmdutil.BatchResult{
			Requested:  snaps,
			SoftMisses: misses,
		}, "held")
	})
}
