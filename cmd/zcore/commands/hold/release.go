package hold

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
	"github.com/marmos91/zcore/pkg/zfs"
)

var releaseCmd = &cobra.Command{
	Use:   "release <tag> <snapshot>...",
	Short: "Release held snapshots",
	Long: `Release the named tag from one or more snapshots.

A missing snapshot or a tag it never carried is reported, not treated
as an error. Releasing the last hold of a snapshot marked for deferred
destruction destroys it.

Examples:
  # Release a hold
  zcore hold release backup tank/data@friday

  # Release the tag from several snapshots
  zcore hold release backup tank/data@friday tank/logs@friday`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRelease,
}

func runRelease(cmd *cobra.Command, args []string) error {
	tag, snaps := args[0], args[1:]

	reqs := make([]zfs.ReleaseRequest, 0, len(snaps))
	for _, snap := range snaps {
		reqs = append(reqs, zfs.ReleaseRequest{Snapshot: snap, Tags: []string{tag}})
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		misses, err := rt.Client.Release(ctx, reqs)
		if err != nil {
			return err
		}
		return cmdutil.PrintBatchResult(os.Stdout, cmdutil.BatchResult{
			Requested:  snaps,
			SoftMisses: misses,
		}, "released")
	})
}
