package snapshot

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
	"github.com/marmos91/zcore/pkg/zfs"
)

var createProps []string

var createCmd = &cobra.Command{
	Use:   "create <snapshot>...",
	Short: "Create snapshots atomically",
	Long: `Create one or more snapshots in a single transaction.

All snapshots must live in the same pool. Either every snapshot is
created or none is.

Examples:
  # Snapshot one filesystem
  zcore snapshot create tank/data@friday

  # Snapshot several filesystems atomically
  zcore snapshot create tank/data@friday tank/logs@friday

  # Attach properties to the snapshots
  zcore snapshot create tank/data@friday --prop note=pre-upgrade`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringArrayVar(&createProps, "prop", nil, "Property to set on every snapshot (key=value, repeatable)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	props, err := cmdutil.ParseProperties(createProps)
	if err != nil {
		return err
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		if err := rt.Client.Snapshot(ctx, args, &zfs.SnapshotOptions{Properties: props}); err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("%d snapshot(s) created", len(args)))
		return nil
	})
}
