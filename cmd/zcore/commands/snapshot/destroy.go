package snapshot

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
	"github.com/marmos91/zcore/pkg/zfs"
)

var (
	destroyDefer bool
	destroyForce bool
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <snapshot>...",
	Short: "Destroy snapshots",
	Long: `Destroy one or more snapshots.

Snapshots that are already gone are reported, not treated as errors.
Held snapshots and clone origins refuse to go; with --defer they are
marked for destruction and reclaimed once the last hold or clone
disappears.

You will be prompted for confirmation unless --force is specified.

Examples:
  # Destroy two snapshots
  zcore snapshot destroy tank/data@monday tank/data@tuesday

  # Defer destruction of a held snapshot
  zcore snapshot destroy tank/data@monday --defer

  # Skip the confirmation prompt
  zcore snapshot destroy tank/data@monday --force`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyDefer, "defer", false, "Defer destruction while holds or clones remain")
	destroyCmd.Flags().BoolVarP(&destroyForce, "force", "f", false, "Skip confirmation prompt")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	confirmed, err := cmdutil.ConfirmDestroy(fmt.Sprintf("Destroy %d snapshot(s)", len(args)), destroyForce)
	if err != nil || !confirmed {
		return err
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		misses, err := rt.Client.DestroySnapshots(ctx, args, &zfs.DestroyOptions{Defer: destroyDefer})
		if err != nil {
			return err
		}
		return cmdutil.PrintBatchResult(os.Stdout, cmdutil.BatchResult{
			Requested:  args,
			SoftMisses: misses,
		}, "destroyed")
	})
}
