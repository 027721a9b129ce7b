package bookmark

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
)

var destroyForce bool

var destroyCmd = &cobra.Command{
	Use:   "destroy <bookmark>...",
	Short: "Destroy bookmarks",
	Long: `Destroy one or more bookmarks.

Bookmarks that are already gone are reported, not treated as errors.
You will be prompted for confirmation unless --force is specified.

Examples:
  # Destroy a bookmark
  zcore bookmark destroy tank/data#friday

  # Destroy several without confirmation
  zcore bookmark destroy tank/data#monday tank/data#tuesday --force`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVarP(&destroyForce, "force", "f", false, "Skip confirmation prompt")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	confirmed, err := cmdutil.ConfirmDestroy(fmt.Sprintf("Destroy %d bookmark(s)", len(args)), destroyForce)
	if err != nil || !confirmed {
		return err
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		misses, err := rt.Client.DestroyBookmarks(ctx, args)
		if err != nil {
			return err
		}
		return cmdutil.PrintBatchResult(os.Stdout, cmdutil.BatchResult{
			Requested:  args,
			SoftMisses: misses,
		}, "destroyed")
	})
}
