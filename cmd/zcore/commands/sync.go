package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync <pool>",
	Short: "Flush a pool's pending transactions to stable storage",
	Long: `Flush a pool's pending transactions to stable storage.

Blocks until everything written before the call is on disk. With
--force a transaction is pushed even when the pool is idle, which
also expires idle-bound state such as temporary holds.

Examples:
  # Sync a pool
  zcore sync tank

  # Force a transaction even if the pool is idle
  zcore sync tank --force`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Push a transaction even when the pool is idle")
}

func runSync(cmd *cobra.Command, args []string) error {
	pool := args[0]

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		if err := rt.Client.Sync(ctx, pool, syncForce); err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Pool %q synced", pool))
		return nil
	})
}
