package dataset

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
)

var destroyForce bool

var destroyCmd = &cobra.Command{
	Use:   "destroy <name>",
	Short: "Destroy a filesystem or volume",
	Long: `Destroy a filesystem or volume.

This action is irreversible. You will be prompted for confirmation
unless --force is specified. Datasets with children, clones or held
snapshots refuse to go.

Examples:
  # Destroy with confirmation
  zcore dataset destroy tank/scratch

  # Destroy without confirmation
  zcore dataset destroy tank/scratch --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVarP(&destroyForce, "force", "f", false, "Skip confirmation prompt")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	name := args[0]

	confirmed, err := cmdutil.ConfirmDestroy(fmt.Sprintf("Destroy dataset %q", name), destroyForce)
	if err != nil || !confirmed {
		return err
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		if err := rt.Client.Destroy(ctx, name); err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Dataset %q destroyed", name))
		return nil
	})
}
