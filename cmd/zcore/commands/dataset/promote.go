package dataset

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
)

var promoteCmd = &cobra.Command{
	Use:   "promote <clone>",
	Short: "Promote a clone over its origin",
	Long: `Promote a clone over its origin.

Snapshots older than the clone's branch point move from the origin
filesystem to the clone, and the dependency between the two inverts:
afterwards the former origin depends on the promoted clone.

Examples:
  # Promote a clone so its origin can be destroyed
  zcore dataset promote tank/copy`,
	Args: cobra.ExactArgs(1),
	RunE: runPromote,
}

func runPromote(cmd *cobra.Command, args []string) error {
	name := args[0]

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		if err := rt.Client.Promote(ctx, name); err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Promoted %q", name))
		return nil
	})
}
