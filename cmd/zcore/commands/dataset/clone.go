package dataset

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
)

var cloneProps []string

var cloneCmd = &cobra.Command{
	Use:   "clone <snapshot> <name>",
	Short: "Clone a snapshot into a new dataset",
	Long: `Clone a snapshot into a new dataset.

The clone shares its blocks with the origin snapshot, which cannot be
destroyed while the clone exists. Use 'zcore dataset promote' to invert
the dependency.

Examples:
  # Clone a snapshot
  zcore dataset clone tank/data@friday tank/copy

  # Clone with properties
  zcore dataset clone tank/data@friday tank/copy --prop note=experiment`,
	Args: cobra.ExactArgs(2),
	RunE: runClone,
}

func init() {
	cloneCmd.Flags().StringArrayVar(&cloneProps, "prop", nil, "Property to set (key=value, repeatable)")
}

func runClone(cmd *cobra.Command, args []string) error {
	origin, name := args[0], args[1]

	props, err := cmdutil.ParseProperties(cloneProps)
	if err != nil {
		return err
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		if err := rt.Client.Clone(ctx, name, origin, props); err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Cloned %q into %q", origin, name))
		return nil
	})
}
