package dataset

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
)

var existsCmd = &cobra.Command{
	Use:   "exists <name>",
	Short: "Check whether a dataset exists",
	Long: `Check whether a dataset exists.

Works on filesystems, volumes, snapshots and bookmarks. Prints "yes"
or "no".

Examples:
  # Check a filesystem
  zcore dataset exists tank/data

  # Check a snapshot
  zcore dataset exists tank/data@friday`,
	Args: cobra.ExactArgs(1),
	RunE: runExists,
}

func runExists(cmd *cobra.Command, args []string) error {
	name := args[0]

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		ok, err := rt.Client.Exists(ctx, name)
		if err != nil {
			return err
		}
		if ok {
			fmt.Println("yes")
		} else {
			fmt.Println("no")
		}
		return nil
	})
}
