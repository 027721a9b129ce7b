package snapshot

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/internal/bytesize"
	"github.com/marmos91/zcore/pkg/config"
)

var spaceCmd = &cobra.Command{
	Use:   "space <first> <last>",
	Short: "Estimate the space held by a snapshot range",
	Long: `Estimate the space that destroying a range of snapshots would
reclaim.

The range runs from first to last inclusive; both must be snapshots of
the same filesystem with first no younger than last.

Examples:
  # Space held by monday through friday
  zcore snapshot space tank/data@monday tank/data@friday`,
	Args: cobra.ExactArgs(2),
	RunE: runSpace,
}

func runSpace(cmd *cobra.Command, args []string) error {
	first, last := args[0], args[1]

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		space, err := rt.Client.SnapshotRangeSpace(ctx, first, last)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d bytes)\n", bytesize.ByteSize(space), space)
		return nil
	})
}
