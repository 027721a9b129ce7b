package bookmark

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
	"github.com/marmos91/zcore/pkg/zfs"
)

var createCmd = &cobra.Command{
	Use:   "create <snapshot> <bookmark>",
	Short: "Bookmark a snapshot",
	Long: `Bookmark a snapshot.

The bookmark must live on the same filesystem as the snapshot. Once
created it keeps working as an incremental send source even after the
snapshot is destroyed.

Examples:
  # Bookmark a snapshot
  zcore bookmark create tank/data@friday tank/data#friday`,
	Args: cobra.ExactArgs(2),
	RunE: runCreate,
}

func runCreate(cmd *cobra.Command, args []string) error {
	source, mark := args[0], args[1]

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		reqs := []zfs.BookmarkRequest{{Bookmark: mark, Source: source}}
		if err := rt.Client.Bookmark(ctx, reqs); err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("Bookmarked %q as %q", source, mark))
		return nil
	})
}
