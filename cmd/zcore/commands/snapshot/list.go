package snapshot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/internal/bytesize"
	"github.com/marmos91/zcore/internal/cli/timeutil"
	"github.com/marmos91/zcore/pkg/config"
	"github.com/marmos91/zcore/pkg/zfs"
)

var listRecurse bool

var listCmd = &cobra.Command{
	Use:   "list <filesystem>",
	Short: "List the snapshots of a filesystem",
	Long: `List the snapshots of a filesystem in creation order.

With -r the listing also covers every descendant filesystem.

Examples:
  # List snapshots of one filesystem
  zcore snapshot list tank/data

  # List snapshots of a whole subtree
  zcore snapshot list tank -r

  # List as JSON
  zcore snapshot list tank/data -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listRecurse, "recurse", "r", false, "Include descendant filesystems")
}

// SnapshotList is a list of snapshots for table rendering.
type SnapshotList []zfs.Dataset

// Headers implements TableRenderer.
func (sl SnapshotList) Headers() []string {
	return []string{"NAME", "USED", "CREATED", "TXG"}
}

// Rows implements TableRenderer.
func (sl SnapshotList) Rows() [][]string {
	rows := make([][]string, 0, len(sl))
	for _, snap := range sl {
		used := "-"
		if n, ok := snap.Properties["used"].(uint64); ok {
			used = bytesize.ByteSize(n).String()
		}
		created := "-"
		if n, ok := snap.Properties["creation"].(uint64); ok {
			created = timeutil.FormatLocal(time.Unix(int64(n), 0))
		}
		txg := "-"
		if n, ok := snap.Properties["createtxg"].(uint64); ok {
			txg = fmt.Sprintf("%d", n)
		}
		rows = append(rows, []string{snap.Name, used, created, txg})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	filesystem := args[0]

	opts := &zfs.ListOptions{
		Recurse: listRecurse,
		Types:   []string{zfs.TypeSnapshot},
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		snaps, err := rt.Client.ListAll(ctx, filesystem, opts)
		if err != nil {
			return err
		}
		return cmdutil.PrintOutput(os.Stdout, snaps, len(snaps) == 0, "No snapshots found.", SnapshotList(snaps))
	})
}
