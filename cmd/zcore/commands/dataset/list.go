package dataset

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/internal/bytesize"
	"github.com/marmos91/zcore/internal/cli/timeutil"
	"github.com/marmos91/zcore/pkg/config"
	"github.com/marmos91/zcore/pkg/zfs"
)

var (
	listRecurse bool
	listTypes   string
)

var listCmd = &cobra.Command{
	Use:   "list [name]",
	Short: "List datasets",
	Long: `List datasets with their properties.

Without a name, every pool is listed. With -r the listing includes
every descendant of the named dataset, snapshots and bookmarks
included; -t narrows the result to the given types.

Examples:
  # List everything under a pool
  zcore dataset list tank -r

  # List only the snapshots under a filesystem
  zcore dataset list tank/data -r -t snapshot

  # List as JSON
  zcore dataset list tank -r -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVarP(&listRecurse, "recurse", "r", false, "Include all descendants")
	listCmd.Flags().StringVarP(&listTypes, "types", "t", "", "Comma-separated types to keep (filesystem,volume,snapshot,bookmark)")
}

// DatasetList is a list of datasets for table rendering.
type DatasetList []zfs.Dataset

// Headers implements TableRenderer.
func (dl DatasetList) Headers() []string {
	return []string{"NAME", "TYPE", "USED", "CREATED"}
}

// Rows implements TableRenderer.
func (dl DatasetList) Rows() [][]string {
	rows := make([][]string, 0, len(dl))
	for _, ds := range dl {
		used := "-"
		if n, ok := propUint64(ds.Properties, "used"); ok {
			used = bytesize.ByteSize(n).String()
		}
		created := "-"
		if n, ok := propUint64(ds.Properties, "creation"); ok {
			created = timeutil.FormatLocal(time.Unix(int64(n), 0))
		}
		rows = append(rows, []string{ds.Name, ds.Type, used, created})
	}
	return rows
}

func propUint64(props map[string]any, key string) (uint64, bool) {
	n, ok := props[key].(uint64)
	return n, ok
}

func runList(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) == 1 {
		name = args[0]
	}

	opts := &zfs.ListOptions{Recurse: listRecurse}
	if listTypes != "" {
		for _, t := range strings.Split(listTypes, ",") {
			if t = strings.TrimSpace(t); t != "" {
				opts.Types = append(opts.Types, t)
			}
		}
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		datasets, err := rt.Client.ListAll(ctx, name, opts)
		if err != nil {
			return err
		}
		return cmdutil.PrintOutput(os.Stdout, datasets, len(datasets) == 0, "No datasets found.", DatasetList(datasets))
	})
}
