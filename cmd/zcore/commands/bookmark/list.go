package bookmark

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/internal/cli/timeutil"
	"github.com/marmos91/zcore/pkg/config"
)

var listCmd = &cobra.Command{
	Use:   "list <filesystem>",
	Short: "List the bookmarks of a filesystem",
	Long: `List the bookmarks of a filesystem with their creation details.

Examples:
  # List bookmarks
  zcore bookmark list tank/data

  # List as JSON
  zcore bookmark list tank/data -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

// bookmarkInfo is one bookmark row.
type bookmarkInfo struct {
	Name      string `json:"name"`
	GUID      uint64 `json:"guid"`
	CreateTxg uint64 `json:"createtxg"`
	Creation  uint64 `json:"creation"`
}

// BookmarkList is a list of bookmarks for table rendering.
type BookmarkList []bookmarkInfo

// Headers implements TableRenderer.
func (bl BookmarkList) Headers() []string {
	return []string{"NAME", "GUID", "TXG", "CREATED"}
}

// Rows implements TableRenderer.
func (bl BookmarkList) Rows() [][]string {
	rows := make([][]string, 0, len(bl))
	for _, b := range bl {
		created := "-"
		if b.Creation > 0 {
			created = timeutil.FormatLocal(time.Unix(int64(b.Creation), 0))
		}
		rows = append(rows, []string{
			b.Name,
			fmt.Sprintf("%d", b.GUID),
			fmt.Sprintf("%d", b.CreateTxg),
			created,
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	filesystem := args[0]

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		props := []string{"guid", "createtxg", "creation"}
		marks, err := rt.Client.GetBookmarks(ctx, filesystem, props)
		if err != nil {
			return err
		}

		infos := make([]bookmarkInfo, 0, len(marks))
		for short, p := range marks {
			infos = append(infos, bookmarkInfo{
				Name:      filesystem + "#" + short,
				GUID:      p["guid"],
				CreateTxg: p["createtxg"],
				Creation:  p["creation"],
			})
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

		return cmdutil.PrintOutput(os.Stdout, infos, len(infos) == 0, "No bookmarks found.", BookmarkList(infos))
	})
}
