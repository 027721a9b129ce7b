package hold

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/internal/cli/timeutil"
	"github.com/marmos91/zcore/pkg/config"
)

var listCmd = &cobra.Command{
	Use:   "list <snapshot>",
	Short: "List the holds on a snapshot",
	Long: `List the holds on a snapshot with their creation times.

Examples:
  # List holds
  zcore hold list tank/data@friday

  # List as JSON
  zcore hold list tank/data@friday -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

// holdInfo is one hold row.
type holdInfo struct {
	Tag   string    `json:"tag"`
	Since time.Time `json:"since"`
}

// HoldList is a list of holds for table rendering.
type HoldList []holdInfo

// Headers implements TableRenderer.
func (hl HoldList) Headers() []string {
	return []string{"TAG", "SINCE", "AGE"}
}

// Rows implements TableRenderer.
func (hl HoldList) Rows() [][]string {
	rows := make([][]string, 0, len(hl))
	for _, h := range hl {
		rows = append(rows, []string{h.Tag, timeutil.FormatLocal(h.Since), timeutil.Age(h.Since)})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	snapshot := args[0]

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		holds, err := rt.Client.GetHolds(ctx, snapshot)
		if err != nil {
			return err
		}

		infos := make([]holdInfo, 0, len(holds))
		for tag, since := range holds {
			infos = append(infos, holdInfo{Tag: tag, Since: since})
		}
		sort.Slice(infos, func(i, j int) bool { return infos[i].Tag < infos[j].Tag })

		return cmdutil.PrintOutput(os.Stdout, infos, len(infos) == 0, "No holds found.", HoldList(infos))
	})
}
