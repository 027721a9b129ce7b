package journal

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/internal/cli/timeutil"
	"github.com/marmos91/zcore/pkg/config"
	"github.com/marmos91/zcore/pkg/journal"
)

var (
	listOp      string
	listOutcome string
	listTarget  string
	listSince   time.Duration
	listLimit   int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List journal entries",
	Long: `List journal entries, newest first.

Examples:
  # Show the most recent operations
  zcore journal list

  # Show only snapshot creations
  zcore journal list --op snapshot

  # Show faults from the last day
  zcore journal list --outcome fault --since 24h

  # Show everything that touched one snapshot
  zcore journal list --target tank/data@friday`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listOp, "op", "", "Keep only entries for one operation")
	listCmd.Flags().StringVar(&listOutcome, "outcome", "", "Keep only entries with one outcome (success|soft_misses|fault)")
	listCmd.Flags().StringVar(&listTarget, "target", "", "Keep only entries naming this target")
	listCmd.Flags().DurationVar(&listSince, "since", 0, "Keep only entries newer than this age (e.g. 24h)")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum entries to return (0 for all)")
}

// EntryList is a list of journal entries for table rendering.
type EntryList []*journal.Entry

// Headers implements TableRenderer.
func (el EntryList) Headers() []string {
	return []string{"CREATED", "OP", "OUTCOME", "TARGETS", "FAULT", "ERRNO", "DURATION"}
}

// Rows implements TableRenderer.
func (el EntryList) Rows() [][]string {
	rows := make([][]string, 0, len(el))
	for _, e := range el {
		targets := cmdutil.EmptyOr(strings.Join(e.ParsedTargets, ","), "-")
		errno := "-"
		if e.Errno != 0 {
			errno = fmt.Sprintf("%d", e.Errno)
		}
		rows = append(rows, []string{
			timeutil.FormatLocal(e.CreatedAt),
			e.Op,
			e.Outcome,
			targets,
			cmdutil.EmptyOr(e.FaultKind, "-"),
			errno,
			e.Duration.Round(time.Microsecond).String(),
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	filter := journal.Filter{
		Op:      listOp,
		Outcome: listOutcome,
		Target:  listTarget,
		Limit:   listLimit,
	}
	if listSince > 0 {
		filter.Since = time.Now().Add(-listSince)
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		if rt.Journal == nil {
			return fmt.Errorf("journal is disabled in the configuration")
		}

		entries, err := rt.Journal.List(ctx, filter)
		if err != nil {
			return err
		}
		return cmdutil.PrintOutput(os.Stdout, entries, len(entries) == 0, "No journal entries found.", EntryList(entries))
	})
}
