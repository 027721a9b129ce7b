package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/pkg/config"
)

var (
	pruneOlderThan time.Duration
	pruneForce     bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old journal entries",
	Long: `Delete journal entries older than the given age.

You will be prompted for confirmation unless --force is specified.

Examples:
  # Drop entries older than thirty days
  zcore journal prune --older-than 720h

  # Drop entries older than a week, without confirmation
  zcore journal prune --older-than 168h --force`,
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 0, "Age above which entries are deleted (e.g. 720h)")
	pruneCmd.Flags().BoolVarP(&pruneForce, "force", "f", false, "Skip confirmation prompt")
	_ = pruneCmd.MarkFlagRequired("older-than")
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneOlderThan <= 0 {
		return fmt.Errorf("--older-than must be a positive duration")
	}

	label := fmt.Sprintf("Delete journal entries older than %s", pruneOlderThan)
	confirmed, err := cmdutil.ConfirmDestroy(label, pruneForce)
	if err != nil || !confirmed {
		return err
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		if rt.Journal == nil {
			return fmt.Errorf("journal is disabled in the configuration")
		}

		before := time.Now().Add(-pruneOlderThan)
		pruned, err := rt.Journal.Prune(ctx, before)
		if err != nil {
			return err
		}
		cmdutil.PrintSuccess(fmt.Sprintf("%d journal entries pruned", pruned))
		return nil
	})
}
