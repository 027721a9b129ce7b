package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/internal/bytesize"
	"github.com/marmos91/zcore/internal/logger"
	"github.com/marmos91/zcore/pkg/config"
	"github.com/marmos91/zcore/pkg/stream"
	"github.com/marmos91/zcore/pkg/zfs"
)

var (
	sendFrom        string
	sendLargeBlocks bool
	sendEmbedded    bool
	sendCompressed  bool
	sendDryRun      bool
)

var sendCmd = &cobra.Command{
	Use:   "send <snapshot> [target]",
	Short: "Generate a send stream from a snapshot",
	Long: `Generate a send stream from a snapshot.

The target is a file path, an s3://bucket/key URL, or "-" for stdout
(the default). Incremental streams against an earlier snapshot or a
bookmark are requested with --from.

Examples:
  # Full stream to stdout, piped into a receive
  zcore send tank/data@friday | zcore receive tank/copy@friday

  # Full stream to a file
  zcore send tank/data@friday /backups/friday.zstream

  # Incremental stream to S3
  zcore send -i tank/data@thursday tank/data@friday s3://backups/tank/friday.zstream

  # Estimate the stream size without sending
  zcore send --dry-run tank/data@friday`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendFrom, "from", "i", "", "Incremental source snapshot or bookmark")
	sendCmd.Flags().BoolVar(&sendLargeBlocks, "large-blocks", false, "Permit blocks larger than 128 KiB in the stream")
	sendCmd.Flags().BoolVar(&sendEmbedded, "embedded", false, "Embed small blocks directly in the stream")
	sendCmd.Flags().BoolVar(&sendCompressed, "compressed", false, "Send compressed blocks as stored on disk")
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "Estimate the stream size instead of sending")
}

func runSend(cmd *cobra.Command, args []string) error {
	snapshot := args[0]
	target := "-"
	if len(args) == 2 {
		target = args[1]
	}

	opts := &zfs.SendOptions{
		From:         sendFrom,
		LargeBlocks:  sendLargeBlocks,
		EmbeddedData: sendEmbedded,
		Compressed:   sendCompressed,
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		if sendDryRun {
			space, err := rt.Client.SendSpace(ctx, snapshot, opts)
			if err != nil {
				return err
			}
			fmt.Printf("Estimated stream size: %s (%d bytes)\n", bytesize.ByteSize(space), space)
			return nil
		}

		sink, err := stream.OpenSink(ctx, target, streamOptions(cfg, rt))
		if err != nil {
			return err
		}

		if err := rt.Client.Send(ctx, snapshot, sink.FD(), opts); err != nil {
			if aerr := sink.Abort(); aerr != nil {
				logger.Warn("Failed to abort stream sink", "target", target, "error", aerr)
			}
			return err
		}
		if err := sink.Commit(ctx); err != nil {
			return err
		}

		logger.Info("Send stream complete", "snapshot", snapshot, "target", target)
		return nil
	})
}

// streamOptions maps the stream section of the configuration onto the
// sink and source settings.
func streamOptions(cfg *config.Config, rt *config.Runtime) stream.Options {
	s3 := cfg.Stream.S3
	return stream.Options{
		S3: &stream.S3Config{
			Region:          s3.Region,
			Endpoint:        s3.Endpoint,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			ForcePathStyle:  s3.ForcePathStyle,
			PartSize:        uint64(s3.PartSize),
		},
		Metrics: rt.Metrics,
	}
}
