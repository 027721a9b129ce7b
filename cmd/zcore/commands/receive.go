package commands

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/zcore/cmd/zcore/cmdutil"
	"github.com/marmos91/zcore/internal/logger"
	"github.com/marmos91/zcore/pkg/config"
	"github.com/marmos91/zcore/pkg/stream"
	"github.com/marmos91/zcore/pkg/zfs"
)

var (
	recvForce     bool
	recvResumable bool
	recvOrigin    string
	recvProps     []string
	recvSpool     bool
)

var receiveCmd = &cobra.Command{
	Use:   "receive <snapshot> [source]",
	Short: "Create a snapshot from a send stream",
	Long: `Create a snapshot from a send stream.

The source is a file path, an s3://bucket/key URL, or "-" for stdin
(the default).

With --spool the argument is a filesystem instead of a snapshot: the
command watches the configured spool directory and receives every
stream file dropped there into that filesystem. The snapshot name is
the stream file's base name without its .zstream extension.

Examples:
  # Receive from stdin
  zcore send tank/data@friday | zcore receive tank/copy@friday

  # Receive from a file, rolling back local changes first
  zcore receive --force tank/copy@friday /backups/friday.zstream

  # Receive from S3
  zcore receive tank/copy@friday s3://backups/tank/friday.zstream

  # Watch the spool directory and receive into tank/copy
  zcore receive --spool tank/copy`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runReceive,
}

func init() {
	receiveCmd.Flags().BoolVar(&recvForce, "force", false, "Roll back to the latest snapshot before an incremental receive")
	receiveCmd.Flags().BoolVar(&recvResumable, "resumable", false, "Preserve partial state if the transfer is interrupted")
	receiveCmd.Flags().StringVar(&recvOrigin, "origin", "", "Origin snapshot to clone from instead of the stream's origin")
	receiveCmd.Flags().StringArrayVar(&recvProps, "prop", nil, "Property to set on the received dataset (key=value, repeatable)")
	receiveCmd.Flags().BoolVar(&recvSpool, "spool", false, "Watch the spool directory and receive into the given filesystem")
}

func runReceive(cmd *cobra.Command, args []string) error {
	props, err := cmdutil.ParseProperties(recvProps)
	if err != nil {
		return err
	}
	opts := &zfs.ReceiveOptions{
		Force:      recvForce,
		Resumable:  recvResumable,
		Origin:     recvOrigin,
		Properties: props,
	}

	if recvSpool {
		if len(args) != 1 {
			return fmt.Errorf("--spool takes a filesystem argument, not a stream source")
		}
		return runReceiveSpool(args[0], opts)
	}

	snapshot := args[0]
	source := "-"
	if len(args) == 2 {
		source = args[1]
	}

	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		src, err := stream.OpenSource(ctx, source, streamOptions(cfg, rt))
		if err != nil {
			return err
		}

		rerr := rt.Client.Receive(ctx, snapshot, src.FD(), opts)
		if cerr := src.Close(); cerr != nil && rerr == nil {
			rerr = cerr
		}
		if rerr != nil {
			return rerr
		}

		logger.Info("Receive complete", "snapshot", snapshot, "source", source)
		return nil
	})
}

func runReceiveSpool(filesystem string, opts *zfs.ReceiveOptions) error {
	return cmdutil.WithRuntime(func(ctx context.Context, cfg *config.Config, rt *config.Runtime) error {
		spool := cfg.Stream.Spool
		if spool.Dir == "" {
			return fmt.Errorf("stream.spool.dir is not configured")
		}

		streamOpts := streamOptions(cfg, rt)
		handle := func(ctx context.Context, path string) error {
			snapshot := spoolSnapshotName(filesystem, path)
			src, err := stream.OpenSource(ctx, path, streamOpts)
			if err != nil {
				return err
			}
			rerr := rt.Client.Receive(ctx, snapshot, src.FD(), opts)
			if cerr := src.Close(); cerr != nil && rerr == nil {
				rerr = cerr
			}
			if rerr != nil {
				return rerr
			}
			logger.Info("Received spooled stream", "snapshot", snapshot, "path", path)
			return nil
		}

		ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		watcher := stream.NewSpoolWatcher(spool.Dir, spool.Archive, handle)
		return watcher.Run(ctx)
	})
}

// spoolSnapshotName derives the snapshot name for a spooled stream
// file: the filesystem plus the file's base name without its .zstream
// extension.
func spoolSnapshotName(filesystem, path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".zstream")
	return filesystem + "@" + name
}
