package zfs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/zcore/pkg/zfs"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// sendToFile stages a replication stream in a temp file and returns its
// path. Streams go through files because the engine may produce them
// synchronously on the calling goroutine.
func sendToFile(t *testing.T, c *zfs.Client, snap string, opts *zfs.SendOptions) string {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "stream"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, c.Send(context.Background(), snap, int(f.Fd()), opts))
	return f.Name()
}

func recvFromFile(t *testing.T, c *zfs.Client, snap, path string, opts *zfs.ReceiveOptions) error {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	return c.Receive(context.Background(), snap, int(f.Fd()), opts)
}

func TestSend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("writes a stream to the descriptor", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")

		path := sendToFile(t, c, "tank/a@s1", nil)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	})

	t.Run("negative descriptor fails before the call", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)

		err := c.Send(ctx, "tank/a@s1", -1, nil)

		var zerr *zerrors.Error
		require.ErrorAs(t, err, &zerr)
		assert.Equal(t, zerrors.ErrBadFileDescriptor, zerr.Code)
		assert.Zero(t, zerr.Errno)
	})

	t.Run("missing snapshot", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")

		f, err := os.Create(filepath.Join(t.TempDir(), "stream"))
		require.NoError(t, err)
		defer f.Close()

		err = c.Send(ctx, "tank/a@ghost", int(f.Fd()), nil)

		assert.True(t, zerrors.IsNotFoundError(err))
	})

	t.Run("source newer than the sent snapshot", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1", "tank/a@s2")

		f, err := os.Create(filepath.Join(t.TempDir(), "stream"))
		require.NoError(t, err)
		defer f.Close()

		err = c.Send(ctx, "tank/a@s1", int(f.Fd()), &zfs.SendOptions{From: "tank/a@s2"})

		code, ok := zerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrSnapshotMismatch, code)
	})

	t.Run("unqualified source fails before the call", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)

		f, err := os.Create(filepath.Join(t.TempDir(), "stream"))
		require.NoError(t, err)
		defer f.Close()

		err = c.Send(ctx, "tank/a@s2", int(f.Fd()), &zfs.SendOptions{From: "s1"})

		var zerr *zerrors.Error
		require.ErrorAs(t, err, &zerr)
		assert.Equal(t, zerrors.ErrNameInvalid, zerr.Code)
		assert.Zero(t, zerr.Errno)
	})
}

func TestSendSpace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("incremental estimates are smaller than full ones", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1", "tank/a@s2")

		full, err := c.SendSpace(ctx, "tank/a@s2", nil)
		require.NoError(t, err)
		incr, err := c.SendSpace(ctx, "tank/a@s2", &zfs.SendOptions{From: "tank/a@s1"})
		require.NoError(t, err)

		assert.Positive(t, incr)
		assert.Greater(t, full, incr)
	})

	t.Run("bookmarks estimate like the snapshot they preserve", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1", "tank/a@s2")
		require.NoError(t, c.Bookmark(ctx, []zfs.BookmarkRequest{
			{Bookmark: "tank/a#b1", Source: "tank/a@s1"},
		}))

		fromSnap, err := c.SendSpace(ctx, "tank/a@s2", &zfs.SendOptions{From: "tank/a@s1"})
		require.NoError(t, err)
		fromMark, err := c.SendSpace(ctx, "tank/a@s2", &zfs.SendOptions{From: "tank/a#b1"})
		require.NoError(t, err)

		assert.Equal(t, fromSnap, fromMark)
	})

	t.Run("missing source", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")

		_, err := c.SendSpace(ctx, "tank/a@s1", &zfs.SendOptions{From: "tank/a@ghost"})

		assert.True(t, zerrors.IsNotFoundError(err))
	})
}

func TestSnapshotRangeSpace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("wider ranges reclaim more", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1", "tank/a@s2", "tank/a@s3")

		wide, err := c.SnapshotRangeSpace(ctx, "tank/a@s1", "tank/a@s3")
		require.NoError(t, err)
		narrow, err := c.SnapshotRangeSpace(ctx, "tank/a@s2", "tank/a@s3")
		require.NoError(t, err)

		assert.Positive(t, narrow)
		assert.Greater(t, wide, narrow)
	})

	t.Run("range of one snapshot", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")

		used, err := c.SnapshotRangeSpace(ctx, "tank/a@s1", "tank/a@s1")

		require.NoError(t, err)
		assert.Positive(t, used)
	})

	t.Run("snapshots of different filesystems fail before the call", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)

		_, err := c.SnapshotRangeSpace(ctx, "tank/a@s1", "tank/b@s2")

		var zerr *zerrors.Error
		require.ErrorAs(t, err, &zerr)
		assert.Equal(t, zerrors.ErrNameInvalid, zerr.Code)
		assert.Zero(t, zerr.Errno)
	})

	t.Run("reversed range", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1", "tank/a@s2")

		_, err := c.SnapshotRangeSpace(ctx, "tank/a@s2", "tank/a@s1")

		code, ok := zerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrNameInvalid, code)
	})
}
