package zfs_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// staleFD is far beyond any descriptor limit, so it is never open.
const staleFD = 1 << 30

func TestHold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("places holds and reports missing snapshots as soft misses", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")

		misses, err := c.Hold(ctx, []zfs.HoldRequest{
			{Snapshot: "tank/a@s1", Tag: "keep"},
			{Snapshot: "tank/a@ghost", Tag: "keep"},
		}, engine.NoFD)

		require.NoError(t, err)
		assert.Equal(t, []string{"tank/a@ghost"}, misses)

		holds, err := c.GetHolds(ctx, "tank/a@s1")
		require.NoError(t, err)
		require.Contains(t, holds, "keep")
		assert.WithinDuration(t, time.Now(), holds["keep"], time.Minute)
	})

	t.Run("existing tag voids the batch", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")
		_, err := c.Hold(ctx, []zfs.HoldRequest{{Snapshot: "tank/a@s1", Tag: "keep"}}, engine.NoFD)
		require.NoError(t, err)

		_, err = c.Hold(ctx, []zfs.HoldRequest{{Snapshot: "tank/a@s1", Tag: "keep"}}, engine.NoFD)

		assert.True(t, zerrors.IsExistsError(err))
		batch, ok := zerrors.AsBatch(err)
		require.True(t, ok)
		require.Len(t, batch.Faults, 1)
		assert.Equal(t, "tank/a@s1", batch.Faults[0].Target)
	})

	t.Run("same pair twice collapses to one hold", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")

		misses, err := c.Hold(ctx, []zfs.HoldRequest{
			{Snapshot: "tank/a@s1", Tag: "keep"},
			{Snapshot: "tank/a@s1", Tag: "keep"},
		}, engine.NoFD)

		require.NoError(t, err)
		assert.Empty(t, misses)
	})

	t.Run("two tags for one snapshot in one batch fail before the call", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)

		_, err := c.Hold(ctx, []zfs.HoldRequest{
			{Snapshot: "tank/a@s1", Tag: "keep"},
			{Snapshot: "tank/a@s1", Tag: "also-keep"},
		}, engine.NoFD)

		var zerr *zerrors.Error
		require.ErrorAs(t, err, &zerr)
		assert.Equal(t, zerrors.ErrNameInvalid, zerr.Code)
		assert.Zero(t, zerr.Errno)
	})

	t.Run("unusable cleanup descriptor fails the batch", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")

		_, err := c.Hold(ctx, []zfs.HoldRequest{{Snapshot: "tank/a@s1", Tag: "keep"}}, staleFD)

		var zerr *zerrors.Error
		require.ErrorAs(t, err, &zerr)
		assert.Equal(t, zerrors.ErrBadFileDescriptor, zerr.Code)
		assert.Equal(t, unix.EBADF, zerr.Errno)

		holds, gerr := c.GetHolds(ctx, "tank/a@s1")
		require.NoError(t, gerr)
		assert.Empty(t, holds)
	})

	t.Run("holds bound to a descriptor go away when it closes", func(t *testing.T) {
		t.Parallel()
		c, eng := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")

		fd, err := unix.Open("/dev/null", unix.O_RDONLY, 0)
		require.NoError(t, err)
		t.Cleanup(func() { _ = unix.Close(fd) })

		_, err = c.Hold(ctx, []zfs.HoldRequest{{Snapshot: "tank/a@s1", Tag: "job"}}, fd)
		require.NoError(t, err)

		require.NoError(t, eng.CloseCleanupFD(fd))

		holds, err := c.GetHolds(ctx, "tank/a@s1")
		require.NoError(t, err)
		assert.Empty(t, holds)
	})
}

func TestRelease(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing tag is a soft miss and present tags still come off", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/p")
		takeSnapshots(t, c, "tank/p@s1")
		_, err := c.Hold(ctx, []zfs.HoldRequest{{Snapshot: "tank/p@s1", Tag: "tag1"}}, engine.NoFD)
		require.NoError(t, err)

		misses, err := c.Release(ctx, []zfs.ReleaseRequest{
			{Snapshot: "tank/p@s1", Tags: []string{"tag1", "missing-tag"}},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"tank/p@s1#missing-tag"}, misses)

		holds, err := c.GetHolds(ctx, "tank/p@s1")
		require.NoError(t, err)
		assert.Empty(t, holds, "the present tag must be released despite the miss")
	})

	t.Run("missing snapshot is a soft miss under its own name", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/p")

		misses, err := c.Release(ctx, []zfs.ReleaseRequest{
			{Snapshot: "tank/p@ghost", Tags: []string{"tag1"}},
		})

		require.NoError(t, err)
		assert.Equal(t, []string{"tank/p@ghost"}, misses)
	})

	t.Run("requests for one snapshot merge before the call", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/p")
		takeSnapshots(t, c, "tank/p@s1")
		_, err := c.Hold(ctx, []zfs.HoldRequest{{Snapshot: "tank/p@s1", Tag: "tag1"}}, engine.NoFD)
		require.NoError(t, err)
		_, err = c.Hold(ctx, []zfs.HoldRequest{{Snapshot: "tank/p@s1", Tag: "tag2"}}, engine.NoFD)
		require.NoError(t, err)

		misses, err := c.Release(ctx, []zfs.ReleaseRequest{
			{Snapshot: "tank/p@s1", Tags: []string{"tag1"}},
			{Snapshot: "tank/p@s1", Tags: []string{"tag2"}},
		})

		require.NoError(t, err)
		assert.Empty(t, misses)

		holds, err := c.GetHolds(ctx, "tank/p@s1")
		require.NoError(t, err)
		assert.Empty(t, holds)
	})

	t.Run("request without tags fails before the call", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)

		_, err := c.Release(ctx, []zfs.ReleaseRequest{{Snapshot: "tank/p@s1"}})

		var zerr *zerrors.Error
		require.ErrorAs(t, err, &zerr)
		assert.Equal(t, zerrors.ErrNameInvalid, zerr.Code)
		assert.Zero(t, zerr.Errno)
	})
}

func TestGetHolds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("empty for an unheld snapshot", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")

		holds, err := c.GetHolds(ctx, "tank/a@s1")

		require.NoError(t, err)
		assert.Empty(t, holds)
	})

	t.Run("missing snapshot", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")

		_, err := c.GetHolds(ctx, "tank/a@ghost")

		assert.True(t, zerrors.IsNotFoundError(err))
	})
}
