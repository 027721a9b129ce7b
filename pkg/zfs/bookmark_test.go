package zfs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/zcore/pkg/zfs"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

func TestBookmark(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates bookmarks preserving snapshot identity", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")

		err := c.Bookmark(ctx, []zfs.BookmarkRequest{
			{Bookmark: "tank/a#b1", Source: "tank/a@s1"},
		})
		require.NoError(t, err)

		marks, err := c.GetBookmarks(ctx, "tank/a", nil)
		require.NoError(t, err)
		require.Contains(t, marks, "b1")
		assert.NotZero(t, marks["b1"]["guid"])
		assert.NotZero(t, marks["b1"]["createtxg"])
		assert.NotZero(t, marks["b1"]["creation"])
	})

	t.Run("existing bookmark voids the batch", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")
		require.NoError(t, c.Bookmark(ctx, []zfs.BookmarkRequest{
			{Bookmark: "tank/a#b1", Source: "tank/a@s1"},
		}))

		err := c.Bookmark(ctx, []zfs.BookmarkRequest{
			{Bookmark: "tank/a#b1", Source: "tank/a@s1"},
			{Bookmark: "tank/a#b2", Source: "tank/a@s1"},
		})

		assert.True(t, zerrors.IsExistsError(err))
		marks, gerr := c.GetBookmarks(ctx, "tank/a", nil)
		require.NoError(t, gerr)
		assert.NotContains(t, marks, "b2", "atomic batch must not create the clean target")
	})

	t.Run("source from another filesystem is a mismatch", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a", "tank/b")
		takeSnapshots(t, c, "tank/b@s1")

		err := c.Bookmark(ctx, []zfs.BookmarkRequest{
			{Bookmark: "tank/a#b1", Source: "tank/b@s1"},
		})

		code, ok := zerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrSnapshotMismatch, code)
	})

	t.Run("missing source snapshot", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")

		err := c.Bookmark(ctx, []zfs.BookmarkRequest{
			{Bookmark: "tank/a#b1", Source: "tank/a@ghost"},
		})

		assert.True(t, zerrors.IsNotFoundError(err))
	})

	t.Run("same request twice collapses", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")

		err := c.Bookmark(ctx, []zfs.BookmarkRequest{
			{Bookmark: "tank/a#b1", Source: "tank/a@s1"},
			{Bookmark: "tank/a#b1", Source: "tank/a@s1"},
		})

		assert.NoError(t, err)
	})

	t.Run("conflicting sources fail before the call", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)

		err := c.Bookmark(ctx, []zfs.BookmarkRequest{
			{Bookmark: "tank/a#b1", Source: "tank/a@s1"},
			{Bookmark: "tank/a#b1", Source: "tank/a@s2"},
		})

		var zerr *zerrors.Error
		require.ErrorAs(t, err, &zerr)
		assert.Equal(t, zerrors.ErrNameInvalid, zerr.Code)
		assert.Zero(t, zerr.Errno)
	})
}

func TestDestroyBookmarks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("absent bookmarks are soft misses", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")
		require.NoError(t, c.Bookmark(ctx, []zfs.BookmarkRequest{
			{Bookmark: "tank/a#b1", Source: "tank/a@s1"},
		}))

		misses, err := c.DestroyBookmarks(ctx, []string{"tank/a#b1", "tank/a#ghost"})

		require.NoError(t, err)
		assert.Equal(t, []string{"tank/a#ghost"}, misses)

		marks, err := c.GetBookmarks(ctx, "tank/a", nil)
		require.NoError(t, err)
		assert.NotContains(t, marks, "b1")
	})

	t.Run("destroying only absent bookmarks succeeds", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")

		misses, err := c.DestroyBookmarks(ctx, []string{"tank/a#b1"})

		require.NoError(t, err)
		assert.Equal(t, []string{"tank/a#b1"}, misses)
	})
}

func TestGetBookmarks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("requested properties filter the reply", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")
		takeSnapshots(t, c, "tank/a@s1")
		require.NoError(t, c.Bookmark(ctx, []zfs.BookmarkRequest{
			{Bookmark: "tank/a#b1", Source: "tank/a@s1"},
		}))

		marks, err := c.GetBookmarks(ctx, "tank/a", []string{"guid"})

		require.NoError(t, err)
		require.Contains(t, marks, "b1")
		assert.Len(t, marks["b1"], 1)
		assert.NotZero(t, marks["b1"]["guid"])
	})

	t.Run("no bookmarks yields an empty map", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)
		createFS(t, c, "tank/a")

		marks, err := c.GetBookmarks(ctx, "tank/a", nil)

		require.NoError(t, err)
		assert.Empty(t, marks)
	})

	t.Run("missing filesystem", func(t *testing.T) {
		t.Parallel()
		c, _ := newTestClient(t)

		_, err := c.GetBookmarks(ctx, "tank/ghost", nil)

		assert.True(t, zerrors.IsNotFoundError(err))
	})
}
