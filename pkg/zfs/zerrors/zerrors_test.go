package zerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestCodeString(t *testing.T) {
	assert.Equal(t, "DatasetExists", ErrDatasetExists.String())
	assert.Equal(t, "StreamCorrupt", ErrStreamCorrupt.String())
	assert.Equal(t, "Unknown(999)", Code(999).String())
}

func TestErrorFormatting(t *testing.T) {
	t.Run("WithTargetAndOp", func(t *testing.T) {
		err := New(ErrDatasetExists, "snapshot", "p@s1", unix.EEXIST)
		assert.Equal(t, "DatasetExists: dataset already exists (target: p@s1) (op: snapshot)", err.Error())
	})

	t.Run("LocalFaultWithoutTarget", func(t *testing.T) {
		err := NewInitializationFailedError(errors.New("open /dev/zfs: no such file"))
		assert.Equal(t, "InitializationFailed: engine handle initialization failed: open /dev/zfs: no such file", err.Error())
		assert.Zero(t, err.Errno)
	})
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("truncated buffer")
	err := NewInternalError("get_holds", "undecodable reply", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "undecodable reply: truncated buffer")
}

func TestBatchError(t *testing.T) {
	t.Run("SortsFaultsByTarget", func(t *testing.T) {
		batch := NewBatchError(ErrDatasetExists, "snapshot", unix.EEXIST, []*Error{
			New(ErrDatasetExists, "snapshot", "p@zz", unix.EEXIST),
			New(ErrDatasetExists, "snapshot", "p@aa", unix.EEXIST),
		})
		assert.Equal(t, []string{"p@aa", "p@zz"}, batch.Targets())
	})

	t.Run("MessageForSingleFault", func(t *testing.T) {
		batch := NewBatchError(ErrDatasetExists, "snapshot", unix.EEXIST, []*Error{
			New(ErrDatasetExists, "snapshot", "p@s1", unix.EEXIST),
		})
		assert.Equal(t, "DatasetExists: snapshot failed: DatasetExists: dataset already exists (target: p@s1) (op: snapshot)", batch.Error())
	})

	t.Run("MessageForMultipleFaults", func(t *testing.T) {
		batch := NewBatchError(ErrUnclassified, "destroy_snapshots", unix.EIO, []*Error{
			New(ErrDatasetBusy, "destroy_snapshots", "p@a", unix.EBUSY),
			New(ErrUnclassified, "destroy_snapshots", "p@b", unix.EIO),
		})
		assert.Equal(t, "Unclassified: destroy_snapshots failed for 2 targets", batch.Error())
	})

	t.Run("MessageWithoutFaults", func(t *testing.T) {
		batch := NewBatchError(ErrNoSpace, "hold", unix.ENOSPC, nil)
		assert.Equal(t, "NoSpace: hold failed", batch.Error())
	})
}

func TestCodeOf(t *testing.T) {
	t.Run("SingleFault", func(t *testing.T) {
		code, ok := CodeOf(New(ErrDatasetBusy, "destroy", "p/fs", unix.EBUSY))
		require.True(t, ok)
		assert.Equal(t, ErrDatasetBusy, code)
	})

	t.Run("CompoundFault", func(t *testing.T) {
		code, ok := CodeOf(NewBatchError(ErrPoolsDiffer, "snapshot", unix.EXDEV, nil))
		require.True(t, ok)
		assert.Equal(t, ErrPoolsDiffer, code)
	})

	t.Run("LooksThroughWrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("snapshot pipeline: %w", New(ErrDatasetNotFound, "snapshot", "p/fs", unix.ENOENT))
		code, ok := CodeOf(wrapped)
		require.True(t, ok)
		assert.Equal(t, ErrDatasetNotFound, code)
		assert.True(t, IsNotFoundError(wrapped))
	})

	t.Run("ForeignError", func(t *testing.T) {
		_, ok := CodeOf(errors.New("plain"))
		assert.False(t, ok)
		assert.False(t, IsNotFoundError(errors.New("plain")))
	})
}

func TestAsBatch(t *testing.T) {
	batch := NewBatchError(ErrDatasetExists, "bookmark", unix.EEXIST, []*Error{
		New(ErrDatasetExists, "bookmark", "p#b1", unix.EEXIST),
	})
	wrapped := fmt.Errorf("bookmark pipeline: %w", batch)

	got, ok := AsBatch(wrapped)
	require.True(t, ok)
	assert.Same(t, batch, got)

	_, ok = AsBatch(New(ErrDatasetExists, "bookmark", "p#b1", unix.EEXIST))
	assert.False(t, ok)
}
