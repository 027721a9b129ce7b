package zfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

type errpair struct {
	name  string
	errno unix.Errno
}

// errmap builds the engine's error map shape: target names keyed to
// int32 statuses, in the given order.
func errmap(t *testing.T, pairs ...errpair) *nvlist.List {
	t.Helper()
	l := nvlist.New()
	for _, p := range pairs {
		require.NoError(t, l.AddInt32(p.name, int32(p.errno)))
	}
	return l
}

func TestClassifyBatchSuccess(t *testing.T) {
	t.Parallel()

	t.Run("clean success", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1")

		misses, err := classifyBatch(engine.OpSnapshot, 0, nil, snapshotProfile(set))

		require.NoError(t, err)
		assert.Empty(t, misses)
	})

	t.Run("empty error map counts as clean", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1")

		misses, err := classifyBatch(engine.OpSnapshot, 0, nvlist.New(), snapshotProfile(set))

		require.NoError(t, err)
		assert.Empty(t, misses)
	})

	t.Run("soft misses come back in engine order", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1", "tank/b@s1", "tank/c@s1")
		errlist := errmap(t,
			errpair{"tank/c@s1", unix.ENOENT},
			errpair{"tank/a@s1", unix.ENOENT},
		)

		misses, err := classifyBatch(engine.OpDestroySnapshots, 0, errlist, destroySnapshotsProfile(set))

		require.NoError(t, err)
		assert.Equal(t, []string{"tank/c@s1", "tank/a@s1"}, misses)
	})

	t.Run("non-missing status under success is an internal fault", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1")
		errlist := errmap(t, errpair{"tank/a@s1", unix.EBUSY})

		_, err := classifyBatch(engine.OpDestroySnapshots, 0, errlist, destroySnapshotsProfile(set))

		code, ok := zerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrInternal, code)
	})

	t.Run("entries on an operation without a miss convention are an internal fault", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1")
		errlist := errmap(t, errpair{"tank/a@s1", unix.ENOENT})

		_, err := classifyBatch(engine.OpSnapshot, 0, errlist, snapshotProfile(set))

		code, ok := zerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrInternal, code)
	})
}

func TestClassifyBatchCallGlobalFault(t *testing.T) {
	t.Parallel()

	t.Run("single target is attributed", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1")

		_, err := classifyBatch(engine.OpSnapshot, unix.EEXIST, nil, snapshotProfile(set))

		var zerr *zerrors.Error
		require.ErrorAs(t, err, &zerr)
		assert.Equal(t, zerrors.ErrDatasetExists, zerr.Code)
		assert.Equal(t, "tank/a@s1", zerr.Target)
		assert.Equal(t, unix.EEXIST, zerr.Errno)
	})

	t.Run("several targets stay unattributed", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1", "tank/b@s1")

		_, err := classifyBatch(engine.OpSnapshot, unix.ENOENT, nil, snapshotProfile(set))

		var zerr *zerrors.Error
		require.ErrorAs(t, err, &zerr)
		assert.Equal(t, zerrors.ErrDatasetNotFound, zerr.Code)
		assert.Equal(t, "", zerr.Target)
	})

	t.Run("restriction status depends on the submitted pools", func(t *testing.T) {
		t.Parallel()

		onePool := NewTargetSet("tank/a@s1", "tank/a@s2")
		_, err := classifyBatch(engine.OpSnapshot, unix.EXDEV, nil, snapshotProfile(onePool))
		code, ok := zerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrMultipleTargets, code)

		twoPools := NewTargetSet("tank/a@s1", "dozer/b@s1")
		_, err = classifyBatch(engine.OpSnapshot, unix.EXDEV, nil, snapshotProfile(twoPools))
		code, ok = zerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrPoolsDiffer, code)
	})
}

func TestClassifyBatchCompoundFault(t *testing.T) {
	t.Parallel()

	t.Run("one fault per entry, sorted by target", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1", "tank/b@s1")
		errlist := errmap(t,
			errpair{"tank/b@s1", unix.EEXIST},
			errpair{"tank/a@s1", unix.ENOENT},
		)

		_, err := classifyBatch(engine.OpSnapshot, unix.EEXIST, errlist, snapshotProfile(set))

		batch, ok := zerrors.AsBatch(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrDatasetExists, batch.Code)
		assert.Equal(t, unix.EEXIST, batch.Errno)
		require.Len(t, batch.Faults, 2)
		assert.Equal(t, "tank/a@s1", batch.Faults[0].Target)
		assert.Equal(t, zerrors.ErrDatasetNotFound, batch.Faults[0].Code)
		assert.Equal(t, unix.ENOENT, batch.Faults[0].Errno)
		assert.Equal(t, "tank/b@s1", batch.Faults[1].Target)
		assert.Equal(t, zerrors.ErrDatasetExists, batch.Faults[1].Code)
	})

	t.Run("lone unknown entry borrows the call-level kind", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1")
		errlist := errmap(t, errpair{"tank/a@s1", unix.EIO})

		_, err := classifyBatch(engine.OpSnapshot, unix.EEXIST, errlist, snapshotProfile(set))

		batch, ok := zerrors.AsBatch(err)
		require.True(t, ok)
		require.Len(t, batch.Faults, 1)
		assert.Equal(t, zerrors.ErrDatasetExists, batch.Faults[0].Code)
		assert.Equal(t, unix.EIO, batch.Faults[0].Errno)
	})

	t.Run("several unknown entries stay unclassified", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1", "tank/b@s1")
		errlist := errmap(t,
			errpair{"tank/a@s1", unix.EIO},
			errpair{"tank/b@s1", unix.EIO},
		)

		_, err := classifyBatch(engine.OpSnapshot, unix.EIO, errlist, snapshotProfile(set))

		batch, ok := zerrors.AsBatch(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrUnclassified, batch.Code)
		for _, f := range batch.Faults {
			assert.Equal(t, zerrors.ErrUnclassified, f.Code)
		}
	})

	t.Run("shared per-target kind names the compound fault", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1", "tank/b@s1")
		errlist := errmap(t,
			errpair{"tank/a@s1", unix.EEXIST},
			errpair{"tank/b@s1", unix.EEXIST},
		)

		_, err := classifyBatch(engine.OpSnapshot, unix.EIO, errlist, snapshotProfile(set))

		batch, ok := zerrors.AsBatch(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrDatasetExists, batch.Code)
	})

	t.Run("mixed per-target kinds fall back to unclassified", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1", "tank/b@s1")
		errlist := errmap(t,
			errpair{"tank/a@s1", unix.EEXIST},
			errpair{"tank/b@s1", unix.ENOENT},
		)

		_, err := classifyBatch(engine.OpSnapshot, unix.EIO, errlist, snapshotProfile(set))

		batch, ok := zerrors.AsBatch(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrUnclassified, batch.Code)
	})
}

func TestClassifyBatchBrokenErrorMap(t *testing.T) {
	t.Parallel()

	t.Run("non-integer entry", func(t *testing.T) {
		t.Parallel()
		l := nvlist.New()
		require.NoError(t, l.AddString("tank/a@s1", "boom"))
		set := NewTargetSet("tank/a@s1")

		_, err := classifyBatch(engine.OpSnapshot, unix.EEXIST, l, snapshotProfile(set))

		code, ok := zerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrInternal, code)
		assert.Contains(t, err.Error(), "want int32")
	})

	t.Run("non-positive status", func(t *testing.T) {
		t.Parallel()
		set := NewTargetSet("tank/a@s1")
		errlist := errmap(t, errpair{"tank/a@s1", 0})

		_, err := classifyBatch(engine.OpSnapshot, unix.EEXIST, errlist, snapshotProfile(set))

		code, ok := zerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrInternal, code)
	})
}

func TestClassifySingle(t *testing.T) {
	t.Parallel()

	t.Run("success maps to nil", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, classifySingle(engine.OpGetHolds, "tank/a@s1", 0, notFoundKind))
	})

	t.Run("operation table applies first", func(t *testing.T) {
		t.Parallel()
		err := classifySingle(engine.OpGetHolds, "tank/a@s1", unix.ENOENT, notFoundKind)

		var zerr *zerrors.Error
		require.ErrorAs(t, err, &zerr)
		assert.Equal(t, zerrors.ErrDatasetNotFound, zerr.Code)
		assert.Equal(t, "tank/a@s1", zerr.Target)
		assert.Equal(t, unix.ENOENT, zerr.Errno)
	})

	t.Run("base table backs up the operation table", func(t *testing.T) {
		t.Parallel()
		err := classifySingle(engine.OpGetHolds, "tank/a@s1", unix.ENOSPC, notFoundKind)

		code, ok := zerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrNoSpace, code)
	})

	t.Run("base table alone when no table is given", func(t *testing.T) {
		t.Parallel()
		err := classifySingle(engine.OpSync, "tank", unix.ENOTSUP, nil)

		code, ok := zerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrNotSupported, code)
	})

	t.Run("unknown status stays unclassified", func(t *testing.T) {
		t.Parallel()
		err := classifySingle(engine.OpSync, "tank", unix.ESTALE, nil)

		code, ok := zerrors.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, zerrors.ErrUnclassified, code)
	})
}
