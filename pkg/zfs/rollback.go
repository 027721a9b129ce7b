package zfs

import (
	"context"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// Rollback discards every change made to the filesystem since its most
// recent snapshot and returns that snapshot's name. A filesystem with
// no snapshots cannot be rolled back.
func (c *Client) Rollback(ctx context.Context, fs string) (string, error) {
	if err := validateName(engine.OpRollback, fs, flavorFilesystem); err != nil {
		return "", err
	}

	set := NewTargetSet(fs)
	var target string
	_, err := c.run(ctx, engine.OpRollback, set, func(ctx context.Context) ([]string, error) {
		status, reply, cerr := c.callOutput(ctx, engine.OpRollback, fs, nil, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		if status != 0 {
			return nil, classifySingle(engine.OpRollback, fs, status, rollbackKind)
		}
		if reply == nil {
			return nil, zerrors.NewInternalError(string(engine.OpRollback), "reply carries no rollback target", nil)
		}
		name, ok := reply.String("target")
		if !ok {
			return nil, zerrors.NewInternalError(string(engine.OpRollback), "reply carries no rollback target", nil)
		}
		target = name
		return nil, nil
	})
	if err != nil {
		return "", err
	}
	return target, nil
}

// RollbackTo discards every change made to the filesystem since the
// named snapshot, which must be its most recent one. A newer snapshot
// blocks the rollback; destroy it first or use Rollback.
func (c *Client) RollbackTo(ctx context.Context, fs, snapshot string) error {
	if err := validateName(engine.OpRollbackTo, fs, flavorFilesystem); err != nil {
		return err
	}
	if err := validateName(engine.OpRollbackTo, snapshot, flavorSnapshot); err != nil {
		return err
	}
	if sfs, _, _ := SplitSnapshot(snapshot); sfs != fs {
		return zerrors.NewNameInvalidError(string(engine.OpRollbackTo), snapshot,
			fmt.Sprintf("snapshot does not belong to %q", fs))
	}

	input := nvlist.New()
	_ = input.AddString("target", snapshot)

	set := NewTargetSet(fs)
	_, err := c.run(ctx, engine.OpRollbackTo, set, func(ctx context.Context) ([]string, error) {
		status, cerr := c.call(ctx, engine.OpRollbackTo, fs, input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		if status == unix.EEXIST {
			// A snapshot newer than the requested target exists.
			return nil, zerrors.New(zerrors.ErrSnapshotMismatch, string(engine.OpRollbackTo), snapshot, status)
		}
		return nil, classifySingle(engine.OpRollbackTo, fs, status, rollbackKind)
	})
	return err
}

func rollbackKind(errno unix.Errno) (zerrors.Code, bool) {
	switch errno {
	case unix.ENOENT:
		return zerrors.ErrDatasetNotFound, true
	case unix.ESRCH:
		// No snapshot to roll back to.
		return zerrors.ErrDatasetNotFound, true
	case unix.EBUSY:
		return zerrors.ErrDatasetBusy, true
	case unix.EINVAL:
		return zerrors.ErrNameInvalid, true
	}
	return 0, false
}
