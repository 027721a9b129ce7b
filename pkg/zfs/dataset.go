package zfs

import (
	"context"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// DatasetType selects what Create makes. The values follow the
// engine's object-set numbering.
type DatasetType int32

const (
	// DatasetFilesystem is a mountable filesystem dataset.
	DatasetFilesystem DatasetType = 2

	// DatasetVolume is a block volume dataset. Volumes require a
	// "volsize" property at creation.
	DatasetVolume DatasetType = 3
)

// CreateOptions adjusts dataset creation.
type CreateOptions struct {
	// Type selects filesystem or volume. The zero value means
	// filesystem.
	Type DatasetType

	// Properties are applied at creation time.
	Properties map[string]any
}

// Create makes a new filesystem or volume. The parent dataset must
// already exist.
func (c *Client) Create(ctx context.Context, name string, opts *CreateOptions) error {
	if err := validateName(engine.OpCreate, name, flavorFilesystem); err != nil {
		return err
	}

	typ := DatasetFilesystem
	var userProps map[string]any
	if opts != nil {
		if opts.Type != 0 {
			typ = opts.Type
		}
		userProps = opts.Properties
	}

	input := nvlist.New()
	_ = input.AddInt32("type", int32(typ))
	if len(userProps) > 0 {
		props, perr := propsList(engine.OpCreate, name, userProps)
		if perr != nil {
			return perr
		}
		_ = input.AddList("props", props)
	}

	set := NewTargetSet(name)
	_, err := c.run(ctx, engine.OpCreate, set, func(ctx context.Context) ([]string, error) {
		status, cerr := c.call(ctx, engine.OpCreate, name, input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		return nil, classifySingle(engine.OpCreate, name, status, createKind)
	})
	return err
}

// Clone creates a dataset whose initial contents are the origin
// snapshot. Clone and origin may live under different filesystems but
// must share a pool.
func (c *Client) Clone(ctx context.Context, name, origin string, props map[string]any) error {
	if err := validateName(engine.OpClone, name, flavorFilesystem); err != nil {
		return err
	}
	if err := validateName(engine.OpClone, origin, flavorSnapshot); err != nil {
		return err
	}

	input := nvlist.New()
	_ = input.AddString("origin", origin)
	if len(props) > 0 {
		pl, perr := propsList(engine.OpClone, name, props)
		if perr != nil {
			return perr
		}
		_ = input.AddList("props", pl)
	}

	set := NewTargetSet(name)
	_, err := c.run(ctx, engine.OpClone, set, func(ctx context.Context) ([]string, error) {
		status, cerr := c.call(ctx, engine.OpClone, name, input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		// The engine reports a missing origin and a missing parent with
		// the same status, so the kind stays coarse.
		return nil, classifySingle(engine.OpClone, name, status, createKind)
	})
	return err
}

// Promote swaps a clone with the filesystem its origin snapshot belongs
// to, reparenting that filesystem's older snapshots onto the clone. A
// snapshot name present on both sides blocks the promotion; the fault
// carries the conflicting name as its target.
func (c *Client) Promote(ctx context.Context, name string) error {
	if err := validateName(engine.OpPromote, name, flavorFilesystem); err != nil {
		return err
	}

	set := NewTargetSet(name)
	_, err := c.run(ctx, engine.OpPromote, set, func(ctx context.Context) ([]string, error) {
		status, reply, cerr := c.callOutput(ctx, engine.OpPromote, name, nil, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		if status == unix.EEXIST {
			conflict := name
			if reply != nil {
				if s, ok := reply.String("snapname"); ok {
					conflict = s
				}
			}
			return nil, zerrors.New(zerrors.ErrDatasetExists, string(engine.OpPromote), conflict, status)
		}
		return nil, classifySingle(engine.OpPromote, name, status, promoteKind)
	})
	return err
}

// Rename moves a filesystem or volume to a new name in the same pool.
// Snapshots and bookmarks travel with it.
func (c *Client) Rename(ctx context.Context, name, newname string) error {
	if err := validateName(engine.OpRename, name, flavorFilesystem); err != nil {
		return err
	}
	if err := validateName(engine.OpRename, newname, flavorFilesystem); err != nil {
		return err
	}
	if PoolName(name) != PoolName(newname) {
		return zerrors.New(zerrors.ErrPoolsDiffer, string(engine.OpRename), newname, 0)
	}

	input := nvlist.New()
	_ = input.AddString("newname", newname)

	set := NewTargetSet(name)
	_, err := c.run(ctx, engine.OpRename, set, func(ctx context.Context) ([]string, error) {
		status, cerr := c.call(ctx, engine.OpRename, name, input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		return nil, classifySingle(engine.OpRename, name, status, renameKind)
	})
	return err
}

// Destroy removes a filesystem or volume. The dataset must have no
// children; snapshots are destroyed through DestroySnapshots.
func (c *Client) Destroy(ctx context.Context, name string) error {
	if err := validateName(engine.OpDestroy, name, flavorFilesystem); err != nil {
		return err
	}

	set := NewTargetSet(name)
	_, err := c.run(ctx, engine.OpDestroy, set, func(ctx context.Context) ([]string, error) {
		status, cerr := c.call(ctx, engine.OpDestroy, name, nil, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		return nil, classifySingle(engine.OpDestroy, name, status, destroyKind)
	})
	return err
}

// Exists reports whether the named dataset exists. Filesystem, volume,
// snapshot and bookmark names are all accepted.
func (c *Client) Exists(ctx context.Context, name string) (bool, error) {
	if err := validateName(engine.OpExists, name, flavorAny); err != nil {
		return false, err
	}

	set := NewTargetSet(name)
	var exists bool
	_, err := c.run(ctx, engine.OpExists, set, func(ctx context.Context) ([]string, error) {
		status, cerr := c.call(ctx, engine.OpExists, name, nil, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		switch status {
		case 0:
			exists = true
			return nil, nil
		case unix.ENOENT:
			return nil, nil
		}
		return nil, classifySingle(engine.OpExists, name, status, nil)
	})
	return exists, err
}

// Sync blocks until the pool's in-flight transactions are on stable
// storage. force opens and commits a transaction even when the pool is
// idle, so the returned point in time is always durable.
func (c *Client) Sync(ctx context.Context, pool string, force bool) error {
	if err := validateName(engine.OpSync, pool, flavorFilesystem); err != nil {
		return err
	}
	if pool != PoolName(pool) {
		return zerrors.NewNameInvalidError(string(engine.OpSync), pool, "expected a pool name")
	}

	input := nvlist.New()
	if force {
		_ = input.AddFlag("force")
	}

	set := NewTargetSet(pool)
	_, err := c.run(ctx, engine.OpSync, set, func(ctx context.Context) ([]string, error) {
		status, cerr := c.call(ctx, engine.OpSync, pool, input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		return nil, classifySingle(engine.OpSync, pool, status, notFoundKind)
	})
	return err
}

// ============================================================================
// Status tables
// ============================================================================

func createKind(errno unix.Errno) (zerrors.Code, bool) {
	switch errno {
	case unix.EEXIST:
		return zerrors.ErrDatasetExists, true
	case unix.ENOENT:
		return zerrors.ErrDatasetNotFound, true
	case unix.EXDEV:
		return zerrors.ErrPoolsDiffer, true
	case unix.EINVAL:
		return zerrors.ErrPropertyInvalid, true
	}
	return 0, false
}

func promoteKind(errno unix.Errno) (zerrors.Code, bool) {
	switch errno {
	case unix.ENOENT:
		return zerrors.ErrDatasetNotFound, true
	case unix.EINVAL:
		// Promoting a dataset that is not a clone.
		return zerrors.ErrNameInvalid, true
	case unix.EBUSY:
		return zerrors.ErrDatasetBusy, true
	}
	return 0, false
}

func renameKind(errno unix.Errno) (zerrors.Code, bool) {
	switch errno {
	case unix.ENOENT:
		return zerrors.ErrDatasetNotFound, true
	case unix.EEXIST:
		return zerrors.ErrDatasetExists, true
	case unix.EXDEV:
		return zerrors.ErrPoolsDiffer, true
	case unix.EINVAL:
		return zerrors.ErrNameInvalid, true
	}
	return 0, false
}

func destroyKind(errno unix.Errno) (zerrors.Code, bool) {
	switch errno {
	case unix.ENOENT:
		return zerrors.ErrDatasetNotFound, true
	case unix.EBUSY:
		return zerrors.ErrDatasetBusy, true
	case unix.EEXIST:
		// Children still exist.
		return zerrors.ErrDatasetBusy, true
	}
	return 0, false
}
