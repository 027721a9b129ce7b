package zfs

import (
	"context"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
)

// SnapshotOptions adjusts snapshot creation.
type SnapshotOptions struct {
	// Properties are user properties applied to every snapshot in the
	// batch.
	Properties map[string]any
}

// Snapshot atomically creates the named snapshots. Every snapshot is
// created or none are: a fault on any target voids the whole batch.
// The snapshots may span filesystems but must share a pool, and a name
// submitted twice collapses to one target before the call.
func (c *Client) Snapshot(ctx context.Context, snaps []string, opts *SnapshotOptions) error {
	set, err := newValidatedSet(engine.OpSnapshot, snaps, flavorSnapshot)
	if err != nil {
		return err
	}

	input := nvlist.New()
	_ = input.AddList("snaps", nameFlags(set.Names()))
	if opts != nil && len(opts.Properties) > 0 {
		props, perr := propsList(engine.OpSnapshot, set.Pool(), opts.Properties)
		if perr != nil {
			return perr
		}
		_ = input.AddList("props", props)
	}

	_, err = c.run(ctx, engine.OpSnapshot, set, func(ctx context.Context) ([]string, error) {
		status, reply, cerr := c.callOutput(ctx, engine.OpSnapshot, set.Pool(), input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		return classifyBatch(engine.OpSnapshot, status, reply, snapshotProfile(set))
	})
	return err
}

// DestroyOptions adjusts batch snapshot destruction.
type DestroyOptions struct {
	// Defer marks a snapshot with holds or clones for destruction when
	// the last of them goes away, instead of failing the batch.
	Defer bool
}

// DestroySnapshots destroys the named snapshots. Snapshots that do not
// exist are soft misses, returned in engine order alongside a nil
// error. A snapshot blocked by a hold or clone fails the batch with its
// own fault record unless opts.Defer accepts it for later; destruction
// is best effort, so a retry after a fault reports the targets that did
// go away as soft misses.
func (c *Client) DestroySnapshots(ctx context.Context, snaps []string, opts *DestroyOptions) ([]string, error) {
	set, err := newValidatedSet(engine.OpDestroySnapshots, snaps, flavorSnapshot)
	if err != nil {
		return nil, err
	}

	input := nvlist.New()
	_ = input.AddList("snaps", nameFlags(set.Names()))
	if opts != nil && opts.Defer {
		_ = input.AddFlag("defer")
	}

	return c.run(ctx, engine.OpDestroySnapshots, set, func(ctx context.Context) ([]string, error) {
		status, reply, cerr := c.callOutput(ctx, engine.OpDestroySnapshots, set.Pool(), input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		return classifyBatch(engine.OpDestroySnapshots, status, reply, destroySnapshotsProfile(set))
	})
}
