package zfs

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// HoldRequest names one hold to place.
type HoldRequest struct {
	// Snapshot is the fully qualified snapshot to hold.
	Snapshot string

	// Tag names the hold. A snapshot can carry many holds under
	// distinct tags, and a held snapshot cannot be destroyed except by
	// a deferred destroy.
	Tag string
}

// Hold places the requested holds. Snapshots that do not exist are soft
// misses, returned alongside a nil error; any other failure, including
// a tag already present on an existing snapshot, voids the whole batch.
//
// When cleanupFD is not NoFD the holds are bound to that descriptor:
// the engine releases them when it closes. Requesting the same
// (snapshot, tag) pair twice collapses to one hold; requesting two
// different tags for one snapshot in the same batch is a fault.
func (c *Client) Hold(ctx context.Context, reqs []HoldRequest, cleanupFD int) ([]string, error) {
	if len(reqs) == 0 {
		return nil, zerrors.NewNameInvalidError(string(engine.OpHold), "", "empty target set")
	}

	set := NewTargetSet()
	tags := make(map[string]string, len(reqs))
	holds := nvlist.New()
	for _, r := range reqs {
		if err := validateName(engine.OpHold, r.Snapshot, flavorSnapshot); err != nil {
			return nil, err
		}
		if err := validateTag(engine.OpHold, r.Snapshot, r.Tag); err != nil {
			return nil, err
		}
		if prev, dup := tags[r.Snapshot]; dup {
			if prev == r.Tag {
				continue
			}
			return nil, zerrors.NewNameInvalidError(string(engine.OpHold), r.Snapshot,
				fmt.Sprintf("held under both %q and %q in one batch", prev, r.Tag))
		}
		tags[r.Snapshot] = r.Tag
		set.Add(r.Snapshot)
		_ = holds.AddString(r.Snapshot, r.Tag)
	}

	input := nvlist.New()
	_ = input.AddList("holds", holds)
	if cleanupFD != engine.NoFD {
		_ = input.AddInt32("cleanup_fd", int32(cleanupFD))
	}

	return c.run(ctx, engine.OpHold, set, func(ctx context.Context) ([]string, error) {
		status, reply, cerr := c.callOutput(ctx, engine.OpHold, set.Pool(), input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		return classifyBatch(engine.OpHold, status, reply, holdProfile(set))
	})
}

// ReleaseRequest names holds to release from one snapshot.
type ReleaseRequest struct {
	// Snapshot is the fully qualified snapshot carrying the holds.
	Snapshot string

	// Tags are the hold tags to release.
	Tags []string
}

// Release removes the named holds. A missing snapshot is a soft miss
// under its own name; a missing tag on an existing snapshot is a soft
// miss under "snapshot#tag". Requests naming the same snapshot merge
// before the call.
func (c *Client) Release(ctx context.Context, reqs []ReleaseRequest) ([]string, error) {
	if len(reqs) == 0 {
		return nil, zerrors.NewNameInvalidError(string(engine.OpRelease), "", "empty target set")
	}

	set := NewTargetSet()
	tags := make(map[string]*TargetSet, len(reqs))
	for _, r := range reqs {
		if err := validateName(engine.OpRelease, r.Snapshot, flavorSnapshot); err != nil {
			return nil, err
		}
		if len(r.Tags) == 0 {
			return nil, zerrors.NewNameInvalidError(string(engine.OpRelease), r.Snapshot, "no hold tags to release")
		}
		for _, tag := range r.Tags {
			if err := validateTag(engine.OpRelease, r.Snapshot, tag); err != nil {
				return nil, err
			}
		}
		set.Add(r.Snapshot)
		ts := tags[r.Snapshot]
		if ts == nil {
			ts = NewTargetSet()
			tags[r.Snapshot] = ts
		}
		for _, tag := range r.Tags {
			ts.Add(tag)
		}
	}

	input := nvlist.New()
	for _, snap := range set.Names() {
		_ = input.AddList(snap, nameFlags(tags[snap].Names()))
	}

	return c.run(ctx, engine.OpRelease, set, func(ctx context.Context) ([]string, error) {
		status, reply, cerr := c.callOutput(ctx, engine.OpRelease, set.Pool(), input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		return classifyBatch(engine.OpRelease, status, reply, releaseProfile(set))
	})
}

// GetHolds returns the holds on the snapshot keyed by tag, each with
// its creation time.
func (c *Client) GetHolds(ctx context.Context, snapshot string) (map[string]time.Time, error) {
	if err := validateName(engine.OpGetHolds, snapshot, flavorSnapshot); err != nil {
		return nil, err
	}

	set := NewTargetSet(snapshot)
	var holds map[string]time.Time
	_, err := c.run(ctx, engine.OpGetHolds, set, func(ctx context.Context) ([]string, error) {
		status, reply, cerr := c.callOutput(ctx, engine.OpGetHolds, snapshot, nil, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		if status != 0 {
			return nil, classifySingle(engine.OpGetHolds, snapshot, status, notFoundKind)
		}
		holds, cerr = decodeHolds(reply)
		return nil, cerr
	})
	if err != nil {
		return nil, err
	}
	return holds, nil
}

// decodeHolds flattens the reply: one uint64 creation time, in seconds
// since the epoch, per tag.
func decodeHolds(reply *nvlist.List) (map[string]time.Time, error) {
	if reply == nil {
		return map[string]time.Time{}, nil
	}
	holds := make(map[string]time.Time, reply.Len())
	for _, p := range reply.Pairs() {
		secs, ok := p.Value.(uint64)
		if !ok {
			return nil, zerrors.NewInternalError(string(engine.OpGetHolds),
				fmt.Sprintf("hold %q has type %s, want uint64", p.Name, p.Type), nil)
		}
		holds[p.Name] = time.Unix(int64(secs), 0).UTC()
	}
	return holds, nil
}
