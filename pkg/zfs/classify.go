package zfs

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// The engine reports batch outcomes as one coarse status plus an error
// map: a List whose keys are the targets (or derived qualified names) that
// individually failed and whose values are per-target statuses. The
// classifier in this file reconstructs a structured outcome from that
// pair. It never invents precision the engine did not give: ambiguous
// statuses stay coarse, and an error map that contradicts the coarse
// status is an internal consistency fault, never silently ignored.

// errnoKind maps one engine status to a fault kind. ok is false when the
// status has no meaning in the operation's table, which defers first to
// the shared base table and then to the call-level fallback.
type errnoKind func(errno unix.Errno) (zerrors.Code, bool)

// opProfile bundles the classification inputs for one batch operation.
type opProfile struct {
	// missing is the per-target status that marks a soft miss when the
	// call-level status is success. Zero means the operation has no
	// soft-miss convention and any entry under success is a violation.
	missing unix.Errno

	// kind is the operation's status table.
	kind errnoKind

	// soleTarget attributes a call-global fault when the batch has
	// exactly one target. Empty otherwise.
	soleTarget string
}

// classifyBatch reconstructs the outcome of one batch call.
//
// The rules, in order:
//  1. Success status and an empty map: full success.
//  2. Success status and a non-empty map: every entry must carry the
//     operation's "missing" status and denotes a soft miss; any other
//     status here is an internal consistency fault.
//  3. Failure status and an empty map: one call-global fault, kind
//     derived from the status.
//  4. Failure status and a non-empty map: a compound fault with one
//     record per entry; for a single-entry map the call-level status
//     supplies the kind when the entry's status is not in the table.
//
// Returned soft misses are in engine order.
func classifyBatch(op engine.Op, status unix.Errno, errlist *nvlist.List, profile opProfile) ([]string, error) {
	entries, err := errlistEntries(op, errlist)
	if err != nil {
		return nil, err
	}

	if status == 0 {
		if len(entries) == 0 {
			return nil, nil
		}
		if profile.missing == 0 {
			return nil, zerrors.NewInternalError(string(op),
				fmt.Sprintf("engine reported success with %d error map entries", len(entries)), nil)
		}
		misses := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.errno != profile.missing {
				return nil, zerrors.NewInternalError(string(op),
					fmt.Sprintf("error map entry %q carries status %d under a success status", e.name, int(e.errno)), nil)
			}
			misses = append(misses, e.name)
		}
		return misses, nil
	}

	if len(entries) == 0 {
		return nil, zerrors.New(kindOf(profile.kind, status), string(op), profile.soleTarget, status)
	}

	faults := make([]*zerrors.Error, 0, len(entries))
	for _, e := range entries {
		code, ok := profile.kind(e.errno)
		if !ok && len(entries) == 1 {
			// Rule 4 fallback: a lone entry may borrow the call-level kind.
			code, ok = profile.kind(status)
		}
		if !ok {
			code = zerrors.ErrUnclassified
		}
		faults = append(faults, zerrors.New(code, string(op), e.name, e.errno))
	}
	return nil, zerrors.NewBatchError(overallKind(profile.kind, status, faults), string(op), status, faults)
}

// overallKind picks the compound fault's summary kind: the call-level
// status when the table knows it, a shared per-target kind otherwise,
// Unclassified when neither applies.
func overallKind(kind errnoKind, status unix.Errno, faults []*zerrors.Error) zerrors.Code {
	if code, ok := kind(status); ok {
		return code
	}
	shared := faults[0].Code
	for _, f := range faults[1:] {
		if f.Code != shared {
			return zerrors.ErrUnclassified
		}
	}
	return shared
}

func kindOf(kind errnoKind, status unix.Errno) zerrors.Code {
	if code, ok := kind(status); ok {
		return code
	}
	return zerrors.ErrUnclassified
}

// classifySingle maps a single-object call's status to a fault. kind is
// the operation's table and may be nil when only the shared base table
// applies.
func classifySingle(op engine.Op, target string, status unix.Errno, kind errnoKind) error {
	if status == 0 {
		return nil
	}
	table := errnoKind(baseKind)
	if kind != nil {
		table = withBase(kind)
	}
	return zerrors.New(kindOf(table, status), string(op), target, status)
}

type errlistEntry struct {
	name  string
	errno unix.Errno
}

// errlistEntries flattens the engine's error map. Entries are int32
// statuses keyed by target name; anything else in the map means the reply
// is broken on our side of the contract.
func errlistEntries(op engine.Op, l *nvlist.List) ([]errlistEntry, error) {
	if l == nil || l.Len() == 0 {
		return nil, nil
	}
	entries := make([]errlistEntry, 0, l.Len())
	for _, p := range l.Pairs() {
		v, ok := p.Value.(int32)
		if p.Type != nvlist.TypeInt32 || !ok {
			return nil, zerrors.NewInternalError(string(op),
				fmt.Sprintf("error map entry %q has type %s, want int32", p.Name, p.Type), nil)
		}
		if v <= 0 {
			return nil, zerrors.NewInternalError(string(op),
				fmt.Sprintf("error map entry %q carries non-positive status %d", p.Name, v), nil)
		}
		entries = append(entries, errlistEntry{name: p.Name, errno: unix.Errno(v)})
	}
	return entries, nil
}

// ============================================================================
// Status tables
// ============================================================================

// baseKind covers statuses whose meaning does not vary by operation.
func baseKind(errno unix.Errno) (zerrors.Code, bool) {
	switch errno {
	case unix.ENAMETOOLONG:
		return zerrors.ErrNameTooLong, true
	case unix.ENOSPC, unix.EDQUOT:
		return zerrors.ErrNoSpace, true
	case unix.EPERM, unix.EACCES:
		return zerrors.ErrPermissionDenied, true
	case unix.ENOTSUP:
		return zerrors.ErrNotSupported, true
	}
	return 0, false
}

// notFoundKind is the table for queries whose only specific failure is
// a missing object.
func notFoundKind(errno unix.Errno) (zerrors.Code, bool) {
	if errno == unix.ENOENT {
		return zerrors.ErrDatasetNotFound, true
	}
	return 0, false
}

// withBase chains an operation table with the shared base table.
func withBase(fn errnoKind) errnoKind {
	return func(errno unix.Errno) (zerrors.Code, bool) {
		if code, ok := fn(errno); ok {
			return code, true
		}
		return baseKind(errno)
	}
}

// snapshotProfile classifies snapshot creation. The engine reuses one
// status for a cross-pool batch and for several snapshots of a single
// filesystem; the submitted names decide which fault it was.
func snapshotProfile(set *TargetSet) opProfile {
	samePool := set.SinglePool()
	return opProfile{
		soleTarget: soleTarget(set),
		kind: withBase(func(errno unix.Errno) (zerrors.Code, bool) {
			switch errno {
			case unix.EEXIST:
				return zerrors.ErrDatasetExists, true
			case unix.ENOENT:
				return zerrors.ErrDatasetNotFound, true
			case unix.EXDEV:
				if samePool {
					return zerrors.ErrMultipleTargets, true
				}
				return zerrors.ErrPoolsDiffer, true
			case unix.EINVAL:
				// Names are validated before the call, so the engine is
				// objecting to the property List.
				return zerrors.ErrPropertyInvalid, true
			}
			return 0, false
		}),
	}
}

// destroySnapshotsProfile classifies batch snapshot destruction. Absent
// targets surface as soft misses, not faults.
func destroySnapshotsProfile(set *TargetSet) opProfile {
	return opProfile{
		missing:    unix.ENOENT,
		soleTarget: soleTarget(set),
		kind: withBase(func(errno unix.Errno) (zerrors.Code, bool) {
			switch errno {
			case unix.EBUSY:
				return zerrors.ErrDatasetBusy, true
			case unix.EEXIST:
				return zerrors.ErrDatasetBusy, true
			case unix.EXDEV:
				return zerrors.ErrPoolsDiffer, true
			case unix.EINVAL:
				return zerrors.ErrNameInvalid, true
			}
			return 0, false
		}),
	}
}

// bookmarkProfile classifies bookmark creation. The engine reports a
// source snapshot belonging to a different filesystem with the same
// status it uses for any invalid argument; names are pre-validated, so
// that status means the mismatch.
func bookmarkProfile(set *TargetSet) opProfile {
	return opProfile{
		soleTarget: soleTarget(set),
		kind: withBase(func(errno unix.Errno) (zerrors.Code, bool) {
			switch errno {
			case unix.EEXIST:
				return zerrors.ErrDatasetExists, true
			case unix.ENOENT:
				return zerrors.ErrDatasetNotFound, true
			case unix.EINVAL:
				return zerrors.ErrSnapshotMismatch, true
			case unix.EXDEV:
				return zerrors.ErrPoolsDiffer, true
			}
			return 0, false
		}),
	}
}

// destroyBookmarksProfile classifies batch bookmark destruction.
func destroyBookmarksProfile(set *TargetSet) opProfile {
	return opProfile{
		missing:    unix.ENOENT,
		soleTarget: soleTarget(set),
		kind: withBase(func(errno unix.Errno) (zerrors.Code, bool) {
			switch errno {
			case unix.EINVAL:
				return zerrors.ErrNameInvalid, true
			case unix.EXDEV:
				return zerrors.ErrPoolsDiffer, true
			}
			return 0, false
		}),
	}
}

// holdProfile classifies hold creation. Missing snapshots are soft
// misses; any hard fault voids the whole batch.
func holdProfile(set *TargetSet) opProfile {
	return opProfile{
		missing:    unix.ENOENT,
		soleTarget: soleTarget(set),
		kind: withBase(func(errno unix.Errno) (zerrors.Code, bool) {
			switch errno {
			case unix.EEXIST:
				return zerrors.ErrDatasetExists, true
			case unix.ENOENT:
				return zerrors.ErrDatasetNotFound, true
			case unix.EBADF:
				return zerrors.ErrBadFileDescriptor, true
			case unix.EXDEV:
				return zerrors.ErrPoolsDiffer, true
			case unix.EINVAL:
				return zerrors.ErrNameInvalid, true
			}
			return 0, false
		}),
	}
}

// releaseProfile classifies hold release. Soft misses are either missing
// snapshots ("fs@snap") or missing tags on existing snapshots
// ("fs@snap#tag").
func releaseProfile(set *TargetSet) opProfile {
	return opProfile{
		missing:    unix.ENOENT,
		soleTarget: soleTarget(set),
		kind: withBase(func(errno unix.Errno) (zerrors.Code, bool) {
			switch errno {
			case unix.EXDEV:
				return zerrors.ErrPoolsDiffer, true
			case unix.EINVAL:
				return zerrors.ErrNameInvalid, true
			}
			return 0, false
		}),
	}
}

func soleTarget(set *TargetSet) string {
	if set.Len() == 1 {
		return set.Names()[0]
	}
	return ""
}
