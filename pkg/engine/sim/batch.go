package sim

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
)

// errAccum builds a per-target error map in submission order. The call
// status for a failed batch is the errno of the first failing target.
type errAccum struct {
	list  *nvlist.List
	first unix.Errno
}

func newErrAccum() *errAccum {
	return &errAccum{list: nvlist.New()}
}

func (a *errAccum) add(target string, errno unix.Errno) {
	if a.list.Len() == 0 {
		a.first = errno
	}
	// Target names within one batch are unique, so Add cannot collide.
	_ = a.list.AddInt32(target, int32(errno))
}

func (a *errAccum) empty() bool {
	return a.list.Len() == 0
}

// reply returns the error map, or nil when no target failed so the
// engine writes no output at all.
func (a *errAccum) reply() *nvlist.List {
	if a.empty() {
		return nil
	}
	return a.list
}

// samePool reports whether every name lives in one pool. Batches are
// single-pool by contract; mixed batches are rejected before any
// target is examined.
func samePool(names []string) bool {
	if len(names) == 0 {
		return true
	}
	ref := poolOf(names[0])
	for _, n := range names[1:] {
		if poolOf(n) != ref {
			return false
		}
	}
	return true
}

// ============================================================================
// Snapshot batches
// ============================================================================

// opSnapshot atomically creates a batch of snapshots. Any failing
// target voids the whole batch: the reply lists every failing target
// and nothing is created.
func (e *Engine) opSnapshot(input *nvlist.List) (unix.Errno, *nvlist.List, func()) {
	snaps, ok := input.List("snaps")
	if !ok || snaps.Len() == 0 {
		return unix.EINVAL, nil, nil
	}
	targets := snaps.Names()
	if !samePool(targets) {
		return unix.EXDEV, nil, nil
	}

	// Two snapshots of one filesystem cannot share a transaction group.
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		fs, _, ok := splitSnap(t)
		if !ok {
			continue
		}
		if _, dup := seen[fs]; dup {
			return unix.EXDEV, nil, nil
		}
		seen[fs] = struct{}{}
	}

	props, errno := scalarProps(input)
	if errno != 0 {
		return errno, nil, nil
	}

	type planned struct {
		ds    *dataset
		short string
	}
	var plan []planned
	errs := newErrAccum()
	for _, t := range targets {
		fs, short, ok := splitSnap(t)
		if !ok {
			errs.add(t, unix.EINVAL)
			continue
		}
		ds := e.lookupDataset(fs)
		switch {
		case ds == nil:
			errs.add(t, unix.ENOENT)
		case ds.Snaps[short] != nil:
			errs.add(t, unix.EEXIST)
		default:
			plan = append(plan, planned{ds: ds, short: short})
		}
	}
	if !errs.empty() {
		return errs.first, errs.reply(), nil
	}

	commit := func() {
		txg := e.nextTxg()
		now := time.Now().UTC()
		for _, p := range plan {
			p.ds.Snaps[p.short] = &snapshot{
				Name:    p.short,
				Txg:     txg,
				GUID:    e.newGUID(),
				Created: now,
				Used:    datasetBaseUsed/4 + snapshotStep*uint64(len(p.ds.Snaps)),
				Props:   copyProps(props),
				Holds:   map[string]time.Time{},
				Clones:  map[string]struct{}{},
			}
			p.ds.Modified = false
		}
	}
	return 0, nil, commit
}

// opDestroySnapshots removes a batch of snapshots best effort. Missing
// targets are reported under a success status; targets blocked by a
// hold or clone fail hard unless defer mode accepts them for later.
// Removable targets are removed even when others fail.
func (e *Engine) opDestroySnapshots(input *nvlist.List) (unix.Errno, *nvlist.List, func()) {
	snaps, ok := input.List("snaps")
	if !ok || snaps.Len() == 0 {
		return unix.EINVAL, nil, nil
	}
	targets := snaps.Names()
	if !samePool(targets) {
		return unix.EXDEV, nil, nil
	}
	deferred := input.Flag("defer")

	var commits []func()
	hard := newErrAccum()
	soft := newErrAccum()
	for _, t := range targets {
		fs, short, ok := splitSnap(t)
		if !ok {
			hard.add(t, unix.EINVAL)
			continue
		}
		ds := e.lookupDataset(fs)
		if ds == nil || ds.Snaps[short] == nil {
			soft.add(t, unix.ENOENT)
			continue
		}
		snap := ds.Snaps[short]
		blocked := len(snap.Holds) > 0 || len(snap.Clones) > 0
		switch {
		case blocked && !deferred:
			hard.add(t, unix.EBUSY)
		case blocked:
			commits = append(commits, func() { snap.Deferred = true })
		default:
			commits = append(commits, func() { delete(ds.Snaps, short) })
		}
	}

	commit := func() {
		for _, fn := range commits {
			fn()
		}
	}
	if len(commits) == 0 {
		commit = nil
	}
	if !hard.empty() {
		return hard.first, hard.reply(), commit
	}
	return 0, soft.reply(), commit
}

// ============================================================================
// Bookmarks
// ============================================================================

// opBookmark atomically creates bookmarks from snapshots or existing
// bookmarks of the same filesystem.
func (e *Engine) opBookmark(input *nvlist.List) (unix.Errno, *nvlist.List, func()) {
	pairs := input.Pairs()
	if len(pairs) == 0 {
		return unix.EINVAL, nil, nil
	}
	if !samePool(input.Names()) {
		return unix.EXDEV, nil, nil
	}

	type planned struct {
		ds    *dataset
		short string
		mark  bookmark
	}
	var plan []planned
	errs := newErrAccum()
	now := time.Now().UTC()
	for _, p := range pairs {
		source, ok := p.Value.(string)
		if p.Type != nvlist.TypeString || !ok {
			errs.add(p.Name, unix.EINVAL)
			continue
		}
		fs, short, ok := splitBook(p.Name)
		if !ok {
			errs.add(p.Name, unix.EINVAL)
			continue
		}
		ds := e.lookupDataset(fs)
		if ds == nil {
			errs.add(p.Name, unix.ENOENT)
			continue
		}
		if ds.Bookmarks[short] != nil {
			errs.add(p.Name, unix.EEXIST)
			continue
		}

		guid, txg, found, sameFS := e.resolveBookmarkSource(fs, source)
		switch {
		case !sameFS:
			// A bookmark preserves one of its own filesystem's snapshots.
			errs.add(p.Name, unix.EINVAL)
		case !found:
			errs.add(p.Name, unix.ENOENT)
		default:
			plan = append(plan, planned{
				ds:    ds,
				short: short,
				mark:  bookmark{Name: short, GUID: guid, CreateTxg: txg, Created: now},
			})
		}
	}
	if !errs.empty() {
		return errs.first, errs.reply(), nil
	}

	commit := func() {
		for _, p := range plan {
			mark := p.mark
			p.ds.Bookmarks[p.short] = &mark
		}
	}
	return 0, nil, commit
}

// resolveBookmarkSource resolves a bookmark's source, which may be a
// snapshot or another bookmark, to the identity it preserves.
func (e *Engine) resolveBookmarkSource(fs, source string) (guid, txg uint64, found, sameFS bool) {
	if srcFS, _, ok := splitSnap(source); ok {
		if srcFS != fs {
			return 0, 0, false, false
		}
		_, snap := e.lookupSnapshot(source)
		if snap == nil {
			return 0, 0, false, true
		}
		return snap.GUID, snap.Txg, true, true
	}
	if srcFS, _, ok := splitBook(source); ok {
		if srcFS != fs {
			return 0, 0, false, false
		}
		_, mark := e.lookupBookmark(source)
		if mark == nil {
			return 0, 0, false, true
		}
		return mark.GUID, mark.CreateTxg, true, true
	}
	return 0, 0, false, false
}

// opDestroyBookmarks removes bookmarks best effort; missing targets
// are reported under a success status.
func (e *Engine) opDestroyBookmarks(input *nvlist.List) (unix.Errno, *nvlist.List, func()) {
	targets := input.Names()
	if len(targets) == 0 {
		return unix.EINVAL, nil, nil
	}
	if !samePool(targets) {
		return unix.EXDEV, nil, nil
	}

	var commits []func()
	hard := newErrAccum()
	soft := newErrAccum()
	for _, t := range targets {
		fs, short, ok := splitBook(t)
		if !ok {
			hard.add(t, unix.EINVAL)
			continue
		}
		ds := e.lookupDataset(fs)
		if ds == nil || ds.Bookmarks[short] == nil {
			soft.add(t, unix.ENOENT)
			continue
		}
		commits = append(commits, func() { delete(ds.Bookmarks, short) })
	}

	commit := func() {
		for _, fn := range commits {
			fn()
		}
	}
	if len(commits) == 0 {
		commit = nil
	}
	if !hard.empty() {
		return hard.first, hard.reply(), commit
	}
	return 0, soft.reply(), commit
}

// opGetBookmarks reports the bookmarks of one filesystem with the
// requested properties, all of them when none are named.
func (e *Engine) opGetBookmarks(name string, input *nvlist.List) (unix.Errno, *nvlist.List) {
	ds := e.lookupDataset(name)
	if ds == nil {
		return unix.ENOENT, nil
	}

	requested := input.Names()
	if len(requested) == 0 {
		requested = []string{"guid", "createtxg", "creation"}
	}

	reply := nvlist.New()
	for _, short := range sortedBookmarkNames(ds) {
		mark := ds.Bookmarks[short]
		entry := nvlist.New()
		for _, prop := range requested {
			switch prop {
			case "guid":
				_ = entry.AddUint64("guid", mark.GUID)
			case "createtxg":
				_ = entry.AddUint64("createtxg", mark.CreateTxg)
			case "creation":
				_ = entry.AddUint64("creation", uint64(mark.Created.Unix()))
			}
		}
		_ = reply.AddList(short, entry)
	}
	return 0, reply
}

// ============================================================================
// Holds
// ============================================================================

// opHold atomically places user holds on snapshots. A tag that already
// exists on its snapshot voids the whole batch; missing snapshots are
// soft misses and the remaining holds are still placed.
func (e *Engine) opHold(input *nvlist.List) (unix.Errno, *nvlist.List, func()) {
	holds, ok := input.List("holds")
	if !ok || holds.Len() == 0 {
		return unix.EINVAL, nil, nil
	}
	if !samePool(holds.Names()) {
		return unix.EXDEV, nil, nil
	}

	cleanupFD := -1
	if fd, ok := input.Int32("cleanup_fd"); ok {
		// The device validates the descriptor when the hold is placed.
		if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
			return unix.EBADF, nil, nil
		}
		cleanupFD = int(fd)
	}

	type planned struct {
		snap *snapshot
		name string // fully qualified
		tag  string
	}
	var plan []planned
	hard := newErrAccum()
	soft := newErrAccum()
	for _, p := range holds.Pairs() {
		tag, ok := p.Value.(string)
		if p.Type != nvlist.TypeString || !ok {
			hard.add(p.Name, unix.EINVAL)
			continue
		}
		_, snap := e.lookupSnapshot(p.Name)
		switch {
		case snap == nil:
			soft.add(p.Name, unix.ENOENT)
		case hasHold(snap, tag):
			hard.add(p.Name, unix.EEXIST)
		default:
			plan = append(plan, planned{snap: snap, name: p.Name, tag: tag})
		}
	}
	if !hard.empty() {
		return hard.first, hard.reply(), nil
	}

	commit := func() {
		now := time.Now().UTC()
		for _, p := range plan {
			p.snap.Holds[p.tag] = now
			if cleanupFD >= 0 {
				e.cleanups[cleanupFD] = append(e.cleanups[cleanupFD], holdRef{
					snapshot: p.name,
					tag:      p.tag,
				})
			}
		}
	}
	if len(plan) == 0 {
		commit = nil
	}
	return 0, soft.reply(), commit
}

func hasHold(snap *snapshot, tag string) bool {
	_, ok := snap.Holds[tag]
	return ok
}

// opRelease removes user holds best effort. A missing snapshot is a
// soft miss under its own name; a missing tag on an existing snapshot
// is a soft miss under the name qualified with the tag. Every hold
// that does exist is removed.
func (e *Engine) opRelease(input *nvlist.List) (unix.Errno, *nvlist.List, func()) {
	pairs := input.Pairs()
	if len(pairs) == 0 {
		return unix.EINVAL, nil, nil
	}
	if !samePool(input.Names()) {
		return unix.EXDEV, nil, nil
	}

	type planned struct {
		ds   *dataset
		snap *snapshot
		name string // fully qualified
		tag  string
	}
	var plan []planned
	hard := newErrAccum()
	soft := newErrAccum()
	for _, p := range pairs {
		tags, ok := p.Value.(*nvlist.List)
		if p.Type != nvlist.TypeList || !ok || tags.Len() == 0 {
			hard.add(p.Name, unix.EINVAL)
			continue
		}
		ds, snap := e.lookupSnapshot(p.Name)
		if snap == nil {
			soft.add(p.Name, unix.ENOENT)
			continue
		}
		for _, tag := range tags.Names() {
			if !hasHold(snap, tag) {
				soft.add(p.Name+"#"+tag, unix.ENOENT)
				continue
			}
			plan = append(plan, planned{ds: ds, snap: snap, name: p.Name, tag: tag})
		}
	}

	commit := func() {
		for _, p := range plan {
			delete(p.snap.Holds, p.tag)
			e.dropCleanupRef(p.name, p.tag)
			maybeReap(p.ds, p.snap)
		}
	}
	if len(plan) == 0 {
		commit = nil
	}
	if !hard.empty() {
		return hard.first, hard.reply(), commit
	}
	return 0, soft.reply(), commit
}

// opGetHolds reports the hold tags of one snapshot with their creation
// times in seconds since the epoch.
func (e *Engine) opGetHolds(name string) (unix.Errno, *nvlist.List) {
	fs, _, ok := splitSnap(name)
	if !ok {
		return unix.EINVAL, nil
	}
	if e.lookupDataset(fs) == nil {
		return unix.ENOENT, nil
	}
	_, snap := e.lookupSnapshot(name)
	if snap == nil {
		return unix.ENOENT, nil
	}

	reply := nvlist.New()
	for _, tag := range sortedHoldTags(snap) {
		_ = reply.AddUint64(tag, uint64(snap.Holds[tag].Unix()))
	}
	return 0, reply
}

// dropCleanupRef removes a released hold from every cleanup descriptor
// registration so a later descriptor close cannot release a hold that
// was re-placed in the meantime.
func (e *Engine) dropCleanupRef(snapshot, tag string) {
	for fd, refs := range e.cleanups {
		kept := refs[:0]
		for _, ref := range refs {
			if ref.snapshot == snapshot && ref.tag == tag {
				continue
			}
			kept = append(kept, ref)
		}
		if len(kept) == 0 {
			delete(e.cleanups, fd)
		} else {
			e.cleanups[fd] = kept
		}
	}
}

// scalarProps extracts the optional properties List from a batch
// input. Properties must be scalar; anything else fails the call.
func scalarProps(input *nvlist.List) (map[string]any, unix.Errno) {
	if !input.Has("props") {
		return nil, 0
	}
	props, ok := input.List("props")
	if !ok {
		return nil, unix.EINVAL
	}
	m, err := props.ScalarMap()
	if err != nil {
		return nil, unix.EINVAL
	}
	return m, 0
}
