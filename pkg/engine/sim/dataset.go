package sim

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
)

// ============================================================================
// Create and clone
// ============================================================================

func (e *Engine) opCreate(name string, input *nvlist.List) (unix.Errno, func()) {
	objsetType, ok := input.Int32("type")
	if !ok {
		return unix.EINVAL, nil
	}
	var dsType string
	switch objsetType {
	case objsetTypeFilesystem:
		dsType = typeFilesystem
	case objsetTypeVolume:
		dsType = typeVolume
	default:
		return unix.EINVAL, nil
	}

	props, errno := scalarProps(input)
	if errno != 0 {
		return errno, nil
	}
	if dsType == typeVolume {
		if _, ok := props["volsize"]; !ok {
			return unix.EINVAL, nil
		}
	}

	p := e.lookupPool(name)
	if p == nil {
		return unix.ENOENT, nil
	}
	if p.Datasets[name] != nil {
		return unix.EEXIST, nil
	}
	parent, ok := parentOf(name)
	if !ok {
		// The pool root exists from pool creation, so this is unreachable
		// for valid names; treat a bare unknown pool name as missing.
		return unix.ENOENT, nil
	}
	parentDS := p.Datasets[parent]
	if parentDS == nil {
		return unix.ENOENT, nil
	}
	if parentDS.Type != typeFilesystem {
		return unix.EINVAL, nil
	}

	commit := func() {
		p.Datasets[name] = &dataset{
			Name:      name,
			Type:      dsType,
			Props:     copyProps(props),
			Snaps:     map[string]*snapshot{},
			Bookmarks: map[string]*bookmark{},
		}
		e.nextTxg()
	}
	return 0, commit
}

func (e *Engine) opClone(name string, input *nvlist.List) (unix.Errno, func()) {
	origin, ok := input.String("origin")
	if !ok {
		return unix.EINVAL, nil
	}
	if _, _, ok := splitSnap(origin); !ok {
		return unix.EINVAL, nil
	}
	props, errno := scalarProps(input)
	if errno != 0 {
		return errno, nil
	}
	if poolOf(origin) != poolOf(name) {
		return unix.EXDEV, nil
	}

	p := e.lookupPool(name)
	if p == nil {
		return unix.ENOENT, nil
	}
	if p.Datasets[name] != nil {
		return unix.EEXIST, nil
	}
	parent, ok := parentOf(name)
	if !ok {
		return unix.ENOENT, nil
	}
	if p.Datasets[parent] == nil {
		return unix.ENOENT, nil
	}
	originDS, originSnap := e.lookupSnapshot(origin)
	if originSnap == nil {
		return unix.ENOENT, nil
	}

	commit := func() {
		merged := copyProps(originDS.Props)
		for k, v := range props {
			merged[k] = v
		}
		p.Datasets[name] = &dataset{
			Name:      name,
			Type:      originDS.Type,
			Props:     merged,
			Origin:    origin,
			Snaps:     map[string]*snapshot{},
			Bookmarks: map[string]*bookmark{},
		}
		originSnap.Clones[name] = struct{}{}
		e.nextTxg()
	}
	return 0, commit
}

// ============================================================================
// Promote
// ============================================================================

// opPromote swaps a clone with its origin. Snapshots up to the clone's
// origin point move to the promoted dataset, and the former origin
// becomes a clone of it. A snapshot name collision fails the call and
// names the conflicting snapshot in the reply.
func (e *Engine) opPromote(name string) (unix.Errno, *nvlist.List, func()) {
	ds := e.lookupDataset(name)
	if ds == nil {
		return unix.ENOENT, nil, nil
	}
	if ds.Origin == "" {
		return unix.EINVAL, nil, nil
	}
	originDS, originSnap := e.lookupSnapshot(ds.Origin)
	if originSnap == nil {
		return unix.ENOENT, nil, nil
	}

	var moving []*snapshot
	for _, snap := range snapsByTxg(originDS) {
		if snap.Txg > originSnap.Txg {
			continue
		}
		if ds.Snaps[snap.Name] != nil {
			reply := nvlist.New()
			_ = reply.AddString("snapname", name+"@"+snap.Name)
			return unix.EEXIST, reply, nil
		}
		moving = append(moving, snap)
	}

	commit := func() {
		for _, snap := range moving {
			delete(originDS.Snaps, snap.Name)
			ds.Snaps[snap.Name] = snap
			e.retargetSnapshot(originDS.Name+"@"+snap.Name, name+"@"+snap.Name)
		}
		// The promoted dataset stands alone; its former origin now
		// depends on the moved snapshot instead.
		delete(originSnap.Clones, name)
		originSnap.Clones[originDS.Name] = struct{}{}
		originDS.Origin = name + "@" + originSnap.Name
		ds.Origin = ""
		e.nextTxg()
	}
	return 0, nil, commit
}

// retargetSnapshot rewrites clone origins and cleanup registrations
// after a snapshot moves between datasets.
func (e *Engine) retargetSnapshot(oldName, newName string) {
	for _, p := range e.pools {
		for _, ds := range p.Datasets {
			if ds.Origin == oldName {
				ds.Origin = newName
			}
		}
	}
	for fd, refs := range e.cleanups {
		for i, ref := range refs {
			if ref.snapshot == oldName {
				refs[i].snapshot = newName
			}
		}
		e.cleanups[fd] = refs
	}
}

// ============================================================================
// Rename and destroy
// ============================================================================

func (e *Engine) opRename(name string, input *nvlist.List) (unix.Errno, func()) {
	newname, ok := input.String("newname")
	if !ok {
		return unix.EINVAL, nil
	}
	if poolOf(newname) != poolOf(name) {
		return unix.EXDEV, nil
	}

	p := e.lookupPool(name)
	if p == nil {
		return unix.ENOENT, nil
	}
	ds := p.Datasets[name]
	if ds == nil {
		return unix.ENOENT, nil
	}
	if _, ok := parentOf(name); !ok {
		// Pool roots cannot move.
		return unix.EINVAL, nil
	}
	newParent, ok := parentOf(newname)
	if !ok {
		return unix.EINVAL, nil
	}
	if strings.HasPrefix(newname, name+"/") {
		return unix.EINVAL, nil
	}
	if p.Datasets[newname] != nil {
		return unix.EEXIST, nil
	}
	if p.Datasets[newParent] == nil {
		return unix.ENOENT, nil
	}

	commit := func() {
		subtree := append([]*dataset{ds}, e.children(name)...)
		for _, moved := range subtree {
			delete(p.Datasets, moved.Name)
		}
		for _, moved := range subtree {
			moved.Name = newname + moved.Name[len(name):]
			p.Datasets[moved.Name] = moved
		}
		e.retargetReferences(name, newname)
		e.nextTxg()
	}
	return 0, commit
}

func (e *Engine) opDestroy(name string) (unix.Errno, func()) {
	p := e.lookupPool(name)
	if p == nil {
		return unix.ENOENT, nil
	}
	ds := p.Datasets[name]
	if ds == nil {
		return unix.ENOENT, nil
	}
	if _, ok := parentOf(name); !ok {
		// Pool roots are destroyed with their pool, not here.
		return unix.EBUSY, nil
	}
	if e.hasChildren(name) {
		return unix.EEXIST, nil
	}
	if len(ds.Snaps) > 0 {
		return unix.EBUSY, nil
	}

	commit := func() {
		if ds.Origin != "" {
			if originDS, originSnap := e.lookupSnapshot(ds.Origin); originSnap != nil {
				delete(originSnap.Clones, name)
				maybeReap(originDS, originSnap)
			}
		}
		delete(p.Datasets, name)
		e.nextTxg()
	}
	return 0, commit
}

// ============================================================================
// Existence and sync
// ============================================================================

func (e *Engine) opExists(name string) unix.Errno {
	switch {
	case strings.ContainsRune(name, '@'):
		if _, snap := e.lookupSnapshot(name); snap == nil {
			return unix.ENOENT
		}
	case strings.ContainsRune(name, '#'):
		if _, mark := e.lookupBookmark(name); mark == nil {
			return unix.ENOENT
		}
	default:
		if e.lookupDataset(name) == nil {
			return unix.ENOENT
		}
	}
	return 0
}

func (e *Engine) opSync(name string, input *nvlist.List) (unix.Errno, func()) {
	if poolOf(name) != name || e.pools[name] == nil {
		return unix.ENOENT, nil
	}
	// Force opens a transaction group even when nothing is pending; the
	// sim has no pending writes either way, so the flag only parses.
	_ = input.Flag("force")

	return 0, func() { e.nextTxg() }
}
