package sim

import (
	"sort"
	"strings"
	"time"
)

// Dataset kinds. The wire protocol carries these as the int32 values
// the client sends on create; everywhere else they travel as strings.
const (
	typeFilesystem = "filesystem"
	typeVolume     = "volume"

	objsetTypeFilesystem int32 = 2
	objsetTypeVolume     int32 = 3
)

// Synthetic space accounting. The sim has no real blocks, so space
// queries are answered from a deterministic model: every dataset costs
// a base amount and every snapshot a per-snapshot amount on top.
const (
	datasetBaseUsed = 16 * 1024
	snapshotStep    = 4 * 1024
)

// pool is one independent dataset tree. Names never cross pools.
type pool struct {
	Name     string
	Datasets map[string]*dataset // keyed by fully qualified name
}

// dataset is a filesystem or volume node.
type dataset struct {
	Name   string // fully qualified
	Type   string // "filesystem" or "volume"
	Props  map[string]any
	Origin string // origin snapshot for clones, "" otherwise

	// Modified marks changes since the newest snapshot. Snapshots and
	// rollbacks clear it; the SetModified hook raises it.
	Modified bool

	Snaps     map[string]*snapshot // keyed by short name
	Bookmarks map[string]*bookmark // keyed by short name
}

// snapshot is one point-in-time state of a dataset.
type snapshot struct {
	Name    string // short name
	Txg     uint64
	GUID    uint64
	Created time.Time
	Used    uint64
	Props   map[string]any

	// Holds maps tag to creation time. A held snapshot cannot be
	// destroyed except deferred.
	Holds map[string]time.Time

	// Clones holds the fully qualified names of datasets cloned from
	// this snapshot.
	Clones map[string]struct{}

	// Deferred marks a snapshot accepted for destruction once its last
	// hold and clone are gone.
	Deferred bool
}

// bookmark preserves a snapshot's identity without its data.
type bookmark struct {
	Name      string // short name
	GUID      uint64
	CreateTxg uint64
	Created   time.Time
}

// ============================================================================
// Name helpers
// ============================================================================

func poolOf(name string) string {
	if i := strings.IndexAny(name, "/@#"); i >= 0 {
		return name[:i]
	}
	return name
}

func parentOf(name string) (string, bool) {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i], true
	}
	return "", false
}

func splitSnap(name string) (fs, snap string, ok bool) {
	if i := strings.IndexByte(name, '@'); i >= 0 {
		return name[:i], name[i+1:], true
	}
	return "", "", false
}

func splitBook(name string) (fs, mark string, ok bool) {
	if i := strings.IndexByte(name, '#'); i >= 0 {
		return name[:i], name[i+1:], true
	}
	return "", "", false
}

// ============================================================================
// Tree lookups (callers hold e.mu)
// ============================================================================

func (e *Engine) lookupPool(name string) *pool {
	return e.pools[poolOf(name)]
}

func (e *Engine) lookupDataset(name string) *dataset {
	p := e.lookupPool(name)
	if p == nil {
		return nil
	}
	return p.Datasets[name]
}

func (e *Engine) lookupSnapshot(name string) (*dataset, *snapshot) {
	fs, short, ok := splitSnap(name)
	if !ok {
		return nil, nil
	}
	ds := e.lookupDataset(fs)
	if ds == nil {
		return nil, nil
	}
	return ds, ds.Snaps[short]
}

func (e *Engine) lookupBookmark(name string) (*dataset, *bookmark) {
	fs, short, ok := splitBook(name)
	if !ok {
		return nil, nil
	}
	ds := e.lookupDataset(fs)
	if ds == nil {
		return nil, nil
	}
	return ds, ds.Bookmarks[short]
}

// children returns the direct and transitive descendants of name,
// sorted. name itself is not included.
func (e *Engine) children(name string) []*dataset {
	p := e.lookupPool(name)
	if p == nil {
		return nil
	}
	prefix := name + "/"
	var out []*dataset
	for fq, ds := range p.Datasets {
		if strings.HasPrefix(fq, prefix) {
			out = append(out, ds)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// hasChildren reports whether name has any descendant dataset.
func (e *Engine) hasChildren(name string) bool {
	p := e.lookupPool(name)
	if p == nil {
		return false
	}
	prefix := name + "/"
	for fq := range p.Datasets {
		if strings.HasPrefix(fq, prefix) {
			return true
		}
	}
	return false
}

// snapsByTxg returns the dataset's snapshots in creation order.
func snapsByTxg(ds *dataset) []*snapshot {
	out := make([]*snapshot, 0, len(ds.Snaps))
	for _, s := range ds.Snaps {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Txg < out[j].Txg })
	return out
}

// sortedBookmarkNames returns the dataset's bookmark short names in
// lexical order for stable replies.
func sortedBookmarkNames(ds *dataset) []string {
	out := make([]string, 0, len(ds.Bookmarks))
	for name := range ds.Bookmarks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// sortedHoldTags returns the snapshot's hold tags in lexical order.
func sortedHoldTags(s *snapshot) []string {
	out := make([]string, 0, len(s.Holds))
	for tag := range s.Holds {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// latestSnap returns the newest snapshot that is not pending a deferred
// destroy, or nil.
func latestSnap(ds *dataset) *snapshot {
	var latest *snapshot
	for _, s := range ds.Snaps {
		if s.Deferred {
			continue
		}
		if latest == nil || s.Txg > latest.Txg {
			latest = s
		}
	}
	return latest
}

// maybeReap destroys a deferred snapshot once its last hold and clone
// are gone.
func maybeReap(ds *dataset, s *snapshot) {
	if s.Deferred && len(s.Holds) == 0 && len(s.Clones) == 0 {
		delete(ds.Snaps, s.Name)
	}
}

// retargetReferences rewrites clone origins and cleanup registrations
// after a dataset subtree moves from oldName to newName.
func (e *Engine) retargetReferences(oldName, newName string) {
	rewrite := func(ref string) (string, bool) {
		if ref == "" {
			return ref, false
		}
		fs := ref
		if i := strings.IndexAny(ref, "@#"); i >= 0 {
			fs = ref[:i]
		}
		if fs == oldName {
			return newName + ref[len(oldName):], true
		}
		if strings.HasPrefix(fs, oldName+"/") {
			return newName + ref[len(oldName):], true
		}
		return ref, false
	}

	for _, p := range e.pools {
		for _, ds := range p.Datasets {
			if next, changed := rewrite(ds.Origin); changed {
				ds.Origin = next
			}
			for _, s := range ds.Snaps {
				for clone := range s.Clones {
					if next, changed := rewrite(clone); changed {
						delete(s.Clones, clone)
						s.Clones[next] = struct{}{}
					}
				}
			}
		}
	}
	for fd, refs := range e.cleanups {
		for i, ref := range refs {
			if next, changed := rewrite(ref.snapshot); changed {
				refs[i].snapshot = next
			}
		}
		e.cleanups[fd] = refs
	}
}

// copyProps clones a property map so callers cannot alias engine state.
func copyProps(props map[string]any) map[string]any {
	if len(props) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}
