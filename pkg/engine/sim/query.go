package sim

import (
	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
)

// opRollback discards changes since the newest snapshot and reports
// which snapshot that was.
func (e *Engine) opRollback(name string) (unix.Errno, *nvlist.List, func()) {
	ds := e.lookupDataset(name)
	if ds == nil {
		return unix.ENOENT, nil, nil
	}
	latest := latestSnap(ds)
	if latest == nil {
		return unix.ESRCH, nil, nil
	}

	reply := nvlist.New()
	_ = reply.AddString("target", name+"@"+latest.Name)
	commit := func() {
		ds.Modified = false
		e.nextTxg()
	}
	return 0, reply, commit
}

// opRollbackTo discards changes back to a named snapshot, which must
// still be the newest one.
func (e *Engine) opRollbackTo(name string, input *nvlist.List) (unix.Errno, func()) {
	target, ok := input.String("target")
	if !ok {
		return unix.EINVAL, nil
	}
	fs, short, ok := splitSnap(target)
	if !ok || fs != name {
		return unix.EINVAL, nil
	}

	ds := e.lookupDataset(name)
	if ds == nil {
		return unix.ENOENT, nil
	}
	snap := ds.Snaps[short]
	if snap == nil {
		return unix.ENOENT, nil
	}
	if latest := latestSnap(ds); latest != nil && latest.Txg > snap.Txg {
		return unix.EEXIST, nil
	}

	commit := func() {
		ds.Modified = false
		e.nextTxg()
	}
	return 0, commit
}

// ============================================================================
// Space estimates
// ============================================================================

// opSendSpace estimates the stream size for a snapshot, full or
// incremental from a snapshot or bookmark of the same dataset.
func (e *Engine) opSendSpace(name string, input *nvlist.List) (unix.Errno, *nvlist.List) {
	ds, to := e.lookupSnapshot(name)
	if to == nil {
		return unix.ENOENT, nil
	}

	fromTxg := uint64(0)
	full := true
	if from, ok := input.String("fromsnap"); ok {
		_, txg, errno := e.resolveSource(ds.Name, from)
		if errno != 0 {
			return errno, nil
		}
		if txg >= to.Txg {
			return unix.EXDEV, nil
		}
		fromTxg = txg
		full = false
	}

	var space uint64
	if full {
		space = datasetBaseUsed
	}
	for _, snap := range snapsByTxg(ds) {
		if snap.Txg > fromTxg && snap.Txg <= to.Txg {
			space += snap.Used
		}
	}

	reply := nvlist.New()
	_ = reply.AddUint64("space", space)
	return 0, reply
}

// opSnapRangeSpace reports the space held exclusively by the snapshots
// between firstsnap and the named last snapshot, inclusive.
func (e *Engine) opSnapRangeSpace(name string, input *nvlist.List) (unix.Errno, *nvlist.List) {
	ds, last := e.lookupSnapshot(name)
	if last == nil {
		return unix.ENOENT, nil
	}
	first, ok := input.String("firstsnap")
	if !ok {
		return unix.EINVAL, nil
	}
	firstFS, _, ok := splitSnap(first)
	if !ok {
		return unix.EINVAL, nil
	}
	if firstFS != ds.Name {
		return unix.EXDEV, nil
	}
	_, firstSnap := e.lookupSnapshot(first)
	if firstSnap == nil {
		return unix.ENOENT, nil
	}
	if firstSnap.Txg > last.Txg {
		return unix.EINVAL, nil
	}

	var used uint64
	for _, snap := range snapsByTxg(ds) {
		if snap.Txg >= firstSnap.Txg && snap.Txg <= last.Txg {
			used += snap.Used
		}
	}

	reply := nvlist.New()
	_ = reply.AddUint64("used", used)
	return 0, reply
}
