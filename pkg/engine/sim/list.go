package sim

import (
	"encoding/binary"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
)

// recordHeaderSize is the framing overhead per record: a big-endian
// payload size, one errno byte, and three reserved bytes. A zero size
// terminates the stream.
const recordHeaderSize = 8

// opList enumerates datasets as framed records on the request
// descriptor. Records are materialized under the engine lock before
// the call returns, then streamed by a writer that owns the
// descriptor's write side from that point on.
func (e *Engine) opList(req *engine.Request, input *nvlist.List) (unix.Errno, error) {
	if req.FD < 0 {
		return unix.EBADF, nil
	}
	if errno := e.opExists(req.Name); req.Name != "" && errno != 0 {
		return errno, nil
	}

	wanted := map[string]bool{}
	if types, ok := input.List("types"); ok {
		for _, t := range types.Names() {
			wanted[t] = true
		}
	}
	records, err := e.collectRecords(req.Name, input.Flag("recurse"), wanted)
	if err != nil {
		return 0, err
	}

	e.writers.Add(1)
	go e.streamRecords(req.FD, records)
	return 0, nil
}

// streamRecords writes framed records followed by a clean terminator,
// then closes the descriptor. A write failure means the reader went
// away; the stream just stops.
func (e *Engine) streamRecords(fd int, records [][]byte) {
	defer e.writers.Done()
	defer func() { _ = unix.Close(fd) }()

	w := fdWriter{fd: fd}
	header := make([]byte, recordHeaderSize)
	for _, rec := range records {
		binary.BigEndian.PutUint32(header[:4], uint32(len(rec)))
		if _, err := w.Write(header); err != nil {
			return
		}
		if _, err := w.Write(rec); err != nil {
			return
		}
	}
	_, _ = w.Write(make([]byte, recordHeaderSize))
}

// collectRecords walks the requested subtree in a stable order:
// datasets by name, each followed by its snapshots in creation order
// and its bookmarks in lexical order.
func (e *Engine) collectRecords(name string, recurse bool, wanted map[string]bool) ([][]byte, error) {
	match := func(t string) bool {
		return len(wanted) == 0 || wanted[t]
	}

	var records [][]byte
	addDataset := func(ds *dataset) error {
		if match(ds.Type) {
			rec, err := datasetRecord(ds)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		if match("snapshot") {
			for _, snap := range snapsByTxg(ds) {
				rec, err := snapshotRecord(ds, snap)
				if err != nil {
					return err
				}
				records = append(records, rec)
			}
		}
		if match("bookmark") {
			for _, short := range sortedBookmarkNames(ds) {
				rec, err := bookmarkRecord(ds, ds.Bookmarks[short])
				if err != nil {
					return err
				}
				records = append(records, rec)
			}
		}
		return nil
	}

	switch {
	case strings.ContainsRune(name, '@'):
		ds, snap := e.lookupSnapshot(name)
		if snap != nil && match("snapshot") {
			rec, err := snapshotRecord(ds, snap)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	case strings.ContainsRune(name, '#'):
		ds, mark := e.lookupBookmark(name)
		if mark != nil && match("bookmark") {
			rec, err := bookmarkRecord(ds, mark)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	case name == "":
		for _, p := range sortedPools(e.pools) {
			for _, ds := range e.subtree(p.Name, recurse) {
				if err := addDataset(ds); err != nil {
					return nil, err
				}
			}
		}
	default:
		for _, ds := range e.subtree(name, recurse) {
			if err := addDataset(ds); err != nil {
				return nil, err
			}
		}
	}
	return records, nil
}

// subtree returns the named dataset followed by its descendants when
// recursing, sorted by name.
func (e *Engine) subtree(name string, recurse bool) []*dataset {
	ds := e.lookupDataset(name)
	if ds == nil {
		return nil
	}
	out := []*dataset{ds}
	if recurse {
		out = append(out, e.children(name)...)
	}
	return out
}

func sortedPools(pools map[string]*pool) []*pool {
	out := make([]*pool, 0, len(pools))
	for _, p := range pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ============================================================================
// Record encoding
// ============================================================================

func datasetRecord(ds *dataset) ([]byte, error) {
	props := copyProps(ds.Props)
	if ds.Origin != "" {
		props["origin"] = ds.Origin
	}
	return packRecord(ds.Name, ds.Type, props)
}

func snapshotRecord(ds *dataset, snap *snapshot) ([]byte, error) {
	props := copyProps(snap.Props)
	props["guid"] = snap.GUID
	props["createtxg"] = snap.Txg
	props["creation"] = uint64(snap.Created.Unix())
	props["used"] = snap.Used
	return packRecord(ds.Name+"@"+snap.Name, "snapshot", props)
}

func bookmarkRecord(ds *dataset, mark *bookmark) ([]byte, error) {
	props := map[string]any{
		"guid":      mark.GUID,
		"createtxg": mark.CreateTxg,
		"creation":  uint64(mark.Created.Unix()),
	}
	return packRecord(ds.Name+"#"+mark.Name, "bookmark", props)
}

func packRecord(name, dsType string, props map[string]any) ([]byte, error) {
	rec := nvlist.New()
	_ = rec.AddString("name", name)
	_ = rec.AddString("type", dsType)
	if len(props) > 0 {
		list, err := nvlist.FromMap(props)
		if err != nil {
			return nil, err
		}
		_ = rec.AddList("properties", list)
	}
	return nvlist.Pack(rec)
}
