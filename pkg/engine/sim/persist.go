package sim

import (
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
)

// State is stored as one packed List under a single key. Cleanup
// descriptor registrations are process-scoped and deliberately not
// persisted; a restart releases nothing because the descriptors they
// watched are gone with the process that held them.

func keyState() []byte {
	return []byte("state")
}

// persist writes the current state through to the database, when one
// is configured. Callers hold e.mu.
func (e *Engine) persist() error {
	if e.db == nil {
		return nil
	}
	state, err := e.encodeState()
	if err != nil {
		return fmt.Errorf("sim: encode state: %w", err)
	}
	packed, err := nvlist.Pack(state)
	if err != nil {
		return fmt.Errorf("sim: pack state: %w", err)
	}
	return e.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyState(), packed)
	})
}

// load restores state from the database, starting fresh when none was
// persisted yet.
func (e *Engine) load() error {
	return e.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyState())
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			state, err := nvlist.Unpack(val)
			if err != nil {
				return fmt.Errorf("sim: unpack state: %w", err)
			}
			return e.decodeState(state)
		})
	})
}

// ============================================================================
// Encoding
// ============================================================================

func (e *Engine) encodeState() (*nvlist.List, error) {
	pools := nvlist.New()
	for _, p := range sortedPools(e.pools) {
		datasets := nvlist.New()
		for _, ds := range e.subtree(p.Name, true) {
			encoded, err := encodeDataset(ds)
			if err != nil {
				return nil, err
			}
			if err := datasets.AddList(ds.Name, encoded); err != nil {
				return nil, err
			}
		}
		if err := pools.AddList(p.Name, datasets); err != nil {
			return nil, err
		}
	}

	state := nvlist.New()
	_ = state.AddUint64("txg", e.txg)
	_ = state.AddUint64("next_guid", e.nextGUID)
	_ = state.AddList("pools", pools)
	return state, nil
}

func encodeDataset(ds *dataset) (*nvlist.List, error) {
	out := nvlist.New()
	_ = out.AddString("type", ds.Type)
	if ds.Origin != "" {
		_ = out.AddString("origin", ds.Origin)
	}
	if ds.Modified {
		_ = out.AddFlag("modified")
	}
	props, err := nvlist.FromMap(ds.Props)
	if err != nil {
		return nil, fmt.Errorf("dataset %q props: %w", ds.Name, err)
	}
	_ = out.AddList("props", props)

	snaps := nvlist.New()
	for _, snap := range snapsByTxg(ds) {
		encoded, err := encodeSnapshot(snap)
		if err != nil {
			return nil, fmt.Errorf("snapshot %q@%q: %w", ds.Name, snap.Name, err)
		}
		_ = snaps.AddList(snap.Name, encoded)
	}
	_ = out.AddList("snaps", snaps)

	bookmarks := nvlist.New()
	for _, short := range sortedBookmarkNames(ds) {
		mark := ds.Bookmarks[short]
		encoded := nvlist.New()
		_ = encoded.AddUint64("guid", mark.GUID)
		_ = encoded.AddUint64("createtxg", mark.CreateTxg)
		_ = encoded.AddUint64("created", uint64(mark.Created.Unix()))
		_ = bookmarks.AddList(short, encoded)
	}
	_ = out.AddList("bookmarks", bookmarks)
	return out, nil
}

func encodeSnapshot(snap *snapshot) (*nvlist.List, error) {
	out := nvlist.New()
	_ = out.AddUint64("txg", snap.Txg)
	_ = out.AddUint64("guid", snap.GUID)
	_ = out.AddUint64("created", uint64(snap.Created.Unix()))
	_ = out.AddUint64("used", snap.Used)
	if snap.Deferred {
		_ = out.AddFlag("deferred")
	}

	props, err := nvlist.FromMap(snap.Props)
	if err != nil {
		return nil, err
	}
	_ = out.AddList("props", props)

	holds := nvlist.New()
	for _, tag := range sortedHoldTags(snap) {
		_ = holds.AddUint64(tag, uint64(snap.Holds[tag].Unix()))
	}
	_ = out.AddList("holds", holds)

	clones := nvlist.New()
	for clone := range snap.Clones {
		_ = clones.AddFlag(clone)
	}
	_ = out.AddList("clones", clones)
	return out, nil
}

// ============================================================================
// Decoding
// ============================================================================

func (e *Engine) decodeState(state *nvlist.List) error {
	txg, ok := state.Uint64("txg")
	if !ok {
		return fmt.Errorf("sim: state carries no txg")
	}
	nextGUID, ok := state.Uint64("next_guid")
	if !ok {
		return fmt.Errorf("sim: state carries no guid counter")
	}
	poolsList, ok := state.List("pools")
	if !ok {
		return fmt.Errorf("sim: state carries no pools")
	}

	pools := make(map[string]*pool, poolsList.Len())
	for _, poolName := range poolsList.Names() {
		datasetsList, ok := poolsList.List(poolName)
		if !ok {
			return fmt.Errorf("sim: pool %q is not a List", poolName)
		}
		p := &pool{Name: poolName, Datasets: make(map[string]*dataset, datasetsList.Len())}
		for _, fq := range datasetsList.Names() {
			encoded, ok := datasetsList.List(fq)
			if !ok {
				return fmt.Errorf("sim: dataset %q is not a List", fq)
			}
			ds, err := decodeDataset(fq, encoded)
			if err != nil {
				return err
			}
			p.Datasets[fq] = ds
		}
		pools[poolName] = p
	}

	e.txg = txg
	e.nextGUID = nextGUID
	e.pools = pools
	return nil
}

func decodeDataset(fq string, in *nvlist.List) (*dataset, error) {
	dsType, ok := in.String("type")
	if !ok {
		return nil, fmt.Errorf("sim: dataset %q carries no type", fq)
	}
	props, err := decodeProps(in)
	if err != nil {
		return nil, fmt.Errorf("sim: dataset %q: %w", fq, err)
	}

	ds := &dataset{
		Name:      fq,
		Type:      dsType,
		Props:     props,
		Modified:  in.Flag("modified"),
		Snaps:     map[string]*snapshot{},
		Bookmarks: map[string]*bookmark{},
	}
	if origin, ok := in.String("origin"); ok {
		ds.Origin = origin
	}

	if snaps, ok := in.List("snaps"); ok {
		for _, short := range snaps.Names() {
			encoded, ok := snaps.List(short)
			if !ok {
				return nil, fmt.Errorf("sim: snapshot %s@%s is not a List", fq, short)
			}
			snap, err := decodeSnapshot(short, encoded)
			if err != nil {
				return nil, fmt.Errorf("sim: snapshot %s@%s: %w", fq, short, err)
			}
			ds.Snaps[short] = snap
		}
	}
	if bookmarks, ok := in.List("bookmarks"); ok {
		for _, short := range bookmarks.Names() {
			encoded, ok := bookmarks.List(short)
			if !ok {
				return nil, fmt.Errorf("sim: bookmark %s#%s is not a List", fq, short)
			}
			mark := &bookmark{Name: short}
			mark.GUID, _ = encoded.Uint64("guid")
			mark.CreateTxg, _ = encoded.Uint64("createtxg")
			if secs, ok := encoded.Uint64("created"); ok {
				mark.Created = time.Unix(int64(secs), 0).UTC()
			}
			ds.Bookmarks[short] = mark
		}
	}
	return ds, nil
}

func decodeSnapshot(short string, in *nvlist.List) (*snapshot, error) {
	props, err := decodeProps(in)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{
		Name:     short,
		Props:    props,
		Deferred: in.Flag("deferred"),
		Holds:    map[string]time.Time{},
		Clones:   map[string]struct{}{},
	}
	snap.Txg, _ = in.Uint64("txg")
	snap.GUID, _ = in.Uint64("guid")
	snap.Used, _ = in.Uint64("used")
	if secs, ok := in.Uint64("created"); ok {
		snap.Created = time.Unix(int64(secs), 0).UTC()
	}

	if holds, ok := in.List("holds"); ok {
		for _, tag := range holds.Names() {
			if secs, ok := holds.Uint64(tag); ok {
				snap.Holds[tag] = time.Unix(int64(secs), 0).UTC()
			}
		}
	}
	if clones, ok := in.List("clones"); ok {
		for _, clone := range clones.Names() {
			snap.Clones[clone] = struct{}{}
		}
	}
	return snap, nil
}

func decodeProps(in *nvlist.List) (map[string]any, error) {
	props, ok := in.List("props")
	if !ok {
		return map[string]any{}, nil
	}
	m, err := props.ScalarMap()
	if err != nil {
		return nil, err
	}
	return m, nil
}
