// Package sim provides an in-process engine for development and tests.
//
// The engine keeps whole pool trees in memory and answers every
// management operation with the same status codes, batch error maps,
// and stream framing as the device adapter, so code exercised against
// it sees the behavior it would see against the control device. With a
// directory configured, state is serialized as a packed List into a
// badger database and survives reopening.
//
// Send, Receive, and List perform their stream I/O synchronously while
// holding the engine lock. A pipe written by one call and read by
// another call on the same engine must be drained by the caller in
// between, or the two calls deadlock; tests stage streams through a
// temporary file.
package sim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
)

// Config controls where the engine keeps its state.
type Config struct {
	// Dir is the badger database directory. Empty means volatile: state
	// lives only in memory and is lost on Close.
	Dir string
}

// holdRef records one hold registered under a cleanup descriptor.
type holdRef struct {
	snapshot string // fully qualified
	tag      string
}

// Engine is the in-process implementation of engine.Engine.
type Engine struct {
	mu       sync.Mutex
	pools    map[string]*pool
	txg      uint64
	nextGUID uint64

	// cleanups maps a cleanup descriptor to the holds bound to it.
	// CloseCleanupFD releases them the way the device releases holds
	// when their descriptor's process exits.
	cleanups map[int][]holdRef

	db      *badgerdb.DB
	writers sync.WaitGroup
	closed  bool
}

var errClosed = errors.New("sim: engine is closed")

// New opens a sim engine. With cfg.Dir set, previously persisted state
// is loaded from the badger database at that directory.
func New(cfg Config) (*Engine, error) {
	e := &Engine{
		pools:    make(map[string]*pool),
		txg:      1,
		cleanups: make(map[int][]holdRef),
	}
	if cfg.Dir == "" {
		return e, nil
	}

	db, err := badgerdb.Open(badgerdb.DefaultOptions(cfg.Dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("sim: open state database: %w", err)
	}
	e.db = db
	if err := e.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

// Call dispatches one operation against the in-memory state.
//
// The returned status carries the operation outcome; a non-nil error
// means the call itself did not run. When an operation produces a reply
// that does not fit the request's output buffer, Call returns ENOMEM
// without touching any state, so a retry with a larger buffer observes
// the same world.
func (e *Engine) Call(ctx context.Context, req *engine.Request) (unix.Errno, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	input, errno := unpackInput(req.Input)
	if errno != 0 {
		return errno, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, errClosed
	}

	var (
		status unix.Errno
		reply  *nvlist.List
		commit func()
	)
	switch req.Op {
	case engine.OpCreate:
		status, commit = e.opCreate(req.Name, input)
	case engine.OpClone:
		status, commit = e.opClone(req.Name, input)
	case engine.OpPromote:
		status, reply, commit = e.opPromote(req.Name)
	case engine.OpRename:
		status, commit = e.opRename(req.Name, input)
	case engine.OpDestroy:
		status, commit = e.opDestroy(req.Name)
	case engine.OpSnapshot:
		status, reply, commit = e.opSnapshot(input)
	case engine.OpDestroySnapshots:
		status, reply, commit = e.opDestroySnapshots(input)
	case engine.OpBookmark:
		status, reply, commit = e.opBookmark(input)
	case engine.OpGetBookmarks:
		status, reply = e.opGetBookmarks(req.Name, input)
	case engine.OpDestroyBookmarks:
		status, reply, commit = e.opDestroyBookmarks(input)
	case engine.OpHold:
		status, reply, commit = e.opHold(input)
	case engine.OpRelease:
		status, reply, commit = e.opRelease(input)
	case engine.OpGetHolds:
		status, reply = e.opGetHolds(req.Name)
	case engine.OpRollback:
		status, reply, commit = e.opRollback(req.Name)
	case engine.OpRollbackTo:
		status, commit = e.opRollbackTo(req.Name, input)
	case engine.OpSend:
		return e.opSend(req, input)
	case engine.OpSendSpace:
		status, reply = e.opSendSpace(req.Name, input)
	case engine.OpSnapRangeSpace:
		status, reply = e.opSnapRangeSpace(req.Name, input)
	case engine.OpReceive:
		status, commit = e.opReceive(req, input)
	case engine.OpExists:
		status = e.opExists(req.Name)
	case engine.OpSync:
		status, commit = e.opSync(req.Name, input)
	case engine.OpList:
		return e.opList(req, input)
	default:
		return 0, fmt.Errorf("sim: unknown op %q", req.Op)
	}

	if reply != nil && req.Output != nil {
		packed, err := nvlist.Pack(reply)
		if err != nil {
			return 0, fmt.Errorf("sim: pack reply: %w", err)
		}
		if !req.Output.Fill(packed) {
			return unix.ENOMEM, nil
		}
	}
	if commit != nil {
		commit()
		if err := e.persist(); err != nil {
			return 0, err
		}
	}
	return status, nil
}

// Close releases the engine. In-flight list streams are drained first;
// with persistence enabled the state database is closed afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.writers.Wait()
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// nextTxg advances the transaction group counter. Callers hold e.mu.
func (e *Engine) nextTxg() uint64 {
	e.txg++
	return e.txg
}

// newGUID issues a fresh dataset identity. Callers hold e.mu.
func (e *Engine) newGUID() uint64 {
	e.nextGUID++
	return guidSeed + e.nextGUID
}

// guidSeed keeps synthetic identities out of the small-integer range so
// they do not collide with counters in test assertions.
const guidSeed = 0x5a00000000000000

// unpackInput decodes a request's packed input List. A request without
// input gets an empty List so handlers need no nil checks.
func unpackInput(raw []byte) (*nvlist.List, unix.Errno) {
	if len(raw) == 0 {
		return nvlist.New(), 0
	}
	l, err := nvlist.Unpack(raw)
	if err != nil {
		return nil, unix.EINVAL
	}
	return l, 0
}

// ============================================================================
// Test hooks
// ============================================================================

// CreatePool provisions a pool and its root dataset. Pool creation is
// outside the management surface, so tests call this directly.
func (e *Engine) CreatePool(name string) error {
	if name == "" || strings.ContainsAny(name, "/@#") {
		return fmt.Errorf("sim: invalid pool name %q", name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	if _, ok := e.pools[name]; ok {
		return fmt.Errorf("sim: pool %q already exists", name)
	}

	e.pools[name] = &pool{
		Name: name,
		Datasets: map[string]*dataset{
			name: {
				Name:      name,
				Type:      typeFilesystem,
				Props:     map[string]any{},
				Snaps:     map[string]*snapshot{},
				Bookmarks: map[string]*bookmark{},
			},
		},
	}
	e.nextTxg()
	return e.persist()
}

// SetModified marks a dataset as changed since its newest snapshot.
// Rollback clears the mark; an unforced receive into a marked dataset
// reports the conflict.
func (e *Engine) SetModified(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}

	ds := e.lookupDataset(name)
	if ds == nil {
		return fmt.Errorf("sim: dataset %q does not exist", name)
	}
	ds.Modified = true
	return e.persist()
}

// CloseCleanupFD releases every hold registered under the given cleanup
// descriptor, the way the device does when the descriptor closes.
func (e *Engine) CloseCleanupFD(fd int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}

	for _, ref := range e.cleanups[fd] {
		ds, snap := e.lookupSnapshot(ref.snapshot)
		if snap == nil {
			continue
		}
		delete(snap.Holds, ref.tag)
		maybeReap(ds, snap)
	}
	delete(e.cleanups, fd)
	return e.persist()
}
