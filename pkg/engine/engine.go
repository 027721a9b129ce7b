// Package engine defines the boundary contract between the management
// client and a storage engine.
//
// An Engine executes one synchronous operation per Call: it receives at
// most one packed argument List, an optional pre-allocated output buffer
// and an optional stream descriptor, and returns a single coarse errno
// status. All structure beyond the scalars travels inside packed Lists;
// reconstructing per-target outcomes from the status and the reply List is
// the caller's job (see pkg/zfs).
//
// Two implementations exist: the ioctl adapter speaking to a live engine
// through its control device, and the sim engine, an in-memory
// implementation of the same contract used by tests and local tooling.
package engine

import (
	"context"

	"golang.org/x/sys/unix"
)

// Op names a boundary operation. The set mirrors the engine's control
// interface; adapters map each Op to their own dispatch mechanism.
type Op string

const (
	OpCreate           Op = "create"
	OpClone            Op = "clone"
	OpPromote          Op = "promote"
	OpRename           Op = "rename"
	OpDestroy          Op = "destroy"
	OpSnapshot         Op = "snapshot"
	OpDestroySnapshots Op = "destroy_snapshots"
	OpBookmark         Op = "bookmark"
	OpGetBookmarks     Op = "get_bookmarks"
	OpDestroyBookmarks Op = "destroy_bookmarks"
	OpHold             Op = "hold"
	OpRelease          Op = "release"
	OpGetHolds         Op = "get_holds"
	OpRollback         Op = "rollback"
	OpRollbackTo       Op = "rollback_to"
	OpSend             Op = "send"
	OpSendSpace        Op = "send_space"
	OpSnapRangeSpace   Op = "snaprange_space"
	OpReceive          Op = "receive"
	OpExists           Op = "exists"
	OpSync             Op = "sync"
	OpList             Op = "list"
)

// NoFD marks a request that carries no stream descriptor.
const NoFD = -1

// Request describes one boundary call.
type Request struct {
	// Op selects the operation.
	Op Op

	// Name is the primary object of the operation: a dataset, snapshot,
	// bookmark or pool name depending on Op. For batch operations it names
	// the pool the targets live in.
	Name string

	// Input is the packed argument List, or nil when the operation takes
	// only scalars.
	Input []byte

	// Output, when non-nil, receives the engine's reply List: an error map
	// for batch operations, a result List for queries. The engine returns
	// ENOMEM without side effects if the reply does not fit.
	Output *OutputBuffer

	// FD is the caller-owned stream descriptor for send, receive and list
	// operations, NoFD otherwise. The engine never closes or duplicates
	// it, except that list transfers ownership of the write side for the
	// duration of the record stream.
	FD int
}

// Engine executes boundary operations.
//
// Call is synchronous: it returns only once the engine has accepted or
// rejected the operation, and it is not cancellable mid-flight — the
// context is consulted before submission only. The returned errno is the
// engine's coarse status (0 for success); the error return is reserved for
// transport-level failures (initialization, device I/O), under which the
// errno is meaningless.
//
// Implementations must be safe for concurrent use.
type Engine interface {
	Call(ctx context.Context, req *Request) (unix.Errno, error)
	Close() error
}
