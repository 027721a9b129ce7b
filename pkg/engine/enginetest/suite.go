package enginetest

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
)

// Factory creates a fresh engine instance for each test. The engine
// must hold a single empty pool named PoolName. The factory receives
// *testing.T so it can use t.TempDir() for engines that need paths and
// t.Cleanup() for teardown.
type Factory func(t *testing.T) engine.Engine

// PoolName is the pool every factory provisions.
const PoolName = "tank"

// RunConformanceSuite runs the full conformance test suite against the
// provided engine factory. Each test gets a fresh engine so state
// never leaks between tests.
func RunConformanceSuite(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("Batches", func(t *testing.T) {
		runBatchTests(t, factory)
	})

	t.Run("Datasets", func(t *testing.T) {
		runDatasetTests(t, factory)
	})

	t.Run("Queries", func(t *testing.T) {
		runQueryTests(t, factory)
	})

	t.Run("Streams", func(t *testing.T) {
		runStreamTests(t, factory)
	})

	t.Run("Listing", func(t *testing.T) {
		runListTests(t, factory)
	})
}

// call issues one request without an output buffer and fails the test
// on transport errors; the returned status is the operation outcome.
func call(t *testing.T, eng engine.Engine, req *engine.Request) unix.Errno {
	t.Helper()

	status, err := eng.Call(t.Context(), req)
	if err != nil {
		t.Fatalf("Call(%s %q) failed: %v", req.Op, req.Name, err)
	}
	return status
}

// callReply issues one request with a reply buffer and decodes what
// the engine wrote. A nil List means the engine wrote nothing.
func callReply(t *testing.T, eng engine.Engine, req *engine.Request) (unix.Errno, *nvlist.List) {
	t.Helper()

	out := engine.NewOutput(0)
	defer out.Release()
	req.Output = out

	status := call(t, eng, req)
	if out.Len() == 0 {
		return status, nil
	}
	// Copy out of pool storage before the deferred Release.
	reply, err := nvlist.Unpack(append([]byte(nil), out.Bytes()...))
	if err != nil {
		t.Fatalf("Call(%s %q) reply does not decode: %v", req.Op, req.Name, err)
	}
	return status, reply
}

// packInput packs a List for the request input.
func packInput(t *testing.T, l *nvlist.List) []byte {
	t.Helper()

	data, err := nvlist.Pack(l)
	if err != nil {
		t.Fatalf("Pack() failed: %v", err)
	}
	return data
}

// flagList builds a List with the given names as presence flags, the
// shape batch target sets travel in.
func flagList(t *testing.T, names ...string) *nvlist.List {
	t.Helper()

	l := nvlist.New()
	for _, name := range names {
		if err := l.AddFlag(name); err != nil {
			t.Fatalf("AddFlag(%q) failed: %v", name, err)
		}
	}
	return l
}

// snapshotInput builds the input for a snapshot batch.
func snapshotInput(t *testing.T, names ...string) []byte {
	t.Helper()

	input := nvlist.New()
	if err := input.AddList("snaps", flagList(t, names...)); err != nil {
		t.Fatalf("AddList(snaps) failed: %v", err)
	}
	return packInput(t, input)
}

// createFilesystem provisions a filesystem dataset and fails the test
// if the engine refuses it.
func createFilesystem(t *testing.T, eng engine.Engine, name string) {
	t.Helper()

	input := nvlist.New()
	if err := input.AddInt32("type", 2); err != nil {
		t.Fatalf("AddInt32(type) failed: %v", err)
	}
	status := call(t, eng, &engine.Request{
		Op:    engine.OpCreate,
		Name:  name,
		Input: packInput(t, input),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("create %q: status %v", name, status)
	}
}

// createSnapshots snapshots the given targets in one batch and fails
// the test unless the whole batch succeeds.
func createSnapshots(t *testing.T, eng engine.Engine, names ...string) {
	t.Helper()

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpSnapshot,
		Name:  PoolName,
		Input: snapshotInput(t, names...),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("snapshot %v: status %v, reply %v", names, status, replyKeys(reply))
	}
}

// exists reports whether a dataset, snapshot, or bookmark is present.
func exists(t *testing.T, eng engine.Engine, name string) bool {
	t.Helper()

	status := call(t, eng, &engine.Request{Op: engine.OpExists, Name: name, FD: engine.NoFD})
	switch status {
	case 0:
		return true
	case unix.ENOENT:
		return false
	default:
		t.Fatalf("exists %q: status %v", name, status)
		return false
	}
}

// wantErrlist checks a per-target error map entry by entry.
func wantErrlist(t *testing.T, reply *nvlist.List, want map[string]unix.Errno) {
	t.Helper()

	if reply == nil {
		t.Fatalf("no error map in reply, want %d entries", len(want))
	}
	if reply.Len() != len(want) {
		t.Errorf("error map has %d entries %v, want %d", reply.Len(), replyKeys(reply), len(want))
	}
	for target, errno := range want {
		got, ok := reply.Int32(target)
		if !ok {
			t.Errorf("error map is missing %q", target)
			continue
		}
		if unix.Errno(got) != errno {
			t.Errorf("error map[%q] = %v, want %v", target, unix.Errno(got), errno)
		}
	}
}

func replyKeys(reply *nvlist.List) []string {
	if reply == nil {
		return nil
	}
	return reply.Names()
}
