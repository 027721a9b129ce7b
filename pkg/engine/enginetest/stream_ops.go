package enginetest

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/pkg/engine"
)

// runStreamTests covers send, receive, and the stream identity the two
// share. Streams are staged through files; engines may produce them
// synchronously, so a pipe with both ends in this process can deadlock.
func runStreamTests(t *testing.T, factory Factory) {
	t.Run("SendReceiveFull", func(t *testing.T) { testSendReceiveFull(t, factory) })
	t.Run("SendReceiveIncremental", func(t *testing.T) { testSendReceiveIncremental(t, factory) })
	t.Run("ReceiveFullIntoExisting", func(t *testing.T) { testReceiveFullIntoExisting(t, factory) })
	t.Run("ReceiveCorruptStream", func(t *testing.T) { testReceiveCorruptStream(t, factory) })
	t.Run("SendGuards", func(t *testing.T) { testSendGuards(t, factory) })
	t.Run("ReceiveGuards", func(t *testing.T) { testReceiveGuards(t, factory) })
}

// sendStream serializes a snapshot into a file and returns its path.
func sendStream(t *testing.T, eng engine.Engine, snap, from string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "stream")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating stream file: %v", err)
	}
	defer f.Close()

	req := &engine.Request{Op: engine.OpSend, Name: snap, FD: int(f.Fd())}
	if from != "" {
		req.Input = stringInput(t, "fromsnap", from)
	}
	if status := call(t, eng, req); status != 0 {
		t.Fatalf("send %q from %q: status %v", snap, from, status)
	}
	return path
}

// receiveStream feeds a stream file into the engine as the named
// snapshot and returns the operation status.
func receiveStream(t *testing.T, eng engine.Engine, name, path string) unix.Errno {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening stream file: %v", err)
	}
	defer f.Close()

	return call(t, eng, &engine.Request{Op: engine.OpReceive, Name: name, FD: int(f.Fd())})
}

func testSendReceiveFull(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/src")
	createSnapshots(t, eng, PoolName+"/src@s1")

	path := sendStream(t, eng, PoolName+"/src@s1", "")
	if status := receiveStream(t, eng, PoolName+"/dst@s1", path); status != 0 {
		t.Fatalf("receive: status %v", status)
	}
	if !exists(t, eng, PoolName+"/dst") {
		t.Error("receive did not create the destination dataset")
	}
	if !exists(t, eng, PoolName+"/dst@s1") {
		t.Error("receive did not create the destination snapshot")
	}
}

func testSendReceiveIncremental(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/src")
	createSnapshots(t, eng, PoolName+"/src@s1")
	createSnapshots(t, eng, PoolName+"/src@s2")

	full := sendStream(t, eng, PoolName+"/src@s1", "")
	if status := receiveStream(t, eng, PoolName+"/dst@s1", full); status != 0 {
		t.Fatalf("seeding receive: status %v", status)
	}

	// The destination finds the incremental base by the identity the
	// full stream carried over.
	incr := sendStream(t, eng, PoolName+"/src@s2", PoolName+"/src@s1")
	if status := receiveStream(t, eng, PoolName+"/dst@s2", incr); status != 0 {
		t.Fatalf("incremental receive: status %v", status)
	}
	if !exists(t, eng, PoolName+"/dst@s2") {
		t.Error("incremental receive did not create the snapshot")
	}

	if status := receiveStream(t, eng, PoolName+"/dst@s2", incr); status != unix.EEXIST {
		t.Errorf("replayed incremental: status %v, want EEXIST", status)
	}

	createFilesystem(t, eng, PoolName+"/other")
	if status := receiveStream(t, eng, PoolName+"/other@s2", incr); status != unix.ENOENT {
		t.Errorf("incremental without its base: status %v, want ENOENT", status)
	}
}

func testReceiveFullIntoExisting(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/src")
	createFilesystem(t, eng, PoolName+"/dst")
	createSnapshots(t, eng, PoolName+"/src@s1")

	path := sendStream(t, eng, PoolName+"/src@s1", "")
	if status := receiveStream(t, eng, PoolName+"/dst@s1", path); status != unix.EEXIST {
		t.Errorf("full stream into an existing dataset: status %v, want EEXIST", status)
	}
}

func testReceiveCorruptStream(t *testing.T, factory Factory) {
	eng := factory(t)

	path := filepath.Join(t.TempDir(), "stream")
	if err := os.WriteFile(path, []byte("not a replication stream"), 0o644); err != nil {
		t.Fatalf("writing stream file: %v", err)
	}
	if status := receiveStream(t, eng, PoolName+"/dst@s1", path); status != unix.EBADE {
		t.Errorf("corrupt stream: status %v, want EBADE", status)
	}
	if exists(t, eng, PoolName+"/dst") {
		t.Error("corrupt stream created the destination dataset")
	}
}

func testSendGuards(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/src")
	createSnapshots(t, eng, PoolName+"/src@s1")
	createSnapshots(t, eng, PoolName+"/src@s2")

	status := call(t, eng, &engine.Request{Op: engine.OpSend, Name: PoolName + "/src@s1", FD: engine.NoFD})
	if status != unix.EBADF {
		t.Errorf("send without a descriptor: status %v, want EBADF", status)
	}

	f, err := os.Create(filepath.Join(t.TempDir(), "stream"))
	if err != nil {
		t.Fatalf("creating stream file: %v", err)
	}
	defer f.Close()

	status = call(t, eng, &engine.Request{Op: engine.OpSend, Name: PoolName + "/src@nope", FD: int(f.Fd())})
	if status != unix.ENOENT {
		t.Errorf("send of a missing snapshot: status %v, want ENOENT", status)
	}

	status = call(t, eng, &engine.Request{
		Op:    engine.OpSend,
		Name:  PoolName + "/src@s1",
		Input: stringInput(t, "fromsnap", PoolName+"/src@s2"),
		FD:    int(f.Fd()),
	})
	if status != unix.EXDEV {
		t.Errorf("send from a newer snapshot: status %v, want EXDEV", status)
	}
}

func testReceiveGuards(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/src")
	createSnapshots(t, eng, PoolName+"/src@s1")
	path := sendStream(t, eng, PoolName+"/src@s1", "")

	status := call(t, eng, &engine.Request{Op: engine.OpReceive, Name: PoolName + "/dst@s1", FD: engine.NoFD})
	if status != unix.EBADF {
		t.Errorf("receive without a descriptor: status %v, want EBADF", status)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening stream file: %v", err)
	}
	defer f.Close()
	status = call(t, eng, &engine.Request{Op: engine.OpReceive, Name: PoolName + "/dst", FD: int(f.Fd())})
	if status != unix.EINVAL {
		t.Errorf("receive into a dataset name: status %v, want EINVAL", status)
	}
}
