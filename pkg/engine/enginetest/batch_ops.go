package enginetest

import (
	"fmt"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
)

// runBatchTests covers the batch operations: atomic creation, soft
// misses under success, hard per-target faults, and deferred destroys.
func runBatchTests(t *testing.T, factory Factory) {
	t.Run("SnapshotBatch", func(t *testing.T) { testSnapshotBatch(t, factory) })
	t.Run("SnapshotConflictVoidsBatch", func(t *testing.T) { testSnapshotConflictVoidsBatch(t, factory) })
	t.Run("SnapshotSameFilesystemTwice", func(t *testing.T) { testSnapshotSameFilesystemTwice(t, factory) })
	t.Run("DestroyMissingSnapshotsAreSoft", func(t *testing.T) { testDestroyMissingSnapshotsAreSoft(t, factory) })
	t.Run("DestroyAllMissingSucceeds", func(t *testing.T) { testDestroyAllMissingSucceeds(t, factory) })
	t.Run("DestroyHeldSnapshot", func(t *testing.T) { testDestroyHeldSnapshot(t, factory) })
	t.Run("DeferredDestroy", func(t *testing.T) { testDeferredDestroy(t, factory) })
	t.Run("HoldConflictVoidsBatch", func(t *testing.T) { testHoldConflictVoidsBatch(t, factory) })
	t.Run("HoldMissingSnapshotIsSoft", func(t *testing.T) { testHoldMissingSnapshotIsSoft(t, factory) })
	t.Run("ReleaseMissingTagIsSoft", func(t *testing.T) { testReleaseMissingTagIsSoft(t, factory) })
	t.Run("Bookmarks", func(t *testing.T) { testBookmarks(t, factory) })
	t.Run("DestroyMissingBookmarksAreSoft", func(t *testing.T) { testDestroyMissingBookmarksAreSoft(t, factory) })
	t.Run("ErrorMapRetryAfterENOMEM", func(t *testing.T) { testErrorMapRetryAfterENOMEM(t, factory) })
}

func destroyInput(t *testing.T, deferred bool, names ...string) []byte {
	t.Helper()

	input := nvlist.New()
	if err := input.AddList("snaps", flagList(t, names...)); err != nil {
		t.Fatalf("AddList(snaps) failed: %v", err)
	}
	if deferred {
		if err := input.AddFlag("defer"); err != nil {
			t.Fatalf("AddFlag(defer) failed: %v", err)
		}
	}
	return packInput(t, input)
}

func holdInput(t *testing.T, holds map[string]string) []byte {
	t.Helper()

	byTag := nvlist.New()
	for snap, tag := range holds {
		if err := byTag.AddString(snap, tag); err != nil {
			t.Fatalf("AddString(%q) failed: %v", snap, err)
		}
	}
	input := nvlist.New()
	if err := input.AddList("holds", byTag); err != nil {
		t.Fatalf("AddList(holds) failed: %v", err)
	}
	return packInput(t, input)
}

func releaseInput(t *testing.T, releases map[string][]string) []byte {
	t.Helper()

	input := nvlist.New()
	for snap, tags := range releases {
		if err := input.AddList(snap, flagList(t, tags...)); err != nil {
			t.Fatalf("AddList(%q) failed: %v", snap, err)
		}
	}
	return packInput(t, input)
}

func holdTags(t *testing.T, eng engine.Engine, snap string) []string {
	t.Helper()

	status, reply := callReply(t, eng, &engine.Request{Op: engine.OpGetHolds, Name: snap, FD: engine.NoFD})
	if status != 0 {
		t.Fatalf("get_holds %q: status %v", snap, status)
	}
	return replyKeys(reply)
}

func testSnapshotBatch(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createFilesystem(t, eng, PoolName+"/b")

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpSnapshot,
		Name:  PoolName,
		Input: snapshotInput(t, PoolName+"/a@s1", PoolName+"/b@s1"),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("snapshot batch: status %v", status)
	}
	if reply != nil {
		t.Errorf("snapshot batch wrote an error map %v on success", replyKeys(reply))
	}
	if !exists(t, eng, PoolName+"/a@s1") || !exists(t, eng, PoolName+"/b@s1") {
		t.Error("snapshots missing after successful batch")
	}
}

func testSnapshotConflictVoidsBatch(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createFilesystem(t, eng, PoolName+"/b")
	createSnapshots(t, eng, PoolName+"/a@s1")

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpSnapshot,
		Name:  PoolName,
		Input: snapshotInput(t, PoolName+"/a@s1", PoolName+"/b@s1"),
		FD:    engine.NoFD,
	})
	if status != unix.EEXIST {
		t.Fatalf("conflicting batch: status %v, want EEXIST", status)
	}
	wantErrlist(t, reply, map[string]unix.Errno{
		PoolName + "/a@s1": unix.EEXIST,
	})
	if exists(t, eng, PoolName+"/b@s1") {
		t.Error("b@s1 was created although the batch failed")
	}
}

func testSnapshotSameFilesystemTwice(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpSnapshot,
		Name:  PoolName,
		Input: snapshotInput(t, PoolName+"/a@s1", PoolName+"/a@s2"),
		FD:    engine.NoFD,
	})
	if status != unix.EXDEV {
		t.Fatalf("two snapshots of one filesystem: status %v, want EXDEV", status)
	}
	if reply != nil {
		t.Errorf("call-level rejection wrote an error map %v", replyKeys(reply))
	}
	if exists(t, eng, PoolName+"/a@s1") || exists(t, eng, PoolName+"/a@s2") {
		t.Error("snapshots were created although the batch was rejected")
	}
}

func testDestroyMissingSnapshotsAreSoft(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createFilesystem(t, eng, PoolName+"/b")
	createSnapshots(t, eng, PoolName+"/a@s1")

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpDestroySnapshots,
		Name:  PoolName,
		Input: destroyInput(t, false, PoolName+"/a@s1", PoolName+"/b@s1"),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("destroy with a missing target: status %v, want success", status)
	}
	wantErrlist(t, reply, map[string]unix.Errno{
		PoolName + "/b@s1": unix.ENOENT,
	})
	if exists(t, eng, PoolName+"/a@s1") {
		t.Error("a@s1 still exists after destroy")
	}
}

func testDestroyAllMissingSucceeds(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpDestroySnapshots,
		Name:  PoolName,
		Input: destroyInput(t, false, PoolName+"/a@nope1", PoolName+"/a@nope2"),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("destroy of absent targets: status %v, want success", status)
	}
	wantErrlist(t, reply, map[string]unix.Errno{
		PoolName + "/a@nope1": unix.ENOENT,
		PoolName + "/a@nope2": unix.ENOENT,
	})
}

func testDestroyHeldSnapshot(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createFilesystem(t, eng, PoolName+"/b")
	createSnapshots(t, eng, PoolName+"/a@s1", PoolName+"/b@s1")

	status, _ := callReply(t, eng, &engine.Request{
		Op:    engine.OpHold,
		Name:  PoolName,
		Input: holdInput(t, map[string]string{PoolName + "/a@s1": "keep"}),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("hold: status %v", status)
	}

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpDestroySnapshots,
		Name:  PoolName,
		Input: destroyInput(t, false, PoolName+"/a@s1", PoolName+"/b@s1"),
		FD:    engine.NoFD,
	})
	if status != unix.EBUSY {
		t.Fatalf("destroy of a held snapshot: status %v, want EBUSY", status)
	}
	wantErrlist(t, reply, map[string]unix.Errno{
		PoolName + "/a@s1": unix.EBUSY,
	})
	if !exists(t, eng, PoolName+"/a@s1") {
		t.Error("held snapshot was destroyed")
	}
	// The batch is best effort: the unblocked target still goes.
	if exists(t, eng, PoolName+"/b@s1") {
		t.Error("unheld snapshot survived the batch")
	}
}

func testDeferredDestroy(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createSnapshots(t, eng, PoolName+"/a@s1")

	status, _ := callReply(t, eng, &engine.Request{
		Op:    engine.OpHold,
		Name:  PoolName,
		Input: holdInput(t, map[string]string{PoolName + "/a@s1": "keep"}),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("hold: status %v", status)
	}

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpDestroySnapshots,
		Name:  PoolName,
		Input: destroyInput(t, true, PoolName+"/a@s1"),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("deferred destroy of a held snapshot: status %v, want success", status)
	}
	if reply != nil {
		t.Errorf("deferred destroy reported %v, want no error map", replyKeys(reply))
	}
	if !exists(t, eng, PoolName+"/a@s1") {
		t.Fatal("deferred snapshot disappeared while still held")
	}

	status, _ = callReply(t, eng, &engine.Request{
		Op:    engine.OpRelease,
		Name:  PoolName,
		Input: releaseInput(t, map[string][]string{PoolName + "/a@s1": {"keep"}}),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("release: status %v", status)
	}
	if exists(t, eng, PoolName+"/a@s1") {
		t.Error("deferred snapshot survived its last hold")
	}
}

func testHoldConflictVoidsBatch(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createFilesystem(t, eng, PoolName+"/b")
	createSnapshots(t, eng, PoolName+"/a@s1", PoolName+"/b@s1")

	status, _ := callReply(t, eng, &engine.Request{
		Op:    engine.OpHold,
		Name:  PoolName,
		Input: holdInput(t, map[string]string{PoolName + "/a@s1": "t1"}),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("hold: status %v", status)
	}

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpHold,
		Name:  PoolName,
		Input: holdInput(t, map[string]string{PoolName + "/a@s1": "t1", PoolName + "/b@s1": "t2"}),
		FD:    engine.NoFD,
	})
	if status != unix.EEXIST {
		t.Fatalf("conflicting hold batch: status %v, want EEXIST", status)
	}
	wantErrlist(t, reply, map[string]unix.Errno{
		PoolName + "/a@s1": unix.EEXIST,
	})
	if tags := holdTags(t, eng, PoolName+"/b@s1"); len(tags) != 0 {
		t.Errorf("b@s1 holds = %v after a voided batch, want none", tags)
	}
}

func testHoldMissingSnapshotIsSoft(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createSnapshots(t, eng, PoolName+"/a@s1")

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpHold,
		Name:  PoolName,
		Input: holdInput(t, map[string]string{PoolName + "/a@s1": "t1", PoolName + "/a@nope": "t2"}),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("hold with a missing target: status %v, want success", status)
	}
	wantErrlist(t, reply, map[string]unix.Errno{
		PoolName + "/a@nope": unix.ENOENT,
	})
	if tags := holdTags(t, eng, PoolName+"/a@s1"); len(tags) != 1 || tags[0] != "t1" {
		t.Errorf("a@s1 holds = %v, want [t1]", tags)
	}
}

func testReleaseMissingTagIsSoft(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createSnapshots(t, eng, PoolName+"/a@s1")

	status, _ := callReply(t, eng, &engine.Request{
		Op:    engine.OpHold,
		Name:  PoolName,
		Input: holdInput(t, map[string]string{PoolName + "/a@s1": "tag1"}),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("hold: status %v", status)
	}

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpRelease,
		Name:  PoolName,
		Input: releaseInput(t, map[string][]string{PoolName + "/a@s1": {"tag1", "missing-tag"}}),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("release with a missing tag: status %v, want success", status)
	}
	wantErrlist(t, reply, map[string]unix.Errno{
		PoolName + "/a@s1#missing-tag": unix.ENOENT,
	})
	if tags := holdTags(t, eng, PoolName+"/a@s1"); len(tags) != 0 {
		t.Errorf("a@s1 holds = %v after release, want none", tags)
	}
}

func testBookmarks(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createSnapshots(t, eng, PoolName+"/a@s1")

	input := nvlist.New()
	if err := input.AddString(PoolName+"/a#b1", PoolName+"/a@s1"); err != nil {
		t.Fatalf("AddString failed: %v", err)
	}
	status, _ := callReply(t, eng, &engine.Request{
		Op:    engine.OpBookmark,
		Name:  PoolName,
		Input: packInput(t, input),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("bookmark: status %v", status)
	}
	if !exists(t, eng, PoolName+"/a#b1") {
		t.Fatal("bookmark missing after creation")
	}

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpBookmark,
		Name:  PoolName,
		Input: packInput(t, input),
		FD:    engine.NoFD,
	})
	if status != unix.EEXIST {
		t.Fatalf("duplicate bookmark: status %v, want EEXIST", status)
	}
	wantErrlist(t, reply, map[string]unix.Errno{
		PoolName + "/a#b1": unix.EEXIST,
	})
}

func testDestroyMissingBookmarksAreSoft(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createSnapshots(t, eng, PoolName+"/a@s1")

	input := nvlist.New()
	if err := input.AddString(PoolName+"/a#b1", PoolName+"/a@s1"); err != nil {
		t.Fatalf("AddString failed: %v", err)
	}
	status, _ := callReply(t, eng, &engine.Request{
		Op:    engine.OpBookmark,
		Name:  PoolName,
		Input: packInput(t, input),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("bookmark: status %v", status)
	}

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpDestroyBookmarks,
		Name:  PoolName,
		Input: packInput(t, flagList(t, PoolName+"/a#b1", PoolName+"/a#nope")),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("destroy bookmarks: status %v, want success", status)
	}
	wantErrlist(t, reply, map[string]unix.Errno{
		PoolName + "/a#nope": unix.ENOENT,
	})
	if exists(t, eng, PoolName+"/a#b1") {
		t.Error("bookmark still exists after destroy")
	}
}

// testErrorMapRetryAfterENOMEM drives the reply retry protocol: a
// buffer too small for the error map must fail with ENOMEM and leave
// every target untouched, and the retried call must observe the same
// world.
func testErrorMapRetryAfterENOMEM(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createSnapshots(t, eng, PoolName+"/a@s1")

	targets := []string{PoolName + "/a@s1"}
	want := map[string]unix.Errno{}
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("%s/a@absent-snapshot-with-a-long-name-%02d", PoolName, i)
		targets = append(targets, name)
		want[name] = unix.ENOENT
	}

	small := engine.NewOutput(64)
	defer small.Release()
	status, err := eng.Call(t.Context(), &engine.Request{
		Op:     engine.OpDestroySnapshots,
		Name:   PoolName,
		Input:  destroyInput(t, false, targets...),
		Output: small,
		FD:     engine.NoFD,
	})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if status != unix.ENOMEM {
		t.Fatalf("destroy with a tiny reply buffer: status %v, want ENOMEM", status)
	}
	if !exists(t, eng, PoolName+"/a@s1") {
		t.Fatal("ENOMEM call destroyed a@s1; retries must see untouched state")
	}

	status, reply := callReply(t, eng, &engine.Request{
		Op:    engine.OpDestroySnapshots,
		Name:  PoolName,
		Input: destroyInput(t, false, targets...),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("retried destroy: status %v, want success", status)
	}
	wantErrlist(t, reply, want)
	if exists(t, eng, PoolName+"/a@s1") {
		t.Error("a@s1 still exists after the retried destroy")
	}
}
