package enginetest

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
)

// runDatasetTests covers the single-target lifecycle operations.
func runDatasetTests(t *testing.T, factory Factory) {
	t.Run("CreateFilesystem", func(t *testing.T) { testCreateFilesystem(t, factory) })
	t.Run("CreateVolume", func(t *testing.T) { testCreateVolume(t, factory) })
	t.Run("CreateGuards", func(t *testing.T) { testCreateGuards(t, factory) })
	t.Run("CloneAndPromote", func(t *testing.T) { testCloneAndPromote(t, factory) })
	t.Run("Rename", func(t *testing.T) { testRename(t, factory) })
	t.Run("RenameGuards", func(t *testing.T) { testRenameGuards(t, factory) })
	t.Run("DestroyGuards", func(t *testing.T) { testDestroyGuards(t, factory) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, factory) })
	t.Run("RollbackTo", func(t *testing.T) { testRollbackTo(t, factory) })
	t.Run("Sync", func(t *testing.T) { testSync(t, factory) })
}

func createInput(t *testing.T, objsetType int32, props map[string]any) []byte {
	t.Helper()

	input := nvlist.New()
	if err := input.AddInt32("type", objsetType); err != nil {
		t.Fatalf("AddInt32(type) failed: %v", err)
	}
	if props != nil {
		list, err := nvlist.FromMap(props)
		if err != nil {
			t.Fatalf("FromMap() failed: %v", err)
		}
		if err := input.AddList("props", list); err != nil {
			t.Fatalf("AddList(props) failed: %v", err)
		}
	}
	return packInput(t, input)
}

func stringInput(t *testing.T, key, value string) []byte {
	t.Helper()

	input := nvlist.New()
	if err := input.AddString(key, value); err != nil {
		t.Fatalf("AddString(%q) failed: %v", key, err)
	}
	return packInput(t, input)
}

func testCreateFilesystem(t *testing.T, factory Factory) {
	eng := factory(t)

	createFilesystem(t, eng, PoolName+"/data")
	if !exists(t, eng, PoolName+"/data") {
		t.Fatal("filesystem missing after create")
	}

	status := call(t, eng, &engine.Request{
		Op:    engine.OpCreate,
		Name:  PoolName + "/data",
		Input: createInput(t, 2, nil),
		FD:    engine.NoFD,
	})
	if status != unix.EEXIST {
		t.Errorf("duplicate create: status %v, want EEXIST", status)
	}
}

func testCreateVolume(t *testing.T, factory Factory) {
	eng := factory(t)

	status := call(t, eng, &engine.Request{
		Op:    engine.OpCreate,
		Name:  PoolName + "/vol",
		Input: createInput(t, 3, nil),
		FD:    engine.NoFD,
	})
	if status != unix.EINVAL {
		t.Fatalf("volume without volsize: status %v, want EINVAL", status)
	}

	status = call(t, eng, &engine.Request{
		Op:    engine.OpCreate,
		Name:  PoolName + "/vol",
		Input: createInput(t, 3, map[string]any{"volsize": uint64(1 << 30)}),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("volume create: status %v", status)
	}
	if !exists(t, eng, PoolName+"/vol") {
		t.Error("volume missing after create")
	}
}

func testCreateGuards(t *testing.T, factory Factory) {
	eng := factory(t)

	status := call(t, eng, &engine.Request{
		Op:    engine.OpCreate,
		Name:  PoolName + "/missing/child",
		Input: createInput(t, 2, nil),
		FD:    engine.NoFD,
	})
	if status != unix.ENOENT {
		t.Errorf("create under a missing parent: status %v, want ENOENT", status)
	}

	status = call(t, eng, &engine.Request{
		Op:    engine.OpCreate,
		Name:  "nosuchpool/data",
		Input: createInput(t, 2, nil),
		FD:    engine.NoFD,
	})
	if status != unix.ENOENT {
		t.Errorf("create in a missing pool: status %v, want ENOENT", status)
	}
}

func testCloneAndPromote(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/src")
	createSnapshots(t, eng, PoolName+"/src@base")

	status := call(t, eng, &engine.Request{
		Op:    engine.OpClone,
		Name:  PoolName + "/cl",
		Input: stringInput(t, "origin", PoolName+"/src@base"),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("clone: status %v", status)
	}
	if !exists(t, eng, PoolName+"/cl") {
		t.Fatal("clone missing after create")
	}

	// A snapshot on the clone that shadows a migrating origin snapshot
	// blocks promotion and is named in the reply.
	createSnapshots(t, eng, PoolName+"/cl@base")
	status, reply := callReply(t, eng, &engine.Request{
		Op:   engine.OpPromote,
		Name: PoolName + "/cl",
		FD:   engine.NoFD,
	})
	if status != unix.EEXIST {
		t.Fatalf("conflicting promote: status %v, want EEXIST", status)
	}
	if reply == nil {
		t.Fatal("conflicting promote wrote no reply")
	}
	if got, _ := reply.String("snapname"); got != PoolName+"/cl@base" {
		t.Errorf("conflict snapname = %q, want %q", got, PoolName+"/cl@base")
	}

	status, _ = callReply(t, eng, &engine.Request{
		Op:    engine.OpDestroySnapshots,
		Name:  PoolName,
		Input: destroyInput(t, false, PoolName+"/cl@base"),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("destroy conflicting snapshot: status %v", status)
	}

	status, _ = callReply(t, eng, &engine.Request{
		Op:   engine.OpPromote,
		Name: PoolName + "/cl",
		FD:   engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("promote: status %v", status)
	}
	if !exists(t, eng, PoolName+"/cl@base") {
		t.Error("origin snapshot did not migrate to the promoted clone")
	}
	if exists(t, eng, PoolName+"/src@base") {
		t.Error("origin snapshot still present on the former origin")
	}

	// Roles swapped: the former origin is now the clone and promotes back.
	status, _ = callReply(t, eng, &engine.Request{
		Op:   engine.OpPromote,
		Name: PoolName + "/src",
		FD:   engine.NoFD,
	})
	if status != 0 {
		t.Errorf("promote back: status %v", status)
	}
}

func testRename(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/old")
	createSnapshots(t, eng, PoolName+"/old@s1")

	status := call(t, eng, &engine.Request{
		Op:    engine.OpRename,
		Name:  PoolName + "/old",
		Input: stringInput(t, "newname", PoolName+"/new"),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("rename: status %v", status)
	}
	if exists(t, eng, PoolName+"/old") {
		t.Error("old name still present after rename")
	}
	if !exists(t, eng, PoolName+"/new") {
		t.Error("new name missing after rename")
	}
	if !exists(t, eng, PoolName+"/new@s1") {
		t.Error("snapshot did not move with its dataset")
	}
}

func testRenameGuards(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createFilesystem(t, eng, PoolName+"/b")

	status := call(t, eng, &engine.Request{
		Op:    engine.OpRename,
		Name:  PoolName + "/a",
		Input: stringInput(t, "newname", PoolName+"/b"),
		FD:    engine.NoFD,
	})
	if status != unix.EEXIST {
		t.Errorf("rename onto an existing dataset: status %v, want EEXIST", status)
	}

	status = call(t, eng, &engine.Request{
		Op:    engine.OpRename,
		Name:  PoolName + "/missing",
		Input: stringInput(t, "newname", PoolName+"/c"),
		FD:    engine.NoFD,
	})
	if status != unix.ENOENT {
		t.Errorf("rename of a missing dataset: status %v, want ENOENT", status)
	}

	status = call(t, eng, &engine.Request{
		Op:    engine.OpRename,
		Name:  PoolName,
		Input: stringInput(t, "newname", PoolName+"/c"),
		FD:    engine.NoFD,
	})
	if status != unix.EINVAL {
		t.Errorf("rename of the pool root: status %v, want EINVAL", status)
	}
}

func testDestroyGuards(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/parent")
	createFilesystem(t, eng, PoolName+"/parent/child")
	createSnapshots(t, eng, PoolName+"/parent/child@s1")

	status := call(t, eng, &engine.Request{Op: engine.OpDestroy, Name: PoolName + "/parent", FD: engine.NoFD})
	if status != unix.EEXIST {
		t.Errorf("destroy with children: status %v, want EEXIST", status)
	}

	status = call(t, eng, &engine.Request{Op: engine.OpDestroy, Name: PoolName + "/parent/child", FD: engine.NoFD})
	if status != unix.EBUSY {
		t.Errorf("destroy with snapshots: status %v, want EBUSY", status)
	}

	statusReply, _ := callReply(t, eng, &engine.Request{
		Op:    engine.OpDestroySnapshots,
		Name:  PoolName,
		Input: destroyInput(t, false, PoolName+"/parent/child@s1"),
		FD:    engine.NoFD,
	})
	if statusReply != 0 {
		t.Fatalf("destroy snapshots: status %v", statusReply)
	}
	status = call(t, eng, &engine.Request{Op: engine.OpDestroy, Name: PoolName + "/parent/child", FD: engine.NoFD})
	if status != 0 {
		t.Fatalf("destroy child: status %v", status)
	}
	status = call(t, eng, &engine.Request{Op: engine.OpDestroy, Name: PoolName + "/parent", FD: engine.NoFD})
	if status != 0 {
		t.Fatalf("destroy parent: status %v", status)
	}

	status = call(t, eng, &engine.Request{Op: engine.OpDestroy, Name: PoolName, FD: engine.NoFD})
	if status != unix.EBUSY {
		t.Errorf("destroy of the pool root: status %v, want EBUSY", status)
	}
}

func testRollback(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")

	status, _ := callReply(t, eng, &engine.Request{Op: engine.OpRollback, Name: PoolName + "/a", FD: engine.NoFD})
	if status != unix.ESRCH {
		t.Fatalf("rollback without snapshots: status %v, want ESRCH", status)
	}

	createSnapshots(t, eng, PoolName+"/a@s1")
	createSnapshots(t, eng, PoolName+"/a@s2")

	status, reply := callReply(t, eng, &engine.Request{Op: engine.OpRollback, Name: PoolName + "/a", FD: engine.NoFD})
	if status != 0 {
		t.Fatalf("rollback: status %v", status)
	}
	if reply == nil {
		t.Fatal("rollback wrote no reply")
	}
	if got, _ := reply.String("target"); got != PoolName+"/a@s2" {
		t.Errorf("rollback target = %q, want %q", got, PoolName+"/a@s2")
	}
}

func testRollbackTo(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createSnapshots(t, eng, PoolName+"/a@s1")
	createSnapshots(t, eng, PoolName+"/a@s2")

	status := call(t, eng, &engine.Request{
		Op:    engine.OpRollbackTo,
		Name:  PoolName + "/a",
		Input: stringInput(t, "target", PoolName+"/a@s1"),
		FD:    engine.NoFD,
	})
	if status != unix.EEXIST {
		t.Fatalf("rollback past a newer snapshot: status %v, want EEXIST", status)
	}

	status = call(t, eng, &engine.Request{
		Op:    engine.OpRollbackTo,
		Name:  PoolName + "/a",
		Input: stringInput(t, "target", PoolName+"/a@s2"),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("rollback to the newest snapshot: status %v", status)
	}
}

func testSync(t *testing.T, factory Factory) {
	eng := factory(t)

	status := call(t, eng, &engine.Request{Op: engine.OpSync, Name: PoolName, FD: engine.NoFD})
	if status != 0 {
		t.Errorf("sync: status %v", status)
	}

	status = call(t, eng, &engine.Request{Op: engine.OpSync, Name: "nosuchpool", FD: engine.NoFD})
	if status != unix.ENOENT {
		t.Errorf("sync of a missing pool: status %v, want ENOENT", status)
	}
}
