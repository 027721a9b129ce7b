package enginetest

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
)

// runQueryTests covers the read-only operations and their replies.
func runQueryTests(t *testing.T, factory Factory) {
	t.Run("GetHolds", func(t *testing.T) { testGetHolds(t, factory) })
	t.Run("GetBookmarks", func(t *testing.T) { testGetBookmarks(t, factory) })
	t.Run("GetBookmarksPropFilter", func(t *testing.T) { testGetBookmarksPropFilter(t, factory) })
	t.Run("SendSpace", func(t *testing.T) { testSendSpace(t, factory) })
	t.Run("SnapRangeSpace", func(t *testing.T) { testSnapRangeSpace(t, factory) })
}

func testGetHolds(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createSnapshots(t, eng, PoolName+"/a@s1")

	status, reply := callReply(t, eng, &engine.Request{Op: engine.OpGetHolds, Name: PoolName + "/a@s1", FD: engine.NoFD})
	if status != 0 {
		t.Fatalf("get_holds: status %v", status)
	}
	if reply != nil && reply.Len() != 0 {
		t.Errorf("unheld snapshot reports holds %v", replyKeys(reply))
	}

	status, _ = callReply(t, eng, &engine.Request{
		Op:    engine.OpHold,
		Name:  PoolName,
		Input: holdInput(t, map[string]string{PoolName + "/a@s1": "backup"}),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("hold: status %v", status)
	}

	status, reply = callReply(t, eng, &engine.Request{Op: engine.OpGetHolds, Name: PoolName + "/a@s1", FD: engine.NoFD})
	if status != 0 {
		t.Fatalf("get_holds: status %v", status)
	}
	when, ok := reply.Uint64("backup")
	if !ok {
		t.Fatalf("get_holds reply %v is missing the backup tag", replyKeys(reply))
	}
	if when == 0 {
		t.Error("hold creation time is zero")
	}

	status, _ = callReply(t, eng, &engine.Request{Op: engine.OpGetHolds, Name: PoolName + "/a@nope", FD: engine.NoFD})
	if status != unix.ENOENT {
		t.Errorf("get_holds of a missing snapshot: status %v, want ENOENT", status)
	}
}

func testGetBookmarks(t *testing.T, factory Factory) {
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

	status, reply := callReply(t, eng, &engine.Request{Op: engine.OpGetBookmarks, Name: PoolName + "/a", FD: engine.NoFD})
	if status != 0 {
		t.Fatalf("get_bookmarks: status %v", status)
	}
	if reply == nil {
		t.Fatal("get_bookmarks wrote no reply")
	}
	entry, ok := reply.List("b1")
	if !ok {
		t.Fatalf("get_bookmarks reply %v is missing b1", replyKeys(reply))
	}
	for _, prop := range []string{"guid", "createtxg", "creation"} {
		if v, ok := entry.Uint64(prop); !ok || v == 0 {
			t.Errorf("bookmark prop %q = %d (present %t), want nonzero", prop, v, ok)
		}
	}

	status, _ = callReply(t, eng, &engine.Request{Op: engine.OpGetBookmarks, Name: PoolName + "/nope", FD: engine.NoFD})
	if status != unix.ENOENT {
		t.Errorf("get_bookmarks of a missing dataset: status %v, want ENOENT", status)
	}
}

func testGetBookmarksPropFilter(t *testing.T, factory Factory) {
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
		Op:    engine.OpGetBookmarks,
		Name:  PoolName + "/a",
		Input: packInput(t, flagList(t, "guid")),
		FD:    engine.NoFD,
	})
	if status != 0 {
		t.Fatalf("get_bookmarks: status %v", status)
	}
	entry, ok := reply.List("b1")
	if !ok {
		t.Fatalf("get_bookmarks reply %v is missing b1", replyKeys(reply))
	}
	if entry.Len() != 1 {
		t.Errorf("filtered bookmark entry carries %v, want only guid", entry.Names())
	}
	if _, ok := entry.Uint64("guid"); !ok {
		t.Error("filtered bookmark entry is missing guid")
	}
}

func spaceEstimate(t *testing.T, eng engine.Engine, snap, from string) uint64 {
	t.Helper()

	req := &engine.Request{Op: engine.OpSendSpace, Name: snap, FD: engine.NoFD}
	if from != "" {
		req.Input = stringInput(t, "fromsnap", from)
	}
	status, reply := callReply(t, eng, req)
	if status != 0 {
		t.Fatalf("send_space %q from %q: status %v", snap, from, status)
	}
	space, ok := reply.Uint64("space")
	if !ok {
		t.Fatalf("send_space reply %v carries no space", replyKeys(reply))
	}
	return space
}

func testSendSpace(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createFilesystem(t, eng, PoolName+"/b")
	createSnapshots(t, eng, PoolName+"/a@s1")
	createSnapshots(t, eng, PoolName+"/a@s2")

	full := spaceEstimate(t, eng, PoolName+"/a@s2", "")
	incremental := spaceEstimate(t, eng, PoolName+"/a@s2", PoolName+"/a@s1")
	if full == 0 || incremental == 0 {
		t.Fatalf("estimates full=%d incremental=%d, want nonzero", full, incremental)
	}
	if incremental >= full {
		t.Errorf("incremental estimate %d is not below the full %d", incremental, full)
	}

	status, _ := callReply(t, eng, &engine.Request{
		Op:    engine.OpSendSpace,
		Name:  PoolName + "/a@s2",
		Input: stringInput(t, "fromsnap", PoolName+"/a@nope"),
		FD:    engine.NoFD,
	})
	if status != unix.ENOENT {
		t.Errorf("send_space from a missing snapshot: status %v, want ENOENT", status)
	}

	createSnapshots(t, eng, PoolName+"/b@s1")
	status, _ = callReply(t, eng, &engine.Request{
		Op:    engine.OpSendSpace,
		Name:  PoolName + "/a@s2",
		Input: stringInput(t, "fromsnap", PoolName+"/b@s1"),
		FD:    engine.NoFD,
	})
	if status != unix.EXDEV {
		t.Errorf("send_space from another dataset: status %v, want EXDEV", status)
	}

	status, _ = callReply(t, eng, &engine.Request{
		Op:    engine.OpSendSpace,
		Name:  PoolName + "/a@s1",
		Input: stringInput(t, "fromsnap", PoolName+"/a@s2"),
		FD:    engine.NoFD,
	})
	if status != unix.EXDEV {
		t.Errorf("send_space from a newer snapshot: status %v, want EXDEV", status)
	}
}

func testSnapRangeSpace(t *testing.T, factory Factory) {
	eng := factory(t)
	createFilesystem(t, eng, PoolName+"/a")
	createSnapshots(t, eng, PoolName+"/a@s1")
	createSnapshots(t, eng, PoolName+"/a@s2")
	createSnapshots(t, eng, PoolName+"/a@s3")

	rangeSpace := func(first, last string) (unix.Errno, uint64) {
		status, reply := callReply(t, eng, &engine.Request{
			Op:    engine.OpSnapRangeSpace,
			Name:  last,
			Input: stringInput(t, "firstsnap", first),
			FD:    engine.NoFD,
		})
		if reply == nil {
			return status, 0
		}
		used, _ := reply.Uint64("used")
		return status, used
	}

	status, wide := rangeSpace(PoolName+"/a@s1", PoolName+"/a@s3")
	if status != 0 || wide == 0 {
		t.Fatalf("range [s1,s3]: status %v used %d", status, wide)
	}
	status, narrow := rangeSpace(PoolName+"/a@s2", PoolName+"/a@s3")
	if status != 0 {
		t.Fatalf("range [s2,s3]: status %v", status)
	}
	if narrow >= wide {
		t.Errorf("narrow range %d is not below the wide range %d", narrow, wide)
	}

	status, _ = rangeSpace(PoolName+"/a@s3", PoolName+"/a@s1")
	if status != unix.EINVAL {
		t.Errorf("reversed range: status %v, want EINVAL", status)
	}

	status, _ = rangeSpace(PoolName+"/a@nope", PoolName+"/a@s3")
	if status != unix.ENOENT {
		t.Errorf("range from a missing snapshot: status %v, want ENOENT", status)
	}
}
