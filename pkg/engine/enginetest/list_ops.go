package enginetest

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
)

// runListTests covers the framed record stream: ordering, filtering,
// and descriptor ownership on both the success and failure paths.
func runListTests(t *testing.T, factory Factory) {
	t.Run("Recursive", func(t *testing.T) { testListRecursive(t, factory) })
	t.Run("TypesFilter", func(t *testing.T) { testListTypesFilter(t, factory) })
	t.Run("SingleDataset", func(t *testing.T) { testListSingleDataset(t, factory) })
	t.Run("MissingName", func(t *testing.T) { testListMissingName(t, factory) })
	t.Run("AbandonedReader", func(t *testing.T) { testListAbandonedReader(t, factory) })
}

// listRecord is one decoded frame from the record stream.
type listRecord struct {
	name  string
	typ   string
	props *nvlist.List
}

// listRecords runs an enumeration through a pipe and decodes every
// frame. The engine owns the write end once the call succeeds.
func listRecords(t *testing.T, eng engine.Engine, name string, recurse bool, types ...string) []listRecord {
	t.Helper()

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	r := os.NewFile(uintptr(fds[0]), "list-records")
	defer r.Close()

	input := nvlist.New()
	if recurse {
		if err := input.AddFlag("recurse"); err != nil {
			t.Fatalf("AddFlag(recurse) failed: %v", err)
		}
	}
	if len(types) > 0 {
		if err := input.AddList("types", flagList(t, types...)); err != nil {
			t.Fatalf("AddList(types) failed: %v", err)
		}
	}

	status := call(t, eng, &engine.Request{Op: engine.OpList, Name: name, Input: packInput(t, input), FD: fds[1]})
	if status != 0 {
		_ = unix.Close(fds[1])
		t.Fatalf("list %q: status %v", name, status)
	}
	return decodeRecords(t, r)
}

// decodeRecords drains a record stream: big-endian size, one status
// byte, three reserved bytes, then the payload. A zero size terminates
// the stream and its status byte must report success.
func decodeRecords(t *testing.T, r io.Reader) []listRecord {
	t.Helper()

	br := bufio.NewReader(r)
	header := make([]byte, 8)
	var out []listRecord
	for {
		if _, err := io.ReadFull(br, header); err != nil {
			t.Fatalf("record stream ended without a terminator: %v", err)
		}
		size := binary.BigEndian.Uint32(header[:4])
		if size == 0 {
			if header[4] != 0 {
				t.Fatalf("record stream terminated with status %v", unix.Errno(header[4]))
			}
			return out
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(br, payload); err != nil {
			t.Fatalf("record stream ended mid-record: %v", err)
		}
		rec, err := nvlist.Unpack(payload)
		if err != nil {
			t.Fatalf("record does not decode: %v", err)
		}
		name, ok := rec.String("name")
		if !ok {
			t.Fatal("record carries no name")
		}
		typ, ok := rec.String("type")
		if !ok {
			t.Fatal("record carries no type")
		}
		props, _ := rec.List("properties")
		out = append(out, listRecord{name: name, typ: typ, props: props})
	}
}

func recordNames(records []listRecord) []string {
	names := make([]string, len(records))
	for i, rec := range records {
		names[i] = rec.name
	}
	return names
}

func wantNames(t *testing.T, records []listRecord, want ...string) {
	t.Helper()

	got := recordNames(records)
	if len(got) != len(want) {
		t.Fatalf("enumerated %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("enumerated %v, want %v", got, want)
		}
	}
}

// seedListTree provisions the tree the listing tests walk: two
// children, a grandchild, one snapshot, and one bookmark.
func seedListTree(t *testing.T, eng engine.Engine) {
	t.Helper()

	createFilesystem(t, eng, PoolName+"/a")
	createFilesystem(t, eng, PoolName+"/a/b")
	createFilesystem(t, eng, PoolName+"/c")
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
}

func testListRecursive(t *testing.T, factory Factory) {
	eng := factory(t)
	seedListTree(t, eng)

	// An empty name walks every pool. Datasets come in name order, each
	// followed by its snapshots and then its bookmarks.
	records := listRecords(t, eng, "", true)
	wantNames(t, records,
		PoolName,
		PoolName+"/a",
		PoolName+"/a@s1",
		PoolName+"/a#b1",
		PoolName+"/a/b",
		PoolName+"/c",
	)
}

func testListTypesFilter(t *testing.T, factory Factory) {
	eng := factory(t)
	seedListTree(t, eng)

	records := listRecords(t, eng, PoolName, true, "snapshot")
	wantNames(t, records, PoolName+"/a@s1")
	if records[0].typ != "snapshot" {
		t.Errorf("record type %q, want snapshot", records[0].typ)
	}
	if records[0].props == nil {
		t.Fatal("snapshot record carries no properties")
	}
	for _, prop := range []string{"guid", "createtxg"} {
		if v, ok := records[0].props.Uint64(prop); !ok || v == 0 {
			t.Errorf("snapshot prop %q = %d (present %t), want nonzero", prop, v, ok)
		}
	}

	records = listRecords(t, eng, PoolName, true, "filesystem")
	wantNames(t, records, PoolName, PoolName+"/a", PoolName+"/a/b", PoolName+"/c")
	for _, rec := range records {
		if rec.typ != "filesystem" {
			t.Errorf("record %q has type %q, want filesystem", rec.name, rec.typ)
		}
	}
}

func testListSingleDataset(t *testing.T, factory Factory) {
	eng := factory(t)
	seedListTree(t, eng)

	// Without recurse the named dataset still brings its snapshots and
	// bookmarks, but not its children.
	records := listRecords(t, eng, PoolName+"/a", false)
	wantNames(t, records, PoolName+"/a", PoolName+"/a@s1", PoolName+"/a#b1")

	records = listRecords(t, eng, PoolName+"/a@s1", false)
	wantNames(t, records, PoolName+"/a@s1")
}

func testListMissingName(t *testing.T, factory Factory) {
	eng := factory(t)

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	status := call(t, eng, &engine.Request{Op: engine.OpList, Name: PoolName + "/nope", FD: fds[1]})

	// The engine never took the descriptor, so both ends are ours.
	_ = unix.Close(fds[1])
	_ = unix.Close(fds[0])
	if status != unix.ENOENT {
		t.Errorf("list of a missing dataset: status %v, want ENOENT", status)
	}
}

func testListAbandonedReader(t *testing.T, factory Factory) {
	eng := factory(t)
	seedListTree(t, eng)

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	status := call(t, eng, &engine.Request{Op: engine.OpList, Name: PoolName, Input: packInput(t, flagList(t, "recurse")), FD: fds[1]})
	if status != 0 {
		_ = unix.Close(fds[1])
		_ = unix.Close(fds[0])
		t.Fatalf("list: status %v", status)
	}
	// Walk away without draining. The engine's writer must cope and the
	// engine must stay usable.
	_ = unix.Close(fds[0])

	records := listRecords(t, eng, PoolName+"/c", false)
	wantNames(t, records, PoolName+"/c")
}
