package sim

import (
	"bytes"
	"io"
	"time"

	xdr "github.com/rasky/go-xdr/xdr2"
	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
)

// streamMagic identifies a replication stream written by this engine.
const streamMagic uint64 = 0x7a636f7265737472

const streamVersion uint32 = 1

// Stream feature flags.
const (
	streamFlagLargeBlocks uint32 = 1 << iota
	streamFlagEmbedded
	streamFlagCompressed
)

// wireStream is a replication stream as it travels over a descriptor:
// a fixed XDR header carrying the stream identity, then one packed
// List describing the snapshot state.
type wireStream struct {
	Magic    uint64
	Version  uint32
	Flags    uint32
	ToGUID   uint64
	FromGUID uint64
	Payload  []byte
}

// fdReader adapts a borrowed descriptor to io.Reader without taking
// ownership of it.
type fdReader struct {
	fd int
}

func (r fdReader) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(r.fd, p)
		if err == unix.EINTR {
			continue
		}
		if n == 0 && err == nil {
			return 0, io.EOF
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// fdWriter adapts a borrowed descriptor to io.Writer, finishing short
// writes so callers see the full-write contract.
type fdWriter struct {
	fd int
}

func (w fdWriter) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := unix.Write(w.fd, p[total:])
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// ============================================================================
// Send
// ============================================================================

// opSend serializes a snapshot, full or incremental, onto the request
// descriptor. The descriptor is borrowed; the caller closes it.
func (e *Engine) opSend(req *engine.Request, input *nvlist.List) (unix.Errno, error) {
	if req.FD < 0 {
		return unix.EBADF, nil
	}
	ds, to := e.lookupSnapshot(req.Name)
	if to == nil {
		return unix.ENOENT, nil
	}

	var fromGUID uint64
	if from, ok := input.String("fromsnap"); ok {
		guid, txg, errno := e.resolveSource(ds.Name, from)
		if errno != 0 {
			return errno, nil
		}
		if txg >= to.Txg {
			return unix.EXDEV, nil
		}
		fromGUID = guid
	}

	var flags uint32
	if input.Flag("largeblockok") {
		flags |= streamFlagLargeBlocks
	}
	if input.Flag("embedok") {
		flags |= streamFlagEmbedded
	}
	if input.Flag("compressok") {
		flags |= streamFlagCompressed
	}

	payload := nvlist.New()
	_ = payload.AddString("name", req.Name)
	_ = payload.AddString("type", ds.Type)
	if len(ds.Props) > 0 {
		props, err := nvlist.FromMap(ds.Props)
		if err != nil {
			return 0, err
		}
		_ = payload.AddList("props", props)
	}
	packed, err := nvlist.Pack(payload)
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if _, err := xdr.Marshal(&buf, wireStream{
		Magic:    streamMagic,
		Version:  streamVersion,
		Flags:    flags,
		ToGUID:   to.GUID,
		FromGUID: fromGUID,
		Payload:  packed,
	}); err != nil {
		return 0, err
	}
	if _, err := (fdWriter{fd: req.FD}).Write(buf.Bytes()); err != nil {
		if errno, ok := err.(unix.Errno); ok {
			return errno, nil
		}
		return 0, err
	}
	return 0, nil
}

// resolveSource resolves an incremental source, snapshot or bookmark,
// to the identity and transaction group it preserves. Sources must
// belong to the dataset being sent.
func (e *Engine) resolveSource(fs, source string) (guid, txg uint64, errno unix.Errno) {
	if srcFS, _, ok := splitSnap(source); ok {
		if srcFS != fs {
			return 0, 0, unix.EXDEV
		}
		_, snap := e.lookupSnapshot(source)
		if snap == nil {
			return 0, 0, unix.ENOENT
		}
		return snap.GUID, snap.Txg, 0
	}
	if srcFS, _, ok := splitBook(source); ok {
		if srcFS != fs {
			return 0, 0, unix.EXDEV
		}
		_, mark := e.lookupBookmark(source)
		if mark == nil {
			return 0, 0, unix.ENOENT
		}
		return mark.GUID, mark.CreateTxg, 0
	}
	return 0, 0, unix.EINVAL
}

// ============================================================================
// Receive
// ============================================================================

// opReceive materializes a stream from the request descriptor as a new
// snapshot, creating or updating the destination dataset.
func (e *Engine) opReceive(req *engine.Request, input *nvlist.List) (unix.Errno, func()) {
	if req.FD < 0 {
		return unix.EBADF, nil
	}
	if _, err := unix.FcntlInt(uintptr(req.FD), unix.F_GETFD, 0); err != nil {
		return unix.EBADF, nil
	}
	fs, short, ok := splitSnap(req.Name)
	if !ok {
		return unix.EINVAL, nil
	}
	force := input.Flag("force")
	overrides, errno := scalarProps(input)
	if errno != 0 {
		return errno, nil
	}

	var ws wireStream
	if _, err := xdr.Unmarshal(fdReader{fd: req.FD}, &ws); err != nil {
		return unix.EBADE, nil
	}
	if ws.Magic != streamMagic || ws.Version != streamVersion {
		return unix.EBADE, nil
	}
	payload, err := nvlist.Unpack(ws.Payload)
	if err != nil {
		return unix.EBADE, nil
	}
	dsType, ok := payload.String("type")
	if !ok || (dsType != typeFilesystem && dsType != typeVolume) {
		return unix.EBADE, nil
	}
	streamProps := map[string]any{}
	if props, ok := payload.List("props"); ok {
		if streamProps, err = props.ScalarMap(); err != nil {
			return unix.EBADE, nil
		}
	}

	ds := e.lookupDataset(fs)
	if ds != nil {
		return e.receiveIncremental(ds, short, &ws, streamProps, overrides, force)
	}
	return e.receiveFull(fs, short, &ws, dsType, streamProps, overrides, input)
}

// receiveIncremental applies a stream on top of an existing dataset.
// The stream's source snapshot must be present, and local changes stop
// the receive unless force discards them.
func (e *Engine) receiveIncremental(ds *dataset, short string, ws *wireStream, streamProps, overrides map[string]any, force bool) (unix.Errno, func()) {
	if ws.FromGUID == 0 {
		return unix.EEXIST, nil
	}
	var base *snapshot
	for _, snap := range ds.Snaps {
		if snap.GUID == ws.FromGUID {
			base = snap
			break
		}
	}
	if base == nil {
		return unix.ENOENT, nil
	}
	if ds.Modified && !force {
		return unix.ETXTBSY, nil
	}
	if ds.Snaps[short] != nil {
		return unix.EEXIST, nil
	}

	commit := func() {
		ds.Modified = false
		applyProps(ds, streamProps, overrides)
		e.addReceivedSnapshot(ds, short, ws.ToGUID)
	}
	return 0, commit
}

// receiveFull materializes a stream as a brand new dataset, optionally
// as a clone of a local origin snapshot.
func (e *Engine) receiveFull(fs, short string, ws *wireStream, dsType string, streamProps, overrides map[string]any, input *nvlist.List) (unix.Errno, func()) {
	if ws.FromGUID != 0 {
		return unix.ENOENT, nil
	}
	p := e.lookupPool(fs)
	if p == nil {
		return unix.ENOENT, nil
	}
	parent, ok := parentOf(fs)
	if !ok {
		return unix.ENOENT, nil
	}
	if p.Datasets[parent] == nil {
		return unix.ENOENT, nil
	}

	origin, hasOrigin := input.String("origin")
	var originSnap *snapshot
	if hasOrigin {
		if poolOf(origin) != poolOf(fs) {
			return unix.EXDEV, nil
		}
		_, originSnap = e.lookupSnapshot(origin)
		if originSnap == nil {
			return unix.ENOENT, nil
		}
	}

	commit := func() {
		ds := &dataset{
			Name:      fs,
			Type:      dsType,
			Props:     map[string]any{},
			Snaps:     map[string]*snapshot{},
			Bookmarks: map[string]*bookmark{},
		}
		applyProps(ds, streamProps, overrides)
		if hasOrigin {
			ds.Origin = origin
			originSnap.Clones[fs] = struct{}{}
		}
		p.Datasets[fs] = ds
		e.addReceivedSnapshot(ds, short, ws.ToGUID)
	}
	return 0, commit
}

// addReceivedSnapshot records the stream's end state as a snapshot,
// preserving the identity it carried.
func (e *Engine) addReceivedSnapshot(ds *dataset, short string, guid uint64) {
	txg := e.nextTxg()
	ds.Snaps[short] = &snapshot{
		Name:    short,
		Txg:     txg,
		GUID:    guid,
		Created: time.Now().UTC(),
		Used:    datasetBaseUsed/4 + snapshotStep*uint64(len(ds.Snaps)),
		Props:   map[string]any{},
		Holds:   map[string]time.Time{},
		Clones:  map[string]struct{}{},
	}
}

func applyProps(ds *dataset, streamProps, overrides map[string]any) {
	for k, v := range streamProps {
		ds.Props[k] = v
	}
	for k, v := range overrides {
		ds.Props[k] = v
	}
}
