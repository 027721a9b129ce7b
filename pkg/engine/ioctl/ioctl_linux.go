//go:build linux

// Package ioctl adapts the engine contract onto the host engine's
// control device. The adapter is deliberately thin: it marshals one
// Request into the device's command block, issues the ioctl, and hands
// the raw status back. All interpretation happens in pkg/zfs.
package ioctl

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/pkg/engine"
)

// DevicePath is the engine's control device.
const DevicePath = "/dev/zfs"

// Dispatch numbers of the control protocol, offset from the device
// base.
const iocBase = 'Z' << 8

var iocNumber = map[engine.Op]uintptr{
	engine.OpCreate:           iocBase + 1,
	engine.OpClone:            iocBase + 2,
	engine.OpPromote:          iocBase + 3,
	engine.OpRename:           iocBase + 4,
	engine.OpDestroy:          iocBase + 5,
	engine.OpSnapshot:         iocBase + 6,
	engine.OpDestroySnapshots: iocBase + 7,
	engine.OpBookmark:         iocBase + 8,
	engine.OpGetBookmarks:     iocBase + 9,
	engine.OpDestroyBookmarks: iocBase + 10,
	engine.OpHold:             iocBase + 11,
	engine.OpRelease:          iocBase + 12,
	engine.OpGetHolds:         iocBase + 13,
	engine.OpRollback:         iocBase + 14,
	engine.OpRollbackTo:       iocBase + 15,
	engine.OpSend:             iocBase + 16,
	engine.OpSendSpace:        iocBase + 17,
	engine.OpSnapRangeSpace:   iocBase + 18,
	engine.OpReceive:          iocBase + 19,
	engine.OpExists:           iocBase + 20,
	engine.OpSync:             iocBase + 21,
	engine.OpList:             iocBase + 22,
}

// cmdBlock is the fixed command record the control device consumes.
// Field order and widths are the device ABI; addresses point into the
// caller's memory for the duration of the ioctl.
type cmdBlock struct {
	name      [256]byte
	inputAddr uint64
	inputLen  uint64
	outAddr   uint64
	outCap    uint64
	outLen    uint64 // written back by the device
	fd        int64
}

// Engine is one open handle to the control device. Handles are safe
// for concurrent Calls; Close invalidates the handle.
type Engine struct {
	dev *os.File
}

// Open opens a fresh handle to the control device. Most callers want
// the shared process-wide handle instead, through zfs.Default.
func Open() (*Engine, error) {
	dev, err := os.OpenFile(DevicePath, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", DevicePath, err)
	}
	return &Engine{dev: dev}, nil
}

// Call marshals req into a command block and issues the ioctl. The
// returned errno is the device's verbatim status.
func (e *Engine) Call(ctx context.Context, req *engine.Request) (unix.Errno, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	num, ok := iocNumber[req.Op]
	if !ok {
		return 0, fmt.Errorf("no dispatch number for op %q", req.Op)
	}

	var cmd cmdBlock
	if len(req.Name) >= len(cmd.name) {
		return unix.ENAMETOOLONG, nil
	}
	copy(cmd.name[:], req.Name)
	if len(req.Input) > 0 {
		cmd.inputAddr = uint64(uintptr(unsafe.Pointer(&req.Input[0])))
		cmd.inputLen = uint64(len(req.Input))
	}
	var raw []byte
	if req.Output != nil {
		raw = req.Output.Raw()
		cmd.outAddr = uint64(uintptr(unsafe.Pointer(&raw[0])))
		cmd.outCap = uint64(len(raw))
	}
	cmd.fd = int64(req.FD)

	_, _, errno := unix.Syscall(unix.SYS_IOCTL, e.dev.Fd(), num, uintptr(unsafe.Pointer(&cmd)))
	runtime.KeepAlive(req.Input)
	runtime.KeepAlive(raw)

	if req.Output != nil && errno != unix.ENOMEM {
		if err := req.Output.SetLen(int(cmd.outLen)); err != nil {
			return 0, fmt.Errorf("device reply length: %w", err)
		}
	}
	return errno, nil
}

// Close releases the device handle.
func (e *Engine) Close() error {
	return e.dev.Close()
}
