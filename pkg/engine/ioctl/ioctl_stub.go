//go:build !linux

// Package ioctl adapts the engine contract onto the host engine's
// control device, which only exists on linux hosts. Other platforms
// get a stub whose Open always fails; tests and local tooling use the
// sim engine instead.
package ioctl

import (
	"context"
	"errors"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/pkg/engine"
)

// DevicePath is the engine's control device on linux hosts.
const DevicePath = "/dev/zfs"

var errUnsupported = errors.New("engine control device requires linux")

// Engine is a placeholder handle on platforms without the control
// device.
type Engine struct{}

// Open fails on non-linux platforms.
func Open() (*Engine, error) {
	return nil, errUnsupported
}

// Call always reports the missing control device.
func (e *Engine) Call(ctx context.Context, req *engine.Request) (unix.Errno, error) {
	return 0, errUnsupported
}

// Close is a no-op.
func (e *Engine) Close() error {
	return nil
}
