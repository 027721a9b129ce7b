package zfs

import (
	"context"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// ReceiveOptions adjusts replication stream application.
type ReceiveOptions struct {
	// Force rolls the destination back to its most recent snapshot
	// before applying an incremental stream, discarding local changes.
	Force bool

	// Resumable preserves the partially received state when the
	// transfer is interrupted, so a later receive can pick up where it
	// stopped.
	Resumable bool

	// Origin receives the stream as a clone of this snapshot instead of
	// a standalone dataset.
	Origin string

	// Properties override received properties at the destination.
	Properties map[string]any
}

// Receive applies a replication stream read from fd, creating the named
// snapshot and, when the stream is a full one, the dataset under it.
// The descriptor stays open and owned by the caller.
func (c *Client) Receive(ctx context.Context, snapshot string, fd int, opts *ReceiveOptions) error {
	if err := validateName(engine.OpReceive, snapshot, flavorSnapshot); err != nil {
		return err
	}
	if fd < 0 {
		return zerrors.New(zerrors.ErrBadFileDescriptor, string(engine.OpReceive), snapshot, 0)
	}

	input := nvlist.New()
	if opts != nil {
		if opts.Force {
			_ = input.AddFlag("force")
		}
		if opts.Resumable {
			_ = input.AddFlag("resumable")
		}
		if opts.Origin != "" {
			if err := validateName(engine.OpReceive, opts.Origin, flavorSnapshot); err != nil {
				return err
			}
			_ = input.AddString("origin", opts.Origin)
		}
		if len(opts.Properties) > 0 {
			props, perr := propsList(engine.OpReceive, snapshot, opts.Properties)
			if perr != nil {
				return perr
			}
			_ = input.AddList("props", props)
		}
	}

	set := NewTargetSet(snapshot)
	_, err := c.run(ctx, engine.OpReceive, set, func(ctx context.Context) ([]string, error) {
		status, cerr := c.call(ctx, engine.OpReceive, snapshot, input, fd)
		if cerr != nil {
			return nil, cerr
		}
		return nil, classifySingle(engine.OpReceive, snapshot, status, receiveKind)
	})
	return err
}

func receiveKind(errno unix.Errno) (zerrors.Code, bool) {
	switch errno {
	case unix.ETXTBSY:
		// The destination changed since its snapshot the stream is
		// incremental from; receive with Force to discard the changes.
		return zerrors.ErrDestinationModified, true
	case unix.EBADE:
		// Checksum mismatch in the stream.
		return zerrors.ErrStreamCorrupt, true
	case unix.EINVAL:
		return zerrors.ErrStreamCorrupt, true
	case unix.EEXIST:
		return zerrors.ErrDatasetExists, true
	case unix.ENOENT:
		return zerrors.ErrDatasetNotFound, true
	case unix.EBUSY:
		return zerrors.ErrDatasetBusy, true
	case unix.EBADF:
		return zerrors.ErrBadFileDescriptor, true
	case unix.EXDEV:
		return zerrors.ErrPoolsDiffer, true
	}
	return 0, false
}
