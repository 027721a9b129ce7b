package zfs

import (
	"context"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// SendOptions adjusts replication stream generation.
type SendOptions struct {
	// From is the incremental source, a snapshot or bookmark in the
	// same lineage as the sent snapshot. Empty produces a full stream.
	From string

	// LargeBlocks permits records larger than 128 KiB in the stream.
	LargeBlocks bool

	// EmbeddedData permits compact records carrying small blocks
	// inline.
	EmbeddedData bool

	// Compressed carries blocks in their on-disk compressed form.
	Compressed bool
}

// Send writes the snapshot's replication stream to fd. The descriptor
// stays open and owned by the caller; Send returns once the whole
// stream has been written or the engine reports a fault.
func (c *Client) Send(ctx context.Context, snapshot string, fd int, opts *SendOptions) error {
	if err := validateName(engine.OpSend, snapshot, flavorSnapshot); err != nil {
		return err
	}
	input, err := sendInput(engine.OpSend, opts)
	if err != nil {
		return err
	}
	if fd < 0 {
		return zerrors.New(zerrors.ErrBadFileDescriptor, string(engine.OpSend), snapshot, 0)
	}

	set := NewTargetSet(snapshot)
	_, err = c.run(ctx, engine.OpSend, set, func(ctx context.Context) ([]string, error) {
		status, cerr := c.call(ctx, engine.OpSend, snapshot, input, fd)
		if cerr != nil {
			return nil, cerr
		}
		return nil, classifySingle(engine.OpSend, snapshot, status, sendKind)
	})
	return err
}

// SendSpace estimates the size of the stream Send would produce for
// the snapshot under the same options.
func (c *Client) SendSpace(ctx context.Context, snapshot string, opts *SendOptions) (uint64, error) {
	if err := validateName(engine.OpSendSpace, snapshot, flavorSnapshot); err != nil {
		return 0, err
	}
	input, err := sendInput(engine.OpSendSpace, opts)
	if err != nil {
		return 0, err
	}

	set := NewTargetSet(snapshot)
	var space uint64
	_, err = c.run(ctx, engine.OpSendSpace, set, func(ctx context.Context) ([]string, error) {
		status, reply, cerr := c.callOutput(ctx, engine.OpSendSpace, snapshot, input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		if status != 0 {
			return nil, classifySingle(engine.OpSendSpace, snapshot, status, sendKind)
		}
		space, cerr = replyUint64(engine.OpSendSpace, reply, "space")
		return nil, cerr
	})
	if err != nil {
		return 0, err
	}
	return space, nil
}

// SnapshotRangeSpace returns the space that would be reclaimed by
// destroying every snapshot between first and last inclusive. Both must
// be snapshots of one filesystem, first no later than last.
func (c *Client) SnapshotRangeSpace(ctx context.Context, first, last string) (uint64, error) {
	if err := validateName(engine.OpSnapRangeSpace, first, flavorSnapshot); err != nil {
		return 0, err
	}
	if err := validateName(engine.OpSnapRangeSpace, last, flavorSnapshot); err != nil {
		return 0, err
	}
	firstFS, _, _ := SplitSnapshot(first)
	lastFS, _, _ := SplitSnapshot(last)
	if firstFS != lastFS {
		return 0, zerrors.NewNameInvalidError(string(engine.OpSnapRangeSpace), first,
			"snapshots belong to different filesystems")
	}

	input := nvlist.New()
	_ = input.AddString("firstsnap", first)

	set := NewTargetSet(last)
	var used uint64
	_, err := c.run(ctx, engine.OpSnapRangeSpace, set, func(ctx context.Context) ([]string, error) {
		status, reply, cerr := c.callOutput(ctx, engine.OpSnapRangeSpace, last, input, engine.NoFD)
		if cerr != nil {
			return nil, cerr
		}
		if status != 0 {
			return nil, classifySingle(engine.OpSnapRangeSpace, last, status, sendKind)
		}
		used, cerr = replyUint64(engine.OpSnapRangeSpace, reply, "used")
		return nil, cerr
	})
	if err != nil {
		return 0, err
	}
	return used, nil
}

// sendInput encodes the shared send and send-space arguments.
func sendInput(op engine.Op, opts *SendOptions) (*nvlist.List, error) {
	input := nvlist.New()
	if opts == nil {
		return input, nil
	}
	if opts.From != "" {
		if !strings.ContainsAny(opts.From, "@#") {
			return nil, zerrors.NewNameInvalidError(string(op), opts.From,
				"incremental source must be a snapshot or bookmark")
		}
		if err := validateName(op, opts.From, flavorAny); err != nil {
			return nil, err
		}
		_ = input.AddString("fromsnap", opts.From)
	}
	if opts.LargeBlocks {
		_ = input.AddFlag("largeblockok")
	}
	if opts.EmbeddedData {
		_ = input.AddFlag("embedok")
	}
	if opts.Compressed {
		_ = input.AddFlag("compressok")
	}
	return input, nil
}

// replyUint64 extracts a single named counter from a query reply.
func replyUint64(op engine.Op, reply *nvlist.List, key string) (uint64, error) {
	if reply == nil {
		return 0, zerrors.NewInternalError(string(op), "reply carries no "+key, nil)
	}
	v, ok := reply.Uint64(key)
	if !ok {
		return 0, zerrors.NewInternalError(string(op), "reply carries no "+key, nil)
	}
	return v, nil
}

func sendKind(errno unix.Errno) (zerrors.Code, bool) {
	switch errno {
	case unix.ENOENT:
		return zerrors.ErrDatasetNotFound, true
	case unix.EXDEV:
		// The incremental source is not an ancestor of the sent
		// snapshot.
		return zerrors.ErrSnapshotMismatch, true
	case unix.EINVAL:
		return zerrors.ErrNameInvalid, true
	case unix.EBADF:
		return zerrors.ErrBadFileDescriptor, true
	}
	return 0, false
}
