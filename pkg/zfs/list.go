package zfs

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/marmos91/zcore/internal/protocol/nvlist"
	"github.com/marmos91/zcore/pkg/engine"
	"github.com/marmos91/zcore/pkg/zfs/zerrors"
)

// Dataset type labels carried by list records and ListOptions.Types.
const (
	TypeFilesystem = "filesystem"
	TypeVolume     = "volume"
	TypeSnapshot   = "snapshot"
	TypeBookmark   = "bookmark"
)

// Each frame on the record stream opens with a fixed header: a
// big-endian uint32 payload size, one status byte, three zero bytes. A
// zero payload size terminates the stream, and only then is the status
// byte meaningful: it carries the enumeration's final status.
const (
	listHeaderSize = 8

	// maxListRecord bounds a single record's payload. Anything larger
	// means the stream is corrupt.
	maxListRecord = 16 * 1024 * 1024
)

// ListOptions adjusts dataset enumeration.
type ListOptions struct {
	// Recurse includes every descendant of the listed dataset instead
	// of the dataset alone.
	Recurse bool

	// Types keeps only the named dataset types. Empty keeps every
	// type.
	Types []string
}

// Dataset is one enumerated dataset.
type Dataset struct {
	// Name is the fully qualified name.
	Name string `json:"name"`

	// Type is one of the Type labels.
	Type string `json:"type"`

	// Properties carries the dataset's scalar properties.
	Properties map[string]any `json:"properties,omitempty"`
}

// List streams the datasets under name to fn in engine order: the named
// dataset first, its descendants after it when Recurse is set. An empty
// name enumerates every pool. fn returning an error stops the
// enumeration early and List returns that error.
func (c *Client) List(ctx context.Context, name string, opts *ListOptions, fn func(Dataset) error) error {
	if name != "" {
		if err := validateName(engine.OpList, name, flavorAny); err != nil {
			return err
		}
	}

	input := nvlist.New()
	if opts != nil {
		if opts.Recurse {
			_ = input.AddFlag("recurse")
		}
		if len(opts.Types) > 0 {
			for _, t := range opts.Types {
				switch t {
				case TypeFilesystem, TypeVolume, TypeSnapshot, TypeBookmark:
				default:
					return zerrors.NewNameInvalidError(string(engine.OpList), name,
						fmt.Sprintf("unknown dataset type %q", t))
				}
			}
			_ = input.AddList("types", nameFlags(opts.Types))
		}
	}

	set := NewTargetSet()
	if name != "" {
		set.Add(name)
	}

	_, err := c.run(ctx, engine.OpList, set, func(ctx context.Context) ([]string, error) {
		return nil, c.list(ctx, name, input, fn)
	})
	return err
}

// ListAll collects List's results into a slice.
func (c *Client) ListAll(ctx context.Context, name string, opts *ListOptions) ([]Dataset, error) {
	var out []Dataset
	if err := c.List(ctx, name, opts, func(ds Dataset) error {
		out = append(out, ds)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// list opens the record pipe, issues the call, and drains the stream.
// The engine owns the write end once the call succeeds; the client
// closes both ends when it fails.
func (c *Client) list(ctx context.Context, name string, input *nvlist.List, fn func(Dataset) error) error {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return zerrors.NewInternalError(string(engine.OpList), "record pipe", err)
	}
	r := os.NewFile(uintptr(fds[0]), "list-records")

	status, err := c.call(ctx, engine.OpList, name, input, fds[1])
	if err != nil || status != 0 {
		_ = unix.Close(fds[1])
		_ = r.Close()
		if err != nil {
			return err
		}
		return classifySingle(engine.OpList, name, status, notFoundKind)
	}

	// Closing the read end is also what stops the engine's writer when
	// fn aborts the enumeration early.
	defer r.Close()
	return drainRecords(ctx, name, r, fn)
}

func drainRecords(ctx context.Context, name string, r io.Reader, fn func(Dataset) error) error {
	br := bufio.NewReader(r)
	header := make([]byte, listHeaderSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := io.ReadFull(br, header); err != nil {
			return zerrors.NewInternalError(string(engine.OpList), "record stream ended without a terminator", err)
		}
		size := binary.BigEndian.Uint32(header[:4])
		if size == 0 {
			if errno := unix.Errno(header[4]); errno != 0 {
				return classifySingle(engine.OpList, name, errno, notFoundKind)
			}
			return nil
		}
		if size > maxListRecord {
			return zerrors.NewInternalError(string(engine.OpList),
				fmt.Sprintf("record claims %d bytes", size), nil)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(br, payload); err != nil {
			return zerrors.NewInternalError(string(engine.OpList), "record stream ended mid-record", err)
		}
		ds, err := decodeRecord(payload)
		if err != nil {
			return err
		}
		if err := fn(ds); err != nil {
			return err
		}
	}
}

func decodeRecord(payload []byte) (Dataset, error) {
	rec, err := nvlist.Unpack(payload)
	if err != nil {
		return Dataset{}, zerrors.NewInternalError(string(engine.OpList), "undecodable record", err)
	}
	name, ok := rec.String("name")
	if !ok {
		return Dataset{}, zerrors.NewInternalError(string(engine.OpList), "record carries no name", nil)
	}
	typ, ok := rec.String("type")
	if !ok {
		return Dataset{}, zerrors.NewInternalError(string(engine.OpList), "record carries no type", nil)
	}
	ds := Dataset{Name: name, Type: typ}
	if props, ok := rec.List("properties"); ok {
		m, merr := props.ScalarMap()
		if merr != nil {
			return Dataset{}, zerrors.NewInternalError(string(engine.OpList), "record properties are not scalar", merr)
		}
		ds.Properties = m
	}
	return ds, nil
}
