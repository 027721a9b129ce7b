package nvlist

import (
	"bytes"
	"errors"
	"fmt"

	xdr "github.com/rasky/go-xdr/xdr2"
)

// ============================================================================
// Scalar layer - single typed values to/from their XDR wire form
// ============================================================================
//
// Every scalar on the wire is XDR-encoded (RFC 4506): integers narrower than
// 32 bits travel widened to 4 bytes, 64-bit integers as 8-byte hypers,
// strings as length-prefixed data padded to a 4-byte boundary, byte arrays
// as fixed-length opaque data padded to a 4-byte boundary. The list layer
// (encode.go, decode.go) composes these into tagged pairs.

// ErrMalformed is the base error for every rejected buffer: truncation,
// bad tags, size mismatches, range violations, duplicate names. Use
// errors.Is to test for it.
var ErrMalformed = errors.New("nvlist: malformed buffer")

// scalarEncoder writes XDR scalars into a buffer.
type scalarEncoder struct {
	buf *bytes.Buffer
	enc *xdr.Encoder
}

func newScalarEncoder(buf *bytes.Buffer) *scalarEncoder {
	return &scalarEncoder{buf: buf, enc: xdr.NewEncoder(buf)}
}

func (e *scalarEncoder) writeInt(v int32) error {
	if _, err := e.enc.EncodeInt(v); err != nil {
		return fmt.Errorf("write int32: %w", err)
	}
	return nil
}

func (e *scalarEncoder) writeUint(v uint32) error {
	if _, err := e.enc.EncodeUint(v); err != nil {
		return fmt.Errorf("write uint32: %w", err)
	}
	return nil
}

func (e *scalarEncoder) writeHyper(v int64) error {
	if _, err := e.enc.EncodeHyper(v); err != nil {
		return fmt.Errorf("write int64: %w", err)
	}
	return nil
}

func (e *scalarEncoder) writeUhyper(v uint64) error {
	if _, err := e.enc.EncodeUhyper(v); err != nil {
		return fmt.Errorf("write uint64: %w", err)
	}
	return nil
}

func (e *scalarEncoder) writeBool(v bool) error {
	if _, err := e.enc.EncodeBool(v); err != nil {
		return fmt.Errorf("write bool: %w", err)
	}
	return nil
}

func (e *scalarEncoder) writeDouble(v float64) error {
	if _, err := e.enc.EncodeDouble(v); err != nil {
		return fmt.Errorf("write double: %w", err)
	}
	return nil
}

// writeString writes a length-prefixed, padded string.
func (e *scalarEncoder) writeString(v string) error {
	if _, err := e.enc.EncodeString(v); err != nil {
		return fmt.Errorf("write string: %w", err)
	}
	return nil
}

// writeOpaque writes fixed-length opaque data padded to a 4-byte boundary.
// The length is not written; it travels in the pair's element count.
func (e *scalarEncoder) writeOpaque(v []byte) error {
	if _, err := e.enc.EncodeFixedOpaque(v); err != nil {
		return fmt.Errorf("write opaque: %w", err)
	}
	return nil
}

// scalarDecoder reads XDR scalars from an in-memory buffer. All
// variable-length reads are bounds-checked against the bytes remaining
// before any allocation, so a corrupted length field cannot trigger a
// huge allocation or an out-of-bounds read.
type scalarDecoder struct {
	r    *bytes.Reader
	dec  *xdr.Decoder
	size int
}

func newScalarDecoder(data []byte) *scalarDecoder {
	r := bytes.NewReader(data)
	return &scalarDecoder{r: r, dec: xdr.NewDecoder(r), size: len(data)}
}

// offset returns the number of bytes consumed so far.
func (d *scalarDecoder) offset() int {
	return d.size - d.r.Len()
}

// remaining returns the number of bytes left to read.
func (d *scalarDecoder) remaining() int {
	return d.r.Len()
}

// fail builds a decode error at the current offset.
func (d *scalarDecoder) fail(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s at offset %d: %w", msg, d.offset(), ErrMalformed)
}

func (d *scalarDecoder) readInt() (int32, error) {
	v, _, err := d.dec.DecodeInt()
	if err != nil {
		return 0, d.fail("truncated int32")
	}
	return v, nil
}

func (d *scalarDecoder) readUint() (uint32, error) {
	v, _, err := d.dec.DecodeUint()
	if err != nil {
		return 0, d.fail("truncated uint32")
	}
	return v, nil
}

func (d *scalarDecoder) readHyper() (int64, error) {
	v, _, err := d.dec.DecodeHyper()
	if err != nil {
		return 0, d.fail("truncated int64")
	}
	return v, nil
}

func (d *scalarDecoder) readUhyper() (uint64, error) {
	v, _, err := d.dec.DecodeUhyper()
	if err != nil {
		return 0, d.fail("truncated uint64")
	}
	return v, nil
}

func (d *scalarDecoder) readBool() (bool, error) {
	v, err := d.readUint()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, d.fail("boolean value %d is neither 0 nor 1", v)
	}
}

func (d *scalarDecoder) readDouble() (float64, error) {
	v, _, err := d.dec.DecodeDouble()
	if err != nil {
		return 0, d.fail("truncated double")
	}
	return v, nil
}

// readString reads a length-prefixed string, validating the length against
// the remaining bytes before allocating.
func (d *scalarDecoder) readString() (string, error) {
	n, err := d.readUint()
	if err != nil {
		return "", err
	}
	if int(n) > d.remaining() {
		return "", d.fail("string length %d exceeds %d remaining bytes", n, d.remaining())
	}
	data, _, err := d.dec.DecodeFixedOpaque(int32(n))
	if err != nil {
		return "", d.fail("truncated string of length %d", n)
	}
	return string(data), nil
}

// readOpaque reads n bytes of fixed-length opaque data plus padding.
func (d *scalarDecoder) readOpaque(n int) ([]byte, error) {
	if n > d.remaining() {
		return nil, d.fail("opaque length %d exceeds %d remaining bytes", n, d.remaining())
	}
	data, _, err := d.dec.DecodeFixedOpaque(int32(n))
	if err != nil {
		return nil, d.fail("truncated opaque data of length %d", n)
	}
	return data, nil
}

// readRaw reads n raw bytes with no XDR framing or padding. Used only for
// the unencoded pack header.
func (d *scalarDecoder) readRaw(n int) ([]byte, error) {
	if n > d.remaining() {
		return nil, d.fail("truncated header")
	}
	data := make([]byte, n)
	if _, err := d.r.Read(data); err != nil {
		return nil, d.fail("truncated header")
	}
	return data, nil
}
