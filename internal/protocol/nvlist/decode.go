package nvlist

import (
	"math"
	"time"
)

// ============================================================================
// List layer - Unpack: opaque buffer → value tree
// ============================================================================

// minPairSize is the smallest legal pair: two size words, a one-character
// name (8 bytes XDR), a type word and a count word, with no payload.
const minPairSize = 24

// minBodySize is the smallest legal body: version, flags and terminator.
const minBodySize = 16

// Unpack decodes an opaque buffer produced by Pack (or by the engine) back
// into a List.
//
// Malformed input is rejected with an error wrapping ErrMalformed: truncated
// buffers, bad tags, element counts that exceed the data present, size-word
// inconsistencies, out-of-range scalar values, duplicate names, nesting
// beyond maxDepth, and trailing bytes after the terminator. The decoder
// never reads outside the buffer and never sizes an allocation from an
// unvalidated length field.
func Unpack(data []byte) (*List, error) {
	d := newScalarDecoder(data)

	hdr, err := d.readRaw(headerSize)
	if err != nil {
		return nil, err
	}
	if hdr[0] != encodingXDR {
		return nil, d.fail("unsupported encoding method %d", hdr[0])
	}
	if hdr[1] != endianBig && hdr[1] != endianLittle {
		return nil, d.fail("bad endianness marker %d", hdr[1])
	}
	if hdr[2] != 0 || hdr[3] != 0 {
		return nil, d.fail("nonzero reserved header bytes")
	}

	l, err := readBody(d, 0)
	if err != nil {
		return nil, err
	}
	if d.remaining() != 0 {
		return nil, d.fail("%d trailing bytes after terminator", d.remaining())
	}
	return l, nil
}

func readBody(d *scalarDecoder, depth int) (*List, error) {
	if depth >= maxDepth {
		return nil, d.fail("nesting deeper than %d levels", maxDepth)
	}
	if d.remaining() < minBodySize {
		return nil, d.fail("truncated body")
	}

	version, err := d.readInt()
	if err != nil {
		return nil, err
	}
	if version != listVersion {
		return nil, d.fail("unsupported version %d", version)
	}
	flags, err := d.readUint()
	if err != nil {
		return nil, err
	}
	if flags&^(flagUniqueNames|flagUniqueNameTypes) != 0 {
		return nil, d.fail("unknown flags %#x", flags)
	}

	l := New()
	for {
		done, err := readPair(d, l, depth)
		if err != nil {
			return nil, err
		}
		if done {
			return l, nil
		}
	}
}

// readPair decodes one pair into l, returning done when it meets the
// terminator instead.
func readPair(d *scalarDecoder, l *List, depth int) (bool, error) {
	encoded, err := d.readInt()
	if err != nil {
		return false, err
	}
	decoded, err := d.readInt()
	if err != nil {
		return false, err
	}
	if encoded == 0 && decoded == 0 {
		return true, nil
	}
	if encoded == 0 || decoded <= 0 {
		return false, d.fail("inconsistent size words (%d, %d)", encoded, decoded)
	}
	if encoded < minPairSize {
		return false, d.fail("pair size %d below minimum %d", encoded, minPairSize)
	}
	// Both size words are already consumed; the rest of the pair must fit.
	if int(encoded)-8 > d.remaining() {
		return false, d.fail("pair size %d exceeds %d remaining bytes", encoded, d.remaining()+8)
	}
	end := d.offset() - 8 + int(encoded)

	name, err := d.readString()
	if err != nil {
		return false, err
	}
	if name == "" {
		return false, d.fail("empty pair name")
	}
	rawType, err := d.readInt()
	if err != nil {
		return false, err
	}
	t := Type(rawType)
	if !t.valid() {
		return false, d.fail("%q: invalid type tag %d", name, rawType)
	}
	count, err := d.readInt()
	if err != nil {
		return false, err
	}
	if count < 0 {
		return false, d.fail("%q: negative element count %d", name, count)
	}

	value, err := readValue(d, name, t, int(count), depth)
	if err != nil {
		return false, err
	}
	if d.offset() != end {
		return false, d.fail("%q: pair consumed %d bytes, size word says %d",
			name, d.offset()-(end-int(encoded)), encoded)
	}
	if err := l.add(name, t, value); err != nil {
		return false, d.fail("%v", err)
	}
	return false, nil
}

// readValue decodes a payload of the given type and element count. Array
// counts are validated against the bytes remaining before any slice is
// allocated.
func readValue(d *scalarDecoder, name string, t Type, count, depth int) (any, error) {
	// Scalars carry exactly one element, presence flags none.
	switch t {
	case TypeBoolean:
		if count != 0 {
			return nil, d.fail("%q: flag with element count %d", name, count)
		}
	case TypeBooleanValue, TypeByte, TypeInt8, TypeUint8,
		TypeInt16, TypeUint16, TypeInt32, TypeUint32,
		TypeInt64, TypeUint64, TypeHrtime, TypeDouble,
		TypeString, TypeList:
		if count != 1 {
			return nil, d.fail("%q: scalar with element count %d", name, count)
		}
	}

	switch t {
	case TypeBoolean:
		return nil, nil
	case TypeBooleanValue:
		return d.readBool()
	case TypeByte:
		v, err := d.readInt()
		if err != nil {
			return nil, err
		}
		if v < 0 || v > math.MaxUint8 {
			return nil, d.fail("%q: byte value %d out of range", name, v)
		}
		return byte(v), nil
	case TypeInt8:
		v, err := d.readInt()
		if err != nil {
			return nil, err
		}
		if v < math.MinInt8 || v > math.MaxInt8 {
			return nil, d.fail("%q: int8 value %d out of range", name, v)
		}
		return int8(v), nil
	case TypeUint8:
		v, err := d.readUint()
		if err != nil {
			return nil, err
		}
		if v > math.MaxUint8 {
			return nil, d.fail("%q: uint8 value %d out of range", name, v)
		}
		return uint8(v), nil
	case TypeInt16:
		v, err := d.readInt()
		if err != nil {
			return nil, err
		}
		if v < math.MinInt16 || v > math.MaxInt16 {
			return nil, d.fail("%q: int16 value %d out of range", name, v)
		}
		return int16(v), nil
	case TypeUint16:
		v, err := d.readUint()
		if err != nil {
			return nil, err
		}
		if v > math.MaxUint16 {
			return nil, d.fail("%q: uint16 value %d out of range", name, v)
		}
		return uint16(v), nil
	case TypeInt32:
		return d.readInt()
	case TypeUint32:
		return d.readUint()
	case TypeInt64:
		return d.readHyper()
	case TypeUint64:
		return d.readUhyper()
	case TypeHrtime:
		v, err := d.readHyper()
		if err != nil {
			return nil, err
		}
		return time.Duration(v), nil
	case TypeDouble:
		return d.readDouble()
	case TypeString:
		return d.readString()
	case TypeByteArray:
		return d.readOpaque(count)
	case TypeBooleanArray:
		if err := d.checkArray(name, count, 4); err != nil {
			return nil, err
		}
		out := make([]bool, count)
		for i := range out {
			v, err := d.readBool()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case TypeInt8Array:
		if err := d.checkArray(name, count, 4); err != nil {
			return nil, err
		}
		out := make([]int8, count)
		for i := range out {
			v, err := d.readInt()
			if err != nil {
				return nil, err
			}
			if v < math.MinInt8 || v > math.MaxInt8 {
				return nil, d.fail("%q: int8 element %d out of range", name, v)
			}
			out[i] = int8(v)
		}
		return out, nil
	case TypeUint8Array:
		if err := d.checkArray(name, count, 4); err != nil {
			return nil, err
		}
		out := make([]byte, count)
		for i := range out {
			v, err := d.readUint()
			if err != nil {
				return nil, err
			}
			if v > math.MaxUint8 {
				return nil, d.fail("%q: uint8 element %d out of range", name, v)
			}
			out[i] = byte(v)
		}
		return out, nil
	case TypeInt16Array:
		if err := d.checkArray(name, count, 4); err != nil {
			return nil, err
		}
		out := make([]int16, count)
		for i := range out {
			v, err := d.readInt()
			if err != nil {
				return nil, err
			}
			if v < math.MinInt16 || v > math.MaxInt16 {
				return nil, d.fail("%q: int16 element %d out of range", name, v)
			}
			out[i] = int16(v)
		}
		return out, nil
	case TypeUint16Array:
		if err := d.checkArray(name, count, 4); err != nil {
			return nil, err
		}
		out := make([]uint16, count)
		for i := range out {
			v, err := d.readUint()
			if err != nil {
				return nil, err
			}
			if v > math.MaxUint16 {
				return nil, d.fail("%q: uint16 element %d out of range", name, v)
			}
			out[i] = uint16(v)
		}
		return out, nil
	case TypeInt32Array:
		if err := d.checkArray(name, count, 4); err != nil {
			return nil, err
		}
		out := make([]int32, count)
		for i := range out {
			v, err := d.readInt()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case TypeUint32Array:
		if err := d.checkArray(name, count, 4); err != nil {
			return nil, err
		}
		out := make([]uint32, count)
		for i := range out {
			v, err := d.readUint()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case TypeInt64Array:
		if err := d.checkArray(name, count, 8); err != nil {
			return nil, err
		}
		out := make([]int64, count)
		for i := range out {
			v, err := d.readHyper()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case TypeUint64Array:
		if err := d.checkArray(name, count, 8); err != nil {
			return nil, err
		}
		out := make([]uint64, count)
		for i := range out {
			v, err := d.readUhyper()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case TypeStringArray:
		if err := d.checkArray(name, count, 4); err != nil {
			return nil, err
		}
		out := make([]string, count)
		for i := range out {
			v, err := d.readString()
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case TypeList:
		return readBody(d, depth+1)
	case TypeListArray:
		if err := d.checkArray(name, count, minBodySize); err != nil {
			return nil, err
		}
		out := make([]*List, count)
		for i := range out {
			nested, err := readBody(d, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = nested
		}
		return out, nil
	default:
		return nil, d.fail("%q: invalid type tag %d", name, t)
	}
}

// checkArray rejects element counts whose minimum wire size exceeds the
// bytes remaining, before the element slice is allocated.
func (d *scalarDecoder) checkArray(name string, count, minElemSize int) error {
	if count*minElemSize > d.remaining() {
		return d.fail("%q: %d elements exceed %d remaining bytes", name, count, d.remaining())
	}
	return nil
}
