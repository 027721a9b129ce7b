package nvlist

import (
	"bytes"
	"fmt"
	"time"
)

// ============================================================================
// List layer - Pack: value tree → opaque buffer
// ============================================================================
//
// Packed layout:
//
//	[header:4]          encoding method, endianness marker, two reserved bytes
//	[version:int32]     always 0
//	[flags:uint32]      unique-names flag
//	[pair]...           see below
//	[terminator:8]      two zero int32s
//
// Each pair:
//
//	[encoded size:int32]   total wire bytes of the pair, including both sizes
//	[decoded size:int32]   in-memory size hint, informational
//	[name:string]          XDR string
//	[type:int32]           Type tag
//	[count:int32]          element count (0 for flags, 1 for scalars)
//	[payload]              scalar-layer encoding per element
//
// Embedded Lists are full bodies (version, flags, pairs, terminator); List
// arrays are consecutive bodies. The encoded size of every pair is computed
// arithmetically before writing, so encoding is single-pass.

const (
	// encodingXDR is the only supported encoding method.
	encodingXDR = 1

	// Endianness markers. The marker records the producer's host order;
	// XDR payloads are big-endian regardless, so decoders accept either.
	endianBig    = 0
	endianLittle = 1

	// listVersion is the only defined body version.
	listVersion = 0

	// flagUniqueNames marks name uniqueness within each body;
	// flagUniqueNameTypes additionally scopes uniqueness by type.
	// Uniqueness is enforced here on both encode and decode.
	flagUniqueNames     = 0x1
	flagUniqueNameTypes = 0x2

	headerSize     = 4
	terminatorSize = 8

	// maxDepth bounds List nesting on both encode and decode, guarding
	// the decoder against stack exhaustion from hostile buffers.
	maxDepth = 64
)

// Pack encodes the List into its opaque wire buffer.
//
// Encoding is a pure function of the value tree: the same List always
// produces the same bytes. Fails with ErrUnsupportedType if a pair carries
// a value inconsistent with its type tag.
func Pack(l *List) ([]byte, error) {
	size, err := packedSize(l, 0)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	buf.Write([]byte{encodingXDR, endianLittle, 0, 0})

	se := newScalarEncoder(buf)
	if err := writeBody(se, l, 0); err != nil {
		return nil, err
	}

	// The arithmetic sizing and the writer must agree; a difference is a
	// bug in this package, not in the caller's data.
	if buf.Len() != size {
		return nil, fmt.Errorf("nvlist: encoded %d bytes, computed %d", buf.Len(), size)
	}
	return buf.Bytes(), nil
}

// packedSize returns the total wire size of the List including the header.
func packedSize(l *List, depth int) (int, error) {
	body, err := bodySize(l, depth)
	if err != nil {
		return 0, err
	}
	return headerSize + body, nil
}

func bodySize(l *List, depth int) (int, error) {
	if depth >= maxDepth {
		return 0, fmt.Errorf("nvlist: nesting deeper than %d levels: %w", maxDepth, ErrUnsupportedType)
	}
	size := 4 + 4 + terminatorSize
	for i := range l.pairs {
		n, err := pairSize(&l.pairs[i], depth)
		if err != nil {
			return 0, err
		}
		size += n
	}
	return size, nil
}

// pairSize returns the full wire size of one pair, which is also the value
// written into its encoded-size word.
func pairSize(p *Pair, depth int) (int, error) {
	payload, err := payloadSize(p, depth)
	if err != nil {
		return 0, err
	}
	return 8 + xdrStringSize(p.Name) + 8 + payload, nil
}

func payloadSize(p *Pair, depth int) (int, error) {
	switch p.Type {
	case TypeBoolean:
		return 0, nil
	case TypeBooleanValue, TypeByte, TypeInt8, TypeUint8,
		TypeInt16, TypeUint16, TypeInt32, TypeUint32:
		return 4, nil
	case TypeInt64, TypeUint64, TypeHrtime, TypeDouble:
		return 8, nil
	case TypeString:
		s, ok := p.Value.(string)
		if !ok {
			return 0, badValue(p)
		}
		return xdrStringSize(s), nil
	case TypeByteArray:
		b, ok := p.Value.([]byte)
		if !ok {
			return 0, badValue(p)
		}
		return pad4(len(b)), nil
	case TypeBooleanArray, TypeInt8Array, TypeUint8Array,
		TypeInt16Array, TypeUint16Array, TypeInt32Array, TypeUint32Array:
		n, ok := elemCount(p)
		if !ok {
			return 0, badValue(p)
		}
		return 4 * n, nil
	case TypeInt64Array, TypeUint64Array:
		n, ok := elemCount(p)
		if !ok {
			return 0, badValue(p)
		}
		return 8 * n, nil
	case TypeStringArray:
		ss, ok := p.Value.([]string)
		if !ok {
			return 0, badValue(p)
		}
		size := 0
		for _, s := range ss {
			size += xdrStringSize(s)
		}
		return size, nil
	case TypeList:
		nested, ok := p.Value.(*List)
		if !ok {
			return 0, badValue(p)
		}
		return bodySize(nested, depth+1)
	case TypeListArray:
		ls, ok := p.Value.([]*List)
		if !ok {
			return 0, badValue(p)
		}
		size := 0
		for _, nested := range ls {
			n, err := bodySize(nested, depth+1)
			if err != nil {
				return 0, err
			}
			size += n
		}
		return size, nil
	default:
		return 0, badValue(p)
	}
}

// elemCount returns the element count for array-typed pairs.
func elemCount(p *Pair) (int, bool) {
	switch v := p.Value.(type) {
	case []bool:
		if p.Type != TypeBooleanArray {
			return 0, false
		}
		return len(v), true
	case []int8:
		if p.Type != TypeInt8Array {
			return 0, false
		}
		return len(v), true
	case []byte:
		if p.Type != TypeUint8Array && p.Type != TypeByteArray {
			return 0, false
		}
		return len(v), true
	case []int16:
		if p.Type != TypeInt16Array {
			return 0, false
		}
		return len(v), true
	case []uint16:
		if p.Type != TypeUint16Array {
			return 0, false
		}
		return len(v), true
	case []int32:
		if p.Type != TypeInt32Array {
			return 0, false
		}
		return len(v), true
	case []uint32:
		if p.Type != TypeUint32Array {
			return 0, false
		}
		return len(v), true
	case []int64:
		if p.Type != TypeInt64Array {
			return 0, false
		}
		return len(v), true
	case []uint64:
		if p.Type != TypeUint64Array {
			return 0, false
		}
		return len(v), true
	case []string:
		if p.Type != TypeStringArray {
			return 0, false
		}
		return len(v), true
	case []*List:
		if p.Type != TypeListArray {
			return 0, false
		}
		return len(v), true
	default:
		return 0, false
	}
}

func badValue(p *Pair) error {
	return fmt.Errorf("nvlist: %q: %T does not encode as %s: %w",
		p.Name, p.Value, p.Type, ErrUnsupportedType)
}

func xdrStringSize(s string) int {
	return 4 + pad4(len(s))
}

func pad4(n int) int {
	return (n + 3) &^ 3
}

func align8(n int) int {
	return (n + 7) &^ 7
}

func writeBody(se *scalarEncoder, l *List, depth int) error {
	if err := se.writeInt(listVersion); err != nil {
		return err
	}
	if err := se.writeUint(flagUniqueNames); err != nil {
		return err
	}
	for i := range l.pairs {
		if err := writePair(se, &l.pairs[i], depth); err != nil {
			return err
		}
	}
	// Terminator: two zero size words.
	if err := se.writeInt(0); err != nil {
		return err
	}
	return se.writeInt(0)
}

func writePair(se *scalarEncoder, p *Pair, depth int) error {
	encoded, err := pairSize(p, depth)
	if err != nil {
		return err
	}
	if err := se.writeInt(int32(encoded)); err != nil {
		return err
	}
	if err := se.writeInt(int32(decodedPairSize(p))); err != nil {
		return err
	}
	if err := se.writeString(p.Name); err != nil {
		return err
	}
	if err := se.writeInt(int32(p.Type)); err != nil {
		return err
	}
	if err := se.writeInt(int32(wireElemCount(p))); err != nil {
		return err
	}
	return writePayload(se, p, depth)
}

// wireElemCount returns the value of the pair's count word: 0 for presence
// flags, 1 for scalars, the element count for arrays (bytes for byte
// arrays).
func wireElemCount(p *Pair) int {
	switch p.Type {
	case TypeBoolean:
		return 0
	case TypeByteArray:
		if b, ok := p.Value.([]byte); ok {
			return len(b)
		}
		return 0
	default:
		if n, ok := elemCount(p); ok {
			return n
		}
		return 1
	}
}

func writePayload(se *scalarEncoder, p *Pair, depth int) error {
	switch p.Type {
	case TypeBoolean:
		return nil
	case TypeBooleanValue:
		v, ok := p.Value.(bool)
		if !ok {
			return badValue(p)
		}
		return se.writeBool(v)
	case TypeByte:
		v, ok := p.Value.(byte)
		if !ok {
			return badValue(p)
		}
		return se.writeInt(int32(v))
	case TypeInt8:
		v, ok := p.Value.(int8)
		if !ok {
			return badValue(p)
		}
		return se.writeInt(int32(v))
	case TypeUint8:
		v, ok := p.Value.(uint8)
		if !ok {
			return badValue(p)
		}
		return se.writeUint(uint32(v))
	case TypeInt16:
		v, ok := p.Value.(int16)
		if !ok {
			return badValue(p)
		}
		return se.writeInt(int32(v))
	case TypeUint16:
		v, ok := p.Value.(uint16)
		if !ok {
			return badValue(p)
		}
		return se.writeUint(uint32(v))
	case TypeInt32:
		v, ok := p.Value.(int32)
		if !ok {
			return badValue(p)
		}
		return se.writeInt(v)
	case TypeUint32:
		v, ok := p.Value.(uint32)
		if !ok {
			return badValue(p)
		}
		return se.writeUint(v)
	case TypeInt64:
		v, ok := p.Value.(int64)
		if !ok {
			return badValue(p)
		}
		return se.writeHyper(v)
	case TypeUint64:
		v, ok := p.Value.(uint64)
		if !ok {
			return badValue(p)
		}
		return se.writeUhyper(v)
	case TypeHrtime:
		v, ok := p.Value.(time.Duration)
		if !ok {
			return badValue(p)
		}
		return se.writeHyper(int64(v))
	case TypeDouble:
		v, ok := p.Value.(float64)
		if !ok {
			return badValue(p)
		}
		return se.writeDouble(v)
	case TypeString:
		v, ok := p.Value.(string)
		if !ok {
			return badValue(p)
		}
		return se.writeString(v)
	case TypeByteArray, TypeUint8Array:
		v, ok := p.Value.([]byte)
		if !ok {
			return badValue(p)
		}
		if p.Type == TypeByteArray {
			return se.writeOpaque(v)
		}
		for _, el := range v {
			if err := se.writeUint(uint32(el)); err != nil {
				return err
			}
		}
		return nil
	case TypeBooleanArray:
		v, ok := p.Value.([]bool)
		if !ok {
			return badValue(p)
		}
		for _, el := range v {
			if err := se.writeBool(el); err != nil {
				return err
			}
		}
		return nil
	case TypeInt8Array:
		v, ok := p.Value.([]int8)
		if !ok {
			return badValue(p)
		}
		for _, el := range v {
			if err := se.writeInt(int32(el)); err != nil {
				return err
			}
		}
		return nil
	case TypeInt16Array:
		v, ok := p.Value.([]int16)
		if !ok {
			return badValue(p)
		}
		for _, el := range v {
			if err := se.writeInt(int32(el)); err != nil {
				return err
			}
		}
		return nil
	case TypeUint16Array:
		v, ok := p.Value.([]uint16)
		if !ok {
			return badValue(p)
		}
		for _, el := range v {
			if err := se.writeUint(uint32(el)); err != nil {
				return err
			}
		}
		return nil
	case TypeInt32Array:
		v, ok := p.Value.([]int32)
		if !ok {
			return badValue(p)
		}
		for _, el := range v {
			if err := se.writeInt(el); err != nil {
				return err
			}
		}
		return nil
	case TypeUint32Array:
		v, ok := p.Value.([]uint32)
		if !ok {
			return badValue(p)
		}
		for _, el := range v {
			if err := se.writeUint(el); err != nil {
				return err
			}
		}
		return nil
	case TypeInt64Array:
		v, ok := p.Value.([]int64)
		if !ok {
			return badValue(p)
		}
		for _, el := range v {
			if err := se.writeHyper(el); err != nil {
				return err
			}
		}
		return nil
	case TypeUint64Array:
		v, ok := p.Value.([]uint64)
		if !ok {
			return badValue(p)
		}
		for _, el := range v {
			if err := se.writeUhyper(el); err != nil {
				return err
			}
		}
		return nil
	case TypeStringArray:
		v, ok := p.Value.([]string)
		if !ok {
			return badValue(p)
		}
		for _, el := range v {
			if err := se.writeString(el); err != nil {
				return err
			}
		}
		return nil
	case TypeList:
		v, ok := p.Value.(*List)
		if !ok {
			return badValue(p)
		}
		return writeBody(se, v, depth+1)
	case TypeListArray:
		v, ok := p.Value.([]*List)
		if !ok {
			return badValue(p)
		}
		for _, el := range v {
			if err := writeBody(se, el, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return badValue(p)
	}
}

// ============================================================================
// Decoded-size hint
// ============================================================================

// nativePairOverhead approximates the engine's in-memory pair header.
const nativePairOverhead = 32

// decodedPairSize computes the decoded-size hint written into each pair.
// The decoder only sanity-checks this value; it exists so that packed
// buffers carry the same shape of metadata the engine's own encoder emits.
func decodedPairSize(p *Pair) int {
	return align8(nativePairOverhead+len(p.Name)+1) + align8(nativeValueSize(p))
}

func nativeValueSize(p *Pair) int {
	switch p.Type {
	case TypeBoolean:
		return 0
	case TypeBooleanValue, TypeInt32, TypeUint32:
		return 4
	case TypeByte, TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt64, TypeUint64, TypeHrtime, TypeDouble:
		return 8
	case TypeString:
		s, _ := p.Value.(string)
		return len(s) + 1
	case TypeByteArray, TypeUint8Array:
		b, _ := p.Value.([]byte)
		return len(b)
	case TypeBooleanArray:
		v, _ := p.Value.([]bool)
		return 4 * len(v)
	case TypeInt8Array:
		v, _ := p.Value.([]int8)
		return len(v)
	case TypeInt16Array:
		v, _ := p.Value.([]int16)
		return 2 * len(v)
	case TypeUint16Array:
		v, _ := p.Value.([]uint16)
		return 2 * len(v)
	case TypeInt32Array:
		v, _ := p.Value.([]int32)
		return 4 * len(v)
	case TypeUint32Array:
		v, _ := p.Value.([]uint32)
		return 4 * len(v)
	case TypeInt64Array:
		v, _ := p.Value.([]int64)
		return 8 * len(v)
	case TypeUint64Array:
		v, _ := p.Value.([]uint64)
		return 8 * len(v)
	case TypeStringArray:
		v, _ := p.Value.([]string)
		size := 8 * len(v)
		for _, s := range v {
			size += len(s) + 1
		}
		return size
	case TypeList:
		v, _ := p.Value.(*List)
		return nativeListSize(v)
	case TypeListArray:
		v, _ := p.Value.([]*List)
		size := 8 * len(v)
		for _, el := range v {
			size += nativeListSize(el)
		}
		return size
	default:
		return 0
	}
}

// nativeListOverhead approximates the engine's in-memory list header.
const nativeListOverhead = 48

func nativeListSize(l *List) int {
	if l == nil {
		return nativeListOverhead
	}
	size := nativeListOverhead
	for i := range l.pairs {
		size += decodedPairSize(&l.pairs[i])
	}
	return size
}
