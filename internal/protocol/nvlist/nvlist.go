// Package nvlist implements the name/value list format used to exchange
// structured arguments and results with the storage engine.
//
// A List is an insertion-ordered collection of uniquely named, typed pairs.
// Values are scalars (booleans, fixed-width integers, strings, byte arrays,
// doubles, high-resolution times), nested Lists, or homogeneous arrays of
// any of these. The wire representation is the engine's XDR encoding
// (see Pack and Unpack); the in-memory representation here is independent
// of it.
package nvlist

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Type identifies the value type carried by a pair, using the engine's
// numbering. The zero value is invalid on the wire.
type Type int32

const (
	TypeUnknown Type = iota
	TypeBoolean      // presence flag, no payload
	TypeByte
	TypeInt16
	TypeUint16
	TypeInt32
	TypeUint32
	TypeInt64
	TypeUint64
	TypeString
	TypeByteArray
	TypeInt16Array
	TypeUint16Array
	TypeInt32Array
	TypeUint32Array
	TypeInt64Array
	TypeUint64Array
	TypeStringArray
	TypeHrtime
	TypeList
	TypeListArray
	TypeBooleanValue
	TypeInt8
	TypeUint8
	TypeBooleanArray
	TypeInt8Array
	TypeUint8Array
	TypeDouble
)

// typeNames is used for diagnostics only.
var typeNames = map[Type]string{
	TypeBoolean:      "boolean",
	TypeByte:         "byte",
	TypeInt16:        "int16",
	TypeUint16:       "uint16",
	TypeInt32:        "int32",
	TypeUint32:       "uint32",
	TypeInt64:        "int64",
	TypeUint64:       "uint64",
	TypeString:       "string",
	TypeByteArray:    "byte array",
	TypeInt16Array:   "int16 array",
	TypeUint16Array:  "uint16 array",
	TypeInt32Array:   "int32 array",
	TypeUint32Array:  "uint32 array",
	TypeInt64Array:   "int64 array",
	TypeUint64Array:  "uint64 array",
	TypeStringArray:  "string array",
	TypeHrtime:       "hrtime",
	TypeList:         "nvlist",
	TypeListArray:    "nvlist array",
	TypeBooleanValue: "boolean value",
	TypeInt8:         "int8",
	TypeUint8:        "uint8",
	TypeBooleanArray: "boolean array",
	TypeInt8Array:    "int8 array",
	TypeUint8Array:   "uint8 array",
	TypeDouble:       "double",
}

// String returns a human-readable name for the type.
func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", int32(t))
}

// valid reports whether t is a type that may appear on the wire.
func (t Type) valid() bool {
	return t >= TypeBoolean && t <= TypeDouble
}

// Pair is a single named, typed entry of a List.
//
// Value holds the Go representation for Type:
//
//	TypeBoolean       nil (presence only)
//	TypeBooleanValue  bool
//	TypeByte          byte
//	TypeInt8..Uint64  int8, uint8, int16, uint16, int32, uint32, int64, uint64
//	TypeString        string
//	TypeByteArray     []byte
//	TypeHrtime        time.Duration
//	TypeDouble        float64
//	TypeList          *List
//	Type*Array        []T of the element type ([]*List for TypeListArray)
type Pair struct {
	Name  string
	Type  Type
	Value any
}

// List is an insertion-ordered mapping from unique names to typed values.
// The zero value is not usable; construct with New or FromMap.
type List struct {
	pairs []Pair
	index map[string]int
}

var (
	// ErrDuplicateName is returned when a name is added twice to one List.
	ErrDuplicateName = errors.New("nvlist: duplicate name")

	// ErrUnsupportedType is returned when a value does not map to a wire type.
	ErrUnsupportedType = errors.New("nvlist: unsupported value type")
)

// New returns an empty List.
func New() *List {
	return &List{index: make(map[string]int)}
}

// FromMap builds a List from m with keys in sorted order, so that equal maps
// always produce identical Lists (and identical packed buffers).
//
// Values must be of the supported types accepted by Add.
func FromMap(m map[string]any) (*List, error) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	l := New()
	for _, name := range names {
		if err := l.Add(name, m[name]); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Len returns the number of pairs in the List.
func (l *List) Len() int {
	return len(l.pairs)
}

// Has reports whether a pair with the given name exists.
func (l *List) Has(name string) bool {
	_, ok := l.index[name]
	return ok
}

// Names returns the pair names in insertion order.
func (l *List) Names() []string {
	names := make([]string, len(l.pairs))
	for i, p := range l.pairs {
		names[i] = p.Name
	}
	return names
}

// Pairs returns the pairs in insertion order. The returned slice is the
// List's backing storage and must not be modified.
func (l *List) Pairs() []Pair {
	return l.pairs
}

// Add appends a named value, deriving the wire type from the Go type as
// documented on Pair. nil adds a presence flag, and a plain int is stored
// as int64 (there is no platform-sized wire type). A []any value is
// rejected because wire arrays are homogeneously typed.
//
// Returns ErrDuplicateName if the name is already present and
// ErrUnsupportedType if the value has no wire representation.
func (l *List) Add(name string, value any) error {
	if v, ok := value.(int); ok {
		value = int64(v)
	}
	t, err := typeOf(value)
	if err != nil {
		return fmt.Errorf("%q: %w", name, err)
	}
	return l.add(name, t, value)
}

// AddFlag adds a boolean presence flag (a name with no payload).
func (l *List) AddFlag(name string) error {
	return l.add(name, TypeBoolean, nil)
}

// AddBoolean adds a boolean with an explicit value.
func (l *List) AddBoolean(name string, v bool) error {
	return l.add(name, TypeBooleanValue, v)
}

// AddByte adds a single byte. Note that Add maps uint8 to TypeUint8; use
// AddByte when the engine expects the distinct byte type.
func (l *List) AddByte(name string, v byte) error {
	return l.add(name, TypeByte, v)
}

// AddUint8Array adds an unsigned 8-bit integer array. Add cannot produce
// this type because []uint8 and []byte are the same Go type; the generic
// path maps both to the byte-array wire type.
func (l *List) AddUint8Array(name string, v []byte) error {
	return l.add(name, TypeUint8Array, v)
}

// AddString adds a string value.
func (l *List) AddString(name string, v string) error {
	return l.add(name, TypeString, v)
}

// AddUint64 adds an unsigned 64-bit integer.
func (l *List) AddUint64(name string, v uint64) error {
	return l.add(name, TypeUint64, v)
}

// AddInt32 adds a signed 32-bit integer.
func (l *List) AddInt32(name string, v int32) error {
	return l.add(name, TypeInt32, v)
}

// AddList adds a nested List.
func (l *List) AddList(name string, v *List) error {
	if v == nil {
		return fmt.Errorf("%q: nil list: %w", name, ErrUnsupportedType)
	}
	return l.add(name, TypeList, v)
}

// AddHrtime adds a high-resolution time value (nanoseconds on the wire).
func (l *List) AddHrtime(name string, v time.Duration) error {
	return l.add(name, TypeHrtime, v)
}

func (l *List) add(name string, t Type, value any) error {
	if name == "" {
		return fmt.Errorf("empty name: %w", ErrUnsupportedType)
	}
	if _, ok := l.index[name]; ok {
		return fmt.Errorf("%q: %w", name, ErrDuplicateName)
	}
	l.index[name] = len(l.pairs)
	l.pairs = append(l.pairs, Pair{Name: name, Type: t, Value: value})
	return nil
}

// typeOf maps a Go value to its wire type.
func typeOf(value any) (Type, error) {
	switch v := value.(type) {
	case nil:
		return TypeBoolean, nil
	case bool:
		return TypeBooleanValue, nil
	case int8:
		return TypeInt8, nil
	case uint8:
		return TypeUint8, nil
	case int16:
		return TypeInt16, nil
	case uint16:
		return TypeUint16, nil
	case int32:
		return TypeInt32, nil
	case uint32:
		return TypeUint32, nil
	case int64:
		return TypeInt64, nil
	case uint64:
		return TypeUint64, nil
	case string:
		return TypeString, nil
	case []byte:
		return TypeByteArray, nil
	case float64:
		return TypeDouble, nil
	case time.Duration:
		return TypeHrtime, nil
	case *List:
		if v == nil {
			return TypeUnknown, fmt.Errorf("nil list: %w", ErrUnsupportedType)
		}
		return TypeList, nil
	case []bool:
		return TypeBooleanArray, nil
	case []int8:
		return TypeInt8Array, nil
	case []int16:
		return TypeInt16Array, nil
	case []uint16:
		return TypeUint16Array, nil
	case []int32:
		return TypeInt32Array, nil
	case []uint32:
		return TypeUint32Array, nil
	case []int64:
		return TypeInt64Array, nil
	case []uint64:
		return TypeUint64Array, nil
	case []string:
		return TypeStringArray, nil
	case []*List:
		for _, el := range v {
			if el == nil {
				return TypeUnknown, fmt.Errorf("nil list element: %w", ErrUnsupportedType)
			}
		}
		return TypeListArray, nil
	case []any:
		return TypeUnknown, fmt.Errorf("mixed-type array: %w", ErrUnsupportedType)
	default:
		return TypeUnknown, fmt.Errorf("%T: %w", value, ErrUnsupportedType)
	}
}

// ============================================================================
// Typed lookups
// ============================================================================

// lookup returns the pair for name.
func (l *List) lookup(name string) (Pair, bool) {
	i, ok := l.index[name]
	if !ok {
		return Pair{}, false
	}
	return l.pairs[i], true
}

// Value returns the raw value and type for name.
func (l *List) Value(name string) (any, Type, bool) {
	p, ok := l.lookup(name)
	if !ok {
		return nil, TypeUnknown, false
	}
	return p.Value, p.Type, true
}

// Flag reports whether name exists as a boolean presence flag.
func (l *List) Flag(name string) bool {
	p, ok := l.lookup(name)
	return ok && p.Type == TypeBoolean
}

// Boolean returns the explicit boolean value for name.
func (l *List) Boolean(name string) (bool, bool) {
	p, ok := l.lookup(name)
	if !ok || p.Type != TypeBooleanValue {
		return false, false
	}
	return p.Value.(bool), true
}

// String returns the string value for name.
func (l *List) String(name string) (string, bool) {
	p, ok := l.lookup(name)
	if !ok || p.Type != TypeString {
		return "", false
	}
	return p.Value.(string), true
}

// Bytes returns the byte-array value for name.
func (l *List) Bytes(name string) ([]byte, bool) {
	p, ok := l.lookup(name)
	if !ok || p.Type != TypeByteArray {
		return nil, false
	}
	return p.Value.([]byte), true
}

// Int32 returns the signed 32-bit value for name.
func (l *List) Int32(name string) (int32, bool) {
	p, ok := l.lookup(name)
	if !ok || p.Type != TypeInt32 {
		return 0, false
	}
	return p.Value.(int32), true
}

// Uint64 returns the unsigned 64-bit value for name.
func (l *List) Uint64(name string) (uint64, bool) {
	p, ok := l.lookup(name)
	if !ok || p.Type != TypeUint64 {
		return 0, false
	}
	return p.Value.(uint64), true
}

// List returns the nested List for name.
func (l *List) List(name string) (*List, bool) {
	p, ok := l.lookup(name)
	if !ok || p.Type != TypeList {
		return nil, false
	}
	return p.Value.(*List), true
}

// Strings returns the string-array value for name.
func (l *List) Strings(name string) ([]string, bool) {
	p, ok := l.lookup(name)
	if !ok || p.Type != TypeStringArray {
		return nil, false
	}
	return p.Value.([]string), true
}

// Lists returns the List-array value for name.
func (l *List) Lists(name string) ([]*List, bool) {
	p, ok := l.lookup(name)
	if !ok || p.Type != TypeListArray {
		return nil, false
	}
	return p.Value.([]*List), true
}

// Uint64s returns the uint64-array value for name.
func (l *List) Uint64s(name string) ([]uint64, bool) {
	p, ok := l.lookup(name)
	if !ok || p.Type != TypeUint64Array {
		return nil, false
	}
	return p.Value.([]uint64), true
}

// ScalarMap flattens the List into a map of scalar values. It fails if any
// pair carries a nested List or an array, so callers decoding a
// properties-style List get an explicit error instead of a silent drop.
func (l *List) ScalarMap() (map[string]any, error) {
	m := make(map[string]any, len(l.pairs))
	for _, p := range l.pairs {
		switch p.Type {
		case TypeList, TypeListArray, TypeByteArray, TypeStringArray,
			TypeBooleanArray, TypeInt8Array, TypeUint8Array,
			TypeInt16Array, TypeUint16Array, TypeInt32Array,
			TypeUint32Array, TypeInt64Array, TypeUint64Array:
			return nil, fmt.Errorf("nvlist: %q is %s, not a scalar", p.Name, p.Type)
		case TypeBoolean:
			m[p.Name] = true
		default:
			m[p.Name] = p.Value
		}
	}
	return m, nil
}
