package arraycache

import "strings"

// ElementType is the numeric interpretation applied to a cached payload.
//
// The set is closed. Binary payloads use one of Int8 through Float64; Native
// marks entries stored as already-decoded []float64 sequences.
type ElementType uint8

const (
	// Unknown is the zero value and is never stored.
	Unknown ElementType = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
	Float64
	// Native marks a sequence inserted with InsertNative. Its values are
	// returned as-is rather than reinterpreted from bytes.
	Native
)

// IsValid reports whether t is one of the binary element types accepted by Insert.
func (t ElementType) IsValid() bool {
	return t >= Int8 && t <= Float64
}

// Size returns the width of one element in bytes.
// Native sequences report the width of a float64; Unknown reports 0.
func (t ElementType) Size() int {
	switch t {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64, Native:
		return 8
	default:
		return 0
	}
}

// String returns the numpy-style name of the type.
func (t ElementType) String() string {
	switch t {
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Int16:
		return "int16"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Native:
		return "native"
	default:
		return "unknown"
	}
}

// ParseElementType maps a data type name to an ElementType.
//
// It accepts numpy names ("float32"), typed array names ("Float32Array")
// and "native", case-insensitively. This is the format of the X-Data-Type
// header sent by feature servers.
func ParseElementType(s string) (ElementType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, "array")

	switch name {
	case "int8":
		return Int8, nil
	case "uint8":
		return Uint8, nil
	case "int16":
		return Int16, nil
	case "uint16":
		return Uint16, nil
	case "int32":
		return Int32, nil
	case "uint32":
		return Uint32, nil
	case "float32":
		return Float32, nil
	case "float64":
		return Float64, nil
	case "native":
		return Native, nil
	default:
		return Unknown, &UnknownElementTypeError{Name: s}
	}
}
