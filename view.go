package arraycache

import (
	"fmt"

	"github.com/hupe1980/arraycache/internal/conv"
)

// Number is the set of Go element types a View can expose.
type Number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~float32 | ~float64
}

// View is a typed numeric read interface over a cached entry.
//
// For binary entries the typed slice aliases the cached payload whenever the
// payload is suitably aligned, so no bytes are copied. Callers must treat it as
// read-only.
type View struct {
	typ      ElementType
	raw      []byte
	values   any
	n        int
	zeroCopy bool
}

func newNativeView(seq []float64) View {
	return View{typ: Native, values: seq, n: len(seq), zeroCopy: true}
}

func newBinaryView(key string, typ ElementType, raw []byte) (View, error) {
	if len(raw)%typ.Size() != 0 {
		return View{}, &PayloadSizeError{Key: key, ElementType: typ, Length: len(raw)}
	}

	v := View{typ: typ, raw: raw, n: len(raw) / typ.Size()}

	switch typ {
	case Int8:
		v.values, v.zeroCopy = reinterpret[int8](raw)
	case Uint8:
		v.values, v.zeroCopy = reinterpret[uint8](raw)
	case Int16:
		v.values, v.zeroCopy = reinterpret[int16](raw)
	case Uint16:
		v.values, v.zeroCopy = reinterpret[uint16](raw)
	case Int32:
		v.values, v.zeroCopy = reinterpret[int32](raw)
	case Uint32:
		v.values, v.zeroCopy = reinterpret[uint32](raw)
	case Float32:
		v.values, v.zeroCopy = reinterpret[float32](raw)
	case Float64:
		v.values, v.zeroCopy = reinterpret[float64](raw)
	default:
		// Insert only accepts valid types.
		panic(fmt.Sprintf("arraycache: unsupported element type %d", typ))
	}
	return v, nil
}

func reinterpret[T conv.Number](raw []byte) ([]T, bool) {
	if s, ok := conv.BytesAs[T](raw); ok {
		return s, true
	}
	return conv.Decode[T](raw), false
}

// ElementType returns the element type of the view.
func (v View) ElementType() ElementType { return v.typ }

// Len returns the number of elements.
func (v View) Len() int { return v.n }

// ZeroCopy reports whether the values share memory with the cached entry.
func (v View) ZeroCopy() bool { return v.zeroCopy }

// Bytes returns the underlying payload. It is nil for native views.
func (v View) Bytes() []byte { return v.raw }

// Values returns the typed slice: []int8, []uint8, []int16, []uint16, []int32,
// []uint32, []float32 or []float64.
func (v View) Values() any { return v.values }

// At returns element i widened to float64. It panics if i is out of range.
func (v View) At(i int) float64 {
	switch s := v.values.(type) {
	case []int8:
		return float64(s[i])
	case []uint8:
		return float64(s[i])
	case []int16:
		return float64(s[i])
	case []uint16:
		return float64(s[i])
	case []int32:
		return float64(s[i])
	case []uint32:
		return float64(s[i])
	case []float32:
		return float64(s[i])
	case []float64:
		return s[i]
	default:
		panic("arraycache: At on empty view")
	}
}

// Float64s returns the values widened to float64.
// Native and Float64 views return their backing slice; other types are copied.
func (v View) Float64s() []float64 {
	if s, ok := v.values.([]float64); ok {
		return s
	}
	out := make([]float64, v.n)
	for i := range out {
		out[i] = v.At(i)
	}
	return out
}

// As returns the view's values as []T.
// It fails with *TypeMismatchError unless T matches the view's element type.
func As[T Number](v View) ([]T, error) {
	s, ok := v.values.([]T)
	if !ok {
		return nil, &TypeMismatchError{Have: v.typ, Requested: fmt.Sprintf("%T", s)}
	}
	return s, nil
}
