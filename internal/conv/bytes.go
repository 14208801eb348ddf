package conv

import "unsafe"

// Number is the set of element types a payload can be viewed as.
type Number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~float32 | ~float64
}

// SizeOf returns the width of T in bytes.
func SizeOf[T Number]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// Aligned reports whether b starts at an address suitable for loading T.
func Aligned[T Number](b []byte) bool {
	if len(b) == 0 {
		return true
	}
	var zero T
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))%unsafe.Alignof(zero) == 0
}

// BytesAs reinterprets b as []T without copying.
// ok is false if b is misaligned for T or len(b) is not a multiple of its width.
// The returned slice aliases b: writes through either are visible in both.
func BytesAs[T Number](b []byte) (s []T, ok bool) {
	size := SizeOf[T]()
	if len(b)%size != 0 || !Aligned[T](b) {
		return nil, false
	}
	if len(b) == 0 {
		return []T{}, true
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), len(b)/size), true
}

// Decode copies b into a freshly allocated []T.
// Trailing bytes that do not fill a whole element are ignored.
func Decode[T Number](b []byte) []T {
	size := SizeOf[T]()
	n := len(b) / size
	out := make([]T, n)
	if n == 0 {
		return out
	}
	dst := unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), n*size)
	copy(dst, b[:n*size])
	return out
}

// AsBytes returns the memory of s as a byte slice without copying.
func AsBytes[T Number](s []T) []byte {
	if len(s) == 0 {
		return []byte{}
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s)*SizeOf[T]())
}

// IsLittleEndian reports the host byte order.
func IsLittleEndian() bool {
	var probe uint16 = 0x0001
	return *(*byte)(unsafe.Pointer(&probe)) == 1
}
