// Package conv provides checked integer conversions and the unsafe byte
// reinterpretation used to expose cached payloads as typed slices.
//
// Integer casts perform bounds checking so that lengths read from untrusted
// frame headers cannot overflow.
//
// BytesAs reinterprets a byte slice in place when the address is aligned for
// the element type. Decode is the copying fallback. Both use the host's
// native byte order, the same order the bytes were produced in.
package conv
