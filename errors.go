package arraycache

import (
	"errors"
	"fmt"
)

// ErrCacheMiss is matched by every error returned for a key the cache does not hold.
var ErrCacheMiss = errors.New("cache miss")

// CacheMissError is returned by Get, GetRaw and Delete when Has(Key) is false.
type CacheMissError struct {
	Key string
}

func (e *CacheMissError) Error() string {
	return fmt.Sprintf("cache does not contain key %q", e.Key)
}

// Is reports whether target is ErrCacheMiss.
func (e *CacheMissError) Is(target error) bool { return target == ErrCacheMiss }

// PayloadSizeError indicates a payload whose length is not a multiple of its element width.
// The bytes remain available through GetRaw.
type PayloadSizeError struct {
	Key         string
	ElementType ElementType
	Length      int
}

func (e *PayloadSizeError) Error() string {
	return fmt.Sprintf("payload for key %q has %d bytes, not a multiple of %s width %d",
		e.Key, e.Length, e.ElementType, e.ElementType.Size())
}

// TypeMismatchError is returned by As when the requested slice type does not match the view.
type TypeMismatchError struct {
	// Have is the element type the view holds.
	Have ElementType
	// Requested is the Go slice type asked for, e.g. "[]int8".
	Requested string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: view holds %s, requested %s", e.Have, e.Requested)
}

// UnknownElementTypeError indicates a data type name outside the supported set.
type UnknownElementTypeError struct {
	Name string
}

func (e *UnknownElementTypeError) Error() string {
	return fmt.Sprintf("unknown element type: %q", e.Name)
}
