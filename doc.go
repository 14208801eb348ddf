// Package arraycache provides an in-process cache of numeric arrays.
//
// A Cache maps opaque string keys to binary payloads tagged with an element
// type. Reads return a View that reinterprets the payload as a typed slice in
// native byte order, sharing memory with the stored bytes whenever alignment
// allows it.
//
// # Quick Start
//
//	c := arraycache.New()
//	c.Insert("a", []byte{1, 0, 0, 0, 2, 0, 0, 0}, arraycache.Int32)
//
//	v, err := c.Get("a")
//	if err != nil {
//	    return err
//	}
//	ints, _ := arraycache.As[int32](v) // [1 2] on little-endian hosts
//
// Sequences that are already decoded can be stored as-is:
//
//	c.InsertNative("b", []float64{3.5, 2.1})
//
// # Ownership
//
// Insert does not copy its payload. After the call the bytes belong to the
// cache, and views returned by Get may alias them. Callers must not modify a
// buffer they passed to Insert, nor a slice obtained from a View.
//
// # Misses
//
// Get, GetRaw and Delete return *CacheMissError for absent keys. Use
// errors.Is(err, ErrCacheMiss) or check Has first when a miss is expected.
//
// # Eviction
//
// There is none. Entries live until Delete or replacement. Use a
// resource.Controller with WithResourceController to observe the bytes held,
// and the feature package to bound what a loader admits.
package arraycache
