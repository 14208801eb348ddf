// Package codec implements the feature frame format used to store cached
// arrays in blob stores.
//
// A frame is a 16-byte header followed by the body:
//
//	[magic "ACF1" 4][version 1][dtype 1][compression 1][reserved 1]
//	[raw length u32 LE][crc32c(raw) u32 LE][body...]
//
// The header fields are little-endian. The raw payload itself is stored in
// the byte order of the host that encoded it, matching what the cache expects
// from Insert. The 16-byte header keeps an uncompressed body 8-byte aligned
// whenever the frame buffer is, so decoded payloads can be viewed without a
// copy.
//
// Native sequences are stored as JSON arrays.
package codec
