// Package hash provides the checksum used by feature frames.
//
// Frames carry a CRC32-Castagnoli (CRC32C) of their uncompressed payload.
// Go's crc32 package uses SSE4.2 or the ARM CRC extension when available.
//
//	sum := hash.CRC32C(payload)
package hash
