// Package blobstore provides storage for encoded feature frames.
//
// BlobStore is the interface for reading and writing immutable blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and embedding
//   - LocalStore: local filesystem with mmap-backed reads
//   - s3.Store: Amazon S3 with range reads and managed uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// Use ReadAll to load a complete blob into memory that stays valid after the
// blob is closed.
package blobstore
