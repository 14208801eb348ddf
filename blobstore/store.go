package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hupe1980/arraycache/internal/conv"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrInvalidOffset is returned for negative read offsets.
var ErrInvalidOffset = errors.New("invalid offset")

// ErrInvalidName is returned for blob names that are empty, absolute, or
// escape the store root.
var ErrInvalidName = errors.New("invalid blob name")

// BlobStore stores immutable blobs such as encoded feature frames.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)

	// Put writes a blob atomically, replacing any existing blob of that name.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the sorted names of all blobs starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes at offset off. It follows io.ReaderAt semantics.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)

	// Size returns the size of the blob in bytes.
	Size() int64

	io.Closer
}

// Mappable is an optional interface for Blobs backed by memory.
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// ReadAll reads the whole blob into a freshly allocated buffer.
// Mapped blobs are copied once: Close unmaps them, and the result must stay
// valid after it.
func ReadAll(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = blob.Close() }()

	size, err := conv.Int64ToInt(blob.Size())
	if err != nil {
		return nil, fmt.Errorf("blob %s: %w", name, err)
	}

	buf := make([]byte, size)
	if size == 0 {
		return buf, nil
	}

	if m, ok := blob.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		copy(buf, data)
		return buf, nil
	}

	n, err := blob.ReadAt(ctx, buf, 0)
	if err != nil && !(errors.Is(err, io.EOF) && n == size) {
		return nil, fmt.Errorf("blob %s: %w", name, err)
	}
	if n != size {
		return nil, fmt.Errorf("blob %s: short read %d of %d bytes: %w", name, n, size, io.ErrUnexpectedEOF)
	}
	return buf, nil
}

func hasPrefix(name, prefix string) bool {
	return prefix == "" || strings.HasPrefix(name, prefix)
}
