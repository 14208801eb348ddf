package feature

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/hupe1980/arraycache"
	"github.com/hupe1980/arraycache/blobstore"
	"github.com/hupe1980/arraycache/codec"
	"github.com/hupe1980/arraycache/resource"
)

// BlobName returns the blob that holds a feature column:
// "<name>/full.acf" or "<name>/downsample-<n>.acf".
func BlobName(name string, downsample int) string {
	if downsample > 0 {
		return name + "/downsample-" + strconv.Itoa(downsample) + codec.Extension
	}
	return name + "/full" + codec.Extension
}

// StoreSource reads feature frames from a blob store.
type StoreSource struct {
	store blobstore.BlobStore
	rc    *resource.Controller
}

// StoreSourceOption configures a StoreSource.
type StoreSourceOption func(*StoreSource)

// WithStoreRateLimit charges frame reads against rc's IO limit.
func WithStoreRateLimit(rc *resource.Controller) StoreSourceOption {
	return func(s *StoreSource) { s.rc = rc }
}

// NewStoreSource creates a source backed by store.
func NewStoreSource(store blobstore.BlobStore, optFns ...StoreSourceOption) *StoreSource {
	s := &StoreSource{store: store}
	for _, fn := range optFns {
		fn(s)
	}
	return s
}

// Fetch reads and decodes the frame for req. The session is ignored.
func (s *StoreSource) Fetch(ctx context.Context, req Request) (*Payload, error) {
	name := BlobName(req.Name, req.Downsample)

	frame, err := blobstore.ReadAll(ctx, s.store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFeatureNotFound, name)
		}
		return nil, err
	}

	if err := s.rc.AcquireIO(ctx, len(frame)); err != nil {
		return nil, err
	}

	f, err := codec.Decode(frame)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	return &Payload{Data: f.Data, Type: f.Type, Native: f.Native}, nil
}

// Publish encodes a binary column and writes it to the store.
func (s *StoreSource) Publish(ctx context.Context, name string, downsample int, data []byte, t arraycache.ElementType, c codec.Compression) error {
	frame, err := codec.Encode(data, t, c)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, BlobName(name, downsample), frame)
}

// PublishNative encodes a native column and writes it to the store.
func (s *StoreSource) PublishNative(ctx context.Context, name string, downsample int, seq []float64, c codec.Compression) error {
	frame, err := codec.EncodeNative(seq, c)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, BlobName(name, downsample), frame)
}

// Features returns the sorted names of all stored features.
func (s *StoreSource) Features(ctx context.Context) ([]string, error) {
	names, err := s.store.List(ctx, "")
	if err != nil {
		return nil, err
	}

	var features []string
	for _, n := range names {
		if !strings.HasSuffix(n, codec.Extension) {
			continue
		}
		dir, _, ok := strings.Cut(n, "/")
		if !ok {
			continue
		}
		features = append(features, dir)
	}

	slices.Sort(features)
	return slices.Compact(features), nil
}

// Levels returns the stored downsample levels of a feature in ascending order.
// Zero stands for the full-resolution column.
func (s *StoreSource) Levels(ctx context.Context, name string) ([]int, error) {
	names, err := s.store.List(ctx, name+"/")
	if err != nil {
		return nil, err
	}

	var levels []int
	for _, n := range names {
		base := strings.TrimSuffix(strings.TrimPrefix(n, name+"/"), codec.Extension)
		switch {
		case base == "full":
			levels = append(levels, 0)
		case strings.HasPrefix(base, "downsample-"):
			if d, err := strconv.Atoi(strings.TrimPrefix(base, "downsample-")); err == nil && d > 0 {
				levels = append(levels, d)
			}
		}
	}

	slices.Sort(levels)
	return levels, nil
}
