package feature

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/arraycache"
)

// ErrFeatureNotFound is returned when a source has no column for a request.
var ErrFeatureNotFound = errors.New("feature not found")

// Request identifies a feature column.
type Request struct {
	Name string

	// Downsample selects a reduced column. Zero or less means full resolution.
	Downsample int

	// Session scopes the request on servers that keep per-session datasets.
	Session string
}

// Key returns the cache key for the request.
func (r Request) Key() string {
	return arraycache.FeatureKey(r.Name, r.Downsample)
}

// Payload is a fetched column.
// Binary payloads set Data and Type; native payloads set Native and Type == arraycache.Native.
type Payload struct {
	Data   []byte
	Type   arraycache.ElementType
	Native []float64
}

// Size returns the bytes the payload occupies once cached.
func (p *Payload) Size() int {
	if p.Type == arraycache.Native {
		return len(p.Native) * arraycache.Native.Size()
	}
	return len(p.Data)
}

// Insert stores the payload in c under key.
func (p *Payload) Insert(c *arraycache.Cache, key string) error {
	switch {
	case p.Type == arraycache.Native:
		c.InsertNative(key, p.Native)
	case p.Type.IsValid():
		c.Insert(key, p.Data, p.Type)
	default:
		return fmt.Errorf("payload for %s: invalid element type %s", key, p.Type)
	}
	return nil
}

// Source fetches feature columns.
type Source interface {
	Fetch(ctx context.Context, req Request) (*Payload, error)
}

// Lister is implemented by sources that can enumerate their features.
type Lister interface {
	Features(ctx context.Context) ([]string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, req Request) (*Payload, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context, req Request) (*Payload, error) {
	return f(ctx, req)
}
