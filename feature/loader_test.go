package feature

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/arraycache"
	"github.com/hupe1980/arraycache/internal/conv"
	"github.com/hupe1980/arraycache/resource"
)

// countingSource serves float32 columns whose values encode the request.
type countingSource struct {
	calls   atomic.Int64
	release chan struct{}
	fail    map[string]error
}

func (s *countingSource) Fetch(ctx context.Context, req Request) (*Payload, error) {
	s.calls.Add(1)
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := s.fail[req.Name]; err != nil {
		return nil, err
	}
	values := []float32{float32(len(req.Name)), float32(req.Downsample)}
	return &Payload{Data: conv.AsBytes(values), Type: arraycache.Float32}, nil
}

func TestLoaderResolve(t *testing.T) {
	mc := &arraycache.BasicMetricsCollector{}
	cache := arraycache.New()
	src := &countingSource{}
	loader := NewLoader(cache, src, WithMetricsCollector(mc), WithSession("s"))

	v, err := loader.Resolve(context.Background(), "age", 5)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 5}, v.Float64s())
	assert.True(t, cache.Has(arraycache.FeatureKey("age", 5)))

	// Second call is served from the cache.
	_, err = loader.Resolve(context.Background(), "age", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), src.calls.Load())

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.LoadCount)
	assert.Equal(t, int64(8), stats.LoadBytes)

	require.NoError(t, loader.Invalidate("age", 5))
	assert.ErrorIs(t, loader.Invalidate("age", 5), arraycache.ErrCacheMiss)

	_, err = loader.Resolve(context.Background(), "age", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), src.calls.Load())
}

func TestLoaderDeduplicatesConcurrentResolves(t *testing.T) {
	cache := arraycache.New()
	src := &countingSource{release: make(chan struct{})}
	loader := NewLoader(cache, src)

	const callers = 10

	var wg sync.WaitGroup
	results := make([]arraycache.View, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = loader.Resolve(context.Background(), "income", 0)
		}()
	}

	// Wait until the first fetch is in flight, then let it finish.
	require.Eventually(t, func() bool { return src.calls.Load() >= 1 }, timeout, tick)
	close(src.release)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, []float64{6, 0}, results[i].Float64s())
	}
	// Allow a second fetch if a caller arrived after the first flight ended
	// but before the cache check.
	assert.LessOrEqual(t, src.calls.Load(), int64(2))
}

func TestLoaderSharedLoadSurvivesCancelledCaller(t *testing.T) {
	cache := arraycache.New()
	src := &countingSource{release: make(chan struct{})}
	loader := NewLoader(cache, src)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := loader.Resolve(ctx, "income", 0)
		first <- err
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, timeout, tick)

	second := make(chan error, 1)
	var v arraycache.View
	go func() {
		var err error
		v, err = loader.Resolve(context.Background(), "income", 0)
		second <- err
	}()
	// Give the second caller time to join the in-flight load.
	time.Sleep(20 * time.Millisecond)

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(timeout):
		t.Fatal("cancelled caller did not return")
	}

	close(src.release)
	select {
	case err := <-second:
		require.NoError(t, err)
		assert.Equal(t, []float64{6, 0}, v.Float64s())
	case <-time.After(timeout):
		t.Fatal("waiting caller did not return")
	}

	assert.Equal(t, int64(1), src.calls.Load())
	assert.True(t, cache.Has(arraycache.FeatureKey("income", 0)))
}

func TestLoaderErrors(t *testing.T) {
	boom := errors.New("boom")
	mc := &arraycache.BasicMetricsCollector{}
	cache := arraycache.New()
	src := &countingSource{fail: map[string]error{"bad": boom}}
	loader := NewLoader(cache, src, WithMetricsCollector(mc))

	_, err := loader.Resolve(context.Background(), "bad", 0)
	assert.ErrorIs(t, err, boom)
	assert.False(t, cache.Has(arraycache.FeatureKey("bad", 0)))
	assert.Equal(t, int64(1), mc.GetStats().LoadErrors)
}

func TestLoaderMemoryAdmission(t *testing.T) {
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 12})
	cache := arraycache.New(arraycache.WithResourceController(rc))
	loader := NewLoader(cache, &countingSource{}, WithResourceController(rc))

	_, err := loader.Resolve(context.Background(), "a", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(8), rc.MemoryUsage())

	_, err = loader.Resolve(context.Background(), "b", 0)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
	assert.False(t, cache.Has(arraycache.FeatureKey("b", 0)))

	// Freeing memory lets the load through.
	require.NoError(t, loader.Invalidate("a", 0))
	_, err = loader.Resolve(context.Background(), "b", 0)
	require.NoError(t, err)
}

func TestLoaderContextCancelled(t *testing.T) {
	rc := resource.NewController(resource.Config{MaxConcurrentFetches: 1})
	src := &countingSource{release: make(chan struct{})}
	loader := NewLoader(arraycache.New(), src, WithResourceController(rc))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Resolve(ctx, "x", 0)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoaderResolveMany(t *testing.T) {
	cache := arraycache.New()
	src := &countingSource{}
	loader := NewLoader(cache, src, WithParallelism(2))

	names := []string{"a", "bb", "ccc", "dddd"}
	views, err := loader.ResolveMany(context.Background(), names, 1)
	require.NoError(t, err)
	require.Len(t, views, len(names))
	for i, v := range views {
		assert.Equal(t, []float64{float64(len(names[i])), 1}, v.Float64s(), fmt.Sprint(i))
	}
	assert.Equal(t, 4, cache.Len())

	src.fail = map[string]error{"e": ErrFeatureNotFound}
	_, err = loader.ResolveMany(context.Background(), []string{"a", "e"}, 1)
	assert.ErrorIs(t, err, ErrFeatureNotFound)
}

func TestLoaderResolveSubset(t *testing.T) {
	cache := arraycache.New()
	src := SourceFunc(func(_ context.Context, req Request) (*Payload, error) {
		return &Payload{Data: []byte{10, 20, 30, 40}, Type: arraycache.Uint8}, nil
	})
	loader := NewLoader(cache, src)

	rows := roaring.BitmapOf(1, 3)
	id, err := SubsetID(rows)
	require.NoError(t, err)

	v, err := loader.ResolveSubset(context.Background(), "col", id, 0, rows)
	require.NoError(t, err)
	assert.Equal(t, arraycache.Native, v.ElementType())
	assert.Equal(t, []float64{20, 40}, v.Float64s())
	assert.True(t, cache.Has(arraycache.SubsetKey("col", id, 0)))

	_, err = loader.ResolveSubset(context.Background(), "col", "bad", 0, roaring.BitmapOf(9))
	assert.ErrorIs(t, err, ErrRowOutOfRange)
}

const (
	timeout = 5 * time.Second
	tick    = time.Millisecond
)
