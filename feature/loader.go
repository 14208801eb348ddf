package feature

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/arraycache"
	"github.com/hupe1980/arraycache/resource"
)

type loaderOptions struct {
	rc          *resource.Controller
	logger      *arraycache.Logger
	metrics     arraycache.MetricsCollector
	session     string
	parallelism int
}

// LoaderOption configures a Loader.
type LoaderOption func(*loaderOptions)

// WithResourceController bounds concurrent fetches and admitted memory.
func WithResourceController(rc *resource.Controller) LoaderOption {
	return func(o *loaderOptions) { o.rc = rc }
}

// WithLogger sets the logger used for load events.
func WithLogger(l *arraycache.Logger) LoaderOption {
	return func(o *loaderOptions) {
		if l == nil {
			l = arraycache.NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the collector that receives RecordLoad calls.
func WithMetricsCollector(mc arraycache.MetricsCollector) LoaderOption {
	return func(o *loaderOptions) {
		if mc == nil {
			mc = arraycache.NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithSession sets the session sent with every request.
func WithSession(session string) LoaderOption {
	return func(o *loaderOptions) { o.session = session }
}

// WithParallelism bounds the goroutines ResolveMany starts. Default: 8.
func WithParallelism(n int) LoaderOption {
	return func(o *loaderOptions) { o.parallelism = n }
}

// Loader resolves feature columns through a cache.
type Loader struct {
	cache  *arraycache.Cache
	source Source
	opts   loaderOptions
	group  singleflight.Group
}

// NewLoader creates a loader that fills cache from source.
func NewLoader(cache *arraycache.Cache, source Source, optFns ...LoaderOption) *Loader {
	opts := loaderOptions{
		logger:      arraycache.NoopLogger(),
		metrics:     arraycache.NoopMetricsCollector{},
		parallelism: 8,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.parallelism <= 0 {
		opts.parallelism = 1
	}

	return &Loader{
		cache:  cache,
		source: source,
		opts:   opts,
	}
}

// Cache returns the cache the loader fills.
func (l *Loader) Cache() *arraycache.Cache {
	return l.cache
}

// Resolve returns the column for name at the given downsample level, fetching
// it from the source on a cache miss. Concurrent calls for the same column
// share one fetch, which keeps running when the caller that started it gives
// up.
func (l *Loader) Resolve(ctx context.Context, name string, downsample int) (arraycache.View, error) {
	req := Request{Name: name, Downsample: downsample, Session: l.opts.session}
	key := req.Key()

	v, err := l.cache.Get(key)
	if err == nil || !errors.Is(err, arraycache.ErrCacheMiss) {
		return v, err
	}

	if err := ctx.Err(); err != nil {
		return arraycache.View{}, err
	}

	// The shared load ignores cancellation. Each caller stops waiting on its
	// own ctx.
	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		// Another caller may have finished the load while this one waited.
		if v, err := l.cache.Get(key); err == nil {
			return v, nil
		}
		return l.load(loadCtx, key, req)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return arraycache.View{}, res.Err
		}
		return res.Val.(arraycache.View), nil
	case <-ctx.Done():
		return arraycache.View{}, ctx.Err()
	}
}

func (l *Loader) load(ctx context.Context, key string, req Request) (arraycache.View, error) {
	if err := l.opts.rc.AcquireFetch(ctx); err != nil {
		return arraycache.View{}, err
	}
	defer l.opts.rc.ReleaseFetch()

	start := time.Now()
	p, err := l.source.Fetch(ctx, req)
	if err == nil {
		err = l.opts.rc.Admit(int64(p.Size()))
	}
	if err == nil {
		err = p.Insert(l.cache, key)
	}

	size := 0
	if p != nil {
		size = p.Size()
	}
	elapsed := time.Since(start)
	l.opts.metrics.RecordLoad(elapsed, size, err)
	l.opts.logger.LogLoad(ctx, key, size, elapsed, err)

	if err != nil {
		return arraycache.View{}, fmt.Errorf("load %s: %w", key, err)
	}
	return l.cache.Get(key)
}

// ResolveMany resolves several columns at one downsample level in parallel.
// The views are returned in the order of names.
func (l *Loader) ResolveMany(ctx context.Context, names []string, downsample int) ([]arraycache.View, error) {
	views := make([]arraycache.View, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.parallelism)

	for i, name := range names {
		g.Go(func() error {
			v, err := l.Resolve(gctx, name, downsample)
			if err != nil {
				return err
			}
			views[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// ResolveSubset returns the rows of a column selected by rows and caches them
// as a native sequence under arraycache.SubsetKey(name, subset, downsample).
func (l *Loader) ResolveSubset(ctx context.Context, name, subset string, downsample int, rows *roaring.Bitmap) (arraycache.View, error) {
	key := arraycache.SubsetKey(name, subset, downsample)

	if v, err := l.cache.Get(key); err == nil {
		return v, nil
	}

	column, err := l.Resolve(ctx, name, downsample)
	if err != nil {
		return arraycache.View{}, err
	}

	values, err := Subset(column, rows)
	if err != nil {
		return arraycache.View{}, fmt.Errorf("subset %s of %s: %w", subset, name, err)
	}

	l.cache.InsertNative(key, values)
	return l.cache.Get(key)
}

// Invalidate removes the cached column for name at the given downsample level.
func (l *Loader) Invalidate(name string, downsample int) error {
	return l.cache.Delete(arraycache.FeatureKey(name, downsample))
}
