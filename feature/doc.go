// Package feature fills an arraycache.Cache with feature columns.
//
// A Source fetches the raw column for a feature name at a given downsample
// level. StoreSource reads encoded frames from any blobstore.BlobStore;
// HTTPSource talks to a feature server that returns raw bytes tagged with an
// X-Data-Type header.
//
// A Loader sits in front of a Source: it returns cached columns when present,
// shares a single fetch between concurrent callers of the same key, bounds
// fetch concurrency and admitted memory through a resource.Controller, and
// records loads in the cache's logger and metrics.
//
//	cache := arraycache.New()
//	loader := feature.NewLoader(cache, feature.NewStoreSource(blobstore.NewLocalStore("./features")))
//
//	v, err := loader.Resolve(ctx, "age", 1000)
package feature
