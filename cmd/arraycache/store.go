package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hupe1980/arraycache/blobstore"
	"github.com/hupe1980/arraycache/blobstore/minio"
	"github.com/hupe1980/arraycache/blobstore/s3"
	"github.com/hupe1980/arraycache/feature"
	"github.com/hupe1980/arraycache/resource"
)

// storeLocation is a parsed --store value.
type storeLocation struct {
	Scheme string
	Host   string
	Bucket string
	Prefix string
	Path   string
	Query  url.Values
	Raw    string
}

// parseStore accepts file://dir, plain paths, s3://bucket/prefix,
// minio://host/bucket/prefix and http(s)://host.
func parseStore(raw string) (storeLocation, error) {
	if !strings.Contains(raw, "://") {
		return storeLocation{Scheme: "file", Path: raw, Raw: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return storeLocation{}, fmt.Errorf("parse store %q: %w", raw, err)
	}

	loc := storeLocation{Scheme: u.Scheme, Query: u.Query(), Raw: raw}
	rest := strings.Trim(u.Path, "/")

	switch u.Scheme {
	case "file":
		loc.Path = filepath.FromSlash(u.Host + u.Path)
		if loc.Path == "" {
			return storeLocation{}, fmt.Errorf("store %q: missing directory", raw)
		}
	case "s3":
		loc.Bucket = u.Host
		loc.Prefix = rest
		if loc.Bucket == "" {
			return storeLocation{}, fmt.Errorf("store %q: missing bucket", raw)
		}
	case "minio":
		loc.Host = u.Host
		loc.Bucket, loc.Prefix, _ = strings.Cut(rest, "/")
		if loc.Host == "" || loc.Bucket == "" {
			return storeLocation{}, fmt.Errorf("store %q: want minio://host/bucket[/prefix]", raw)
		}
	case "http", "https":
		loc.Host = u.Host
	default:
		return storeLocation{}, fmt.Errorf("store %q: unsupported scheme %q", raw, u.Scheme)
	}

	return loc, nil
}

// openBlobStore opens the blob store behind loc. HTTP locations have none.
func openBlobStore(ctx context.Context, loc storeLocation) (blobstore.BlobStore, error) {
	switch loc.Scheme {
	case "file":
		return blobstore.NewLocalStore(loc.Path), nil
	case "s3":
		opts := []func(*s3.Options){s3.WithPrefix(loc.Prefix)}
		if r := loc.Query.Get("region"); r != "" {
			opts = append(opts, s3.WithRegion(r))
		}
		if e := loc.Query.Get("endpoint"); e != "" {
			opts = append(opts, s3.WithEndpoint(e))
		}
		return s3.New(ctx, loc.Bucket, opts...)
	case "minio":
		secure, _ := strconv.ParseBool(loc.Query.Get("secure"))
		return minio.Dial(minio.Config{
			Endpoint:  loc.Host,
			AccessKey: firstEnv("ARRAYCACHE_MINIO_ACCESS_KEY", "MINIO_ROOT_USER"),
			SecretKey: firstEnv("ARRAYCACHE_MINIO_SECRET_KEY", "MINIO_ROOT_PASSWORD"),
			Secure:    secure,
			Region:    loc.Query.Get("region"),
			Bucket:    loc.Bucket,
			Prefix:    loc.Prefix,
		})
	default:
		return nil, fmt.Errorf("store %q is read-only", loc.Raw)
	}
}

// openSource returns the feature source for loc. The StoreSource is nil for
// HTTP locations.
func openSource(ctx context.Context, loc storeLocation, rc *resource.Controller) (feature.Source, *feature.StoreSource, error) {
	if loc.Scheme == "http" || loc.Scheme == "https" {
		src, err := feature.NewHTTPSource(loc.Raw, feature.WithHTTPRateLimit(rc))
		return src, nil, err
	}

	store, err := openBlobStore(ctx, loc)
	if err != nil {
		return nil, nil, err
	}
	src := feature.NewStoreSource(store, feature.WithStoreRateLimit(rc))
	return src, src, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
