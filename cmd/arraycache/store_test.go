package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStore(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want storeLocation
	}{
		{
			name: "plain path",
			raw:  "./features",
			want: storeLocation{Scheme: "file", Path: "./features"},
		},
		{
			name: "file url",
			raw:  "file:///var/lib/features",
			want: storeLocation{Scheme: "file", Path: filepath.FromSlash("/var/lib/features")},
		},
		{
			name: "s3 with prefix",
			raw:  "s3://bucket/runs/42",
			want: storeLocation{Scheme: "s3", Bucket: "bucket", Prefix: "runs/42"},
		},
		{
			name: "s3 bucket only",
			raw:  "s3://bucket",
			want: storeLocation{Scheme: "s3", Bucket: "bucket"},
		},
		{
			name: "minio",
			raw:  "minio://localhost:9000/bucket/prefix",
			want: storeLocation{Scheme: "minio", Host: "localhost:9000", Bucket: "bucket", Prefix: "prefix"},
		},
		{
			name: "http",
			raw:  "http://localhost:8080",
			want: storeLocation{Scheme: "http", Host: "localhost:8080"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseStore(tt.raw)
			require.NoError(t, err)

			assert.Equal(t, tt.want.Scheme, got.Scheme)
			assert.Equal(t, tt.want.Host, got.Host)
			assert.Equal(t, tt.want.Bucket, got.Bucket)
			assert.Equal(t, tt.want.Prefix, got.Prefix)
			assert.Equal(t, tt.want.Path, got.Path)
			assert.Equal(t, tt.raw, got.Raw)
		})
	}
}

func TestParseStoreQuery(t *testing.T) {
	loc, err := parseStore("s3://bucket/p?region=eu-west-1&endpoint=http://localhost:4566")
	require.NoError(t, err)

	assert.Equal(t, "eu-west-1", loc.Query.Get("region"))
	assert.Equal(t, "http://localhost:4566", loc.Query.Get("endpoint"))
}

func TestParseStoreErrors(t *testing.T) {
	for _, raw := range []string{
		"s3://",
		"minio://localhost:9000",
		"ftp://host/dir",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := parseStore(raw)
			assert.Error(t, err)
		})
	}
}

func TestOpenBlobStoreReadOnly(t *testing.T) {
	loc, err := parseStore("http://localhost:8080")
	require.NoError(t, err)

	_, err = openBlobStore(t.Context(), loc)
	assert.ErrorContains(t, err, "read-only")
}
