package feature

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/arraycache"
	"github.com/hupe1980/arraycache/internal/conv"
	"github.com/hupe1980/arraycache/resource"
)

func newFeatureServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/feature", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("name") {
		case "age":
			assert.Equal(t, "s1", q.Get("session"))
			assert.Equal(t, "4", q.Get("downsample"))
			w.Header().Set(DataTypeHeader, "float32")
			_, _ = w.Write(conv.AsBytes([]float32{1, 2, 3}))
		case "full":
			assert.False(t, q.Has("downsample"))
			w.Header().Set(DataTypeHeader, "Uint8Array")
			_, _ = w.Write([]byte{4, 5})
		case "labels":
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			_, _ = w.Write([]byte(`[3.5, 2.1]`))
		case "untyped":
			_, _ = w.Write([]byte{1})
		case "weird":
			w.Header().Set(DataTypeHeader, "complex64")
			_, _ = w.Write([]byte{1})
		case "boom":
			http.Error(w, "backend exploded", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSource(t *testing.T) {
	srv := newFeatureServer(t)
	ctx := context.Background()

	src, err := NewHTTPSource(srv.URL, WithHTTPClient(srv.Client()), WithHeader("X-Test", "1"))
	require.NoError(t, err)

	t.Run("Binary", func(t *testing.T) {
		p, err := src.Fetch(ctx, Request{Name: "age", Downsample: 4, Session: "s1"})
		require.NoError(t, err)
		assert.Equal(t, arraycache.Float32, p.Type)
		assert.Equal(t, conv.AsBytes([]float32{1, 2, 3}), p.Data)
	})

	t.Run("TypedArrayName", func(t *testing.T) {
		p, err := src.Fetch(ctx, Request{Name: "full"})
		require.NoError(t, err)
		assert.Equal(t, arraycache.Uint8, p.Type)
		assert.Equal(t, []byte{4, 5}, p.Data)
	})

	t.Run("Native", func(t *testing.T) {
		p, err := src.Fetch(ctx, Request{Name: "labels"})
		require.NoError(t, err)
		assert.Equal(t, arraycache.Native, p.Type)
		assert.Equal(t, []float64{3.5, 2.1}, p.Native)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		_, err := src.Fetch(ctx, Request{Name: "untyped"})
		assert.ErrorContains(t, err, DataTypeHeader)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := src.Fetch(ctx, Request{Name: "weird"})
		var unknown *arraycache.UnknownElementTypeError
		assert.ErrorAs(t, err, &unknown)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := src.Fetch(ctx, Request{Name: "nope"})
		assert.ErrorIs(t, err, ErrFeatureNotFound)
	})

	t.Run("ServerError", func(t *testing.T) {
		_, err := src.Fetch(ctx, Request{Name: "boom"})
		var status *StatusError
		require.ErrorAs(t, err, &status)
		assert.Equal(t, http.StatusInternalServerError, status.StatusCode)
		assert.Equal(t, "backend exploded", status.Body)
	})
}

func TestHTTPSourceRateLimited(t *testing.T) {
	srv := newFeatureServer(t)
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})

	src, err := NewHTTPSource(srv.URL, WithHTTPClient(srv.Client()), WithHTTPRateLimit(rc))
	require.NoError(t, err)

	p, err := src.Fetch(context.Background(), Request{Name: "full"})
	require.NoError(t, err)
	assert.Equal(t, []byte{4, 5}, p.Data)
}

func TestNewHTTPSourceRejectsScheme(t *testing.T) {
	_, err := NewHTTPSource("file:///tmp")
	assert.Error(t, err)

	src, err := NewHTTPSource("http://example.com/base")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/base/api/feature?name=a+b", src.endpoint(Request{Name: "a b"}))
}
