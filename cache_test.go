package arraycache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/hupe1980/arraycache/internal/conv"
	"github.com/hupe1980/arraycache/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	t.Run("Int32Scenario", func(t *testing.T) {
		if !conv.IsLittleEndian() {
			t.Skip("scenario bytes are little-endian")
		}
		c := New()
		c.Insert("a", []byte{1, 0, 0, 0, 2, 0, 0, 0}, Int32)

		require.True(t, c.Has("a"))

		v, err := c.Get("a")
		require.NoError(t, err)
		assert.Equal(t, Int32, v.ElementType())

		got, err := As[int32](v)
		require.NoError(t, err)
		assert.Equal(t, []int32{1, 2}, got)
	})

	t.Run("NativeScenario", func(t *testing.T) {
		c := New()
		seq := []float64{3.5, 2.1}
		c.InsertNative("b", seq)

		v, err := c.Get("b")
		require.NoError(t, err)
		assert.Equal(t, Native, v.ElementType())
		assert.Equal(t, []float64{3.5, 2.1}, v.Float64s())
		assert.Same(t, &seq[0], &v.Float64s()[0])
	})

	t.Run("DeleteScenario", func(t *testing.T) {
		c := New()
		c.Insert("a", []byte{1, 0, 0, 0}, Int32)

		require.NoError(t, c.Delete("a"))
		assert.False(t, c.Has("a"))

		_, err := c.Get("a")
		var miss *CacheMissError
		require.ErrorAs(t, err, &miss)
		assert.Equal(t, "a", miss.Key)

		_, err = c.GetRaw("a")
		assert.ErrorIs(t, err, ErrCacheMiss)

		assert.ErrorIs(t, c.Delete("a"), ErrCacheMiss)
	})

	t.Run("HasOnEmpty", func(t *testing.T) {
		c := New()
		assert.False(t, c.Has("nonexistent"))
		assert.Equal(t, 0, c.Len())
	})

	t.Run("GetRawReturnsInsertedBytes", func(t *testing.T) {
		c := New()
		payload := []byte{9, 8, 7, 6, 5}
		c.Insert("raw", payload, Uint8)

		got, err := c.GetRaw("raw")
		require.NoError(t, err)
		assert.Equal(t, payload, got)
		assert.Same(t, &payload[0], &got[0])
	})

	t.Run("GetRawNative", func(t *testing.T) {
		c := New()
		c.InsertNative("n", []float64{1})

		got, err := c.GetRaw("n")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("ReplaceSwapsPayloadAndType", func(t *testing.T) {
		c := New()
		c.Insert("k", binary.NativeEndian.AppendUint32(nil, 7), Uint32)
		c.Insert("k", binary.NativeEndian.AppendUint16(nil, 0xffff), Int16)

		v, err := c.Get("k")
		require.NoError(t, err)
		assert.Equal(t, Int16, v.ElementType())
		assert.Equal(t, 1, v.Len())
		assert.Equal(t, float64(-1), v.At(0))

		raw, err := c.GetRaw("k")
		require.NoError(t, err)
		assert.Len(t, raw, 2)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("ReplaceBinaryWithNative", func(t *testing.T) {
		c := New()
		c.Insert("k", []byte{1, 2, 3, 4}, Uint8)
		c.InsertNative("k", []float64{42})

		v, err := c.Get("k")
		require.NoError(t, err)
		assert.Equal(t, Native, v.ElementType())
		assert.Equal(t, []float64{42}, v.Float64s())
		assert.Nil(t, v.Bytes())
	})

	t.Run("PayloadSizeMismatch", func(t *testing.T) {
		c := New()
		c.Insert("odd", []byte{1, 2, 3}, Int16)

		_, err := c.Get("odd")
		var sizeErr *PayloadSizeError
		require.ErrorAs(t, err, &sizeErr)
		assert.Equal(t, Int16, sizeErr.ElementType)
		assert.Equal(t, 3, sizeErr.Length)

		raw, err := c.GetRaw("odd")
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, raw)
	})

	t.Run("InvalidTypePanics", func(t *testing.T) {
		c := New()
		assert.Panics(t, func() { c.Insert("x", []byte{1}, Unknown) })
		assert.Panics(t, func() { c.Insert("x", []byte{1}, Native) })
		assert.Panics(t, func() { c.Insert("x", []byte{1}, ElementType(200)) })
		assert.False(t, c.Has("x"))
	})

	t.Run("EmptyPayload", func(t *testing.T) {
		c := New()
		c.Insert("empty", nil, Float64)

		assert.True(t, c.Has("empty"))
		v, err := c.Get("empty")
		require.NoError(t, err)
		assert.Equal(t, 0, v.Len())
	})
}

func TestCacheElementTypes(t *testing.T) {
	tests := []struct {
		name    string
		typ     ElementType
		payload []byte
		want    []float64
	}{
		{"int8", Int8, []byte{0x80, 0x7f, 0xff}, []float64{-128, 127, -1}},
		{"uint8", Uint8, []byte{0, 128, 255}, []float64{0, 128, 255}},
		{"int16", Int16, binary.NativeEndian.AppendUint16(binary.NativeEndian.AppendUint16(nil, 0x8000), 300), []float64{-32768, 300}},
		{"uint16", Uint16, binary.NativeEndian.AppendUint16(nil, 65535), []float64{65535}},
		{"int32", Int32, binary.NativeEndian.AppendUint32(nil, 0xfffffffe), []float64{-2}},
		{"uint32", Uint32, binary.NativeEndian.AppendUint32(nil, 0xffffffff), []float64{4294967295}},
		{"float32", Float32, binary.NativeEndian.AppendUint32(nil, math.Float32bits(1.5)), []float64{1.5}},
		{"float64", Float64, binary.NativeEndian.AppendUint64(nil, math.Float64bits(-0.25)), []float64{-0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Insert(tt.name, tt.payload, tt.typ)

			v, err := c.Get(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.typ, v.ElementType())
			assert.Equal(t, tt.want, v.Float64s())
			assert.Equal(t, tt.payload, v.Bytes())
		})
	}
}

func TestCacheZeroCopy(t *testing.T) {
	c := New()
	values := []float32{1, 2, 3}
	payload := conv.AsBytes(values)
	c.Insert("f", payload, Float32)

	v, err := c.Get("f")
	require.NoError(t, err)
	require.True(t, v.ZeroCopy())

	got, err := As[float32](v)
	require.NoError(t, err)
	assert.Same(t, &values[0], &got[0])
}

func TestCacheMisalignedFallsBackToCopy(t *testing.T) {
	buf := make([]byte, 9)
	copy(buf[1:], binary.NativeEndian.AppendUint64(nil, math.Float64bits(6.25)))
	payload := buf[1:]
	if conv.Aligned[float64](payload) {
		t.Skip("allocation unexpectedly left payload aligned")
	}

	c := New()
	c.Insert("f", payload, Float64)

	v, err := c.Get("f")
	require.NoError(t, err)
	assert.False(t, v.ZeroCopy())
	assert.Equal(t, []float64{6.25}, v.Float64s())
}

func TestCacheInspection(t *testing.T) {
	c := New()
	c.Insert("b", make([]byte, 16), Float32)
	c.InsertNative("a", []float64{1, 2, 3})
	c.Insert("c", make([]byte, 2), Uint8)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"a", "b", "c"}, c.Keys())
	assert.Equal(t, int64(16+24+2), c.SizeBytes())

	typ, err := c.ElementTypeOf("a")
	require.NoError(t, err)
	assert.Equal(t, Native, typ)

	_, err = c.ElementTypeOf("zzz")
	assert.ErrorIs(t, err, ErrCacheMiss)

	var visited []string
	c.Range(func(key string, typ ElementType, size int) bool {
		visited = append(visited, fmt.Sprintf("%s:%s:%d", key, typ, size))
		return key != "b"
	})
	assert.Equal(t, []string{"a:native:24", "b:float32:16"}, visited)

	require.NoError(t, c.Delete("b"))
	assert.Equal(t, int64(26), c.SizeBytes())
}

func TestCacheStatsAndMetrics(t *testing.T) {
	mc := &BasicMetricsCollector{}
	rc := resource.NewController(resource.Config{})
	c := New(WithMetricsCollector(mc), WithResourceController(rc), WithLogger(NoopLogger()))

	c.Insert("a", make([]byte, 8), Float64)
	c.Insert("a", make([]byte, 4), Float32)
	c.InsertNative("b", []float64{1, 2})
	assert.Equal(t, int64(4+16), rc.MemoryUsage())

	_, err := c.Get("a")
	require.NoError(t, err)
	_, err = c.GetRaw("missing")
	require.Error(t, err)
	require.NoError(t, c.Delete("b"))
	require.Error(t, c.Delete("b"))

	assert.Equal(t, int64(4), rc.MemoryUsage())

	stats := c.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(4), stats.SizeBytes)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(3), stats.Inserts)
	assert.Equal(t, int64(1), stats.Deletes)

	m := mc.GetStats()
	assert.Equal(t, int64(3), m.InsertCount)
	assert.Equal(t, int64(8+4+16), m.InsertBytes)
	assert.Equal(t, int64(1), m.HitCount)
	assert.Equal(t, int64(2), m.MissCount)
	assert.Equal(t, int64(1), m.DeleteCount)
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", w%4)
			for i := range 200 {
				if i%2 == 0 {
					c.Insert(key, binary.NativeEndian.AppendUint32(nil, uint32(i)), Uint32)
				} else {
					c.InsertNative(key, []float64{float64(i), float64(i)})
				}

				v, err := c.Get(key)
				if err != nil {
					continue
				}
				// A reader sees either a whole binary entry or a whole native one.
				switch v.ElementType() {
				case Uint32:
					assert.Equal(t, 1, v.Len())
				case Native:
					assert.Equal(t, 2, v.Len())
				default:
					t.Errorf("unexpected element type %s", v.ElementType())
				}
				if i%50 == 0 {
					err := c.Delete(key)
					if err != nil && !errors.Is(err, ErrCacheMiss) {
						t.Errorf("unexpected delete error: %v", err)
					}
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 4)
}
