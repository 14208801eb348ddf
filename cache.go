package arraycache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/arraycache/resource"
)

// entry keeps the payload and its tag together so neither can exist alone.
type entry struct {
	typ     ElementType
	payload []byte
	native  []float64
}

func (e entry) size() int {
	if e.typ == Native {
		return len(e.native) * Native.Size()
	}
	return len(e.payload)
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Entries   int
	SizeBytes int64
	Hits      int64
	Misses    int64
	Inserts   int64
	Deletes   int64
}

// Cache maps opaque string keys to numeric arrays.
//
// Binary payloads are stored without copying and read back as typed views over
// the same bytes. There is no eviction, capacity bound or expiry: entries live
// until they are deleted or replaced. Cache is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	size    int64

	hits    atomic.Int64
	misses  atomic.Int64
	inserts atomic.Int64
	deletes atomic.Int64

	logger  *Logger
	metrics MetricsCollector
	rc      *resource.Controller
}

// New creates an empty cache.
func New(optFns ...Option) *Cache {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Cache{
		entries: make(map[string]entry),
		logger:  opts.logger,
		metrics: opts.metricsCollector,
		rc:      opts.rc,
	}
}

// Has reports whether an entry exists for key.
func (c *Cache) Has(key string) bool {
	c.mu.RLock()
	_, ok := c.entries[key]
	c.mu.RUnlock()
	return ok
}

// Insert stores payload under key with element type t, replacing any prior entry.
//
// The cache takes ownership of payload; the caller must not modify it afterwards.
// Insert panics if t is not one of Int8 through Float64.
func (c *Cache) Insert(key string, payload []byte, t ElementType) {
	if !t.IsValid() {
		panic(fmt.Sprintf("arraycache: invalid element type %d", t))
	}
	c.store(key, entry{typ: t, payload: payload})
}

// InsertNative stores an already-decoded sequence under key, replacing any prior entry.
// Get returns seq unchanged.
func (c *Cache) InsertNative(key string, seq []float64) {
	c.store(key, entry{typ: Native, native: seq})
}

func (c *Cache) store(key string, e entry) {
	size := int64(e.size())

	c.mu.Lock()
	old, replaced := c.entries[key]
	c.entries[key] = e
	c.size += size
	if replaced {
		c.size -= int64(old.size())
	}
	c.mu.Unlock()

	if replaced {
		c.rc.Release(int64(old.size()))
	}
	c.rc.Reserve(size)

	c.inserts.Add(1)
	c.metrics.RecordInsert(e.size())
	c.logger.LogInsert(context.Background(), key, e.typ, e.size(), replaced)
}

func (c *Cache) lookup(op, key string) (entry, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		c.misses.Add(1)
		c.metrics.RecordMiss()
		c.logger.LogMiss(context.Background(), op, key)
		return entry{}, &CacheMissError{Key: key}
	}

	c.hits.Add(1)
	c.metrics.RecordHit()
	return e, nil
}

// Get returns a typed view over the entry stored under key.
//
// Native entries yield their sequence unchanged. Binary entries are
// reinterpreted in native byte order according to their element type.
// It returns *CacheMissError if key is absent and *PayloadSizeError if the
// payload length is not a multiple of the element width.
func (c *Cache) Get(key string) (View, error) {
	e, err := c.lookup("get", key)
	if err != nil {
		return View{}, err
	}

	if e.typ == Native {
		return newNativeView(e.native), nil
	}
	return newBinaryView(key, e.typ, e.payload)
}

// GetRaw returns the payload bytes stored under key without reinterpretation.
// Native entries have no payload and return an empty slice.
func (c *Cache) GetRaw(key string) ([]byte, error) {
	e, err := c.lookup("get_raw", key)
	if err != nil {
		return nil, err
	}
	return e.payload, nil
}

// ElementTypeOf returns the tag recorded for key.
func (c *Cache) ElementTypeOf(key string) (ElementType, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Unknown, &CacheMissError{Key: key}
	}
	return e.typ, nil
}

// Delete removes the entry stored under key.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
		c.size -= int64(e.size())
	}
	c.mu.Unlock()

	if !ok {
		err := &CacheMissError{Key: key}
		c.misses.Add(1)
		c.metrics.RecordMiss()
		c.logger.LogDelete(context.Background(), key, err)
		return err
	}

	c.rc.Release(int64(e.size()))
	c.deletes.Add(1)
	c.metrics.RecordDelete()
	c.logger.LogDelete(context.Background(), key, nil)
	return nil
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns all keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// SizeBytes returns the bytes held by all entries.
// Native entries count eight bytes per element.
func (c *Cache) SizeBytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// Range calls fn for each entry in key order until fn returns false.
// Entries inserted or deleted while Range runs may or may not be visited.
func (c *Cache) Range(fn func(key string, t ElementType, size int) bool) {
	for _, k := range c.Keys() {
		c.mu.RLock()
		e, ok := c.entries[k]
		c.mu.RUnlock()
		if !ok {
			continue
		}
		if !fn(k, e.typ, e.size()) {
			return
		}
	}
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n, size := len(c.entries), c.size
	c.mu.RUnlock()

	return Stats{
		Entries:   n,
		SizeBytes: size,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Inserts:   c.inserts.Load(),
		Deletes:   c.deletes.Load(),
	}
}
