package arraycache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordInsert is called after each Insert or InsertNative with the
	// accounted size of the stored entry.
	RecordInsert(bytes int)

	// RecordHit is called when Get or GetRaw finds the key.
	RecordHit()

	// RecordMiss is called when Get, GetRaw or Delete does not find the key.
	RecordMiss()

	// RecordDelete is called after each successful delete.
	RecordDelete()

	// RecordLoad is called after a loader fetches an entry from its source.
	RecordLoad(duration time.Duration, bytes int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(int)                      {}
func (NoopMetricsCollector) RecordHit()                            {}
func (NoopMetricsCollector) RecordMiss()                           {}
func (NoopMetricsCollector) RecordDelete()                         {}
func (NoopMetricsCollector) RecordLoad(time.Duration, int, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	InsertCount    atomic.Int64
	InsertBytes    atomic.Int64
	HitCount       atomic.Int64
	MissCount      atomic.Int64
	DeleteCount    atomic.Int64
	LoadCount      atomic.Int64
	LoadErrors     atomic.Int64
	LoadBytes      atomic.Int64
	LoadTotalNanos atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(bytes int) {
	b.InsertCount.Add(1)
	b.InsertBytes.Add(int64(bytes))
}

// RecordHit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordHit() { b.HitCount.Add(1) }

// RecordMiss implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMiss() { b.MissCount.Add(1) }

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete() { b.DeleteCount.Add(1) }

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, bytes int, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
		return
	}
	b.LoadBytes.Add(int64(bytes))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:  b.InsertCount.Load(),
		InsertBytes:  b.InsertBytes.Load(),
		HitCount:     b.HitCount.Load(),
		MissCount:    b.MissCount.Load(),
		DeleteCount:  b.DeleteCount.Load(),
		LoadCount:    b.LoadCount.Load(),
		LoadErrors:   b.LoadErrors.Load(),
		LoadBytes:    b.LoadBytes.Load(),
		LoadAvgNanos: b.getAvgLoadNanos(),
	}
}

func (b *BasicMetricsCollector) getAvgLoadNanos() int64 {
	count := b.LoadCount.Load()
	if count == 0 {
		return 0
	}
	return b.LoadTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	InsertCount  int64
	InsertBytes  int64
	HitCount     int64
	MissCount    int64
	DeleteCount  int64
	LoadCount    int64
	LoadErrors   int64
	LoadBytes    int64
	LoadAvgNanos int64
}
