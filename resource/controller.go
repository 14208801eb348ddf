package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when admitting bytes would exceed the memory limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes bounds the bytes the loader may admit into the cache.
	// If 0, usage is only tracked.
	MemoryLimitBytes int64

	// MaxConcurrentFetches bounds in-flight source fetches.
	// If 0, defaults to 4.
	MaxConcurrentFetches int64

	// IOLimitBytesPerSec caps the byte rate read from sources.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller accounts memory and limits fetch concurrency and IO.
type Controller struct {
	cfg Config

	memUsed atomic.Int64

	fetchSem *semaphore.Weighted

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 4
	}

	c := &Controller{
		cfg:      cfg,
		fetchSem: semaphore.NewWeighted(cfg.MaxConcurrentFetches),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Reserve records bytes as held without checking the limit.
// The cache calls it on every insert; inserts never fail.
func (c *Controller) Reserve(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	c.memUsed.Add(bytes)
}

// Release returns bytes previously recorded with Reserve.
func (c *Controller) Release(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	c.memUsed.Add(-bytes)
}

// Admit checks whether bytes more could be held without exceeding the limit.
// It does not reserve anything.
func (c *Controller) Admit(bytes int64) error {
	if c == nil || c.cfg.MemoryLimitBytes <= 0 {
		return nil
	}
	if c.memUsed.Load()+bytes > c.cfg.MemoryLimitBytes {
		return ErrMemoryLimitExceeded
	}
	return nil
}

// MemoryUsage returns the bytes currently recorded.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireFetch reserves a fetch slot, blocking until one is free or ctx is done.
func (c *Controller) AcquireFetch(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.fetchSem.Acquire(ctx, 1)
}

// ReleaseFetch returns a fetch slot.
func (c *Controller) ReleaseFetch() {
	if c == nil {
		return
	}
	c.fetchSem.Release(1)
}

// AcquireIO waits until the IO limit allows n bytes.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	// WaitN rejects requests larger than the burst; split them.
	burst := c.ioLimiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
