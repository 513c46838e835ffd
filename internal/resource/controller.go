package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded reports a reservation that would cross the memory cap.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config sets the limits of a Controller. Zero values mean unlimited,
// except MaxConcurrentSearches which defaults to 1.
type Config struct {
	MemoryLimitBytes      int64
	MaxConcurrentSearches int64
	IOLimitBytesPerSec    int64
}

// Controller hands out memory, search slots and read bandwidth.
type Controller struct {
	limit int64
	used  atomic.Int64
	mem   *semaphore.Weighted

	searches *semaphore.Weighted
	io       *rate.Limiter
}

// NewController returns a Controller enforcing cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{
		limit:    max(cfg.MemoryLimitBytes, 0),
		searches: semaphore.NewWeighted(max(cfg.MaxConcurrentSearches, 1)),
	}
	if c.limit > 0 {
		c.mem = semaphore.NewWeighted(c.limit)
	}
	if bps := cfg.IOLimitBytesPerSec; bps > 0 {
		c.io = rate.NewLimiter(rate.Limit(bps), int(bps))
	}
	return c
}

// AcquireMemory reserves n bytes, failing immediately when the cap is hit.
func (c *Controller) AcquireMemory(n int64) error {
	if c == nil || n <= 0 {
		return nil
	}
	if c.mem != nil && !c.mem.TryAcquire(n) {
		return ErrMemoryLimitExceeded
	}
	c.used.Add(n)
	return nil
}

// ReleaseMemory returns n bytes reserved by AcquireMemory.
func (c *Controller) ReleaseMemory(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.used.Add(-n)
	if c.mem != nil {
		c.mem.Release(n)
	}
}

// MemoryUsage reports the bytes currently reserved.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.used.Load()
}

// MemoryLimit reports the cap, 0 when unlimited.
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.limit
}

// AcquireSearch blocks until a search slot is free or ctx is done.
func (c *Controller) AcquireSearch(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.searches.Acquire(ctx, 1)
}

// ReleaseSearch frees a slot taken by AcquireSearch.
func (c *Controller) ReleaseSearch() {
	if c != nil {
		c.searches.Release(1)
	}
}

// AcquireIO waits until n bytes may be read. The wait is split into
// burst-sized steps, so n may exceed the per-second limit.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.io == nil {
		return nil
	}
	for step := c.io.Burst(); n > 0; n -= step {
		if err := c.io.WaitN(ctx, min(n, step)); err != nil {
			return err
		}
	}
	return nil
}
