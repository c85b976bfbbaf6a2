package batch

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ResourceConfig holds resource limits for a batch run.
type ResourceConfig struct {
	// MemoryLimitBytes is the hard limit for reserved working memory
	// (dense affinity matrices dominate). If 0, no hard limit is
	// enforced (only tracking).
	MemoryLimitBytes int64

	// IOLimitBytesPerSec caps artifact-store throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// ResourceController tracks and limits working memory and store IO
// across the worker pool. An N-patch image needs an N x N float64
// affinity matrix, so workers reserve that amount up front and a
// handful of large images cannot run each other out of memory.
type ResourceController struct {
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioLimiter *rate.Limiter
}

// NewResourceController creates a controller from the given limits.
func NewResourceController(cfg ResourceConfig) *ResourceController {
	c := &ResourceController{}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// AcquireMemory reserves bytes of working memory, blocking until the
// reservation fits under the limit or ctx is canceled.
func (c *ResourceController) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns a reservation made with AcquireMemory.
func (c *ResourceController) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved bytes.
func (c *ResourceController) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireIO waits until the IO limit allows the given number of bytes.
func (c *ResourceController) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	return c.ioLimiter.WaitN(ctx, bytes)
}
