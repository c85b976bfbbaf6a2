// Package batch runs a pipeline stage over many images with a bounded
// worker pool. Each image is an independent unit of work: failures are
// recorded and logged but never abort the rest of the batch, and
// already-produced outputs are skipped so interrupted runs can resume.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Stage is one per-image unit of pipeline work.
type Stage interface {
	// Name identifies the stage in logs.
	Name() string
	// Done reports whether the stage output for this image already
	// exists, in which case the runner skips it.
	Done(ctx context.Context, id string) (bool, error)
	// Run produces the stage output for one image.
	Run(ctx context.Context, id string) error
}

// ItemError records one failed image.
type ItemError struct {
	ID  string
	Err error
}

func (e *ItemError) Error() string { return fmt.Sprintf("%s: %v", e.ID, e.Err) }

func (e *ItemError) Unwrap() error { return e.Err }

// Summary reports the outcome of a batch run. The bitmaps index into
// the input ID slice.
type Summary struct {
	Processed *roaring.Bitmap
	Skipped   *roaring.Bitmap
	Failed    *roaring.Bitmap
	Errors    []*ItemError
}

// Runner executes stages over image ID lists.
type Runner struct {
	log      *slog.Logger
	workers  int
	res      *ResourceController
	progress *rate.Limiter
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets the worker pool size. Values below 1 fall back to
// GOMAXPROCS.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		r.workers = n
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithResources attaches a resource controller shared with the stages.
func WithResources(res *ResourceController) RunnerOption {
	return func(r *Runner) {
		r.res = res
	}
}

// WithProgressRate caps progress log lines per second. Skip decisions
// and per-item progress would otherwise flood the log on large batches.
func WithProgressRate(perSec float64) RunnerOption {
	return func(r *Runner) {
		r.progress = rate.NewLimiter(rate.Limit(perSec), 1)
	}
}

// NewRunner creates a batch runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		log:      slog.Default(),
		workers:  runtime.GOMAXPROCS(0),
		progress: rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = runtime.GOMAXPROCS(0)
	}
	return r
}

// Resources returns the attached controller, which may be nil.
func (r *Runner) Resources() *ResourceController { return r.res }

// Run executes the stage for every ID. Per-image failures are collected
// in the summary; the returned error is non-nil only when the context
// is canceled.
func (r *Runner) Run(ctx context.Context, stage Stage, ids []string) (*Summary, error) {
	sum := &Summary{
		Processed: roaring.New(),
		Skipped:   roaring.New(),
		Failed:    roaring.New(),
	}
	var mu sync.Mutex

	log := r.log.With("stage", stage.Name(), "total", len(ids))
	log.Info("batch started", "workers", r.workers)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			done, err := stage.Done(ctx, id)
			if err == nil && done {
				mu.Lock()
				sum.Skipped.Add(uint32(i))
				mu.Unlock()
				if r.progress.Allow() {
					log.Debug("output exists, skipping", "image", id)
				}
				return nil
			}

			if err == nil {
				err = stage.Run(ctx, id)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				sum.Failed.Add(uint32(i))
				sum.Errors = append(sum.Errors, &ItemError{ID: id, Err: err})
				log.Error("image failed", "image", id, "error", err)
				return nil
			}
			sum.Processed.Add(uint32(i))
			if r.progress.Allow() {
				log.Info("progress",
					"done", sum.Processed.GetCardinality(),
					"skipped", sum.Skipped.GetCardinality(),
					"failed", sum.Failed.GetCardinality())
			}
			return nil
		})
	}

	err := g.Wait()
	log.Info("batch finished",
		"processed", sum.Processed.GetCardinality(),
		"skipped", sum.Skipped.GetCardinality(),
		"failed", sum.Failed.GetCardinality())
	return sum, err
}
