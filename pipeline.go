package spectralseg

import (
	"context"
	"runtime"
	"time"

	"github.com/spectralseg/spectralseg/artifact"
	"github.com/spectralseg/spectralseg/batch"
)

// Pipeline runs the spectral segmentation stages over an artifact
// store: per-patch features in, eigenpairs, region maps and bounding
// boxes out. All operations are batch operations keyed by image ID and
// are idempotent: outputs that already exist are skipped.
type Pipeline struct {
	store   *artifact.Store
	images  ImageOpener
	log     *Logger
	metrics MetricsCollector
	runner  *batch.Runner
	res     *batch.ResourceController
	dirs    DirLayout
}

// New creates a Pipeline over the given artifact storage backend.
func New(backend artifact.Backend, optFns ...Option) *Pipeline {
	o := options{
		logger:  NewLogger(nil),
		metrics: NoopMetricsCollector{},
		workers: runtime.GOMAXPROCS(0),
		dirs:    DefaultDirLayout(),
	}
	for _, fn := range optFns {
		fn(&o)
	}

	res := newResourceController(o.resources)
	runner := batch.NewRunner(
		batch.WithWorkers(o.workers),
		batch.WithLogger(o.logger.Logger),
		batch.WithResources(res),
	)

	return &Pipeline{
		store:   artifact.NewStore(backend, o.storeOptions...),
		images:  o.images,
		log:     o.logger,
		metrics: o.metrics,
		runner:  runner,
		res:     res,
		dirs:    o.dirs,
	}
}

// newResourceController returns a controller, or nil when no limit is
// configured so the nil-safe fast paths apply.
func newResourceController(cfg batch.ResourceConfig) *batch.ResourceController {
	if cfg.MemoryLimitBytes == 0 && cfg.IOLimitBytesPerSec == 0 {
		return nil
	}
	return batch.NewResourceController(cfg)
}

// Store exposes the underlying artifact store.
func (p *Pipeline) Store() *artifact.Store { return p.store }

// stageFunc adapts per-image closures to the batch.Stage interface.
type stageFunc struct {
	name string
	done func(ctx context.Context, id string) (bool, error)
	run  func(ctx context.Context, id string) error
}

func (s *stageFunc) Name() string { return s.name }

func (s *stageFunc) Done(ctx context.Context, id string) (bool, error) { return s.done(ctx, id) }

func (s *stageFunc) Run(ctx context.Context, id string) error { return s.run(ctx, id) }

// outputExists reports whether the artifact of the given kind exists
// for an image.
func (p *Pipeline) outputExists(ctx context.Context, kind artifact.Kind, dir, id string) (bool, error) {
	return p.store.Exists(ctx, kind.FileName(dir, id))
}

// runStage executes a stage over all IDs and records batch metrics.
func (p *Pipeline) runStage(ctx context.Context, stage *stageFunc, ids []string) (*batch.Summary, error) {
	start := time.Now()
	sum, err := p.runner.Run(ctx, stage, ids)
	p.metrics.RecordBatch(stage.name, len(ids),
		int(sum.Skipped.GetCardinality()), int(sum.Failed.GetCardinality()),
		time.Since(start))
	return sum, err
}

// loadFeatures fetches the per-image feature artifact.
func (p *Pipeline) loadFeatures(ctx context.Context, id string) (*artifact.Features, error) {
	var f artifact.Features
	if err := p.store.Load(ctx, artifact.KindFeatures.FileName(p.dirs.Features, id), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// loadEigs fetches the per-image eigenpair artifact.
func (p *Pipeline) loadEigs(ctx context.Context, id string) (*artifact.Eigs, error) {
	var e artifact.Eigs
	if err := p.store.Load(ctx, artifact.KindEigs.FileName(p.dirs.Eigs, id), &e); err != nil {
		return nil, err
	}
	return &e, nil
}
