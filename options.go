package spectralseg

import (
	"github.com/spectralseg/spectralseg/artifact"
	"github.com/spectralseg/spectralseg/batch"
)

// DirLayout names the store directories holding each artifact kind.
// The defaults mirror the conventional on-disk layout of a dataset
// processed end to end.
type DirLayout struct {
	Features     string
	Eigs         string
	MultiRegion  string
	SingleRegion string
	BBoxes       string
}

// DefaultDirLayout returns the standard directory layout.
func DefaultDirLayout() DirLayout {
	return DirLayout{
		Features:     "features",
		Eigs:         "eigs",
		MultiRegion:  "multi_region_segmentation",
		SingleRegion: "single_region_segmentation",
		BBoxes:       "multi_region_bboxes",
	}
}

type options struct {
	logger       *Logger
	metrics      MetricsCollector
	workers      int
	resources    batch.ResourceConfig
	storeOptions []artifact.StoreOption
	images       ImageOpener
	dirs         DirLayout
}

// Option configures Pipeline constructor behavior.
type Option func(*options)

// WithLogger configures the structured logger. Pass nil to keep the
// default stderr text logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(m MetricsCollector) Option {
	return func(o *options) {
		if m == nil {
			m = NoopMetricsCollector{}
		}
		o.metrics = m
	}
}

// WithWorkers sets the batch worker pool size. Values below 1 fall
// back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithResourceLimits bounds the working memory and store IO of a batch
// run. Zero values disable the respective limit.
func WithResourceLimits(cfg batch.ResourceConfig) Option {
	return func(o *options) {
		o.resources = cfg
	}
}

// WithStoreOptions forwards options (codec, compression) to the
// artifact store wrapping the backend.
func WithStoreOptions(opts ...artifact.StoreOption) Option {
	return func(o *options) {
		o.storeOptions = append(o.storeOptions, opts...)
	}
}

// WithImages configures where source images are loaded from for
// color-affinity fusion.
func WithImages(opener ImageOpener) Option {
	return func(o *options) {
		o.images = opener
	}
}

// WithImagesDir is shorthand for WithImages over a directory.
func WithImagesDir(root string) Option {
	return WithImages(&DirImageOpener{Root: root})
}

// WithDirLayout overrides the store directory layout.
func WithDirLayout(dirs DirLayout) Option {
	return func(o *options) {
		o.dirs = dirs
	}
}
