package spectralseg

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/spectralseg/spectralseg/artifact"
	"github.com/spectralseg/spectralseg/batch"
	"github.com/spectralseg/spectralseg/internal/grid"
	"github.com/spectralseg/spectralseg/segment"
)

// MultiRegionOptions configure the multi-region discretization stage.
// Start from DefaultMultiRegionOptions.
type MultiRegionOptions struct {
	// Adaptive derives the segment count per image from the eigenvalue
	// spectrum; otherwise NonAdaptiveNumSegments is used.
	Adaptive               bool
	NonAdaptiveNumSegments int
	// InferBackground makes the border-dominant region label 0.
	InferBackground bool
	// NumEigenvectors bounds how many non-constant eigenvectors feed
	// the clustering. Zero means all available.
	NumEigenvectors int
	// KMeansBaseline clusters the raw feature rows instead of the
	// eigenvector embedding. Diagnostic baseline, not the pipeline path.
	KMeansBaseline bool
}

// DefaultMultiRegionOptions returns the stage defaults: fixed 4
// segments, background inference on, all eigenvectors.
func DefaultMultiRegionOptions() MultiRegionOptions {
	return MultiRegionOptions{
		NonAdaptiveNumSegments: 4,
		InferBackground:        true,
	}
}

func (o *MultiRegionOptions) validate() error {
	if !o.Adaptive && o.NonAdaptiveNumSegments <= 0 {
		return &ConfigurationError{Field: "NonAdaptiveNumSegments", Reason: "must be positive in non-adaptive mode"}
	}
	if o.NumEigenvectors < 0 {
		return &ConfigurationError{Field: "NumEigenvectors", Reason: "must be non-negative"}
	}
	return nil
}

// ExtractMultiRegionSegmentations clusters each image's eigenvector
// embedding into a region map and stores it as a single-channel PNG.
func (p *Pipeline) ExtractMultiRegionSegmentations(ctx context.Context, ids []string, o MultiRegionOptions) (*batch.Summary, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	stage := &stageFunc{
		name: "multi_region_segmentation",
		done: func(ctx context.Context, id string) (bool, error) {
			return p.outputExists(ctx, artifact.KindRegionMap, p.dirs.MultiRegion, id)
		},
		run: func(ctx context.Context, id string) error {
			start := time.Now()
			segments, err := p.extractMultiRegion(ctx, id, o)
			p.metrics.RecordSegmentation(segments, time.Since(start), err)
			return translateError(err)
		},
	}
	return p.runStage(ctx, stage, ids)
}

func (p *Pipeline) extractMultiRegion(ctx context.Context, id string, o MultiRegionOptions) (int, error) {
	f, err := p.loadFeatures(ctx, id)
	if err != nil {
		return 0, err
	}
	e, err := p.loadEigs(ctx, id)
	if err != nil {
		return 0, err
	}
	sz, err := grid.FromShape(f.Shape, f.PatchSize)
	if err != nil {
		return 0, err
	}

	var points *mat.Dense
	if o.KMeansBaseline {
		points = featureMatrix(f)
	} else {
		points = segment.PointsFromEigenvectors(eigMatrix(e), o.NumEigenvectors)
	}

	m, err := segment.Discretize(points, e.Eigenvalues, sz.HPatch, sz.WPatch, segment.Options{
		Adaptive:        o.Adaptive,
		NumSegments:     o.NonAdaptiveNumSegments,
		InferBackground: o.InferBackground,
	})
	if err != nil {
		return 0, err
	}

	data, err := m.EncodePNG()
	if err != nil {
		return 0, err
	}
	name := artifact.KindRegionMap.FileName(p.dirs.MultiRegion, id)
	if err := p.res.AcquireIO(ctx, len(data)); err != nil {
		return 0, err
	}
	return m.MaxLabel() + 1, p.store.SaveRaw(ctx, name, data)
}

// SingleRegionOptions configure the single-region (binary foreground)
// stage.
type SingleRegionOptions struct {
	// Threshold splits the first non-constant eigenvector into
	// foreground (above) and background.
	Threshold float64
}

// ExtractSingleRegionSegmentations thresholds each image's Fiedler
// eigenvector into a binary foreground map stored as a PNG.
func (p *Pipeline) ExtractSingleRegionSegmentations(ctx context.Context, ids []string, o SingleRegionOptions) (*batch.Summary, error) {
	stage := &stageFunc{
		name: "single_region_segmentation",
		done: func(ctx context.Context, id string) (bool, error) {
			return p.outputExists(ctx, artifact.KindRegionMap, p.dirs.SingleRegion, id)
		},
		run: func(ctx context.Context, id string) error {
			start := time.Now()
			err := p.extractSingleRegion(ctx, id, o)
			p.metrics.RecordSegmentation(2, time.Since(start), err)
			return translateError(err)
		},
	}
	return p.runStage(ctx, stage, ids)
}

func (p *Pipeline) extractSingleRegion(ctx context.Context, id string, o SingleRegionOptions) error {
	f, err := p.loadFeatures(ctx, id)
	if err != nil {
		return err
	}
	e, err := p.loadEigs(ctx, id)
	if err != nil {
		return err
	}
	sz, err := grid.FromShape(f.Shape, f.PatchSize)
	if err != nil {
		return err
	}
	if len(e.Eigenvectors) < 2 {
		return fmt.Errorf("image %s: need at least 2 eigenvectors, have %d", id, len(e.Eigenvectors))
	}

	m, err := segment.SingleRegion(e.Eigenvectors[1], sz.HPatch, sz.WPatch, o.Threshold)
	if err != nil {
		return err
	}
	m.RescaleBinary()

	data, err := m.EncodePNG()
	if err != nil {
		return err
	}
	name := artifact.KindRegionMap.FileName(p.dirs.SingleRegion, id)
	if err := p.res.AcquireIO(ctx, len(data)); err != nil {
		return err
	}
	return p.store.SaveRaw(ctx, name, data)
}

// eigMatrix rebuilds the dense eigenvector matrix (one row per
// eigenvector) from the artifact.
func eigMatrix(e *artifact.Eigs) *mat.Dense {
	k := len(e.Eigenvectors)
	if k == 0 {
		return mat.NewDense(1, 1, nil)
	}
	n := len(e.Eigenvectors[0])
	m := mat.NewDense(k, n, nil)
	for i, row := range e.Eigenvectors {
		copy(m.RawRowView(i), row)
	}
	return m
}
