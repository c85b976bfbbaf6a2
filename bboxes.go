package spectralseg

import (
	"context"

	"github.com/spectralseg/spectralseg/artifact"
	"github.com/spectralseg/spectralseg/batch"
	"github.com/spectralseg/spectralseg/internal/grid"
	"github.com/spectralseg/spectralseg/segment"
	"github.com/spectralseg/spectralseg/segment/bbox"
)

// BBoxOptions configure bounding-box extraction from stored region
// maps. Start from DefaultBBoxOptions.
type BBoxOptions struct {
	// NumErode and NumDilate are the mask cleanup iteration counts.
	NumErode  int
	NumDilate int
	// KeepBackground also emits a box for the background region.
	KeepBackground bool
	// DownsampleFactor overrides the pixels-per-cell scale of the
	// original-resolution boxes. Zero means the patch size.
	DownsampleFactor int
}

// DefaultBBoxOptions returns the extraction defaults.
func DefaultBBoxOptions() BBoxOptions {
	return BBoxOptions{NumErode: 2, NumDilate: 3}
}

func (o *BBoxOptions) validate() error {
	if o.NumErode < 0 {
		return &ConfigurationError{Field: "NumErode", Reason: "must be non-negative"}
	}
	if o.NumDilate < 0 {
		return &ConfigurationError{Field: "NumDilate", Reason: "must be non-negative"}
	}
	if o.DownsampleFactor < 0 {
		return &ConfigurationError{Field: "DownsampleFactor", Reason: "must be non-negative"}
	}
	return nil
}

// ExtractBoundingBoxes derives per-segment bounding boxes from the
// stored multi-region maps and stores them as bbox artifacts.
func (p *Pipeline) ExtractBoundingBoxes(ctx context.Context, ids []string, o BBoxOptions) (*batch.Summary, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	stage := &stageFunc{
		name: "bboxes",
		done: func(ctx context.Context, id string) (bool, error) {
			return p.outputExists(ctx, artifact.KindBBoxes, p.dirs.BBoxes, id)
		},
		run: func(ctx context.Context, id string) error {
			return translateError(p.extractBBoxes(ctx, id, o))
		},
	}
	return p.runStage(ctx, stage, ids)
}

func (p *Pipeline) extractBBoxes(ctx context.Context, id string, o BBoxOptions) error {
	f, err := p.loadFeatures(ctx, id)
	if err != nil {
		return err
	}
	sz, err := grid.FromShape(f.Shape, f.PatchSize)
	if err != nil {
		return err
	}

	data, err := p.store.LoadRaw(ctx, artifact.KindRegionMap.FileName(p.dirs.MultiRegion, id))
	if err != nil {
		return err
	}
	m, err := segment.DecodePNG(data)
	if err != nil {
		return err
	}

	out := bbox.Extract(id, m, sz, bbox.Options{
		NumErode:         o.NumErode,
		NumDilate:        o.NumDilate,
		KeepBackground:   o.KeepBackground,
		DownsampleFactor: o.DownsampleFactor,
	})
	return p.store.Save(ctx, artifact.KindBBoxes.FileName(p.dirs.BBoxes, id), out)
}
