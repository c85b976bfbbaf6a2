package spectralseg

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spectralseg/spectralseg/affinity/colormat"
	"github.com/spectralseg/spectralseg/artifact"
	"github.com/spectralseg/spectralseg/segment"
)

// twoHalfFeatures builds features for a 4x4 patch grid whose left and
// right halves carry near-orthogonal descriptors. A small shared
// component keeps the similarity graph connected, so the Fiedler
// vector cleanly separates the halves by sign.
func twoHalfFeatures(id string) *artifact.Features {
	f := &artifact.Features{
		ID:        id,
		ModelName: "dino_vits16",
		PatchSize: 16,
		Shape:     [4]int{1, 3, 64, 64},
	}
	for i := 0; i < 16; i++ {
		row := make([]float32, 4)
		if i%4 < 2 {
			row[0] = 1
		} else {
			row[1] = 1
		}
		row[2] = 0.1
		f.Features = append(f.Features, row)
	}
	return f
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithLogger(NoopLogger()), WithWorkers(2)}, opts...)
	return New(artifact.NewMemoryBackend(), opts...)
}

func seedFeatures(t *testing.T, p *Pipeline, ids ...string) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		name := artifact.KindFeatures.FileName(p.dirs.Features, id)
		require.NoError(t, p.store.Save(ctx, name, twoHalfFeatures(id)))
	}
}

func TestExtractEigsEndToEnd(t *testing.T) {
	p := newTestPipeline(t)
	seedFeatures(t, p, "img0")
	ctx := context.Background()

	o := DefaultEigsOptions()
	o.K = 4
	sum, err := p.ExtractEigs(ctx, []string{"img0"}, o)
	require.NoError(t, err)
	require.Equal(t, uint64(1), sum.Processed.GetCardinality())
	require.Empty(t, sum.Errors)

	eigs, err := p.loadEigs(ctx, "img0")
	require.NoError(t, err)
	require.Len(t, eigs.Eigenvalues, 4)
	require.Len(t, eigs.Eigenvectors, 4)
	require.Len(t, eigs.Eigenvectors[0], 16)

	// Connected graph: one zero eigenvalue, then a small spectral gap
	// from the weak bridge between the halves. Ascending order.
	assert.InDelta(t, 0, eigs.Eigenvalues[0], 1e-8)
	assert.Greater(t, eigs.Eigenvalues[1], 1e-6)
	assert.Less(t, eigs.Eigenvalues[1], 0.5)
	for i := 1; i < len(eigs.Eigenvalues); i++ {
		assert.GreaterOrEqual(t, eigs.Eigenvalues[i], eigs.Eigenvalues[i-1]-1e-12)
	}
}

func TestExtractEigsSkipsExisting(t *testing.T) {
	p := newTestPipeline(t)
	seedFeatures(t, p, "img0")
	ctx := context.Background()

	o := DefaultEigsOptions()
	o.K = 4
	_, err := p.ExtractEigs(ctx, []string{"img0"}, o)
	require.NoError(t, err)

	sum, err := p.ExtractEigs(ctx, []string{"img0"}, o)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sum.Skipped.GetCardinality())
	assert.True(t, sum.Processed.IsEmpty())
}

func TestExtractEigsMatrixVariants(t *testing.T) {
	for _, kind := range []MatrixKind{MatrixAffinity, MatrixAffinityFull, MatrixAffinitySVD, MatrixMattingLaplacian} {
		t.Run(string(kind), func(t *testing.T) {
			p := newTestPipeline(t)
			seedFeatures(t, p, "img0")

			o := DefaultEigsOptions()
			o.Matrix = kind
			o.K = 3
			sum, err := p.ExtractEigs(context.Background(), []string{"img0"}, o)
			require.NoError(t, err)
			require.Empty(t, sum.Errors)

			eigs, err := p.loadEigs(context.Background(), "img0")
			require.NoError(t, err)
			require.Len(t, eigs.Eigenvalues, 3)
		})
	}
}

func TestExtractEigsValidation(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	var ce *ConfigurationError

	o := DefaultEigsOptions()
	o.K = 0
	_, err := p.ExtractEigs(ctx, nil, o)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "K", ce.Field)

	o = DefaultEigsOptions()
	o.Matrix = "hessian"
	_, err = p.ExtractEigs(ctx, nil, o)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Matrix", ce.Field)

	// Color fusion without an image source is rejected up front.
	o = DefaultEigsOptions()
	o.ImageColorLambda = 10
	_, err = p.ExtractEigs(ctx, nil, o)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "ImageColorLambda", ce.Field)
}

func TestExtractEigsMissingFeatures(t *testing.T) {
	p := newTestPipeline(t)

	o := DefaultEigsOptions()
	o.K = 4
	sum, err := p.ExtractEigs(context.Background(), []string{"absent"}, o)
	require.NoError(t, err, "missing input is a per-image failure, not a batch failure")
	require.Len(t, sum.Errors, 1)
	assert.ErrorIs(t, sum.Errors[0], ErrInputMissing)
}

func TestExtractMultiRegionSegmentations(t *testing.T) {
	p := newTestPipeline(t)
	seedFeatures(t, p, "img0")
	ctx := context.Background()

	o := DefaultEigsOptions()
	o.K = 4
	_, err := p.ExtractEigs(ctx, []string{"img0"}, o)
	require.NoError(t, err)

	mo := DefaultMultiRegionOptions()
	mo.NonAdaptiveNumSegments = 2
	sum, err := p.ExtractMultiRegionSegmentations(ctx, []string{"img0"}, mo)
	require.NoError(t, err)
	require.Empty(t, sum.Errors)

	data, err := p.store.LoadRaw(ctx, artifact.KindRegionMap.FileName(p.dirs.MultiRegion, "img0"))
	require.NoError(t, err)
	m, err := segment.DecodePNG(data)
	require.NoError(t, err)
	require.Equal(t, 4, m.H)
	require.Equal(t, 4, m.W)

	// The two orthogonal halves must come out as two uniform regions,
	// rescaled to {0, 255} for storage.
	for y := 0; y < 4; y++ {
		assert.Equal(t, m.At(y, 0), m.At(y, 1))
		assert.Equal(t, m.At(y, 2), m.At(y, 3))
		assert.NotEqual(t, m.At(y, 0), m.At(y, 2))
	}
	assert.Equal(t, 255, m.MaxLabel())
}

func TestExtractMultiRegionValidation(t *testing.T) {
	p := newTestPipeline(t)
	var ce *ConfigurationError
	_, err := p.ExtractMultiRegionSegmentations(context.Background(), nil, MultiRegionOptions{})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "NonAdaptiveNumSegments", ce.Field)
}

func TestExtractSingleRegionSegmentations(t *testing.T) {
	p := newTestPipeline(t)
	seedFeatures(t, p, "img0")
	ctx := context.Background()

	o := DefaultEigsOptions()
	o.K = 4
	_, err := p.ExtractEigs(ctx, []string{"img0"}, o)
	require.NoError(t, err)

	sum, err := p.ExtractSingleRegionSegmentations(ctx, []string{"img0"}, SingleRegionOptions{})
	require.NoError(t, err)
	require.Empty(t, sum.Errors)

	data, err := p.store.LoadRaw(ctx, artifact.KindRegionMap.FileName(p.dirs.SingleRegion, "img0"))
	require.NoError(t, err)
	m, err := segment.DecodePNG(data)
	require.NoError(t, err)

	// The Fiedler vector splits the two components: one half foreground,
	// the other background.
	for y := 0; y < 4; y++ {
		assert.Equal(t, m.At(y, 0), m.At(y, 1))
		assert.Equal(t, m.At(y, 2), m.At(y, 3))
		assert.NotEqual(t, m.At(y, 0), m.At(y, 2))
	}
}

func TestExtractBoundingBoxes(t *testing.T) {
	p := newTestPipeline(t)
	seedFeatures(t, p, "img0")
	ctx := context.Background()

	o := DefaultEigsOptions()
	o.K = 4
	_, err := p.ExtractEigs(ctx, []string{"img0"}, o)
	require.NoError(t, err)

	mo := DefaultMultiRegionOptions()
	mo.NonAdaptiveNumSegments = 2
	_, err = p.ExtractMultiRegionSegmentations(ctx, []string{"img0"}, mo)
	require.NoError(t, err)

	// No morphology: a 4x2 half would not survive two erosions.
	sum, err := p.ExtractBoundingBoxes(ctx, []string{"img0"}, BBoxOptions{})
	require.NoError(t, err)
	require.Empty(t, sum.Errors)

	var boxes artifact.BBoxes
	require.NoError(t, p.store.Load(ctx, artifact.KindBBoxes.FileName(p.dirs.BBoxes, "img0"), &boxes))
	require.Equal(t, "img0", boxes.ID)
	require.Len(t, boxes.Boxes, 1, "background is skipped")

	b := boxes.Boxes[0]
	assert.Equal(t, 2, b.XMax-b.XMin)
	assert.Equal(t, 4, b.YMax-b.YMin)

	// Pixel coordinates scale by the 16px patch size.
	px := boxes.BoxesOriginal[0]
	assert.Equal(t, 32, px.XMax-px.XMin)
	assert.Equal(t, 64, px.YMax-px.YMin)
}

func TestTranslateError(t *testing.T) {
	require.NoError(t, translateError(nil))

	err := translateError(artifact.ErrNotFound)
	assert.ErrorIs(t, err, ErrInputMissing)

	var sme *ShapeMismatchError
	err = translateError(&segment.ShapeMismatchError{Got: 7, HPatch: 2, WPatch: 3})
	require.ErrorAs(t, err, &sme)
	assert.Equal(t, 7, sme.Got)
}

type solidOpener struct{ img image.Image }

func (s solidOpener) Open(string) (image.Image, error) { return s.img, nil }

func gradientImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(4 * x), G: uint8(4 * y), B: 128, A: 255})
		}
	}
	return img
}

func TestExtractEigsColorFusion(t *testing.T) {
	for _, kind := range []colormat.Kind{colormat.KindKNN, colormat.KindRW} {
		t.Run(string(kind), func(t *testing.T) {
			p := newTestPipeline(t, WithImages(solidOpener{img: gradientImage(64, 64)}))
			seedFeatures(t, p, "img0")

			o := DefaultEigsOptions()
			o.K = 4
			o.ImageColorLambda = 1
			o.ColorMatrix = kind
			sum, err := p.ExtractEigs(context.Background(), []string{"img0"}, o)
			require.NoError(t, err)
			require.Empty(t, sum.Errors)

			eigs, err := p.loadEigs(context.Background(), "img0")
			require.NoError(t, err)
			require.Len(t, eigs.Eigenvectors[0], 16)
			assert.InDelta(t, 0, eigs.Eigenvalues[0], 1e-8)
		})
	}
}

func TestExtractEigsDownsampledColorGrid(t *testing.T) {
	// Downsample factor 8 over a 64x64 image gives an 8x8 color grid,
	// so features are upsampled to 64 nodes and the region map lands on
	// the doubled patch grid.
	p := newTestPipeline(t, WithImages(solidOpener{img: gradientImage(64, 64)}))
	seedFeatures(t, p, "img0")
	ctx := context.Background()

	o := DefaultEigsOptions()
	o.K = 4
	o.ImageColorLambda = 1
	o.ImageDownsampleFactor = 8
	_, err := p.ExtractEigs(ctx, []string{"img0"}, o)
	require.NoError(t, err)

	eigs, err := p.loadEigs(ctx, "img0")
	require.NoError(t, err)
	require.Len(t, eigs.Eigenvectors[0], 64)

	mo := DefaultMultiRegionOptions()
	mo.NonAdaptiveNumSegments = 2
	sum, err := p.ExtractMultiRegionSegmentations(ctx, []string{"img0"}, mo)
	require.NoError(t, err)
	require.Empty(t, sum.Errors)

	data, err := p.store.LoadRaw(ctx, artifact.KindRegionMap.FileName(p.dirs.MultiRegion, "img0"))
	require.NoError(t, err)
	m, err := segment.DecodePNG(data)
	require.NoError(t, err)
	assert.Equal(t, 8, m.H)
	assert.Equal(t, 8, m.W)
}
