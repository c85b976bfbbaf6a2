package spectralseg

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/spectralseg/spectralseg/affinity"
	"github.com/spectralseg/spectralseg/affinity/colormat"
	"github.com/spectralseg/spectralseg/artifact"
	"github.com/spectralseg/spectralseg/batch"
	"github.com/spectralseg/spectralseg/eigen"
	"github.com/spectralseg/spectralseg/internal/grid"
)

// MatrixKind selects which matrix is decomposed per image.
type MatrixKind string

const (
	// MatrixLaplacian decomposes the graph Laplacian of the (optionally
	// color-fused) feature affinity. This is the main pipeline path.
	MatrixLaplacian MatrixKind = "laplacian"
	// MatrixMattingLaplacian is an accepted alias for MatrixLaplacian.
	MatrixMattingLaplacian MatrixKind = "matting_laplacian"
	// MatrixAffinity takes the k largest eigenpairs of the raw feature
	// affinity instead.
	MatrixAffinity MatrixKind = "affinity"
	// MatrixAffinityFull is the dense full-spectrum variant of
	// MatrixAffinity. The two differ only in how the eigenpairs are
	// obtained; results agree up to numerics.
	MatrixAffinityFull MatrixKind = "affinity_torch"
	// MatrixAffinitySVD takes the leading left singular vectors of the
	// feature matrix itself.
	MatrixAffinitySVD MatrixKind = "affinity_svd"
)

// EigsOptions configure the eigendecomposition stage. Start from
// DefaultEigsOptions and adjust; the zero value disables normalization
// steps that are on by default.
type EigsOptions struct {
	// Matrix selects the decomposition target.
	Matrix MatrixKind
	// ColorMatrix selects the color-affinity construction when fusion
	// is enabled.
	ColorMatrix colormat.Kind
	// K is the number of eigenpairs to compute.
	K int
	// Normalize L2-normalizes feature rows before the affinity product.
	Normalize bool
	// ThresholdAtZero zeroes negative affinity entries.
	ThresholdAtZero bool
	// LapNorm solves the degree-normalized eigenproblem; otherwise the
	// unnormalized Laplacian is decomposed.
	LapNorm bool
	// ImageDownsampleFactor sets the pixel size of one cell of the
	// color-affinity grid. Zero means the patch size, collapsing the
	// color grid onto the patch grid.
	ImageDownsampleFactor int
	// ImageColorLambda weighs the color affinity into the feature
	// affinity. Zero disables color fusion entirely.
	ImageColorLambda float64
}

// DefaultEigsOptions returns the stage defaults: normalized Laplacian
// of the thresholded feature affinity, 20 eigenpairs, no color fusion.
func DefaultEigsOptions() EigsOptions {
	return EigsOptions{
		Matrix:          MatrixLaplacian,
		ColorMatrix:     colormat.KindKNN,
		K:               20,
		Normalize:       true,
		ThresholdAtZero: true,
		LapNorm:         true,
	}
}

func (o *EigsOptions) validate(p *Pipeline) error {
	switch o.Matrix {
	case MatrixLaplacian, MatrixMattingLaplacian, MatrixAffinity, MatrixAffinityFull, MatrixAffinitySVD:
	case "":
		o.Matrix = MatrixLaplacian
	default:
		return &ConfigurationError{Field: "Matrix", Reason: fmt.Sprintf("unknown kind %q", o.Matrix)}
	}
	switch o.ColorMatrix {
	case colormat.KindKNN, colormat.KindRW:
	case "":
		o.ColorMatrix = colormat.KindKNN
	default:
		return &ConfigurationError{Field: "ColorMatrix", Reason: fmt.Sprintf("unknown kind %q", o.ColorMatrix)}
	}
	if o.K <= 0 {
		return &ConfigurationError{Field: "K", Reason: "must be positive"}
	}
	if o.ImageColorLambda < 0 {
		return &ConfigurationError{Field: "ImageColorLambda", Reason: "must be non-negative"}
	}
	if o.ImageDownsampleFactor < 0 {
		return &ConfigurationError{Field: "ImageDownsampleFactor", Reason: "must be non-negative"}
	}
	if o.ImageColorLambda > 0 && p.images == nil {
		return &ConfigurationError{Field: "ImageColorLambda", Reason: "color fusion requires an image source (WithImages)"}
	}
	return nil
}

// ExtractEigs computes and stores the per-image eigenpair artifact for
// every ID. Images whose eigenpairs already exist are skipped.
func (p *Pipeline) ExtractEigs(ctx context.Context, ids []string, o EigsOptions) (*batch.Summary, error) {
	if err := o.validate(p); err != nil {
		return nil, err
	}
	stage := &stageFunc{
		name: "eigs",
		done: func(ctx context.Context, id string) (bool, error) {
			return p.outputExists(ctx, artifact.KindEigs, p.dirs.Eigs, id)
		},
		run: func(ctx context.Context, id string) error {
			start := time.Now()
			err := p.extractEigs(ctx, id, o)
			p.metrics.RecordEigs(o.K, time.Since(start), err)
			return translateError(err)
		},
	}
	return p.runStage(ctx, stage, ids)
}

func (p *Pipeline) extractEigs(ctx context.Context, id string, o EigsOptions) error {
	f, err := p.loadFeatures(ctx, id)
	if err != nil {
		return err
	}
	n, d := f.Dim()
	if n == 0 || d == 0 {
		return fmt.Errorf("image %s: empty feature matrix", id)
	}

	feats := featureMatrix(f)
	if o.Normalize {
		affinity.NormalizeRows(feats)
	}

	// The dominant allocation is the n x n affinity (plus the packed
	// Laplacian of the same order); admit under the memory limit.
	reserve := int64(n) * int64(n) * 16
	if err := p.res.AcquireMemory(ctx, reserve); err != nil {
		return err
	}
	defer p.res.ReleaseMemory(reserve)

	var pairs *eigen.Pairs
	switch o.Matrix {
	case MatrixAffinity:
		pairs, err = eigen.TopAffinityPairs(affinity.Gram(feats, o.ThresholdAtZero), o.K)
	case MatrixAffinityFull:
		pairs, err = eigen.FullAffinityPairs(affinity.Gram(feats, o.ThresholdAtZero), o.K)
	case MatrixAffinitySVD:
		pairs, err = eigen.SVDPairs(feats, o.K)
	default:
		pairs, err = p.laplacianPairs(ctx, id, f, feats, o)
	}
	if err != nil {
		return fmt.Errorf("image %s: %w", id, err)
	}

	eigen.Canonicalize(pairs)

	out := &artifact.Eigs{
		Eigenvalues:  pairs.Values,
		Eigenvectors: matRows(pairs.Vectors),
	}
	return p.store.Save(ctx, artifact.KindEigs.FileName(p.dirs.Eigs, id), out)
}

// laplacianPairs runs the main path: optional feature upsampling to the
// color grid, affinity construction, optional color fusion, Laplacian
// eigendecomposition.
func (p *Pipeline) laplacianPairs(ctx context.Context, id string, f *artifact.Features, feats *mat.Dense, o EigsOptions) (*eigen.Pairs, error) {
	sz, err := grid.FromShape(f.Shape, f.PatchSize)
	if err != nil {
		return nil, err
	}
	if n, _ := feats.Dims(); n != sz.NumPatches() {
		return nil, fmt.Errorf("feature count %d does not match the %dx%d patch grid", n, sz.HPatch, sz.WPatch)
	}

	// The color grid may be finer than the patch grid; features are
	// bilinearly upsampled so both affinities share node indices.
	hLR, wLR := sz.LowRes(o.ImageDownsampleFactor)
	if hLR != sz.HPatch || wLR != sz.WPatch {
		feats = grid.UpsampleBilinear(feats, sz.HPatch, sz.WPatch, hLR, wLR)
	}

	w := affinity.FromFeatures(feats, o.ThresholdAtZero)

	if o.ImageColorLambda > 0 {
		img, err := p.images.Open(id)
		if err != nil {
			return nil, err
		}
		lr := colormat.FromImage(img, wLR, hLR)

		var wcolor *mat.Dense
		switch o.ColorMatrix {
		case colormat.KindRW:
			wcolor = colormat.RW(lr, colormat.DefaultRWOptions())
		default:
			wcolor = colormat.KNN(lr, colormat.DefaultKNNOptions())
		}

		w, err = affinity.Combine(w, wcolor, o.ImageColorLambda)
		if err != nil {
			return nil, err
		}
	}

	return eigen.SolveLaplacian(w, affinity.Degrees(w), o.K, o.LapNorm)
}

// featureMatrix converts the float32 feature rows to a dense float64
// matrix, one row per patch.
func featureMatrix(f *artifact.Features) *mat.Dense {
	n, d := f.Dim()
	m := mat.NewDense(n, d, nil)
	for i, row := range f.Features {
		dst := m.RawRowView(i)
		for j, v := range row {
			dst[j] = float64(v)
		}
	}
	return m
}

// matRows copies the rows of m into a slice-of-slices for artifact
// serialization.
func matRows(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([]float64, c)
		copy(out[i], m.RawRowView(i))
	}
	return out
}
