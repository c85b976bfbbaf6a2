package segment

import (
	"gonum.org/v1/gonum/mat"
)

// Options configure the multi-region discretizer.
type Options struct {
	// Adaptive selects the cluster count from the eigenvalue spectrum;
	// otherwise NumSegments is used as-is.
	Adaptive    bool
	NumSegments int
	// InferBackground swaps the border-dominant label with label 0.
	InferBackground bool
	// Restarts overrides the K-means restart count (default 10).
	Restarts int
	// SkipClosing disables the 3x3 morphological closing pass.
	SkipClosing bool
}

// AdaptiveClusterCount picks a cluster count from the eigenvalue
// sequence: the index of the largest gap between consecutive
// eigenvalues, excluding the gap adjacent to the constant eigenvector
// (index 0), plus one. A large spectral gap after the first n
// eigenvalues signals n well-separated clusters. Ties prefer the later
// gap. Fewer than three eigenvalues yield a single cluster.
func AdaptiveClusterCount(eigenvalues []float64) int {
	if len(eigenvalues) < 3 {
		return 1
	}
	bestIdx, bestGap := 1, eigenvalues[2]-eigenvalues[1]
	for i := 2; i < len(eigenvalues)-1; i++ {
		if gap := eigenvalues[i+1] - eigenvalues[i]; gap >= bestGap {
			bestGap = gap
			bestIdx = i
		}
	}
	return bestIdx + 1
}

// PointsFromEigenvectors builds the clustering input from an
// eigenvector matrix (one eigenvector per row): each patch becomes a
// point whose coordinates are its entries across the non-constant
// eigenvectors 1..1+limit. A limit of 0 takes all available rows.
func PointsFromEigenvectors(vectors *mat.Dense, limit int) *mat.Dense {
	k, n := vectors.Dims()
	rows := k - 1
	if limit > 0 && limit < rows {
		rows = limit
	}
	if rows < 0 {
		rows = 0
	}
	points := mat.NewDense(n, rows, nil)
	for j := 0; j < rows; j++ {
		row := vectors.RawRowView(j + 1)
		for i := 0; i < n; i++ {
			points.Set(i, j, row[i])
		}
	}
	return points
}

// Discretize clusters the given points (one row per patch) into an
// integer region map over the patch grid. The eigenvalue sequence is
// only consulted in adaptive mode.
func Discretize(points *mat.Dense, eigenvalues []float64, hPatch, wPatch int, o Options) (*RegionMap, error) {
	k := o.NumSegments
	if o.Adaptive {
		k = AdaptiveClusterCount(eigenvalues)
	}

	labels, err := KMeansLabels(points, k, o.Restarts)
	if err != nil {
		return nil, err
	}

	m, err := NewRegionMap(labels, hPatch, wPatch)
	if err != nil {
		return nil, err
	}

	if o.InferBackground {
		m.InferBackground()
	}
	m.RescaleBinary()
	if !o.SkipClosing {
		m.Close3x3()
	}
	return m, nil
}

// SingleRegion is the degenerate two-region discretizer: it thresholds
// one eigenvector (conventionally the first non-constant one) into a
// binary foreground map. No clustering, background inference or
// morphological cleanup is applied.
func SingleRegion(eigenvector []float64, hPatch, wPatch int, threshold float64) (*RegionMap, error) {
	labels := make([]int, len(eigenvector))
	for i, v := range eigenvector {
		if v > threshold {
			labels[i] = 1
		}
	}
	return NewRegionMap(labels, hPatch, wPatch)
}
