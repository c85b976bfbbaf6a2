// Package affinity builds the symmetric non-negative weight matrix of
// the patch similarity graph, optionally fused with a local color
// affinity, together with its diagonal degree matrix.
package affinity

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// NormalizeRows L2-normalizes every row of f in place.
// Zero rows are left untouched.
func NormalizeRows(f *mat.Dense) {
	r, c := f.Dims()
	for i := 0; i < r; i++ {
		row := f.RawRowView(i)
		var sum float64
		for j := 0; j < c; j++ {
			sum += row[j] * row[j]
		}
		if sum == 0 {
			continue
		}
		inv := 1 / math.Sqrt(sum)
		for j := 0; j < c; j++ {
			row[j] *= inv
		}
	}
}

// Gram computes the raw feature affinity W = F·Fᵀ without scaling.
// When thresholdAtZero is set, negative entries are zeroed so the
// graph stays a valid non-negative similarity graph.
//
// The returned matrix is exactly symmetric: the upper triangle is
// mirrored onto the lower one after the multiply.
func Gram(f mat.Matrix, thresholdAtZero bool) *mat.Dense {
	n, _ := f.Dims()
	w := mat.NewDense(n, n, nil)
	w.Mul(f, f.T())

	for i := 0; i < n; i++ {
		row := w.RawRowView(i)
		for j := i; j < n; j++ {
			v := row[j]
			if thresholdAtZero && v < 0 {
				v = 0
				row[j] = 0
			}
			w.Set(j, i, v)
		}
	}
	return w
}

// FromFeatures computes the feature affinity W = F·Fᵀ, optionally
// thresholded at zero, scaled by its maximum entry. The scaling is a
// no-op when rows of F are unit-norm.
func FromFeatures(f mat.Matrix, thresholdAtZero bool) *mat.Dense {
	w := Gram(f, thresholdAtZero)
	n, _ := w.Dims()

	maxEntry := math.Inf(-1)
	for i := 0; i < n; i++ {
		for _, v := range w.RawRowView(i) {
			if v > maxEntry {
				maxEntry = v
			}
		}
	}

	if maxEntry > 0 && maxEntry != 1 {
		inv := 1 / maxEntry
		for i := 0; i < n; i++ {
			row := w.RawRowView(i)
			for j := 0; j < n; j++ {
				row[j] *= inv
			}
		}
	}
	return w
}

// Combine fuses the feature affinity with a color affinity:
// W = W_feat + lambda·W_color. With lambda == 0 the feature matrix is
// returned unchanged (the same value bit for bit), so skipping color
// fusion and fusing with zero weight are indistinguishable.
func Combine(wfeat, wcolor *mat.Dense, lambda float64) (*mat.Dense, error) {
	if lambda < 0 {
		return nil, fmt.Errorf("affinity: negative color lambda %v", lambda)
	}
	if lambda == 0 {
		return wfeat, nil
	}
	fr, fc := wfeat.Dims()
	cr, cc := wcolor.Dims()
	if fr != cr || fc != cc {
		return nil, fmt.Errorf("affinity: feature affinity %dx%d and color affinity %dx%d differ", fr, fc, cr, cc)
	}
	out := mat.NewDense(fr, fc, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return v + lambda*wcolor.At(i, j)
	}, wfeat)
	return out, nil
}

// Degrees returns the row sums of w, the diagonal of the degree matrix.
func Degrees(w *mat.Dense) []float64 {
	n, _ := w.Dims()
	deg := make([]float64, n)
	for i := 0; i < n; i++ {
		row := w.RawRowView(i)
		var sum float64
		for _, v := range row {
			sum += v
		}
		deg[i] = sum
	}
	return deg
}
