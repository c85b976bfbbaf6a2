// Package eigen solves for the low-order eigenpairs of the graph
// Laplacian L = D − W, optionally generalized by the degree matrix D.
//
// The solver tries an ordered list of strategies: a shift-inverted
// block inverse iteration targeting the eigenvalues nearest zero, then
// a direct dense symmetric eigendecomposition. The first strategy that
// succeeds wins; if all fail the caller gets a DecompositionError.
package eigen

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Pairs is an ordered eigenpair sequence, eigenvalue ascending for
// Laplacian decompositions. Vectors holds one eigenvector per row, so
// row 0 belongs to the smallest eigenvalue.
type Pairs struct {
	Values  []float64
	Vectors *mat.Dense
}

// DecompositionError reports that every solver strategy failed.
type DecompositionError struct {
	K, N int
	Errs []error
}

func (e *DecompositionError) Error() string {
	return fmt.Sprintf("eigen: decomposition failed (k=%d, n=%d): %v", e.K, e.N, errors.Join(e.Errs...))
}

// Unwrap exposes the per-strategy failures.
func (e *DecompositionError) Unwrap() []error { return e.Errs }

// SolveLaplacian computes the k smallest-eigenvalue eigenpairs of
// L = D − W. With normalized set, the generalized problem L·v = λ·D·v
// is solved through the symmetric form I − D^{-1/2}·W·D^{-1/2} and the
// returned eigenvectors are orthonormal under the D-inner product;
// otherwise they are Euclidean-orthonormal.
func SolveLaplacian(w *mat.Dense, degrees []float64, k int, normalized bool) (*Pairs, error) {
	n, _ := w.Dims()
	if k <= 0 || k > n {
		return nil, &DecompositionError{K: k, N: n, Errs: []error{
			fmt.Errorf("requested rank %d outside 1..%d", k, n),
		}}
	}

	var scale []float64 // D^{-1/2}, nil when unnormalized
	if normalized {
		scale = make([]float64, n)
		for i, d := range degrees {
			if d <= 0 {
				return nil, &DecompositionError{K: k, N: n, Errs: []error{
					fmt.Errorf("degree matrix singular at node %d (degree %v)", i, d),
				}}
			}
			scale[i] = 1 / math.Sqrt(d)
		}
	}

	c := laplacianSym(w, degrees, scale)

	var errs []error
	for _, s := range strategies {
		vals, vecs, err := s.solve(c, k)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name(), err))
			continue
		}
		if scale != nil {
			// Map back through D^{-1/2}; D-orthonormality follows from
			// the Euclidean orthonormality of the transformed vectors.
			for i := 0; i < n; i++ {
				row := vecs.RawRowView(i)
				for j := 0; j < k; j++ {
					row[j] *= scale[i]
				}
			}
		}
		return &Pairs{Values: vals, Vectors: transpose(vecs)}, nil
	}
	return nil, &DecompositionError{K: k, N: n, Errs: errs}
}

// laplacianSym assembles D − W, or I − D^{-1/2}·W·D^{-1/2} when scale
// is set.
func laplacianSym(w *mat.Dense, degrees, scale []float64) *mat.SymDense {
	n, _ := w.Dims()
	c := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		row := w.RawRowView(i)
		for j := i; j < n; j++ {
			if scale != nil {
				v := -row[j] * scale[i] * scale[j]
				if i == j {
					v++
				}
				c.SetSym(i, j, v)
			} else {
				v := -row[j]
				if i == j {
					v += degrees[i]
				}
				c.SetSym(i, j, v)
			}
		}
	}
	return c
}

// transpose converts column eigenvectors (n x k) into row form (k x n).
func transpose(vecs *mat.Dense) *mat.Dense {
	n, k := vecs.Dims()
	out := mat.NewDense(k, n, nil)
	for i := 0; i < n; i++ {
		row := vecs.RawRowView(i)
		for j := 0; j < k; j++ {
			out.Set(j, i, row[j])
		}
	}
	return out
}

// strategy solves for the k smallest eigenpairs of a symmetric matrix,
// returning ascending eigenvalues and column eigenvectors.
type strategy interface {
	name() string
	solve(c *mat.SymDense, k int) ([]float64, *mat.Dense, error)
}

var strategies = []strategy{shiftInvert{}, direct{}}

// direct runs a full dense symmetric eigendecomposition and keeps the
// k smallest pairs. Robust, O(n³), used as the fallback.
type direct struct{}

func (direct) name() string { return "direct" }

func (direct) solve(c *mat.SymDense, k int) ([]float64, *mat.Dense, error) {
	var es mat.EigenSym
	if !es.Factorize(c, true) {
		return nil, nil, errors.New("symmetric eigendecomposition did not converge")
	}
	vals := es.Values(nil) // ascending
	var ev mat.Dense
	es.VectorsTo(&ev)

	n := c.SymmetricDim()
	vecs := mat.NewDense(n, k, nil)
	vecs.Copy(ev.Slice(0, n, 0, k))
	return vals[:k:k], vecs, nil
}

// shiftInvert factors C + σI (σ a small positive shift, so the PSD
// Laplacian becomes definite) and runs block inverse iteration with
// Rayleigh-Ritz extraction. It converges quickly to the eigenvalues
// nearest zero, which is exactly the low end of a Laplacian spectrum.
type shiftInvert struct{}

func (shiftInvert) name() string { return "shift-invert" }

const (
	siMaxIter = 500
	siTol     = 1e-10
)

func (shiftInvert) solve(c *mat.SymDense, k int) ([]float64, *mat.Dense, error) {
	n := c.SymmetricDim()

	var maxDiag float64
	for i := 0; i < n; i++ {
		if v := math.Abs(c.At(i, i)); v > maxDiag {
			maxDiag = v
		}
	}
	sigma := 1e-6 * (1 + maxDiag)

	shifted := mat.NewSymDense(n, nil)
	shifted.CopySym(c)
	for i := 0; i < n; i++ {
		shifted.SetSym(i, i, shifted.At(i, i)+sigma)
	}

	var chol mat.Cholesky
	if !chol.Factorize(shifted) {
		return nil, nil, errors.New("singular shift: Cholesky factorization failed")
	}

	// Deterministic start block, so identical inputs give identical output.
	rng := rand.New(rand.NewSource(0x5eed))
	x := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
	}
	if err := orthonormalize(x); err != nil {
		return nil, nil, err
	}

	var y mat.Dense
	cx := mat.NewDense(n, k, nil)
	small := mat.NewSymDense(k, nil)
	prev := make([]float64, k)
	for i := range prev {
		prev[i] = math.Inf(1)
	}

	for iter := 0; iter < siMaxIter; iter++ {
		if err := chol.SolveTo(&y, x); err != nil {
			return nil, nil, fmt.Errorf("shifted solve: %w", err)
		}
		x.Copy(&y)
		if err := orthonormalize(x); err != nil {
			return nil, nil, err
		}

		// Rayleigh-Ritz on the current subspace.
		cx.Mul(c, x)
		for i := 0; i < k; i++ {
			for j := i; j < k; j++ {
				var s float64
				for r := 0; r < n; r++ {
					s += x.At(r, i) * cx.At(r, j)
				}
				small.SetSym(i, j, s)
			}
		}
		var es mat.EigenSym
		if !es.Factorize(small, true) {
			return nil, nil, errors.New("Rayleigh-Ritz eigendecomposition failed")
		}
		vals := es.Values(nil)
		var rot mat.Dense
		es.VectorsTo(&rot)
		y.Mul(x, &rot)
		x.Copy(&y)

		tol := siTol * (1 + maxDiag)
		settled := true
		for i := 0; i < k; i++ {
			if math.Abs(vals[i]-prev[i]) > tol {
				settled = false
			}
			prev[i] = vals[i]
		}
		if settled {
			if residualOK(c, x, vals, tol*math.Sqrt(float64(n))) {
				return vals, x, nil
			}
		}
	}
	return nil, nil, fmt.Errorf("no convergence after %d iterations", siMaxIter)
}

// residualOK checks ||C·x_j − λ_j·x_j|| against tol for every column.
func residualOK(c *mat.SymDense, x *mat.Dense, vals []float64, tol float64) bool {
	n, k := x.Dims()
	var cx mat.Dense
	cx.Mul(c, x)
	for j := 0; j < k; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			r := cx.At(i, j) - vals[j]*x.At(i, j)
			sum += r * r
		}
		if math.Sqrt(sum) > tol {
			return false
		}
	}
	return true
}

// orthonormalize runs modified Gram-Schmidt with one re-orthogonalization
// pass over the columns of x. A vanishing column means the block has
// lost rank, which is reported as a strategy failure.
func orthonormalize(x *mat.Dense) error {
	n, k := x.Dims()
	for j := 0; j < k; j++ {
		for pass := 0; pass < 2; pass++ {
			for p := 0; p < j; p++ {
				var dot float64
				for i := 0; i < n; i++ {
					dot += x.At(i, p) * x.At(i, j)
				}
				for i := 0; i < n; i++ {
					x.Set(i, j, x.At(i, j)-dot*x.At(i, p))
				}
			}
		}
		var norm float64
		for i := 0; i < n; i++ {
			norm += x.At(i, j) * x.At(i, j)
		}
		norm = math.Sqrt(norm)
		if norm < 1e-14 {
			return errors.New("iteration block lost rank")
		}
		inv := 1 / norm
		for i := 0; i < n; i++ {
			x.Set(i, j, x.At(i, j)*inv)
		}
	}
	return nil
}
