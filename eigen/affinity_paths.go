package eigen

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// The raw-affinity decompositions below operate on the similarity
// matrix W (or the feature matrix itself) instead of the Laplacian.
// Their eigenvector semantics differ from the Laplacian path: pairs are
// ordered by DESCENDING eigenvalue (the dominant structure first) and
// no near-constant leading eigenvector or background-inference
// guarantee applies. They are deliberately kept as separate named
// strategies rather than folded into SolveLaplacian.

// TopAffinityPairs returns the k largest-eigenvalue eigenpairs of the
// symmetric affinity matrix w, eigenvalue descending, one eigenvector
// per row.
func TopAffinityPairs(w *mat.Dense, k int) (*Pairs, error) {
	return affinityPairs(w, k)
}

// FullAffinityPairs decomposes w completely and truncates to the k
// dominant pairs. Semantically equivalent to TopAffinityPairs for
// symmetric input; kept as its own named path so callers can select the
// full dense decomposition explicitly.
func FullAffinityPairs(w *mat.Dense, k int) (*Pairs, error) {
	return affinityPairs(w, k)
}

func affinityPairs(w *mat.Dense, k int) (*Pairs, error) {
	n, m := w.Dims()
	if n != m {
		return nil, fmt.Errorf("eigen: affinity matrix must be square, got %dx%d", n, m)
	}
	if k <= 0 || k > n {
		return nil, &DecompositionError{K: k, N: n, Errs: []error{
			fmt.Errorf("requested rank %d outside 1..%d", k, n),
		}}
	}

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, w.At(i, j))
		}
	}

	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return nil, &DecompositionError{K: k, N: n, Errs: []error{
			errors.New("symmetric eigendecomposition did not converge"),
		}}
	}
	vals := es.Values(nil) // ascending
	var ev mat.Dense
	es.VectorsTo(&ev)

	// Largest first.
	outVals := make([]float64, k)
	outVecs := mat.NewDense(k, n, nil)
	for j := 0; j < k; j++ {
		col := n - 1 - j
		outVals[j] = vals[col]
		for i := 0; i < n; i++ {
			outVecs.Set(j, i, ev.At(i, col))
		}
	}
	return &Pairs{Values: outVals, Vectors: outVecs}, nil
}

// SVDPairs returns the k leading left singular vectors of the feature
// matrix F as eigenvectors, with the corresponding singular values,
// ordered descending. This is the low-rank factorization view of the
// affinity F·Fᵀ without forming it.
func SVDPairs(f *mat.Dense, k int) (*Pairs, error) {
	n, _ := f.Dims()
	if k <= 0 || k > n {
		return nil, &DecompositionError{K: k, N: n, Errs: []error{
			fmt.Errorf("requested rank %d outside 1..%d", k, n),
		}}
	}

	var svd mat.SVD
	if !svd.Factorize(f, mat.SVDThin) {
		return nil, &DecompositionError{K: k, N: n, Errs: []error{
			errors.New("thin SVD did not converge"),
		}}
	}
	sv := svd.Values(nil) // descending
	var u mat.Dense
	svd.UTo(&u)

	if len(sv) < k {
		return nil, &DecompositionError{K: k, N: n, Errs: []error{
			fmt.Errorf("matrix rank %d below requested %d", len(sv), k),
		}}
	}

	outVecs := mat.NewDense(k, n, nil)
	for j := 0; j < k; j++ {
		for i := 0; i < n; i++ {
			outVecs.Set(j, i, u.At(i, j))
		}
	}
	return &Pairs{Values: sv[:k:k], Vectors: outVecs}, nil
}
