package eigen

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// twoCluster builds a 6-node graph of two tight triangles joined by a
// weak bridge.
func twoCluster(bridge float64) (*mat.Dense, []float64) {
	n := 6
	w := mat.NewDense(n, n, nil)
	link := func(i, j int, v float64) {
		w.Set(i, j, v)
		w.Set(j, i, v)
	}
	for i := 0; i < n; i++ {
		w.Set(i, i, 1)
	}
	link(0, 1, 1)
	link(0, 2, 1)
	link(1, 2, 1)
	link(3, 4, 1)
	link(3, 5, 1)
	link(4, 5, 1)
	if bridge > 0 {
		link(2, 3, bridge)
	}

	deg := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			sum += w.At(i, j)
		}
		deg[i] = sum
	}
	return w, deg
}

func TestSolveLaplacianAscendingAndOrthonormal(t *testing.T) {
	for _, normalized := range []bool{true, false} {
		w, deg := twoCluster(0.05)
		pairs, err := SolveLaplacian(w, deg, 4, normalized)
		require.NoError(t, err)
		require.Len(t, pairs.Values, 4)

		for i := 1; i < len(pairs.Values); i++ {
			require.LessOrEqual(t, pairs.Values[i-1], pairs.Values[i],
				"eigenvalues must be non-decreasing (normalized=%v)", normalized)
		}

		// Unit norm under the declared inner product.
		k, n := pairs.Vectors.Dims()
		for a := 0; a < k; a++ {
			for b := a; b < k; b++ {
				var dot float64
				for i := 0; i < n; i++ {
					m := 1.0
					if normalized {
						m = deg[i]
					}
					dot += pairs.Vectors.At(a, i) * m * pairs.Vectors.At(b, i)
				}
				want := 0.0
				if a == b {
					want = 1.0
				}
				require.InDelta(t, want, dot, 1e-6,
					"inner product of vectors %d,%d (normalized=%v)", a, b, normalized)
			}
		}
	}
}

func TestSolveLaplacianConstantFirstEigenvector(t *testing.T) {
	w, deg := twoCluster(0.5)
	pairs, err := SolveLaplacian(w, deg, 3, true)
	require.NoError(t, err)

	require.InDelta(t, 0, pairs.Values[0], 1e-8, "connected graph has eigenvalue 0")

	row := pairs.Vectors.RawRowView(0)
	for i := 1; i < len(row); i++ {
		require.InDelta(t, row[0], row[i], 1e-6, "first eigenvector must be constant")
	}
}

func TestSolveLaplacianTwoComponents(t *testing.T) {
	w, deg := twoCluster(0) // no bridge: two connected components
	pairs, err := SolveLaplacian(w, deg, 3, true)
	require.NoError(t, err)

	require.InDelta(t, 0, pairs.Values[0], 1e-8)
	require.InDelta(t, 0, pairs.Values[1], 1e-8)
	require.Greater(t, pairs.Values[2], 0.1, "third eigenvalue leaves the kernel")
}

func TestSolveLaplacianSpectralGapSeparatesClusters(t *testing.T) {
	w, deg := twoCluster(0.05)
	pairs, err := SolveLaplacian(w, deg, 4, true)
	require.NoError(t, err)

	fiedler := pairs.Vectors.RawRowView(1)
	// The second eigenvector separates the two triangles by sign.
	for i := 0; i < 3; i++ {
		for j := 3; j < 6; j++ {
			require.Negative(t, fiedler[i]*fiedler[j],
				"nodes %d and %d should fall on opposite sides", i, j)
		}
	}
}

func TestStrategiesAgree(t *testing.T) {
	w, deg := twoCluster(0.2)
	c := laplacianSym(w, deg, nil)

	siVals, _, err := shiftInvert{}.solve(c, 3)
	require.NoError(t, err)
	dVals, _, err := direct{}.solve(c, 3)
	require.NoError(t, err)

	for i := range siVals {
		require.InDelta(t, dVals[i], siVals[i], 1e-6,
			"strategy eigenvalue %d mismatch", i)
	}
}

func TestSolveLaplacianRankExceeded(t *testing.T) {
	w, deg := twoCluster(0.2)

	var de *DecompositionError
	_, err := SolveLaplacian(w, deg, 7, true)
	require.ErrorAs(t, err, &de)
	require.Equal(t, 7, de.K)
	require.Equal(t, 6, de.N)

	_, err = SolveLaplacian(w, deg, 0, true)
	require.ErrorAs(t, err, &de)
}

func TestSolveLaplacianSingularDegree(t *testing.T) {
	w := mat.NewDense(3, 3, nil) // isolated nodes, zero degrees
	deg := []float64{0, 0, 0}

	var de *DecompositionError
	_, err := SolveLaplacian(w, deg, 2, true)
	require.ErrorAs(t, err, &de)
}

func TestTopAffinityPairsDescending(t *testing.T) {
	w, _ := twoCluster(0.3)
	pairs, err := TopAffinityPairs(w, 4)
	require.NoError(t, err)

	for i := 1; i < len(pairs.Values); i++ {
		require.GreaterOrEqual(t, pairs.Values[i-1], pairs.Values[i],
			"affinity pairs are ordered largest first")
	}

	k, n := pairs.Vectors.Dims()
	require.Equal(t, 4, k)
	require.Equal(t, 6, n)
	for i := 0; i < k; i++ {
		var norm float64
		for j := 0; j < n; j++ {
			norm += pairs.Vectors.At(i, j) * pairs.Vectors.At(i, j)
		}
		require.InDelta(t, 1.0, norm, 1e-9)
	}
}

func TestSVDPairs(t *testing.T) {
	f := mat.NewDense(4, 3, []float64{
		1, 0, 0,
		1, 0.1, 0,
		0, 0, 1,
		0, 0.1, 1,
	})
	pairs, err := SVDPairs(f, 2)
	require.NoError(t, err)
	require.Len(t, pairs.Values, 2)
	require.GreaterOrEqual(t, pairs.Values[0], pairs.Values[1])

	_, n := pairs.Vectors.Dims()
	require.Equal(t, 4, n)
}

func TestCanonicalize(t *testing.T) {
	vecs := mat.NewDense(4, 4, []float64{
		0.5, 0.5, 0.5, 0.5, // all positive: kept
		0.8, 0.2, 0.1, -0.3, // 3/4 positive: flipped
		-0.7, -0.1, 0.4, 0.2, // half positive: kept
		-0.9, -0.2, -0.1, 0.3, // minority positive: kept
	})
	p := &Pairs{Values: []float64{0, 1, 2, 3}, Vectors: vecs}
	Canonicalize(p)

	require.Equal(t, 0.5, vecs.At(0, 0))
	require.Equal(t, -0.8, vecs.At(1, 0))
	require.Equal(t, -0.7, vecs.At(2, 0))
	require.Equal(t, -0.9, vecs.At(3, 0))
}

func TestCanonicalizeIdempotent(t *testing.T) {
	vecs := mat.NewDense(2, 5, []float64{
		0.9, 0.6, 0.3, -0.1, 0.2,
		-0.4, 0.1, -0.2, -0.3, 0.5,
	})
	p := &Pairs{Vectors: vecs}

	Canonicalize(p)
	once := mat.DenseCopyOf(vecs)
	Canonicalize(p)

	require.True(t, mat.Equal(once, vecs), "canonicalization must be idempotent")
}

func TestLaplacianPSD(t *testing.T) {
	// Smallest eigenvalue of D − W stays (numerically) non-negative for
	// a non-negative symmetric W.
	w, deg := twoCluster(0.7)
	pairs, err := SolveLaplacian(w, deg, 1, false)
	require.NoError(t, err)
	require.GreaterOrEqual(t, pairs.Values[0], -1e-9)
	require.True(t, !math.IsNaN(pairs.Values[0]))
}
