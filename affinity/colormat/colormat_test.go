package colormat

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// twoTone paints the left half dark and the right half light.
func twoTone(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{30, 30, 30, 255}
			if x >= w/2 {
				c = color.RGBA{220, 220, 220, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func requireSymmetricNonNegative(t *testing.T, w *mat.Dense) {
	t.Helper()
	n, m := w.Dims()
	require.Equal(t, n, m)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			require.Equal(t, w.At(i, j), w.At(j, i))
			require.GreaterOrEqual(t, w.At(i, j), 0.0)
		}
	}
}

func TestFromImageResizesAndNormalizes(t *testing.T) {
	im := FromImage(twoTone(16, 8), 4, 2)
	require.Equal(t, 2, im.H)
	require.Equal(t, 4, im.W)
	require.Len(t, im.Pix, 2*4*3)
	for _, v := range im.Pix {
		require.GreaterOrEqual(t, v, 0.0)
		require.LessOrEqual(t, v, 1.0)
	}
}

func TestKNNSymmetric(t *testing.T) {
	im := FromImage(twoTone(8, 8), 4, 4)
	w := KNN(im, KNNOptions{Neighbors: []int{3}, DistanceWeights: []float64{1.0}})
	requireSymmetricNonNegative(t, w)

	// Every pixel is its own nearest neighbor, so the diagonal holds at
	// least the self edge counted from both directions.
	n, _ := w.Dims()
	for i := 0; i < n; i++ {
		require.GreaterOrEqual(t, w.At(i, i), 2.0)
	}
}

func TestKNNPrefersSameColorSide(t *testing.T) {
	im := FromImage(twoTone(8, 2), 8, 2)
	w := KNN(im, KNNOptions{Neighbors: []int{4}, DistanceWeights: []float64{0.1}})

	// With a color-dominated metric, a left-side pixel should share more
	// affinity mass with the left half than with the right half.
	var same, cross float64
	for j := 0; j < 16; j++ {
		if j%8 < 4 {
			same += w.At(0, j)
		} else {
			cross += w.At(0, j)
		}
	}
	require.Greater(t, same, cross)
}

func TestRWLocalWindow(t *testing.T) {
	im := FromImage(twoTone(6, 6), 6, 6)
	w := RW(im, DefaultRWOptions())
	requireSymmetricNonNegative(t, w)

	n, _ := w.Dims()
	for i := 0; i < n; i++ {
		require.InDelta(t, 1.0, w.At(i, i), 1e-12, "unit self-affinity")
	}

	// Pixels farther apart than the radius are not linked.
	require.Equal(t, 0.0, w.At(0, 3))
	// Horizontally adjacent same-color pixels are strongly linked.
	require.InDelta(t, 1.0, w.At(0, 1), 1e-6)
}

func TestRWColorEdgeWeakensLink(t *testing.T) {
	im := FromImage(twoTone(6, 1), 6, 1)
	w := RW(im, DefaultRWOptions())

	within := w.At(0, 1) // same side
	across := w.At(2, 3) // dark/light boundary
	require.Greater(t, within, across)
}
