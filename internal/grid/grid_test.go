package grid

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFromShape(t *testing.T) {
	s, err := FromShape([4]int{1, 3, 224, 224}, 16)
	require.NoError(t, err)
	require.Equal(t, 14, s.HPatch)
	require.Equal(t, 14, s.WPatch)
	require.Equal(t, 224, s.HPad)
	require.Equal(t, 196, s.NumPatches())
}

func TestFromShapeCropsToPatchMultiple(t *testing.T) {
	s, err := FromShape([4]int{1, 3, 230, 225}, 16)
	require.NoError(t, err)
	require.Equal(t, 14, s.HPatch)
	require.Equal(t, 14, s.WPatch)
	require.Equal(t, 224, s.HPad)
	require.Equal(t, 224, s.WPad)
}

func TestFromShapeRejectsBadPatchSize(t *testing.T) {
	_, err := FromShape([4]int{1, 3, 224, 224}, 0)
	require.Error(t, err)

	_, err = FromShape([4]int{1, 3, 8, 8}, 16)
	require.Error(t, err)
}

func TestLowRes(t *testing.T) {
	s, err := FromShape([4]int{1, 3, 224, 160}, 16)
	require.NoError(t, err)

	h, w := s.LowRes(0) // default: downsample by patch size
	require.Equal(t, s.HPatch, h)
	require.Equal(t, s.WPatch, w)

	h, w = s.LowRes(8)
	require.Equal(t, 28, h)
	require.Equal(t, 20, w)
}

func TestUpsampleBilinearIdentity(t *testing.T) {
	src := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
		4, 40,
	})
	dst := UpsampleBilinear(src, 2, 2, 2, 2)
	require.True(t, mat.Equal(src, dst))
}

func TestUpsampleBilinearDoubles(t *testing.T) {
	// 1x2 grid -> 1x4 grid along one axis.
	src := mat.NewDense(2, 1, []float64{0, 1})
	dst := UpsampleBilinear(src, 1, 2, 1, 4)

	r, c := dst.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 1, c)

	// Half-pixel centers: 0, 0.25, 0.75, 1 with border clamping.
	require.InDelta(t, 0.0, dst.At(0, 0), 1e-12)
	require.InDelta(t, 0.25, dst.At(1, 0), 1e-12)
	require.InDelta(t, 0.75, dst.At(2, 0), 1e-12)
	require.InDelta(t, 1.0, dst.At(3, 0), 1e-12)
}

func TestUpsampleBilinearConstantStaysConstant(t *testing.T) {
	src := mat.NewDense(6, 3, nil)
	for i := 0; i < 6; i++ {
		for j := 0; j < 3; j++ {
			src.Set(i, j, 7.5)
		}
	}
	dst := UpsampleBilinear(src, 2, 3, 4, 6)
	r, _ := dst.Dims()
	require.Equal(t, 24, r)
	for i := 0; i < r; i++ {
		for j := 0; j < 3; j++ {
			require.InDelta(t, 7.5, dst.At(i, j), 1e-12)
		}
	}
}
