package grid

import "gonum.org/v1/gonum/mat"

// UpsampleBilinear resamples a per-patch feature map from a srcH x srcW
// grid to a dstH x dstW grid. src holds one row per grid cell in
// row-major order; the result has dstH*dstW rows with the same number of
// columns. Sample positions use half-pixel centers, clamped at the
// borders, so a same-size call returns an identical copy.
func UpsampleBilinear(src *mat.Dense, srcH, srcW, dstH, dstW int) *mat.Dense {
	n, d := src.Dims()
	if n != srcH*srcW {
		panic("grid: source rows do not match source grid")
	}
	dst := mat.NewDense(dstH*dstW, d, nil)

	scaleY := float64(srcH) / float64(dstH)
	scaleX := float64(srcW) / float64(dstW)

	for dy := 0; dy < dstH; dy++ {
		sy := (float64(dy)+0.5)*scaleY - 0.5
		y0, fy := splitCoord(sy, srcH)
		for dx := 0; dx < dstW; dx++ {
			sx := (float64(dx)+0.5)*scaleX - 0.5
			x0, fx := splitCoord(sx, srcW)

			y1 := min(y0+1, srcH-1)
			x1 := min(x0+1, srcW-1)

			r00 := src.RawRowView(y0*srcW + x0)
			r01 := src.RawRowView(y0*srcW + x1)
			r10 := src.RawRowView(y1*srcW + x0)
			r11 := src.RawRowView(y1*srcW + x1)

			out := dst.RawRowView(dy*dstW + dx)
			w00 := (1 - fy) * (1 - fx)
			w01 := (1 - fy) * fx
			w10 := fy * (1 - fx)
			w11 := fy * fx
			for c := 0; c < d; c++ {
				out[c] = w00*r00[c] + w01*r01[c] + w10*r10[c] + w11*r11[c]
			}
		}
	}
	return dst
}

// splitCoord clamps a continuous source coordinate and splits it into
// an integer cell and a fractional offset.
func splitCoord(s float64, size int) (int, float64) {
	if s <= 0 {
		return 0, 0
	}
	if s >= float64(size-1) {
		return size - 1, 0
	}
	i := int(s)
	return i, s - float64(i)
}
