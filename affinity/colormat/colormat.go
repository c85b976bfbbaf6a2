// Package colormat builds dense pixel-color affinity matrices over a
// downsampled RGB image. Two interchangeable strategies are provided:
// a k-nearest-neighbor graph in a joint color/position space and a
// random-walk graph over a local window. Both return symmetric
// non-negative matrices over the row-major pixel grid.
package colormat

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"
)

// Kind names a color-affinity strategy.
type Kind string

const (
	// KindKNN selects the k-nearest-neighbor graph.
	KindKNN Kind = "knn"
	// KindRW selects the random-walk graph.
	KindRW Kind = "rw"
)

// Image is a dense RGB image with channels interleaved in [0, 1],
// row-major, len(Pix) == H*W*3.
type Image struct {
	H, W int
	Pix  []float64
}

// FromImage resizes src to w x h with bilinear filtering and converts
// it to normalized RGB.
func FromImage(src image.Image, w, h int) Image {
	resized := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(resized, resized.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := Image{H: h, W: w, Pix: make([]float64, h*w*3)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := resized.RGBAAt(x, y)
			off := (y*w + x) * 3
			out.Pix[off] = float64(c.R) / 255
			out.Pix[off+1] = float64(c.G) / 255
			out.Pix[off+2] = float64(c.B) / 255
		}
	}
	return out
}

func (im Image) at(i int) (r, g, b float64) {
	off := i * 3
	return im.Pix[off], im.Pix[off+1], im.Pix[off+2]
}

// KNNOptions configures the k-nearest-neighbor affinity.
// Each (Neighbors[i], DistanceWeights[i]) pair contributes one graph:
// small weights make the graph color-dominated and long-range, large
// weights keep it spatially local.
type KNNOptions struct {
	Neighbors       []int
	DistanceWeights []float64
	// Lab switches the color part of the joint feature space to CIE-Lab,
	// where Euclidean distance tracks perceived color difference.
	Lab bool
}

// DefaultKNNOptions mirror the matting-style affinity: a 20-neighbor
// spatially-tight graph plus a 10-neighbor color-dominated graph.
func DefaultKNNOptions() KNNOptions {
	return KNNOptions{
		Neighbors:       []int{20, 10},
		DistanceWeights: []float64{2.0, 0.1},
	}
}

// KNN builds the k-nearest-neighbor affinity over img. For every
// (k, weight) pair, each pixel is linked to its k nearest neighbors in
// the feature space [r, g, b, weight·x, weight·y] with x, y normalized
// to [0, 1]; each directed edge adds one to W at (i, j) and (j, i).
func KNN(img Image, o KNNOptions) *mat.Dense {
	n := img.H * img.W
	w := mat.NewDense(n, n, nil)
	if n == 0 {
		return w
	}

	colors := make([]float64, n*3)
	for i := 0; i < n; i++ {
		r, g, b := img.at(i)
		if o.Lab {
			l, la, lb := colorful.Color{R: r, G: g, B: b}.Lab()
			r, g, b = l, la, lb
		}
		colors[i*3], colors[i*3+1], colors[i*3+2] = r, g, b
	}

	feats := make([]float64, n*5)
	nbrIdx := make([]int, 0, 32)
	nbrDist := make([]float64, 0, 32)

	for pair := 0; pair < len(o.Neighbors); pair++ {
		k := o.Neighbors[pair]
		dw := o.DistanceWeights[pair]
		if k <= 0 {
			continue
		}
		if k > n {
			k = n
		}

		for i := 0; i < n; i++ {
			x := 0.0
			if img.W > 1 {
				x = float64(i%img.W) / float64(img.W-1)
			}
			y := 0.0
			if img.H > 1 {
				y = float64(i/img.W) / float64(img.H-1)
			}
			off := i * 5
			feats[off] = colors[i*3]
			feats[off+1] = colors[i*3+1]
			feats[off+2] = colors[i*3+2]
			feats[off+3] = dw * x
			feats[off+4] = dw * y
		}

		for i := 0; i < n; i++ {
			nbrIdx = nbrIdx[:0]
			nbrDist = nbrDist[:0]
			maxPos, maxDist := 0, -1.0
			fi := feats[i*5 : i*5+5]
			for j := 0; j < n; j++ {
				fj := feats[j*5 : j*5+5]
				var d float64
				for c := 0; c < 5; c++ {
					diff := fi[c] - fj[c]
					d += diff * diff
				}
				if len(nbrIdx) < k {
					nbrIdx = append(nbrIdx, j)
					nbrDist = append(nbrDist, d)
					if d > maxDist {
						maxDist = d
						maxPos = len(nbrIdx) - 1
					}
					continue
				}
				if d < maxDist {
					nbrIdx[maxPos] = j
					nbrDist[maxPos] = d
					maxPos = 0
					maxDist = nbrDist[0]
					for t := 1; t < k; t++ {
						if nbrDist[t] > maxDist {
							maxDist = nbrDist[t]
							maxPos = t
						}
					}
				}
			}
			for _, j := range nbrIdx {
				w.Set(i, j, w.At(i, j)+1)
				w.Set(j, i, w.At(j, i)+1)
			}
		}
	}
	return w
}

// RWOptions configures the random-walk affinity.
type RWOptions struct {
	// Sigma is the Gaussian bandwidth on color distance.
	Sigma float64
	// Radius is the Chebyshev neighborhood radius.
	Radius int
}

// DefaultRWOptions return the usual matting parameters.
func DefaultRWOptions() RWOptions {
	return RWOptions{Sigma: 0.033, Radius: 1}
}

// RW builds a random-walk affinity: pixels within the window radius are
// linked with weight exp(-||c_p - c_q||² / (2σ²)). The matrix is
// symmetric by construction, with unit self-affinity on the diagonal.
func RW(img Image, o RWOptions) *mat.Dense {
	n := img.H * img.W
	w := mat.NewDense(n, n, nil)
	if o.Sigma <= 0 {
		o.Sigma = DefaultRWOptions().Sigma
	}
	if o.Radius <= 0 {
		o.Radius = DefaultRWOptions().Radius
	}
	inv := 1 / (2 * o.Sigma * o.Sigma)

	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			p := y*img.W + x
			pr, pg, pb := img.at(p)
			for dy := -o.Radius; dy <= o.Radius; dy++ {
				qy := y + dy
				if qy < 0 || qy >= img.H {
					continue
				}
				for dx := -o.Radius; dx <= o.Radius; dx++ {
					qx := x + dx
					if qx < 0 || qx >= img.W {
						continue
					}
					q := qy*img.W + qx
					qr, qg, qb := img.at(q)
					dr, dg, db := pr-qr, pg-qg, pb-qb
					w.Set(p, q, math.Exp(-(dr*dr+dg*dg+db*db)*inv))
				}
			}
		}
	}
	return w
}
