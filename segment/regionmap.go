// Package segment converts eigenvectors (or raw patch features) into
// discrete region maps: clustering, adaptive cluster-count selection,
// background-label normalization and morphological cleanup.
package segment

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
)

// ShapeMismatchError reports a label array whose size fits neither the
// patch grid nor its 2x-per-axis upsampling.
type ShapeMismatchError struct {
	Got            int
	HPatch, WPatch int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("segment: %d labels map onto neither the %dx%d patch grid nor its 2x upsampling",
		e.Got, e.HPatch, e.WPatch)
}

// RegionMap is an integer label per cell over the patch grid (or its
// 2x upsampling). Label 0 means background once inference has run.
type RegionMap struct {
	H, W   int
	Labels []int
}

// NewRegionMap reshapes a flat label slice onto the patch grid. A label
// count of HPatch*WPatch maps directly; 4x that maps onto the doubled
// grid; anything else is a ShapeMismatchError.
func NewRegionMap(labels []int, hPatch, wPatch int) (*RegionMap, error) {
	switch len(labels) {
	case hPatch * wPatch:
		return &RegionMap{H: hPatch, W: wPatch, Labels: labels}, nil
	case hPatch * wPatch * 4:
		return &RegionMap{H: hPatch * 2, W: wPatch * 2, Labels: labels}, nil
	default:
		return nil, &ShapeMismatchError{Got: len(labels), HPatch: hPatch, WPatch: wPatch}
	}
}

// At returns the label at row y, column x.
func (m *RegionMap) At(y, x int) int { return m.Labels[y*m.W+x] }

// MaxLabel returns the largest label value present.
func (m *RegionMap) MaxLabel() int {
	maxLabel := 0
	for _, v := range m.Labels {
		if v > maxLabel {
			maxLabel = v
		}
	}
	return maxLabel
}

// InferBackground selects the label whose members lie on the image
// border with the highest fraction and swaps it with label 0. The swap
// is a symmetric relabeling (a one-pass lookup-table remap), so the
// multiset of label values is preserved. Returns the label that was
// chosen as background (before the swap).
func (m *RegionMap) InferBackground() int {
	total := make(map[int]int)
	border := make(map[int]int)
	for i, v := range m.Labels {
		total[v]++
		y, x := i/m.W, i%m.W
		if y == 0 || y == m.H-1 || x == 0 || x == m.W-1 {
			border[v]++
		}
	}

	bg, bestFrac := 0, -1.0
	for label, n := range total {
		frac := float64(border[label]) / float64(n)
		if frac > bestFrac || (frac == bestFrac && label < bg) {
			bestFrac = frac
			bg = label
		}
	}
	if bg == 0 {
		return 0
	}

	remap := make([]int, m.MaxLabel()+1)
	for i := range remap {
		remap[i] = i
	}
	remap[bg], remap[0] = 0, bg
	for i, v := range m.Labels {
		m.Labels[i] = remap[v]
	}
	return bg
}

// RescaleBinary rescales a binary {0, 1} map to {0, 255} for
// image-format storage. Maps with more than two labels are left alone.
// Reports whether the rescale was applied.
func (m *RegionMap) RescaleBinary() bool {
	if m.MaxLabel() != 1 {
		return false
	}
	for i, v := range m.Labels {
		m.Labels[i] = v * 255
	}
	return true
}

// GrayImage renders the map as a single-channel image. Labels are
// stored directly as gray values, so they must fit in a byte.
func (m *RegionMap) GrayImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.W, m.H))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			img.Pix[y*img.Stride+x] = uint8(m.At(y, x))
		}
	}
	return img
}

// EncodePNG serializes the map as a single-channel PNG, the interchange
// format consumed by downstream collaborators.
func (m *RegionMap) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.GrayImage()); err != nil {
		return nil, fmt.Errorf("segment: encode region map: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePNG reads a region map previously written with EncodePNG.
func DecodePNG(data []byte) (*RegionMap, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("segment: decode region map: %w", err)
	}
	b := img.Bounds()
	m := &RegionMap{H: b.Dy(), W: b.Dx(), Labels: make([]int, b.Dy()*b.Dx())}
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			gray := (r + g + bl) / 3
			m.Labels[y*m.W+x] = int(gray >> 8)
		}
	}
	return m, nil
}
