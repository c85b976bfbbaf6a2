// Package grid holds patch-grid geometry shared by the affinity,
// eigen and segment packages.
//
// An image of shape (H, W) with patch size P is divided into
// H/P x W/P non-overlapping patches. All per-patch arrays are indexed
// row-major over this grid.
package grid

import "fmt"

// Sizes describes the patch grid derived from an image shape and patch size.
type Sizes struct {
	B, C, H, W int // original tensor shape
	P          int // patch side length

	HPatch, WPatch int // patch grid
	HPad, WPad     int // image cropped to a multiple of P
}

// FromShape derives patch-grid sizes from a (B, C, H, W) shape and patch size.
func FromShape(shape [4]int, patchSize int) (Sizes, error) {
	if patchSize <= 0 {
		return Sizes{}, fmt.Errorf("grid: patch size must be positive, got %d", patchSize)
	}
	h, w := shape[2], shape[3]
	if h < patchSize || w < patchSize {
		return Sizes{}, fmt.Errorf("grid: image %dx%d smaller than patch size %d", h, w, patchSize)
	}
	hp, wp := h/patchSize, w/patchSize
	return Sizes{
		B: shape[0], C: shape[1], H: h, W: w,
		P:      patchSize,
		HPatch: hp, WPatch: wp,
		HPad: hp * patchSize, WPad: wp * patchSize,
	}, nil
}

// NumPatches returns the number of graph nodes on the base grid.
func (s Sizes) NumPatches() int { return s.HPatch * s.WPatch }

// LowRes returns the grid obtained by downsampling the padded image by
// factor. A factor of 0 means "use the patch size", which makes the
// low-resolution grid coincide with the patch grid.
func (s Sizes) LowRes(factor int) (h, w int) {
	if factor <= 0 {
		factor = s.P
	}
	return s.HPad / factor, s.WPad / factor
}
