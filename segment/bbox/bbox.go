// Package bbox derives per-segment bounding boxes from a region map.
// Each non-background segment is cleaned up with a binary
// erode-then-dilate pass and reduced to the tight box around its
// remaining cells, reported both in patch-grid and original-image
// pixel coordinates.
package bbox

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/spectralseg/spectralseg/artifact"
	"github.com/spectralseg/spectralseg/internal/grid"
	"github.com/spectralseg/spectralseg/segment"
)

// Options configure box extraction.
type Options struct {
	// NumErode and NumDilate are the binary morphology iteration counts
	// applied to each segment mask before the box is measured. Erosion
	// drops thin spurs and stragglers; the subsequent dilation restores
	// the bulk of the segment.
	NumErode  int
	NumDilate int
	// KeepBackground also emits a box for label 0.
	KeepBackground bool
	// DownsampleFactor overrides the pixels-per-patch-cell scale used
	// for the original-resolution boxes. Zero means the patch size.
	DownsampleFactor int
}

// DefaultOptions returns the extraction defaults.
func DefaultOptions() Options {
	return Options{NumErode: 2, NumDilate: 3}
}

// Labels returns the sorted distinct labels present in the map.
func Labels(m *segment.RegionMap) []int {
	seen := make(map[int]struct{})
	for _, v := range m.Labels {
		seen[v] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// PatchSet returns the set of cell indices carrying the given label,
// as a compressed bitmap. Useful for cheap overlap and cardinality
// queries across many segments.
func PatchSet(m *segment.RegionMap, label int) *roaring.Bitmap {
	set := roaring.New()
	for i, v := range m.Labels {
		if v == label {
			set.Add(uint32(i))
		}
	}
	return set
}

// Extract computes one bounding box per segment of the region map.
// Segments whose mask vanishes under erosion are dropped rather than
// reported as degenerate boxes. Boxes use half-open (xmin, ymin, xmax,
// ymax) coordinates.
func Extract(id string, m *segment.RegionMap, sz grid.Sizes, o Options) *artifact.BBoxes {
	out := &artifact.BBoxes{ID: id, Format: artifact.BoxFormat}

	// Pixel size of one map cell. The map may be at patch resolution or
	// its 2x upsampling, so scale relative to the patch grid.
	scale := sz.P
	if o.DownsampleFactor > 0 {
		scale = o.DownsampleFactor
	}

	for _, label := range Labels(m) {
		if label == 0 && !o.KeepBackground {
			continue
		}

		mask := m.Erode(label, o.NumErode)
		mask = m.Dilate(mask, o.NumDilate)

		box, ok := maskBox(mask, m.H, m.W)
		if !ok {
			continue
		}

		out.SegmentIndices = append(out.SegmentIndices, label)
		out.Boxes = append(out.Boxes, box)
		out.BoxesOriginal = append(out.BoxesOriginal, scaleBox(box, scale, sz, m))
	}
	return out
}

// maskBox returns the tight half-open box around the set cells.
func maskBox(mask []bool, h, w int) (artifact.Box, bool) {
	box := artifact.Box{XMin: w, YMin: h, XMax: 0, YMax: 0}
	any := false
	for i, set := range mask {
		if !set {
			continue
		}
		any = true
		y, x := i/w, i%w
		if x < box.XMin {
			box.XMin = x
		}
		if y < box.YMin {
			box.YMin = y
		}
		if x+1 > box.XMax {
			box.XMax = x + 1
		}
		if y+1 > box.YMax {
			box.YMax = y + 1
		}
	}
	return box, any
}

func scaleBox(b artifact.Box, scale int, sz grid.Sizes, m *segment.RegionMap) artifact.Box {
	// scale is pixels per patch cell; a doubled map halves the cell.
	return artifact.Box{
		XMin: b.XMin * scale * sz.WPatch / m.W,
		YMin: b.YMin * scale * sz.HPatch / m.H,
		XMax: b.XMax * scale * sz.WPatch / m.W,
		YMax: b.YMax * scale * sz.HPatch / m.H,
	}
}
