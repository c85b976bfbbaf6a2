// Package artifact defines the typed per-image interchange artifacts
// exchanged between pipeline stages, and the stores that persist them.
//
// Every artifact kind is an explicit struct; a small registry maps kind
// names to file suffixes for store I/O. Artifacts are written as
// self-describing envelopes (codec name + compression in the header) so
// batches remain readable across configuration changes.
package artifact

import (
	"fmt"
	"path"
)

// Features is the per-image output of the upstream dense feature
// extractor: one descriptor per patch over the patch grid.
type Features struct {
	// ID is the image identifier (basename without extension).
	ID string `json:"id"`
	// ModelName records which backbone produced the descriptors.
	ModelName string `json:"model_name"`
	// PatchSize is the patch side length in pixels.
	PatchSize int `json:"patch_size"`
	// Shape is the (B, C, H, W) shape of the network input.
	Shape [4]int `json:"shape"`
	// Features holds N rows of D-dimensional descriptors, N = HPatch*WPatch,
	// row-major over the patch grid.
	Features [][]float32 `json:"features"`
}

// Dim returns (N, D) of the feature matrix.
func (f *Features) Dim() (n, d int) {
	if len(f.Features) == 0 {
		return 0, 0
	}
	return len(f.Features), len(f.Features[0])
}

// Eigs is the per-image eigenpair artifact produced by the eigensolver
// stage. Eigenvectors hold one row per eigenvector; for Laplacian
// decompositions row 0 belongs to the smallest eigenvalue.
type Eigs struct {
	Eigenvalues  []float64   `json:"eigenvalues"`
	Eigenvectors [][]float64 `json:"eigenvectors"`
}

// Box is a bounding box in (xmin, ymin, xmax, ymax) form.
type Box struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

// BBoxes is the per-image bounding-box artifact derived from a region map.
type BBoxes struct {
	ID string `json:"id"`
	// Format documents the coordinate convention for downstream readers.
	Format         string `json:"format"`
	SegmentIndices []int  `json:"segment_indices"`
	// Boxes are in patch-grid coordinates; BoxesOriginal in pixels of the
	// original image resolution.
	Boxes         []Box `json:"bboxes"`
	BoxesOriginal []Box `json:"bboxes_original_resolution"`
}

// BoxFormat is the coordinate convention used by BBoxes.
const BoxFormat = "(xmin, ymin, xmax, ymax)"

// Kind identifies an artifact kind in the registry.
type Kind string

const (
	KindFeatures Kind = "features"
	KindEigs     Kind = "eigs"
	KindBBoxes   Kind = "bboxes"
	// KindRegionMap is stored as a plain single-channel PNG, not an
	// envelope, so collaborators can read it with any image library.
	KindRegionMap Kind = "regionmap"
)

var kindSuffix = map[Kind]string{
	KindFeatures:  ".feat",
	KindEigs:      ".eigs",
	KindBBoxes:    ".bbox",
	KindRegionMap: ".png",
}

// FileName returns the store name for an artifact of this kind,
// placed under dir and keyed by image ID.
func (k Kind) FileName(dir, id string) string {
	suffix, ok := kindSuffix[k]
	if !ok {
		panic(fmt.Sprintf("artifact: unregistered kind %q", k))
	}
	return path.Join(dir, id+suffix)
}
