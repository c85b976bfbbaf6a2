package spectralseg

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
)

// ImageOpener resolves an image ID to its decoded RGB image. It is only
// consulted when color-affinity fusion is enabled.
type ImageOpener interface {
	Open(id string) (image.Image, error)
}

// DirImageOpener looks up images by ID under a root directory, trying a
// fixed list of extensions.
type DirImageOpener struct {
	Root string
	// Extensions overrides the probed file extensions. Defaults to
	// jpg, jpeg, png.
	Extensions []string
}

// Open implements ImageOpener.
func (d *DirImageOpener) Open(id string) (image.Image, error) {
	exts := d.Extensions
	if len(exts) == 0 {
		exts = []string{".jpg", ".jpeg", ".png"}
	}
	for _, ext := range exts {
		path := filepath.Join(d.Root, id+ext)
		f, err := os.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open image %s: %w", id, err)
		}
		img, _, err := image.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("decode image %s: %w", path, err)
		}
		return img, nil
	}
	return nil, fmt.Errorf("%w: no image for %s under %s", ErrInputMissing, id, d.Root)
}
