package segment

import (
	"image"
	"image/color"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

// Palette returns n visually distinct colors for region rendering,
// spread evenly around the hue circle. Index 0 (background) is dark.
func Palette(n int) []color.RGBA {
	out := make([]color.RGBA, n)
	if n == 0 {
		return out
	}
	out[0] = color.RGBA{20, 20, 20, 255}
	for i := 1; i < n; i++ {
		h := float64(i-1) / float64(max(n-1, 1)) * 360
		r, g, b := colorful.Hsv(h, 0.65, 0.95).RGB255()
		out[i] = color.RGBA{r, g, b, 255}
	}
	return out
}

// Colorize renders the region map as an RGBA image. When src is
// non-nil it is scaled onto the map grid and each region is painted
// with the dominant color of the image pixels it covers; otherwise a
// fixed hue palette is used.
func Colorize(m *RegionMap, src image.Image) *image.RGBA {
	palette := Palette(m.MaxLabel() + 1)
	if src != nil {
		scaled := image.NewRGBA(image.Rect(0, 0, m.W, m.H))
		draw.BiLinear.Scale(scaled, scaled.Bounds(), src, src.Bounds(), draw.Src, nil)
		for label := range palette {
			if c, ok := regionDominantColor(m, scaled, label); ok {
				palette[label] = c
			}
		}
	}

	out := image.NewRGBA(image.Rect(0, 0, m.W, m.H))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			label := m.At(y, x)
			c := color.RGBA{255, 255, 255, 255}
			if label < len(palette) {
				c = palette[label]
			}
			out.SetRGBA(x, y, c)
		}
	}
	return out
}

// regionDominantColor gathers the pixels of one region into a strip and
// asks dominantcolor for their representative color.
func regionDominantColor(m *RegionMap, scaled *image.RGBA, label int) (color.RGBA, bool) {
	var pixels []color.RGBA
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.At(y, x) == label {
				pixels = append(pixels, scaled.RGBAAt(x, y))
			}
		}
	}
	if len(pixels) == 0 {
		return color.RGBA{}, false
	}
	strip := image.NewRGBA(image.Rect(0, 0, len(pixels), 1))
	for i, p := range pixels {
		strip.SetRGBA(i, 0, p)
	}
	return dominantcolor.Find(strip), true
}
