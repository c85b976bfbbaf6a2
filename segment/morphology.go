package segment

// Close3x3 applies a grayscale morphological closing (dilation followed
// by erosion) with a 3x3 structuring element, removing speckle holes
// without pushing the background-object boundary outward. The
// neighborhood is clamped at the image edge.
func (m *RegionMap) Close3x3() {
	m.dilate3x3()
	m.erode3x3()
}

func (m *RegionMap) dilate3x3() {
	m.filter3x3(func(best, v int) bool { return v > best })
}

func (m *RegionMap) erode3x3() {
	m.filter3x3(func(best, v int) bool { return v < best })
}

func (m *RegionMap) filter3x3(better func(best, v int) bool) {
	out := make([]int, len(m.Labels))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			best := m.At(y, x)
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= m.H {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= m.W {
						continue
					}
					if v := m.At(ny, nx); better(best, v) {
						best = v
					}
				}
			}
			out[y*m.W+x] = best
		}
	}
	m.Labels = out
}

// Erode performs n rounds of binary erosion on the mask of cells whose
// label equals target, returning the surviving cell mask. Used by the
// bounding-box extractor to strip thin protrusions before locating the
// dominant component.
func (m *RegionMap) Erode(target, n int) []bool {
	mask := make([]bool, len(m.Labels))
	for i, v := range m.Labels {
		mask[i] = v == target
	}
	for round := 0; round < n; round++ {
		mask = m.binaryStep(mask, false)
	}
	return mask
}

// Dilate performs n rounds of binary dilation on mask in place of the
// grid geometry of m.
func (m *RegionMap) Dilate(mask []bool, n int) []bool {
	for round := 0; round < n; round++ {
		mask = m.binaryStep(mask, true)
	}
	return mask
}

// binaryStep applies one 3x3 dilation (any neighbor set) or erosion
// (all neighbors set) round. Cells outside the grid count as unset, so
// erosion eats into the border, matching the usual zero border value.
func (m *RegionMap) binaryStep(mask []bool, dilate bool) []bool {
	out := make([]bool, len(mask))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			v := !dilate
		window:
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					ny, nx := y+dy, x+dx
					cell := false
					if ny >= 0 && ny < m.H && nx >= 0 && nx < m.W {
						cell = mask[ny*m.W+nx]
					}
					if dilate && cell {
						v = true
						break window
					}
					if !dilate && !cell {
						v = false
						break window
					}
				}
			}
			out[y*m.W+x] = v
		}
	}
	return out
}
