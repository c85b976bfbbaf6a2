package eigen

// Canonicalize resolves the solver's arbitrary eigenvector sign choice
// in place. An eigenvector is negated when the fraction of its entries
// strictly greater than zero lies in (0.5, 1.0): a clear majority, but
// not all, positive. After canonicalization the positive side of each
// sign boundary is the minority side, consistently across runs and
// images. Applying it twice is a no-op.
func Canonicalize(p *Pairs) {
	if p == nil || p.Vectors == nil {
		return
	}
	k, n := p.Vectors.Dims()
	for i := 0; i < k; i++ {
		row := p.Vectors.RawRowView(i)
		pos := 0
		for _, v := range row {
			if v > 0 {
				pos++
			}
		}
		frac := float64(pos) / float64(n)
		if frac > 0.5 && frac < 1.0 {
			for j := range row {
				row[j] = -row[j]
			}
		}
	}
}
