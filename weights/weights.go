package weights

// Balanced returns n / (classes * count[c]) per class, the inverse-frequency
// weighting that makes every class contribute equally to the loss. Classes that
// never occur get weight 0.
func Balanced(counts []int) []float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	out := make([]float64, len(counts))
	if total == 0 {
		return out
	}
	for i, c := range counts {
		if c > 0 {
			out[i] = float64(total) / float64(len(counts)*c)
		}
	}
	return out
}
