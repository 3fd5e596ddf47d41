package embedclient

import "math"

// Normalize scales each vector to unit length in place, skipping any
// zero vector (a degenerate embedding has no direction to normalize).
func Normalize(vectors [][]float32) {
	for i, v := range vectors {
		var sumSq float64
		for _, x := range v {
			sumSq += float64(x) * float64(x)
		}
		if sumSq == 0 {
			continue
		}
		norm := float32(math.Sqrt(sumSq))
		for j := range v {
			vectors[i][j] = v[j] / norm
		}
	}
}
