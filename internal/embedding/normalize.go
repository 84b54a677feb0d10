package embedding

import "math"

// Normalize L2-normalizes a vector in a new slice. A vector whose norm is
// exactly zero is returned unchanged rather than divided, avoiding NaNs.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
