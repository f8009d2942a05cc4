package crowd

import "math"

// DefaultKernel is the triangular weighting applied to the rolling
// histogram. Configurable; this default matches the shipped mobile client.
var DefaultKernel = []int{1, 2, 3, 2, 1}

// Smooth applies kernel as a centered weighted moving average over values.
// Buckets near the boundaries renormalize by the sum of in-range weights
// instead of zero-padding, so edge values are not dragged toward zero.
// Output is rounded to the nearest integer. Pure: identical input yields
// identical output.
func Smooth(values []float64, kernel []int) []int {
	if len(values) == 0 {
		return nil
	}
	if len(kernel) == 0 {
		kernel = DefaultKernel
	}
	half := len(kernel) / 2

	out := make([]int, len(values))
	for i := range values {
		var weighted float64
		var weightSum int
		for k, w := range kernel {
			j := i + k - half
			if j < 0 || j >= len(values) {
				continue
			}
			weighted += float64(w) * values[j]
			weightSum += w
		}
		if weightSum > 0 {
			out[i] = int(math.Round(weighted / float64(weightSum)))
		}
	}
	return out
}
