package crowd

import "math"

// Normalize maps raw per-tile counts onto a 0-100 display scale relative to
// the current global maximum. An empty or all-zero snapshot normalizes to
// all zeros; there is no absolute floor threshold. Recomputed per call.
func Normalize(counts map[string]int) map[string]int {
	out := make(map[string]int, len(counts))

	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}

	for id, c := range counts {
		if max <= 0 || c <= 0 {
			out[id] = 0
			continue
		}
		v := int(math.Round(float64(c) / float64(max) * 100))
		if v > 100 {
			v = 100
		}
		out[id] = v
	}
	return out
}
