package classify

import "math"

// equalIntervalEdges splits [lo, hi] into k equal-width classes.
func equalIntervalEdges(lo, hi float64, k int) []float64 {
	span := hi - lo
	edges := make([]float64, 0, k-1)
	for i := 1; i < k; i++ {
		if math.IsInf(span, 0) {
			// The range itself overflows; interpolate between the bounds instead.
			t := float64(i) / float64(k)
			edges = append(edges, lo*(1-t)+hi*t)
			continue
		}
		edges = append(edges, lo+float64(i)*span/float64(k))
	}
	return edges
}
