package classify

// quantileEdges places edge i at the observation of 1-based rank ceil(i*n/k). Classes are
// right-closed, so every value tied with an edge lands in the lower class.
func quantileEdges(sorted []float64, k int) []float64 {
	n := len(sorted)
	edges := make([]float64, 0, k-1)
	for i := 1; i < k; i++ {
		rank := (i*n + k - 1) / k
		edges = append(edges, sorted[rank-1])
	}
	return edges
}
