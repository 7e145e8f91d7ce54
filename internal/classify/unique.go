package classify

// uniqueEdges gives every distinct value its own class.
func uniqueEdges(sorted []float64) []float64 {
	var edges []float64
	for i := 0; i < len(sorted)-1; i++ {
		if sorted[i] != sorted[i+1] {
			edges = append(edges, sorted[i])
		}
	}
	return edges
}
