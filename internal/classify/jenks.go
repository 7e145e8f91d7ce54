package classify

import "math"

// fisherJenksEdges returns the breaks of the partition of sorted into k contiguous classes that
// minimizes the total within-class sum of squared deviations. Inputs with more than maxExact
// distinct values are solved on an evenly spaced sample of order statistics; the second return
// value reports that fallback.
func fisherJenksEdges(sorted []float64, distinct, k, maxExact, sampleSize int) ([]float64, bool) {
	if distinct > maxExact && sampleSize < len(sorted) {
		sample := sampleOrderStats(sorted, sampleSize)
		if countDistinct(sample) >= k {
			return newJenksSolver(sample).solve(k), true
		}
	}
	return newJenksSolver(sorted).solve(k), false
}

// sampleOrderStats picks size evenly spaced order statistics, always keeping min and max.
func sampleOrderStats(sorted []float64, size int) []float64 {
	n := len(sorted)
	if size < 2 {
		size = 2
	}
	out := make([]float64, size)
	for i := range out {
		idx := int(math.Round(float64(i) * float64(n-1) / float64(size-1)))
		out[i] = sorted[idx]
	}
	return out
}

// jenksSolver runs the k-class dynamic program over distinct values weighted by multiplicity.
// Interval costs come from prefix sums, and each layer is filled with divide and conquer since
// the optimal split point is monotone in the right end for 1-D squared error.
type jenksSolver struct {
	values []float64 // distinct values, ascending
	w      []float64 // prefix counts
	s      []float64 // prefix weighted sums
	q      []float64 // prefix weighted sums of squares
}

func newJenksSolver(sorted []float64) *jenksSolver {
	js := &jenksSolver{
		w: []float64{0},
		s: []float64{0},
		q: []float64{0},
	}
	scale := 1.0
	if len(sorted) > 0 {
		scale = pow2Scale(max(math.Abs(sorted[0]), math.Abs(sorted[len(sorted)-1])))
	}
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		v, c := sorted[i], float64(j-i)
		// Center on the first value and scale by a power of two so the prefix sums stay
		// finite and well conditioned.
		d := v/scale - sorted[0]/scale
		last := len(js.w) - 1
		js.values = append(js.values, v)
		js.w = append(js.w, js.w[last]+c)
		js.s = append(js.s, js.s[last]+c*d)
		js.q = append(js.q, js.q[last]+c*d*d)
		i = j
	}
	return js
}

// cost is the squared error of distinct values [a, b).
func (js *jenksSolver) cost(a, b int) float64 {
	w := js.w[b] - js.w[a]
	if w <= 0 {
		return 0
	}
	s := js.s[b] - js.s[a]
	c := js.q[b] - js.q[a] - s*s/w
	if c < 0 {
		return 0
	}
	return c
}

func (js *jenksSolver) solve(k int) []float64 {
	m := len(js.values)
	if k <= 1 || m == 0 {
		return []float64{}
	}
	if k > m {
		k = m
	}

	prev := make([]float64, m+1)
	for j := 1; j <= m; j++ {
		prev[j] = js.cost(0, j)
	}

	// split[c][j] is the start of the last class when the first j values form c+1 classes.
	split := make([][]int32, k)
	cur := make([]float64, m+1)
	for c := 1; c < k; c++ {
		split[c] = make([]int32, m+1)
		for j := range cur {
			cur[j] = math.Inf(1)
		}
		js.fill(prev, cur, split[c], c, c+1, m, c, m-1)
		prev, cur = cur, prev
	}

	edges := make([]float64, k-1)
	end := m
	for c := k - 1; c >= 1; c-- {
		start := int(split[c][end])
		edges[c-1] = js.values[start-1]
		end = start
	}
	return edges
}

// fill computes cur[j] for j in [lo, hi] given that the optimal split lies in [optLo, optHi].
// The last class must hold at least one value and the first c classes at least c values.
func (js *jenksSolver) fill(prev, cur []float64, split []int32, c, lo, hi, optLo, optHi int) {
	if lo > hi {
		return
	}
	mid := (lo + hi) / 2
	best, bestI := math.Inf(1), -1
	from := max(optLo, c)
	to := min(optHi, mid-1)
	for i := from; i <= to; i++ {
		v := prev[i] + js.cost(i, mid)
		if v < best {
			best, bestI = v, i
		}
	}
	if bestI < 0 {
		bestI = from
	}
	cur[mid] = best
	split[mid] = int32(bestI)
	js.fill(prev, cur, split, c, lo, mid-1, optLo, bestI)
	js.fill(prev, cur, split, c, mid+1, hi, bestI, optHi)
}
