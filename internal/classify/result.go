package classify

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// Result is an immutable classification. Callers must treat the slices as read-only.
type Result struct {
	Scheme     Scheme `json:"scheme"`
	K          int    `json:"k"`
	KEffective int    `json:"k_effective"`

	// Edges holds KEffective-1 strictly increasing interior breaks.
	Edges []float64 `json:"edges"`

	// Classes holds one class index per input value, -1 for dropped values.
	Classes []int `json:"classes"`

	// Counts holds the number of observations in each class.
	Counts []int `json:"counts"`

	Dropped     int     `json:"dropped"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Degenerate  bool    `json:"degenerate"`
	Approximate bool    `json:"approximate"`

	sorted []float64
}

// Err returns ErrDegenerateInput when the input collapsed to a single class, nil otherwise.
func (r *Result) Err() error {
	if r.Degenerate {
		return eris.Wrapf(ErrDegenerateInput, "all values equal %v", r.Min)
	}
	return nil
}

// Find returns the class a value falls into under this result's edges.
// NaN and infinite values return -1.
func (r *Result) Find(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return -1
	}
	// First edge >= v; past the last edge is the top class.
	return sort.SearchFloat64s(r.Edges, v)
}

// Bounds returns the lower and upper value of every class.
func (r *Result) Bounds() [][2]float64 {
	out := make([][2]float64, r.KEffective)
	for i := range out {
		lo, hi := r.Min, r.Max
		if i > 0 {
			lo = r.Edges[i-1]
		}
		if i < len(r.Edges) {
			hi = r.Edges[i]
		}
		out[i] = [2]float64{lo, hi}
	}
	return out
}

// GVF returns the goodness of variance fit, 1 - SDCM/SDAM, over the classified values.
// A perfect fit (or a degenerate input) returns 1.
func (r *Result) GVF() float64 {
	if len(r.sorted) == 0 {
		return 1
	}
	// Both sums are taken in units of a power of two near the data's magnitude so that
	// squaring extreme values cannot overflow; the ratio is unchanged.
	scale := pow2Scale(max(math.Abs(r.sorted[0]), math.Abs(r.sorted[len(r.sorted)-1])))
	sdam := scaledSumSquares(r.sorted, scale)
	if sdam == 0 {
		return 1
	}
	var sdcm float64
	start := 0
	for i := 1; i <= len(r.sorted); i++ {
		if i == len(r.sorted) || r.Find(r.sorted[i]) != r.Find(r.sorted[start]) {
			sdcm += scaledSumSquares(r.sorted[start:i], scale)
			start = i
		}
	}
	return 1 - sdcm/sdam
}

func (r *Result) assign(values []float64) ([]int, []int) {
	classes := make([]int, len(values))
	counts := make([]int, r.KEffective)
	for i, v := range values {
		c := r.Find(v)
		classes[i] = c
		if c >= 0 {
			counts[c]++
		}
	}
	return classes, counts
}

// sumSquares returns the sum of squared deviations from the mean.
func sumSquares(xs []float64) float64 {
	return scaledSumSquares(xs, 1)
}

// scaledSumSquares returns the sum of squared deviations of xs/scale from their mean.
func scaledSumSquares(xs []float64, scale float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	n := float64(len(xs))
	var mean float64
	for _, x := range xs {
		mean += x / scale / n
	}
	var ss float64
	for _, x := range xs {
		d := x/scale - mean
		ss += d * d
	}
	return ss
}

// pow2Scale returns a power of two within a factor of two of maxAbs, or 1 for zero and
// non-finite input. Dividing by it is exact, so scaled values keep every bit of precision.
func pow2Scale(maxAbs float64) float64 {
	if maxAbs == 0 || math.IsInf(maxAbs, 0) || math.IsNaN(maxAbs) {
		return 1
	}
	_, exp := math.Frexp(maxAbs)
	return math.Ldexp(1, exp-1)
}
