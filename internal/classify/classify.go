package classify

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"
)

// Defaults applied by Options when a field is left zero.
const (
	DefaultJenksMaxExact    = 50000
	DefaultJenksSampleSize  = 10000
	DefaultMaxUniqueClasses = 64
)

// Options controls a single classification.
type Options struct {
	Scheme Scheme `json:"scheme" yaml:"scheme"`
	K      int    `json:"k" yaml:"k"`

	// DropInvalid excludes NaN and infinite values instead of rejecting the input.
	// Dropped positions are assigned class -1.
	DropInvalid bool `json:"drop_invalid" yaml:"drop_invalid"`

	// JenksMaxExact is the largest distinct-value count solved exactly by Fisher-Jenks.
	// Above it breaks are computed on a sample and the result is marked Approximate.
	JenksMaxExact int `json:"jenks_max_exact,omitempty" yaml:"jenks_max_exact,omitempty"`

	// JenksSampleSize is the number of order statistics used by the approximate fallback.
	JenksSampleSize int `json:"jenks_sample_size,omitempty" yaml:"jenks_sample_size,omitempty"`

	// MaxUniqueClasses caps the number of classes the unique values scheme may produce.
	MaxUniqueClasses int `json:"max_unique_classes,omitempty" yaml:"max_unique_classes,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.JenksMaxExact <= 0 {
		o.JenksMaxExact = DefaultJenksMaxExact
	}
	if o.JenksSampleSize <= 0 {
		o.JenksSampleSize = DefaultJenksSampleSize
	}
	if o.MaxUniqueClasses <= 0 {
		o.MaxUniqueClasses = DefaultMaxUniqueClasses
	}
	return o
}

// Classify partitions values into ordered classes under opts.Scheme.
//
// Validation runs in a fixed order: class count, finiteness, emptiness, degeneracy, then
// class count against the number of distinct values. Input whose finite values are all equal
// yields a single-class result with Degenerate set rather than an error.
func Classify(values []float64, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	if !opts.Scheme.Valid() {
		return nil, eris.Wrapf(ErrInvalidArgument, "unknown scheme %q", opts.Scheme)
	}
	if opts.Scheme.NeedsK() && opts.K < 1 {
		return nil, eris.Wrapf(ErrInvalidArgument, "k must be at least 1, got %d", opts.K)
	}

	finite := make([]float64, 0, len(values))
	var dropped int
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			if !opts.DropInvalid {
				return nil, eris.Wrapf(ErrInvalidArgument, "non-finite value %v at index %d", v, i)
			}
			dropped++
			continue
		}
		finite = append(finite, v)
	}
	if len(finite) == 0 {
		if len(values) == 0 {
			return nil, eris.Wrap(ErrInvalidArgument, "no values to classify")
		}
		return nil, eris.Wrapf(ErrInvalidArgument, "all %d values were dropped as non-finite", dropped)
	}

	slices.Sort(finite)
	distinct := countDistinct(finite)

	res := &Result{
		Scheme:  opts.Scheme,
		K:       opts.K,
		Dropped: dropped,
		Min:     finite[0],
		Max:     finite[len(finite)-1],
		sorted:  finite,
	}
	if !opts.Scheme.NeedsK() {
		res.K = distinct
	}

	switch {
	case distinct == 1:
		res.Degenerate = true
		res.Edges = []float64{}
	case opts.Scheme.NeedsK() && opts.K > distinct:
		return nil, eris.Wrapf(ErrInvalidArgument, "k=%d exceeds %d distinct values", opts.K, distinct)
	default:
		edges, approx, err := computeEdges(finite, distinct, opts)
		if err != nil {
			return nil, err
		}
		res.Edges = normalizeEdges(edges, res.Max)
		res.Approximate = approx
	}

	res.KEffective = len(res.Edges) + 1
	res.Classes, res.Counts = res.assign(values)
	return res, nil
}

func computeEdges(sorted []float64, distinct int, opts Options) ([]float64, bool, error) {
	switch opts.Scheme {
	case EqualInterval:
		return equalIntervalEdges(sorted[0], sorted[len(sorted)-1], opts.K), false, nil
	case Quantiles:
		return quantileEdges(sorted, opts.K), false, nil
	case FisherJenks:
		edges, approx := fisherJenksEdges(sorted, distinct, opts.K, opts.JenksMaxExact, opts.JenksSampleSize)
		return edges, approx, nil
	case UniqueValues:
		if distinct > opts.MaxUniqueClasses {
			return nil, false, eris.Wrapf(ErrInvalidArgument,
				"%d distinct values exceed the unique values limit of %d", distinct, opts.MaxUniqueClasses)
		}
		return uniqueEdges(sorted), false, nil
	}
	return nil, false, eris.Wrapf(ErrInvalidArgument, "unknown scheme %q", opts.Scheme)
}

// normalizeEdges keeps edges strictly increasing and below max. A repeated edge or an edge at
// max would describe an empty class, so it is collapsed.
func normalizeEdges(edges []float64, maxValue float64) []float64 {
	out := make([]float64, 0, len(edges))
	for _, e := range edges {
		if e >= maxValue {
			break
		}
		if len(out) > 0 && e <= out[len(out)-1] {
			continue
		}
		out = append(out, e)
	}
	return out
}

func countDistinct(sorted []float64) int {
	if len(sorted) == 0 {
		return 0
	}
	n := 1
	for i := 1; i < len(sorted); i++ {
		if sorted[i] != sorted[i-1] {
			n++
		}
	}
	return n
}
