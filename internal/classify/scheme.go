// Package classify bins a continuous variable into ordered classes for choropleth colouring.
//
// Supported schemes are equal interval, quantiles, Fisher-Jenks natural breaks and unique
// values. Classes are right-closed: class i holds edges[i-1] < v <= edges[i].
package classify

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Scheme names a classification policy.
type Scheme string

// Classification schemes.
const (
	EqualInterval Scheme = "equal_interval"
	Quantiles     Scheme = "quantiles"
	FisherJenks   Scheme = "fisher_jenks"
	UniqueValues  Scheme = "unique_values"
)

// Schemes lists every supported scheme in display order.
func Schemes() []Scheme {
	return []Scheme{EqualInterval, Quantiles, FisherJenks, UniqueValues}
}

// Valid reports whether s is a supported scheme.
func (s Scheme) Valid() bool {
	switch s {
	case EqualInterval, Quantiles, FisherJenks, UniqueValues:
		return true
	}
	return false
}

// NeedsK reports whether the scheme uses the requested class count.
func (s Scheme) NeedsK() bool {
	return s != UniqueValues
}

func (s Scheme) String() string { return string(s) }

var schemeAliases = map[string]Scheme{
	"equal_interval": EqualInterval,
	"equalinterval":  EqualInterval,
	"equal":          EqualInterval,
	"quantiles":      Quantiles,
	"quantile":       Quantiles,
	"fisher_jenks":   FisherJenks,
	"fisherjenks":    FisherJenks,
	"jenks":          FisherJenks,
	"natural_breaks": FisherJenks,
	"unique_values":  UniqueValues,
	"uniquevalues":   UniqueValues,
	"unique":         UniqueValues,
}

// ParseScheme resolves a user-supplied scheme name. Hyphens, spaces and case are ignored.
func ParseScheme(name string) (Scheme, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	if s, ok := schemeAliases[key]; ok {
		return s, nil
	}
	return "", eris.Wrapf(ErrInvalidArgument, "unknown scheme %q", name)
}
