package palette

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/choropleth/internal/classify"
)

// LabelOptions controls legend label formatting.
type LabelOptions struct {
	// Decimals fixes the number of fraction digits; negative picks one from the data range.
	Decimals int
	Language language.Tag
}

// DefaultLabelOptions formats with automatic precision in US English.
func DefaultLabelOptions() LabelOptions {
	return LabelOptions{Decimals: -1, Language: language.AmericanEnglish}
}

// Labels returns one legend label per class, e.g. "1,204.5 - 2,300.0". Unique value and
// degenerate classes are labelled with their single value.
func Labels(res *classify.Result, opts LabelOptions) []string {
	p := message.NewPrinter(opts.Language)
	decimals := opts.Decimals
	if decimals < 0 {
		decimals = autoDecimals(res)
	}

	single := fmt.Sprintf("%%.%df", decimals)
	pair := single + " - " + single

	bounds := res.Bounds()
	labels := make([]string, len(bounds))
	for i, b := range bounds {
		if res.Scheme == classify.UniqueValues || res.Degenerate || b[0] == b[1] {
			labels[i] = p.Sprintf(single, b[1])
			continue
		}
		labels[i] = p.Sprintf(pair, b[0], b[1])
	}
	return labels
}

// autoDecimals keeps labels short for wide ranges and readable for narrow ones.
func autoDecimals(res *classify.Result) int {
	span := math.Abs(res.Max - res.Min)
	allIntegral := math.Trunc(res.Min) == res.Min && math.Trunc(res.Max) == res.Max
	for _, e := range res.Edges {
		if math.Trunc(e) != e {
			allIntegral = false
			break
		}
	}
	switch {
	case allIntegral:
		return 0
	case span >= 1000:
		return 0
	case span >= 10:
		return 1
	case span >= 1:
		return 2
	default:
		return 4
	}
}
