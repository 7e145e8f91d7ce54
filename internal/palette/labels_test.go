package palette

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/sells-group/choropleth/internal/classify"
)

func TestLabels_EqualInterval(t *testing.T) {
	res, err := classify.Classify([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, classify.Options{Scheme: classify.EqualInterval, K: 5})
	require.NoError(t, err)

	labels := Labels(res, LabelOptions{Decimals: 1, Language: language.AmericanEnglish})
	assert.Equal(t, []string{"1.0 - 2.8", "2.8 - 4.6", "4.6 - 6.4", "6.4 - 8.2", "8.2 - 10.0"}, labels)
}

func TestLabels_GroupsThousands(t *testing.T) {
	res, err := classify.Classify([]float64{1000, 2500, 4000, 250000}, classify.Options{Scheme: classify.Quantiles, K: 2})
	require.NoError(t, err)

	labels := Labels(res, DefaultLabelOptions())
	assert.Equal(t, []string{"1,000 - 2,500", "2,500 - 250,000"}, labels)
}

func TestLabels_UniqueAndDegenerate(t *testing.T) {
	res, err := classify.Classify([]float64{3, 1, 2}, classify.Options{Scheme: classify.UniqueValues})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, Labels(res, DefaultLabelOptions()))

	deg, err := classify.Classify([]float64{5, 5}, classify.Options{Scheme: classify.Quantiles, K: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, Labels(deg, DefaultLabelOptions()))
}

func TestAutoDecimals(t *testing.T) {
	tests := []struct {
		values []float64
		want   int
	}{
		{[]float64{1, 3, 5, 7}, 0},
		{[]float64{0.5, 1500.25, 3000.75}, 0},
		{[]float64{0.5, 12.25, 30.75}, 1},
		{[]float64{0.5, 1.25, 3.75}, 2},
		{[]float64{0.001, 0.25, 0.75}, 4},
	}
	for _, tt := range tests {
		res, err := classify.Classify(tt.values, classify.Options{Scheme: classify.EqualInterval, K: 2})
		require.NoError(t, err)
		assert.Equal(t, tt.want, autoDecimals(res), "%v", tt.values)
	}
}
