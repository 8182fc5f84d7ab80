package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile_NearestRank(t *testing.T) {
	t.Parallel()

	values := []float64{1, 2, 3, 4, 5}

	p50, ok := Percentile(values, 50)
	require.True(t, ok)
	assert.Equal(t, 3.0, p50)

	p95, ok := Percentile(values, 95)
	require.True(t, ok)
	assert.Equal(t, 5.0, p95)

	p90, ok := Percentile(values, 90)
	require.True(t, ok)
	assert.Equal(t, 5.0, p90)
}

func TestPercentile_SingleValue(t *testing.T) {
	t.Parallel()

	for _, p := range []float64{0, 50, 90, 100} {
		v, ok := Percentile([]float64{42}, p)
		require.True(t, ok)
		assert.Equal(t, 42.0, v)
	}
}

func TestPercentile_Empty(t *testing.T) {
	t.Parallel()

	_, ok := Percentile(nil, 50)
	assert.False(t, ok)
}

func TestPercentile_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	values := []float64{3, 1, 2}
	_, ok := Percentile(values, 50)
	require.True(t, ok)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestMedian_EvenCount(t *testing.T) {
	t.Parallel()

	// Nearest-rank median of an even count is the lower middle element.
	m, ok := Median([]float64{1, 2, 3, 4})
	require.True(t, ok)
	assert.Equal(t, 2.0, m)
}

func TestAverage(t *testing.T) {
	t.Parallel()

	avg, ok := Average([]float64{2, 4, 6})
	require.True(t, ok)
	assert.Equal(t, 4.0, avg)

	_, ok = Average(nil)
	assert.False(t, ok)
}

func TestGini_PerfectEquality(t *testing.T) {
	t.Parallel()

	g, ok := Gini([]float64{10, 10, 10})
	require.True(t, ok)
	assert.InDelta(t, 0.0, g, 1e-9)
}

func TestGini_ConcentratedOwnership(t *testing.T) {
	t.Parallel()

	g, ok := Gini([]float64{0, 0, 100})
	require.True(t, ok)
	assert.InDelta(t, 0.6667, g, 1e-4)

	g, ok = Gini([]float64{10, 10, 80})
	require.True(t, ok)
	assert.InDelta(t, 0.4667, g, 1e-4)
}

func TestGini_TooFewActors(t *testing.T) {
	t.Parallel()

	_, ok := Gini([]float64{100})
	assert.False(t, ok)

	_, ok = Gini(nil)
	assert.False(t, ok)
}

func TestGini_AllZero(t *testing.T) {
	t.Parallel()

	g, ok := Gini([]float64{0, 0, 0})
	require.True(t, ok)
	assert.Equal(t, 0.0, g)
}

func TestPeakBucket(t *testing.T) {
	t.Parallel()

	peak, ok := PeakBucket([]int{0, 3, 7, 7, 1})
	require.True(t, ok)
	assert.Equal(t, 2, peak, "ties resolve to the earliest bucket")

	_, ok = PeakBucket([]int{0, 0, 0})
	assert.False(t, ok)
}
