package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckWeightsRejectsUnnormalized(t *testing.T) {
	points := []float64{1, 2, 3}
	bad := []float64{0.3, 0.3, 0.3}

	_, err := Mean(points, bad)
	assert.ErrorIs(t, err, ErrWeightsNotNormalized)
	_, err = Std(points, bad)
	assert.ErrorIs(t, err, ErrWeightsNotNormalized)
	_, err = Median(points, bad)
	assert.ErrorIs(t, err, ErrWeightsNotNormalized)
	_, err = Quantile(points, bad, 0.5)
	assert.ErrorIs(t, err, ErrWeightsNotNormalized)
}

func TestCheckWeightsRejectsNegative(t *testing.T) {
	_, err := Mean([]float64{1, 2}, []float64{1.5, -0.5})
	assert.ErrorIs(t, err, ErrWeightsNotNormalized)
}

func TestCheckWeightsTolerance(t *testing.T) {
	// Within 1e-5 of one is acceptable.
	_, err := Mean([]float64{1, 2}, []float64{0.5, 0.500009})
	assert.NoError(t, err)
	_, err = Mean([]float64{1, 2}, []float64{0.5, 0.50002})
	assert.ErrorIs(t, err, ErrWeightsNotNormalized)
}

func TestLengthMismatch(t *testing.T) {
	_, err := Mean([]float64{1, 2, 3}, []float64{0.5, 0.5})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestMean(t *testing.T) {
	m, err := Mean([]float64{1, 2, 3}, []float64{0.2, 0.3, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 2.3, m, 1e-12)
}

func TestStd(t *testing.T) {
	sd, err := Std([]float64{1, 2, 3}, []float64{1.0 / 3, 1.0 / 3, 1.0 / 3})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(2.0/3), sd, 1e-12)
}

func TestStdZeroSpread(t *testing.T) {
	sd, err := Std([]float64{4, 4, 4}, []float64{0.25, 0.5, 0.25})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sd)
}

func TestMedianUniform(t *testing.T) {
	w := []float64{0.25, 0.25, 0.25, 0.25}
	med, err := Median([]float64{4, 1, 3, 2}, w)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, med, 1e-12)
}

func TestMedianWeighted(t *testing.T) {
	// All mass on one point pins the median there.
	med, err := Median([]float64{1, 2, 10}, []float64{0, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 2, med, 1e-12)
}

func TestQuantileMatchesMedian(t *testing.T) {
	points := []float64{0.3, 1.7, 0.9, 2.4, 1.1}
	w := []float64{0.1, 0.3, 0.2, 0.15, 0.25}

	med, err := Median(points, w)
	require.NoError(t, err)
	q, err := Quantile(points, w, 0.5)
	require.NoError(t, err)
	assert.Equal(t, med, q)
}

func TestQuantileDefaultWeights(t *testing.T) {
	points := []float64{5, 1, 3, 2, 4}
	uniform := []float64{0.2, 0.2, 0.2, 0.2, 0.2}

	explicit, err := Quantile(points, uniform, 0.3)
	require.NoError(t, err)
	implicit, err := Quantile(points, nil, 0.3)
	require.NoError(t, err)
	assert.Equal(t, explicit, implicit)
}

func TestQuantileMonotoneInLevel(t *testing.T) {
	points := []float64{1, 2, 3}
	w := []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}

	prev := math.Inf(-1)
	for _, alpha := range []float64{0.05, 0.25, 0.5, 0.75, 0.95} {
		q, err := Quantile(points, w, alpha)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, q, prev)
		assert.GreaterOrEqual(t, q, 1.0)
		assert.LessOrEqual(t, q, 3.0)
		prev = q
	}
}

func TestQuantileLevelValidation(t *testing.T) {
	w := []float64{0.5, 0.5}
	for _, alpha := range []float64{0, 1, -0.2, 1.5} {
		_, err := Quantile([]float64{1, 2}, w, alpha)
		assert.ErrorIs(t, err, ErrBadQuantileLevel)
	}
}
