// Package stats provides weighted scalar statistics over particle
// populations. All functions take parallel slices of points and
// non-negative weights summing to one.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WeightTol is the absolute tolerance allowed on the weight sum.
const WeightTol = 1e-5

var (
	ErrWeightsNotNormalized = errors.New("stats: weights not normalized")
	ErrLengthMismatch       = errors.New("stats: points and weights differ in length")
	ErrBadQuantileLevel     = errors.New("stats: quantile level outside (0, 1)")
)

// CheckWeights verifies that weights are non-negative and sum to 1
// within WeightTol.
func CheckWeights(weights []float64) error {
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return ErrWeightsNotNormalized
		}
		sum += w
	}
	if math.Abs(sum-1) >= WeightTol {
		return ErrWeightsNotNormalized
	}
	return nil
}

func check(points, weights []float64) error {
	if len(points) != len(weights) {
		return ErrLengthMismatch
	}
	return CheckWeights(weights)
}

// Mean returns the weighted mean Σ wᵢ·xᵢ.
func Mean(points, weights []float64) (float64, error) {
	if err := check(points, weights); err != nil {
		return 0, err
	}
	return stat.Mean(points, weights), nil
}

// Std returns the weighted standard deviation sqrt(Σ wᵢ·(xᵢ−mean)²).
// With weights summing to one the population form equals the required
// expression exactly, so this defers to stat.PopStdDev rather than the
// bias-corrected stat.StdDev.
func Std(points, weights []float64) (float64, error) {
	if err := check(points, weights); err != nil {
		return 0, err
	}
	return stat.PopStdDev(points, weights), nil
}

// Median returns the weighted median: the interpolated point at
// cumulative weight 0.5, with each point anchored at the center of its
// own weight mass.
func Median(points, weights []float64) (float64, error) {
	if err := check(points, weights); err != nil {
		return 0, err
	}
	return interpQuantile(points, weights, 0.5), nil
}

// Quantile generalizes Median to an arbitrary level alpha in (0, 1).
// The anchor offset is (1−alpha)·wᵢ, so alpha=0.5 reproduces Median.
// A nil weight slice means uniform weights.
func Quantile(points, weights []float64, alpha float64) (float64, error) {
	if alpha <= 0 || alpha >= 1 {
		return 0, ErrBadQuantileLevel
	}
	if weights == nil {
		weights = make([]float64, len(points))
		for i := range weights {
			weights[i] = 1 / float64(len(points))
		}
	}
	if err := check(points, weights); err != nil {
		return 0, err
	}
	return interpQuantile(points, weights, alpha), nil
}

// interpQuantile sorts points ascending carrying weights along, then
// linearly interpolates the piecewise function through the nodes
// (csᵢ − (1−alpha)·wᵢ, xᵢ), where cs is the cumulative weight. The
// abscissae are nondecreasing since consecutive differences equal
// alpha·wᵢ + (1−alpha)·wᵢ₋₁. Evaluation clamps outside the node range.
func interpQuantile(points, weights []float64, alpha float64) float64 {
	n := len(points)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return points[idx[a]] < points[idx[b]] })

	xs := make([]float64, n)
	ys := make([]float64, n)
	cs := 0.0
	for k, i := range idx {
		cs += weights[i]
		xs[k] = cs - (1-alpha)*weights[i]
		ys[k] = points[i]
	}

	if alpha <= xs[0] {
		return ys[0]
	}
	if alpha >= xs[n-1] {
		return ys[n-1]
	}
	k := sort.SearchFloat64s(xs, alpha)
	x0, x1 := xs[k-1], xs[k]
	if x1 == x0 {
		return ys[k]
	}
	t := (alpha - x0) / (x1 - x0)
	return ys[k-1] + t*(ys[k]-ys[k-1])
}
