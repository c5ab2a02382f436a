package utils

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Identity matrix.
func Eye(n int) *mat.SymDense {
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetSym(i, i, 1)
	}
	return out
}

// WeightedCovariance estimates the weighted covariance of the rows of
// x. Fewer than two rows leave nothing to estimate spread from, so the
// result degenerates to the zero matrix (regularization happens later,
// in RegularizedCholesky).
func WeightedCovariance(x mat.Matrix, weights []float64) *mat.SymDense {
	n, d := x.Dims()
	out := mat.NewSymDense(d, nil)
	if n < 2 {
		return out
	}
	stat.CovarianceMatrix(out, x, weights)
	// Weight vectors concentrated on a single particle behave like a
	// single observation and can yield non-finite entries.
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			v := out.At(i, j)
			if v != v { // NaN
				out.SetSym(i, j, 0)
			}
		}
	}
	return out
}

// ScaleSym multiplies a symmetric matrix by f in place.
func ScaleSym(s *mat.SymDense, f float64) {
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, f*s.At(i, j))
		}
	}
}

// RegularizedCholesky factorizes cov, escalating a ridge term until the
// factorization succeeds. The first attempt is ridge-free, so
// well-conditioned inputs pass through untouched; rank-deficient or
// zero covariances pick up the smallest diagonal addition that makes
// them positive definite. The possibly modified covariance is returned
// alongside the factor.
func RegularizedCholesky(cov *mat.SymDense) (*mat.Cholesky, *mat.SymDense) {
	d := cov.SymmetricDim()
	work := mat.NewSymDense(d, nil)
	work.CopySym(cov)

	trace := 0.0
	for i := 0; i < d; i++ {
		trace += cov.At(i, i)
	}
	eps := 1e-9 * (trace/float64(d) + 1)

	var chol mat.Cholesky
	if chol.Factorize(work) {
		return &chol, work
	}
	for iter := 0; iter < 12; iter++ {
		for i := 0; i < d; i++ {
			work.SetSym(i, i, cov.At(i, i)+eps)
		}
		if chol.Factorize(work) {
			return &chol, work
		}
		eps *= 10
	}
	// Pathological input (non-finite entries); fall back to a small
	// spherical covariance.
	work = Eye(d)
	ScaleSym(work, eps)
	chol.Factorize(work)
	return &chol, work
}
