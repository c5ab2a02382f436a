package transition

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"

	"github.com/Havaldar/pyABC/pop"
	"github.com/Havaldar/pyABC/utils"
)

var (
	mvn *MultivariateNormal
	_   Transition  = mvn // Check that MultivariateNormal respects the Transition interface.
	_   ParamSetter = mvn
)

// MultivariateNormal is a transition kernel with one global Gaussian
// bandwidth: the weighted covariance of the fitted population, scaled
// by Scaling.
type MultivariateNormal struct {
	// Scaling multiplies the fitted covariance. Values <= 0 are
	// treated as 1, so the zero value of the struct is usable. The
	// field is the kernel's tunable bandwidth, typically chosen by an
	// external cross-validation over Score.
	Scaling float64

	// Src is the randomness source for Draw. Nil means the shared
	// global source.
	Src rand.Source

	sample *pop.Sample
	mean   []float64
	chol   *mat.Cholesky
	fitted bool
}

func NewMultivariateNormal() *MultivariateNormal {
	return &MultivariateNormal{Scaling: 1}
}

func (m *MultivariateNormal) scaling() float64 {
	if m.Scaling <= 0 {
		return 1
	}
	return m.Scaling
}

// Fit computes the weighted mean and scaled weighted covariance of the
// population. Fitting an empty population is rejected; one or two
// particles are accepted, with the ridge term of the regularized
// factorization standing in for the missing spread.
func (m *MultivariateNormal) Fit(s *pop.Sample) error {
	n := s.Len()
	if n == 0 {
		return &NotEnoughParticlesError{Have: 0}
	}
	m.sample = s
	m.mean = nil
	m.chol = nil
	d := s.Dim()
	if d == 0 {
		m.fitted = true
		return nil
	}

	w := s.Weights()
	x := s.Matrix()
	mean := make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, x)
		for i, v := range col {
			mean[j] += v * w[i]
		}
	}

	cov := utils.WeightedCovariance(x, w)
	utils.ScaleSym(cov, m.scaling())
	chol, _ := utils.RegularizedCholesky(cov)

	m.mean = mean
	m.chol = chol
	m.fitted = true
	return nil
}

func (m *MultivariateNormal) Draw() (pop.Particle, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if m.sample.Dim() == 0 {
		return pop.Particle{}, nil
	}
	x := distmv.NormalRand(nil, m.mean, m.chol, m.Src)
	return m.sample.FromRow(x), nil
}

func (m *MultivariateNormal) Density(p pop.Particle) (float64, error) {
	if !m.fitted {
		return 0, ErrNotFitted
	}
	if m.sample.Dim() == 0 {
		return 1, nil
	}
	x, err := m.sample.Vectorize(p)
	if err != nil {
		return 0, err
	}
	return math.Exp(distmv.NormalLogProb(x, m.mean, m.chol)), nil
}

func (m *MultivariateNormal) DensityBatch(ps []pop.Particle) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(ps))
	for i, p := range ps {
		v, err := m.Density(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *MultivariateNormal) Score(s *pop.Sample) (float64, error) {
	return score(m, s)
}

func (m *MultivariateNormal) MeanCV() (float64, error) {
	if !m.fitted {
		return 0, ErrNotFitted
	}
	return meanCV(m.fresh, m.sample, m.Src)
}

func (m *MultivariateNormal) RequiredSampleSize(targetCV float64) (int, error) {
	if !m.fitted {
		return 0, ErrNotFitted
	}
	return requiredSampleSize(m.fresh, m.sample, targetCV, m.Src)
}

// fresh builds an unfitted kernel with the same configuration, used by
// the bootstrap diagnostics so the receiver's fitted state stays
// untouched.
func (m *MultivariateNormal) fresh() Transition {
	return &MultivariateNormal{Scaling: m.Scaling, Src: m.Src}
}

func (m *MultivariateNormal) Params() map[string]float64 {
	return map[string]float64{"scaling": m.scaling()}
}

func (m *MultivariateNormal) SetParams(params map[string]float64) error {
	for k, v := range params {
		switch k {
		case "scaling":
			if v <= 0 {
				return fmt.Errorf("transition: scaling must be positive, got %v", v)
			}
			m.Scaling = v
		default:
			return fmt.Errorf("transition: unknown parameter %q", k)
		}
	}
	return nil
}
