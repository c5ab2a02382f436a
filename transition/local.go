package transition

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Havaldar/pyABC/pop"
	"github.com/Havaldar/pyABC/stats"
	"github.com/Havaldar/pyABC/utils"
)

var (
	local *Local
	_     Transition  = local // Check that Local respects the Transition interface.
	_     ParamSetter = local
)

// Local is a transition kernel with per-particle adaptive bandwidth: a
// weighted mixture of Gaussians, one component per fitted particle,
// whose covariance is estimated from the particle's nearest neighbours.
// Compared to MultivariateNormal it follows multimodal and curved
// populations much more closely, at a higher fitting cost.
type Local struct {
	// Scaling multiplies every local covariance. Values <= 0 are
	// treated as 1.
	Scaling float64

	// KFraction is the fraction of the population used as neighbours
	// for each local covariance; larger populations therefore use more
	// neighbours, stabilizing the estimate. Values <= 0 are treated as
	// the default 0.25.
	KFraction float64

	// MinK is the lower bound on the neighbour count. Values <= 0 are
	// treated as the default 10. The effective count never exceeds the
	// population size.
	MinK int

	// Src is the randomness source for Draw. Nil means the shared
	// global source.
	Src rand.Source

	sample  *pop.Sample
	centers [][]float64
	chols   []*mat.Cholesky
	picker  distuv.Categorical
	fitted  bool
}

func NewLocal() *Local {
	return &Local{Scaling: 1, KFraction: 0.25, MinK: 10}
}

func (l *Local) scaling() float64 {
	if l.Scaling <= 0 {
		return 1
	}
	return l.Scaling
}

func (l *Local) kFraction() float64 {
	if l.KFraction <= 0 {
		return 0.25
	}
	return l.KFraction
}

func (l *Local) minK() int {
	if l.MinK <= 0 {
		return 10
	}
	return l.MinK
}

// neighbours returns the indices of the k nearest rows to row i
// (including i itself) and their distances, sorted ascending. Brute
// force: ABC populations are small enough that a spatial index buys
// nothing.
func neighbours(z [][]float64, i, k int) (idx []int, dist []float64) {
	n := len(z)
	d2 := make([]float64, n)
	for j := 0; j < n; j++ {
		s := 0.0
		for c := range z[i] {
			diff := z[i][c] - z[j][c]
			s += diff * diff
		}
		d2[j] = s
	}
	order := make([]int, n)
	for j := range order {
		order[j] = j
	}
	sort.Slice(order, func(a, b int) bool { return d2[order[a]] < d2[order[b]] })

	idx = order[:k]
	dist = make([]float64, k)
	for j, o := range idx {
		dist[j] = math.Sqrt(d2[o])
	}
	return idx, dist
}

// Fit estimates one covariance per particle from its weighted nearest
// neighbours. Distances are taken in scale-normalized space so that
// parameters of different magnitudes contribute comparably; the
// covariances themselves live in original parameter units.
func (l *Local) Fit(s *pop.Sample) error {
	n := s.Len()
	if n == 0 {
		return &NotEnoughParticlesError{Have: 0}
	}
	l.sample = s
	l.centers = nil
	l.chols = nil
	d := s.Dim()
	if d == 0 {
		l.fitted = true
		return nil
	}

	w := s.Weights()
	x := s.Matrix()

	// Per-dimension weighted spread; flat dimensions keep scale 1 so
	// the normalization stays well defined.
	scale := make([]float64, d)
	col := make([]float64, n)
	for j := 0; j < d; j++ {
		mat.Col(col, j, x)
		sd, err := stats.Std(col, w)
		if err != nil {
			return err
		}
		if sd <= 0 {
			sd = 1
		}
		scale[j] = sd
	}

	rows := make([][]float64, n)
	z := make([][]float64, n)
	for i := 0; i < n; i++ {
		rows[i] = s.Row(i)
		zi := make([]float64, d)
		for j := 0; j < d; j++ {
			zi[j] = rows[i][j] / scale[j]
		}
		z[i] = zi
	}

	k := int(math.Round(l.kFraction() * float64(n)))
	if k < l.minK() {
		k = l.minK()
	}
	if k > n {
		k = n
	}

	centers := make([][]float64, n)
	chols := make([]*mat.Cholesky, n)
	u := make([]float64, k)
	for i := 0; i < n; i++ {
		idx, dist := neighbours(z, i, k)
		h := dist[k-1]

		// Neighbour weights: original particle weight tapered by an
		// Epanechnikov factor of the normalized distance.
		sumU := 0.0
		for j, o := range idx {
			taper := 1.0
			if h > 0 {
				r := dist[j] / h
				taper = 1 - r*r
			}
			u[j] = w[o] * taper
			sumU += u[j]
		}
		if sumU <= 0 {
			for j := range u {
				u[j] = 1 / float64(k)
			}
			sumU = 1
		}

		cov := mat.NewSymDense(d, nil)
		for j, o := range idx {
			uw := u[j] / sumU
			if uw == 0 {
				continue
			}
			for a := 0; a < d; a++ {
				da := rows[o][a] - rows[i][a]
				for b := a; b < d; b++ {
					db := rows[o][b] - rows[i][b]
					cov.SetSym(a, b, cov.At(a, b)+uw*da*db)
				}
			}
		}
		utils.ScaleSym(cov, l.scaling())
		chol, _ := utils.RegularizedCholesky(cov)

		centers[i] = rows[i]
		chols[i] = chol
	}

	l.centers = centers
	l.chols = chols
	l.picker = distuv.NewCategorical(w, l.Src)
	l.fitted = true
	return nil
}

// Draw picks a mixture component with probability proportional to its
// particle weight, then perturbs with that component's local Gaussian.
func (l *Local) Draw() (pop.Particle, error) {
	if !l.fitted {
		return nil, ErrNotFitted
	}
	if l.sample.Dim() == 0 {
		return pop.Particle{}, nil
	}
	i := int(l.picker.Rand())
	x := distmv.NormalRand(nil, l.centers[i], l.chols[i], l.Src)
	return l.sample.FromRow(x), nil
}

// Density evaluates the mixture: Σᵢ wᵢ · N(x; xᵢ, Σᵢ), accumulated in
// log space for stability.
func (l *Local) Density(p pop.Particle) (float64, error) {
	if !l.fitted {
		return 0, ErrNotFitted
	}
	if l.sample.Dim() == 0 {
		return 1, nil
	}
	x, err := l.sample.Vectorize(p)
	if err != nil {
		return 0, err
	}
	lps := make([]float64, len(l.centers))
	for i, c := range l.centers {
		w := l.sample.Weight(i)
		if w == 0 {
			lps[i] = math.Inf(-1)
			continue
		}
		lps[i] = math.Log(w) + distmv.NormalLogProb(x, c, l.chols[i])
	}
	return math.Exp(floats.LogSumExp(lps)), nil
}

func (l *Local) DensityBatch(ps []pop.Particle) ([]float64, error) {
	if !l.fitted {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(ps))
	for i, p := range ps {
		v, err := l.Density(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (l *Local) Score(s *pop.Sample) (float64, error) {
	return score(l, s)
}

func (l *Local) MeanCV() (float64, error) {
	if !l.fitted {
		return 0, ErrNotFitted
	}
	return meanCV(l.fresh, l.sample, l.Src)
}

func (l *Local) RequiredSampleSize(targetCV float64) (int, error) {
	if !l.fitted {
		return 0, ErrNotFitted
	}
	return requiredSampleSize(l.fresh, l.sample, targetCV, l.Src)
}

func (l *Local) fresh() Transition {
	return &Local{Scaling: l.Scaling, KFraction: l.KFraction, MinK: l.MinK, Src: l.Src}
}

func (l *Local) Params() map[string]float64 {
	return map[string]float64{"scaling": l.scaling(), "k_fraction": l.kFraction()}
}

func (l *Local) SetParams(params map[string]float64) error {
	for k, v := range params {
		switch k {
		case "scaling":
			if v <= 0 {
				return fmt.Errorf("transition: scaling must be positive, got %v", v)
			}
			l.Scaling = v
		case "k_fraction":
			if v <= 0 || v > 1 {
				return fmt.Errorf("transition: k_fraction must be in (0, 1], got %v", v)
			}
			l.KFraction = v
		default:
			return fmt.Errorf("transition: unknown parameter %q", k)
		}
	}
	return nil
}
