package transition

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/Havaldar/pyABC/pop"
	"github.com/Havaldar/pyABC/stats"
)

// nrBootstrap is the number of resampling replicates behind MeanCV and
// RequiredSampleSize. Small on purpose: these run once per SMC
// generation and only need the order of magnitude of the variation.
const nrBootstrap = 5

// score is the shared Score implementation: the weighted mean log
// density of the kernel over a held-out sample.
func score(t Transition, s *pop.Sample) (float64, error) {
	total := 0.0
	for i := 0; i < s.Len(); i++ {
		v, err := t.Density(s.Particle(i))
		if err != nil {
			return 0, err
		}
		total += s.Weight(i) * math.Log(v)
	}
	return total, nil
}

// bootstrapCV measures how much the kernel's density field wobbles
// under resampling: it refits scratch kernels on bootstrap replicates
// of the given size and reports the weight-averaged coefficient of
// variation of the density across replicates, point by point over the
// original particles. Only the scratch kernels are fitted; s is read
// but never modified.
func bootstrapCV(fresh func() Transition, s *pop.Sample, size int, src rand.Source) (float64, error) {
	n := s.Len()
	particles := make([]pop.Particle, n)
	for i := range particles {
		particles[i] = s.Particle(i)
	}

	dens := make([][]float64, nrBootstrap)
	for b := range dens {
		boot := s.Bootstrap(size, src)
		k := fresh()
		if err := k.Fit(boot); err != nil {
			return 0, err
		}
		vals, err := k.DensityBatch(particles)
		if err != nil {
			return 0, err
		}
		dens[b] = vals
	}

	acc, mass := 0.0, 0.0
	bn := float64(nrBootstrap)
	for i := 0; i < n; i++ {
		mean := 0.0
		for b := range dens {
			mean += dens[b][i]
		}
		mean /= bn
		if mean <= 0 || math.IsInf(mean, 0) || math.IsNaN(mean) {
			continue
		}
		v := 0.0
		for b := range dens {
			d := dens[b][i] - mean
			v += d * d
		}
		cv := math.Sqrt(v/bn) / mean
		if math.IsInf(cv, 0) || math.IsNaN(cv) {
			continue
		}
		acc += s.Weight(i) * cv
		mass += s.Weight(i)
	}
	if mass == 0 {
		return math.Inf(1), nil
	}
	return acc / mass, nil
}

// hasSpread reports whether any parameter takes more than one value
// across the population. A zero-spread population yields identical
// density fields under every bootstrap replicate, so no coefficient of
// variation can be measured from it.
func hasSpread(s *pop.Sample) bool {
	n := s.Len()
	x := s.Matrix()
	w := s.Weights()
	col := make([]float64, n)
	for j := 0; j < s.Dim(); j++ {
		mat.Col(col, j, x)
		sd, err := stats.Std(col, w)
		if err == nil && sd > 0 {
			return true
		}
	}
	return false
}

func meanCV(fresh func() Transition, s *pop.Sample, src rand.Source) (float64, error) {
	if s.Len() == 0 || s.Dim() == 0 {
		return 0, &NotEnoughParticlesError{Have: s.Len()}
	}
	return bootstrapCV(fresh, s, s.Len(), src)
}

// requiredSampleSize inverts the bootstrap CV-versus-size curve at the
// target: it measures the CV at a few geometrically spaced sizes, fits
// the scaling law cv(n) = a·n^b on the log-log scale and solves for
// the size meeting targetCV.
//
// Policy for degenerate populations: zero particles, a population
// without parameters, or a population with zero spread (every particle
// identical) cannot support a variance estimate and return
// NotEnoughParticlesError; a single particle answers 1 (no decay can
// be measured from one point, so the current size is requested back).
// If the fitted curve does not decrease with size, the current size is
// returned unchanged.
func requiredSampleSize(fresh func() Transition, s *pop.Sample, targetCV float64, src rand.Source) (int, error) {
	n := s.Len()
	if n == 0 || s.Dim() == 0 {
		return 0, &NotEnoughParticlesError{Have: n}
	}
	if targetCV <= 0 {
		return 0, fmt.Errorf("transition: target coefficient of variation must be positive, got %v", targetCV)
	}
	if n == 1 {
		return 1, nil
	}
	if !hasSpread(s) {
		return 0, &NotEnoughParticlesError{Have: n}
	}

	lo := n / 2
	if lo < 2 {
		lo = 2
	}
	hi := 4 * n
	const nSizes = 5
	ratio := math.Pow(float64(hi)/float64(lo), 1/float64(nSizes-1))

	var logN, logCV []float64
	prev := 0
	for t := 0; t < nSizes; t++ {
		size := int(math.Round(float64(lo) * math.Pow(ratio, float64(t))))
		if size <= prev {
			size = prev + 1
		}
		prev = size
		cv, err := bootstrapCV(fresh, s, size, src)
		if err != nil {
			return 0, err
		}
		if cv <= 0 || math.IsInf(cv, 0) || math.IsNaN(cv) {
			continue
		}
		logN = append(logN, math.Log(float64(size)))
		logCV = append(logCV, math.Log(cv))
	}
	if len(logN) < 2 {
		return n, nil
	}

	alpha, beta := stat.LinearRegression(logN, logCV, nil, false)
	if beta >= 0 || math.IsNaN(alpha) || math.IsNaN(beta) {
		return n, nil
	}

	req := math.Exp((math.Log(targetCV) - alpha) / beta)
	if math.IsNaN(req) || req < 1 {
		req = 1
	}
	if limit := float64(10 * n); req > limit {
		req = limit
	}
	return int(math.Ceil(req)), nil
}
