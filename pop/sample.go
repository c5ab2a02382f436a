// Package pop holds weighted particle populations as produced by one
// ABC-SMC generation: named parameter vectors paired with importance
// weights that sum to one.
package pop

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Havaldar/pyABC/stats"
)

var (
	ErrInconsistentNames = errors.New("pop: particles carry different parameter names")
	ErrUnknownParameter  = errors.New("pop: unknown parameter")
	ErrMissingParameter  = errors.New("pop: missing parameter")
)

// Particle is one parameter vector, keyed by parameter name. Parameter
// order carries no meaning; positional layouts are derived from the
// owning Sample's canonical name order.
type Particle map[string]float64

// Sample is an immutable weighted particle population. Parameter names
// are canonicalized (sorted) at construction so that positional views
// are stable regardless of how the particles were assembled.
type Sample struct {
	names   []string
	x       *mat.Dense // n×d, canonical column order; nil when d == 0
	weights []float64
}

// New builds a Sample from particles and weights. All particles must
// carry the same parameter names. A nil weight slice means uniform
// weights. Non-empty weight vectors must be non-negative and sum to 1
// within 1e-5; the empty population (zero particles) is constructible
// and carries no weights.
func New(particles []Particle, weights []float64) (*Sample, error) {
	n := len(particles)
	if weights == nil {
		weights = make([]float64, n)
		for i := range weights {
			weights[i] = 1 / float64(n)
		}
	}
	if len(weights) != n {
		return nil, stats.ErrLengthMismatch
	}

	var names []string
	if n > 0 {
		for name := range particles[0] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, p := range particles {
			if len(p) != len(names) {
				return nil, ErrInconsistentNames
			}
			for _, name := range names {
				if _, ok := p[name]; !ok {
					return nil, ErrInconsistentNames
				}
			}
		}
		if err := stats.CheckWeights(weights); err != nil {
			return nil, err
		}
	}

	d := len(names)
	var x *mat.Dense
	if n > 0 && d > 0 {
		x = mat.NewDense(n, d, nil)
		for i, p := range particles {
			for j, name := range names {
				x.Set(i, j, p[name])
			}
		}
	}
	w := make([]float64, n)
	copy(w, weights)
	return &Sample{names: names, x: x, weights: w}, nil
}

// Len returns the number of particles.
func (s *Sample) Len() int { return len(s.weights) }

// Dim returns the number of parameters per particle.
func (s *Sample) Dim() int { return len(s.names) }

// Names returns the canonical parameter order.
func (s *Sample) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Weights returns a copy of the particle weights.
func (s *Sample) Weights() []float64 {
	out := make([]float64, len(s.weights))
	copy(out, s.weights)
	return out
}

// Weight returns the weight of particle i.
func (s *Sample) Weight(i int) float64 { return s.weights[i] }

// Matrix returns a read-only n×d view of the population in canonical
// column order, or nil for zero-dimensional samples.
func (s *Sample) Matrix() mat.Matrix {
	if s.x == nil {
		return nil
	}
	return s.x
}

// Row returns particle i as a positional vector in canonical order.
func (s *Sample) Row(i int) []float64 {
	out := make([]float64, len(s.names))
	if s.x != nil {
		mat.Row(out, i, s.x)
	}
	return out
}

// Particle returns particle i in named form.
func (s *Sample) Particle(i int) Particle {
	p := make(Particle, len(s.names))
	for j, name := range s.names {
		p[name] = s.x.At(i, j)
	}
	return p
}

// FromRow converts a positional vector in canonical order back into a
// named particle.
func (s *Sample) FromRow(row []float64) Particle {
	p := make(Particle, len(s.names))
	for j, name := range s.names {
		p[name] = row[j]
	}
	return p
}

// Vectorize reindexes a named particle to the sample's canonical
// parameter order. The particle must carry exactly the fitted names.
func (s *Sample) Vectorize(p Particle) ([]float64, error) {
	if len(p) != len(s.names) {
		for name := range p {
			if !s.hasName(name) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
			}
		}
		return nil, fmt.Errorf("%w: want %d parameters, got %d", ErrMissingParameter, len(s.names), len(p))
	}
	out := make([]float64, len(s.names))
	for j, name := range s.names {
		v, ok := p[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingParameter, name)
		}
		out[j] = v
	}
	return out, nil
}

func (s *Sample) hasName(name string) bool {
	i := sort.SearchStrings(s.names, name)
	return i < len(s.names) && s.names[i] == name
}

// Bootstrap draws m particles with replacement, with probability
// proportional to weight, and returns them as a fresh uniformly
// weighted Sample. The receiver is not modified.
func (s *Sample) Bootstrap(m int, src rand.Source) *Sample {
	names := make([]string, len(s.names))
	copy(names, s.names)
	if len(s.weights) == 0 || m == 0 {
		return &Sample{names: names, x: nil, weights: make([]float64, 0)}
	}
	picker := distuv.NewCategorical(s.weights, src)

	d := len(s.names)
	var x *mat.Dense
	if m > 0 && d > 0 {
		x = mat.NewDense(m, d, nil)
	}
	row := make([]float64, d)
	for i := 0; i < m; i++ {
		idx := int(picker.Rand())
		if x != nil {
			mat.Row(row, idx, s.x)
			x.SetRow(i, row)
		}
	}
	w := make([]float64, m)
	for i := range w {
		w[i] = 1 / float64(m)
	}
	return &Sample{names: names, x: x, weights: w}
}
