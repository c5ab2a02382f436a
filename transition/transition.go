// Package transition models the weighted particle population of one
// ABC-SMC generation so that new candidate particles can be proposed
// and proposal densities evaluated for importance weighting.
//
// A kernel instance exclusively owns the sample it was fitted on and
// holds no locks: it is single-threaded by contract, and safe to use
// from concurrent workers as long as each worker has its own instance.
package transition

import (
	"errors"
	"fmt"

	"github.com/Havaldar/pyABC/pop"
)

// ErrNotFitted is returned by any query invoked before a successful Fit.
var ErrNotFitted = errors.New("transition: kernel not fitted")

// ErrNotEnoughParticles matches any NotEnoughParticlesError via
// errors.Is.
var ErrNotEnoughParticles = errors.New("transition: not enough particles")

// NotEnoughParticlesError signals that an operation needs more
// particles than were fitted. Unlike precondition violations this is a
// legitimate outcome the SMC loop reacts to (by accepting more
// particles), so it carries the available count.
type NotEnoughParticlesError struct {
	Have int
}

func (e *NotEnoughParticlesError) Error() string {
	return fmt.Sprintf("transition: not enough particles (have %d)", e.Have)
}

func (e *NotEnoughParticlesError) Unwrap() error {
	return ErrNotEnoughParticles
}

// Transition is the contract every kernel variant satisfies.
type Transition interface {
	// Fit replaces any previously fitted state with a model of the
	// given weighted population. The sample is owned by the kernel
	// afterwards and must not be mutated by the caller.
	Fit(s *pop.Sample) error

	// Draw proposes one new particle from the fitted distribution.
	Draw() (pop.Particle, error)

	// Density evaluates the proposal density at one particle. The
	// result depends only on named parameter values, never on the
	// order the particle was assembled in.
	Density(p pop.Particle) (float64, error)

	// DensityBatch evaluates the proposal density at several
	// particles, preserving input order.
	DensityBatch(ps []pop.Particle) ([]float64, error)

	// Score is the weighted mean log density over a held-out sample,
	// the goodness-of-fit scalar an external hyperparameter search
	// maximizes.
	Score(s *pop.Sample) (float64, error)

	// MeanCV reports the bootstrap coefficient of variation of the
	// density field at the fitted particles. It never mutates the
	// fitted state.
	MeanCV() (float64, error)

	// RequiredSampleSize estimates the population size needed to
	// bring the bootstrap coefficient of variation below targetCV.
	RequiredSampleSize(targetCV float64) (int, error)
}

// ParamSetter is the set-params/fit/score protocol an external
// grid-search collaborator drives kernels through.
type ParamSetter interface {
	Params() map[string]float64
	SetParams(params map[string]float64) error
}
