package pop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/Havaldar/pyABC/stats"
)

func TestNewCanonicalOrder(t *testing.T) {
	s, err := New([]Particle{
		{"b": 2, "a": 1},
		{"a": 3, "b": 4},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, s.Names())
	assert.Equal(t, []float64{1, 2}, s.Row(0))
	assert.Equal(t, []float64{3, 4}, s.Row(1))
}

func TestNewUniformWeightsDefault(t *testing.T) {
	s, err := New([]Particle{{"a": 1}, {"a": 2}, {"a": 3}, {"a": 4}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, s.Weights())
}

func TestNewRejectsInconsistentNames(t *testing.T) {
	_, err := New([]Particle{{"a": 1}, {"b": 2}}, nil)
	assert.ErrorIs(t, err, ErrInconsistentNames)

	_, err = New([]Particle{{"a": 1}, {"a": 2, "b": 3}}, nil)
	assert.ErrorIs(t, err, ErrInconsistentNames)
}

func TestNewRejectsBadWeights(t *testing.T) {
	particles := []Particle{{"a": 1}, {"a": 2}}
	_, err := New(particles, []float64{0.4, 0.4})
	assert.ErrorIs(t, err, stats.ErrWeightsNotNormalized)
	_, err = New(particles, []float64{0.5})
	assert.ErrorIs(t, err, stats.ErrLengthMismatch)
}

func TestNewEmpty(t *testing.T) {
	s, err := New(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Dim())
}

func TestNewNoParameters(t *testing.T) {
	s, err := New([]Particle{{}, {}, {}, {}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 0, s.Dim())
	assert.Nil(t, s.Matrix())
}

func TestVectorizeReindexes(t *testing.T) {
	s, err := New([]Particle{{"a": 1, "b": 2, "c": 3}}, []float64{1})
	require.NoError(t, err)

	v, err := s.Vectorize(Particle{"c": 30, "a": 10, "b": 20})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30}, v)
}

func TestVectorizeErrors(t *testing.T) {
	s, err := New([]Particle{{"a": 1, "b": 2}}, []float64{1})
	require.NoError(t, err)

	_, err = s.Vectorize(Particle{"a": 1, "z": 2})
	assert.Error(t, err)
	_, err = s.Vectorize(Particle{"a": 1})
	assert.ErrorIs(t, err, ErrMissingParameter)
	_, err = s.Vectorize(Particle{"a": 1, "b": 2, "c": 3})
	assert.ErrorIs(t, err, ErrUnknownParameter)
}

func TestParticleRoundTrip(t *testing.T) {
	s, err := New([]Particle{{"a": 1.5, "b": -2}}, []float64{1})
	require.NoError(t, err)
	assert.Equal(t, Particle{"a": 1.5, "b": -2}, s.Particle(0))
	assert.Equal(t, Particle{"a": 7.0, "b": 8.0}, s.FromRow([]float64{7, 8}))
}

func TestBootstrapShapeAndWeights(t *testing.T) {
	s, err := New([]Particle{{"a": 1}, {"a": 2}, {"a": 3}}, nil)
	require.NoError(t, err)

	boot := s.Bootstrap(10, rand.NewSource(1))
	assert.Equal(t, 10, boot.Len())
	assert.Equal(t, 1, boot.Dim())
	for _, w := range boot.Weights() {
		assert.InDelta(t, 0.1, w, 1e-12)
	}
	// Receiver untouched.
	assert.Equal(t, 3, s.Len())
}

func TestBootstrapFollowsWeights(t *testing.T) {
	s, err := New([]Particle{{"a": 1}, {"a": 2}, {"a": 3}}, []float64{0, 1, 0})
	require.NoError(t, err)

	boot := s.Bootstrap(25, rand.NewSource(7))
	for i := 0; i < boot.Len(); i++ {
		assert.Equal(t, 2.0, boot.Row(i)[0])
	}
}
