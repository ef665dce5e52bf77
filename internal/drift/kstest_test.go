package drift

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKolmogorovSmirnovIdenticalSamples(t *testing.T) {
	a := []float64{0.01, -0.02, 0.03, 0.00, -0.01, 0.02, 0.015, -0.005}
	res := KolmogorovSmirnov(a, a, 0.05)
	assert.False(t, res.Reject)
	assert.Greater(t, res.PValue, 0.05)
}

func TestKolmogorovSmirnovShiftedDistributions(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := make([]float64, 200)
	b := make([]float64, 200)
	for i := range a {
		a[i] = rng.NormFloat64()
		b[i] = rng.NormFloat64() + 2 // 明显平移
	}
	res := KolmogorovSmirnov(a, b, 0.05)
	assert.True(t, res.Reject)
	assert.Less(t, res.PValue, 0.01)
	assert.Greater(t, res.Statistic, 0.5)
}

func TestKolmogorovSmirnovSameDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := make([]float64, 300)
	b := make([]float64, 300)
	for i := range a {
		a[i] = rng.NormFloat64()
		b[i] = rng.NormFloat64()
	}
	res := KolmogorovSmirnov(a, b, 0.01)
	assert.False(t, res.Reject, "same distribution rejected: D=%.4f p=%.6f", res.Statistic, res.PValue)
}

func TestKolmogorovSmirnovEmptyInput(t *testing.T) {
	res := KolmogorovSmirnov(nil, []float64{1, 2}, 0.05)
	assert.False(t, res.Reject)
	assert.Equal(t, 1.0, res.PValue)
}

func TestKsProbabilityBounds(t *testing.T) {
	assert.Equal(t, 1.0, ksProbability(0))
	assert.Greater(t, ksProbability(0.5), 0.9)
	assert.Less(t, ksProbability(2.0), 0.001)
}
