package rng

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorIsDeterministicForSeed(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 200; i++ {
		require.Equal(t, a.Uniform(), b.Uniform())
		require.Equal(t, a.Poisson(3.5), b.Poisson(3.5))
		require.Equal(t, a.Poisson(40), b.Poisson(40))
		require.Equal(t, a.Binomial(20, 0.3), b.Binomial(20, 0.3))
	}
}

func TestReseedRestartsStream(t *testing.T) {
	g := New(7)
	first := []float64{g.Uniform(), g.Uniform(), g.Uniform()}
	g.Reseed(7)
	second := []float64{g.Uniform(), g.Uniform(), g.Uniform()}
	assert.Equal(t, first, second)
	assert.Equal(t, int64(7), g.Seed())
}

func TestPoissonMeans(t *testing.T) {
	g := New(1)
	for _, mean := range []float64{0.5, 4, 25, 200} {
		const draws = 20000
		sum := 0
		for i := 0; i < draws; i++ {
			k := g.Poisson(mean)
			require.GreaterOrEqual(t, k, 0)
			sum += k
		}
		got := float64(sum) / draws
		assert.InDelta(t, mean, got, 4*math.Sqrt(mean/draws)+0.01, "mean=%v", mean)
	}
}

func TestPoissonZeroMean(t *testing.T) {
	g := New(1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, 0, g.Poisson(0))
	}
}

func TestBinomialBoundsAndMean(t *testing.T) {
	g := New(3)
	assert.Equal(t, 0, g.Binomial(10, 0))
	assert.Equal(t, 10, g.Binomial(10, 1))
	assert.Equal(t, 0, g.Binomial(0, 0.5))

	const draws = 20000
	for _, p := range []float64{0.1, 0.5, 0.8} {
		sum := 0
		for i := 0; i < draws; i++ {
			k := g.Binomial(30, p)
			require.GreaterOrEqual(t, k, 0)
			require.LessOrEqual(t, k, 30)
			sum += k
		}
		assert.InDelta(t, 30*p, float64(sum)/draws, 0.1, "p=%v", p)
	}
}

func TestFlatRange(t *testing.T) {
	g := New(9)
	for i := 0; i < 1000; i++ {
		x := g.Flat(1, 2)
		require.GreaterOrEqual(t, x, 1.0)
		require.Less(t, x, 2.0)
	}
}

func TestLookupFollowsWeights(t *testing.T) {
	g := New(11)
	lookup, err := NewLookup([]float64{1, 0, 3})
	require.NoError(t, err)
	require.Equal(t, 3, lookup.Len())

	counts := make([]int, 3)
	const draws = 40000
	for i := 0; i < draws; i++ {
		counts[lookup.Sample(g)]++
	}
	assert.Zero(t, counts[1])
	assert.InDelta(t, 0.25, float64(counts[0])/draws, 0.02)
	assert.InDelta(t, 0.75, float64(counts[2])/draws, 0.02)
}

func TestLookupRejectsEmptyOrZeroWeights(t *testing.T) {
	_, err := NewLookup(nil)
	assert.ErrorIs(t, err, ErrNoWeight)
	_, err = NewLookup([]float64{0, 0})
	assert.ErrorIs(t, err, ErrNoWeight)
	_, err = NewLookup([]float64{-1, 0})
	assert.ErrorIs(t, err, ErrNoWeight)
}
