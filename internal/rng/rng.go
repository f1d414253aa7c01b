// Package rng provides the random-number capability consumed by the
// simulation core and a seeded implementation over math/rand.
package rng

import (
	"math"
	"math/rand"
)

// Source is the set of draws the simulation core needs. Implementations
// are owned by the caller and are not safe for concurrent use.
type Source interface {
	// Uniform returns a draw from [0, 1).
	Uniform() float64
	// Flat returns a draw from [lo, hi).
	Flat(lo, hi float64) float64
	// Intn returns a draw from [0, n).
	Intn(n int) int
	Poisson(mean float64) int
	Binomial(n int, p float64) int
}

// Generator is the default Source.
type Generator struct {
	seed int64
	r    *rand.Rand
}

func New(seed int64) *Generator {
	return &Generator{seed: seed, r: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed the generator was created with.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Reseed restarts the stream from seed.
func (g *Generator) Reseed(seed int64) {
	g.seed = seed
	g.r.Seed(seed)
}

func (g *Generator) Uniform() float64 {
	return g.r.Float64()
}

func (g *Generator) Flat(lo, hi float64) float64 {
	return lo + (hi-lo)*g.r.Float64()
}

func (g *Generator) Intn(n int) int {
	return g.r.Intn(n)
}

// Poisson uses multiplication of uniforms for small means and the PTRS
// transformed rejection sampler (Hörmann 1993) otherwise.
func (g *Generator) Poisson(mean float64) int {
	if mean <= 0 || math.IsNaN(mean) {
		return 0
	}
	if mean < 10 {
		limit := math.Exp(-mean)
		k := 0
		p := g.r.Float64()
		for p > limit {
			k++
			p *= g.r.Float64()
		}
		return k
	}

	slam := math.Sqrt(mean)
	loglam := math.Log(mean)
	b := 0.931 + 2.53*slam
	a := -0.059 + 0.02483*b
	invalpha := 1.1239 + 1.1328/(b-3.4)
	vr := 0.9277 - 3.6224/(b-2)
	for {
		u := g.r.Float64() - 0.5
		v := g.r.Float64()
		us := 0.5 - math.Abs(u)
		k := math.Floor((2*a/us+b)*u + mean + 0.43)
		if us >= 0.07 && v <= vr {
			return int(k)
		}
		if k < 0 || (us < 0.013 && v > us) {
			continue
		}
		lg, _ := math.Lgamma(k + 1)
		if math.Log(v)+math.Log(invalpha)-math.Log(a/(us*us)+b) <= -mean+k*loglam-lg {
			return int(k)
		}
	}
}

// Binomial uses the geometric waiting-time method, which is exact and
// costs O(n*min(p, 1-p)) draws.
func (g *Generator) Binomial(n int, p float64) int {
	if n <= 0 || p <= 0 {
		return 0
	}
	if p >= 1 {
		return n
	}
	if p > 0.5 {
		return n - g.Binomial(n, 1-p)
	}
	logq := math.Log1p(-p)
	x := 0
	sum := 0.0
	for {
		u := 1 - g.r.Float64()
		sum += math.Max(1, math.Ceil(math.Log(u)/logq))
		if sum > float64(n) {
			return x
		}
		x++
	}
}
