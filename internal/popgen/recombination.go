package popgen

import (
	"math"
	"sort"

	"fwdpop/internal/model"
	"fwdpop/internal/rng"
)

// RecombinationModel returns the sorted crossover positions for one meiosis
// between g1 and g2. An empty result means no crossover.
type RecombinationModel interface {
	Breakpoints(r rng.Source, g1, g2 *model.Gamete, muts []model.Mutation) []float64
}

// RecombinationFunc adapts a function to RecombinationModel.
type RecombinationFunc func(r rng.Source, g1, g2 *model.Gamete, muts []model.Mutation) []float64

func (f RecombinationFunc) Breakpoints(r rng.Source, g1, g2 *model.Gamete, muts []model.Mutation) []float64 {
	return f(r, g1, g2, muts)
}

// PoissonCrossover draws a Poisson number of crossovers with mean Rate,
// placed uniformly on [Min, Max).
type PoissonCrossover struct {
	Rate float64
	Min  float64
	Max  float64
}

func (p PoissonCrossover) Breakpoints(r rng.Source, _, _ *model.Gamete, _ []model.Mutation) []float64 {
	n := r.Poisson(p.Rate)
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = r.Flat(p.Min, p.Max)
	}
	sort.Float64s(out)
	return out
}

// NoRecombination never produces a crossover.
type NoRecombination struct{}

func (NoRecombination) Breakpoints(rng.Source, *model.Gamete, *model.Gamete, []model.Mutation) []float64 {
	return nil
}

// Recombine builds the offspring lists by copying from g1 up to the first
// breakpoint, then from g2 up to the next, and so on. The breakpoints must be
// sorted. Both results are newly allocated.
func Recombine(breakpoints []float64, g1, g2 *model.Gamete, muts []model.Mutation) (neutral, selected []int) {
	neutral = mergeAt(breakpoints, g1.Neutral, g2.Neutral, muts)
	selected = mergeAt(breakpoints, g1.Selected, g2.Selected, muts)
	return neutral, selected
}

func mergeAt(breakpoints []float64, a, b []int, muts []model.Mutation) []int {
	out := make([]int, 0, max(len(a), len(b)))
	ia, ib := 0, 0
	fromA := true
	for j := 0; j <= len(breakpoints); j++ {
		limit := math.Inf(1)
		if j < len(breakpoints) {
			limit = breakpoints[j]
		}
		for ia < len(a) && muts[a[ia]].Pos <= limit {
			if fromA {
				out = append(out, a[ia])
			}
			ia++
		}
		for ib < len(b) && muts[b[ib]].Pos <= limit {
			if !fromA {
				out = append(out, b[ib])
			}
			ib++
		}
		fromA = !fromA
	}
	return out
}
