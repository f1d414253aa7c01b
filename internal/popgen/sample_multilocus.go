package popgen

import (
	"fmt"
	"math"

	"fwdpop/internal/model"
	"fwdpop/internal/rng"
)

// SampleDiploidMultilocus advances a multilocus population by one
// generation. Locus l uses mus[l], mms[l] and recs[l]. Between loci l and
// l+1 the copied strand switches when locus l had an odd number of
// crossovers, and again with probability betweenRates[l]. The mean fitness
// of the parental generation is returned.
func SampleDiploidMultilocus(r rng.Source, mp *MultilocusPopulation, nextN int, mus []float64,
	mms []MutationModel, recs []RecombinationModel, betweenRates []float64, fit MultilocusFitnessModel,
) (float64, error) {
	if len(mus) != mp.Loci || len(mms) != mp.Loci || len(recs) != mp.Loci {
		return 0, fmt.Errorf("%w: %d loci but %d rates, %d mutation models, %d recombination models",
			ErrInvariantViolation, mp.Loci, len(mus), len(mms), len(recs))
	}
	if mp.Loci > 0 && len(betweenRates) != mp.Loci-1 {
		return 0, fmt.Errorf("%w: %d loci need %d between-locus rates, got %d", ErrInvariantViolation, mp.Loci, mp.Loci-1, len(betweenRates))
	}
	for l := range mus {
		if err := checkStepArgs(nextN, mus[l], mms[l], fit != nil); err != nil {
			return 0, fmt.Errorf("locus %d: %w", l, err)
		}
		if recs[l] == nil {
			return 0, fmt.Errorf("locus %d: %w: recombination model is required", l, ErrInvariantViolation)
		}
	}
	for l, rate := range betweenRates {
		if rate < 0 || rate > 1 || math.IsNaN(rate) {
			return 0, fmt.Errorf("%w: between-locus rate %d must be in [0, 1], got %v", ErrInvariantViolation, l, rate)
		}
	}

	weights := make([]float64, len(mp.Diploids))
	total := 0.0
	for i, ind := range mp.Diploids {
		w := fit.Fitness(ind, mp.Gametes.Gametes, mp.Mutations.Mutations)
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return 0, fmt.Errorf("%w: individual %d has fitness %v", ErrInvalidFitnessDistribution, i, w)
		}
		weights[i] = max(0, w)
		total += weights[i]
	}
	lookup, err := rng.NewLookup(weights)
	if err != nil {
		return 0, fmt.Errorf("%w: total fitness %v", ErrInvalidFitnessDistribution, total)
	}
	wbar := total / float64(len(mp.Diploids))
	mp.Gametes.Prune()

	gcp := mp.Gametes.checkpoint()
	mcp := mp.Mutations.checkpoint()
	mp.Gametes.zeroCounts()

	generation := mp.Generation + 1
	m := meiosis{r: r, muts: mp.Mutations, generation: generation}
	next := make([][]model.Diploid, nextN)
	for i := range next {
		p1 := mp.Diploids[lookup.Sample(r)]
		p2 := mp.Diploids[lookup.Sample(r)]
		first, err := m.multilocus(mp.Gametes, p1, mus, mms, recs, betweenRates)
		if err != nil {
			mp.Gametes.rollback(gcp)
			mp.Mutations.rollback(mcp)
			return 0, err
		}
		second, err := m.multilocus(mp.Gametes, p2, mus, mms, recs, betweenRates)
		if err != nil {
			mp.Gametes.rollback(gcp)
			mp.Mutations.rollback(mcp)
			return 0, err
		}
		ind := make([]model.Diploid, mp.Loci)
		for l := range ind {
			ind[l] = model.Diploid{First: first[l], Second: second[l]}
			mp.Gametes.Gametes[first[l]].N++
			mp.Gametes.Gametes[second[l]].N++
		}
		next[i] = ind
	}

	mp.Diploids = next
	mp.N = nextN
	mp.Generation = generation
	return wbar, nil
}

// multilocus builds one haploid genome, one gamete per locus, from parent.
func (m *meiosis) multilocus(pool *GametePool, parent []model.Diploid, mus []float64,
	mms []MutationModel, recs []RecombinationModel, betweenRates []float64,
) ([]int, error) {
	out := make([]int, len(parent))
	swap := m.r.Uniform() < 0.5
	for l, d := range parent {
		if l > 0 && m.r.Binomial(1, betweenRates[l-1]) == 1 {
			swap = !swap
		}
		g1, g2 := d.First, d.Second
		if swap {
			g1, g2 = g2, g1
		}
		g, crossovers, err := m.gamete(pool, g1, g2, pool, mus[l], mms[l], recs[l])
		if err != nil {
			return nil, fmt.Errorf("locus %d: %w", l, err)
		}
		out[l] = g
		if crossovers%2 == 1 {
			swap = !swap
		}
	}
	return out, nil
}
