package popgen

import (
	"fmt"
	"math"

	"fwdpop/internal/model"
	"fwdpop/internal/rng"
)

// SampleDiploid produces the next generation of pop by fitness-proportional
// Wright-Fisher sampling followed by recombination and mutation, and returns
// the mean fitness of the parental generation.
//
// Offspring are staged in a separate buffer; if any step fails, pop is left
// exactly as it was. Mutation counts are not touched: call UpdateMutations
// (or pop.Update) afterwards.
func SampleDiploid(r rng.Source, pop *Population, nextN int, mu float64,
	mm MutationModel, rec RecombinationModel, fit FitnessModel,
) (float64, error) {
	if err := checkStepArgs(nextN, mu, mm, fit != nil); err != nil {
		return 0, err
	}
	if rec == nil {
		rec = NoRecombination{}
	}

	lookup, wbar, err := fitnessLookup(pop.Diploids, pop.Gametes, pop.Mutations, fit)
	if err != nil {
		return 0, err
	}
	pop.Gametes.Prune()

	gcp := pop.Gametes.checkpoint()
	mcp := pop.Mutations.checkpoint()
	pop.Gametes.zeroCounts()

	generation := pop.Generation + 1
	m := meiosis{r: r, muts: pop.Mutations, mu: mu, mm: mm, generation: generation}
	next := make([]model.Diploid, nextN)
	for i := range next {
		p1 := pop.Diploids[lookup.Sample(r)]
		p2 := pop.Diploids[lookup.Sample(r)]
		a, err := m.transmit(pop.Gametes, p1, pop.Gametes, rec)
		if err != nil {
			pop.Gametes.rollback(gcp)
			pop.Mutations.rollback(mcp)
			return 0, err
		}
		pop.Gametes.Gametes[a].N++
		b, err := m.transmit(pop.Gametes, p2, pop.Gametes, rec)
		if err != nil {
			pop.Gametes.rollback(gcp)
			pop.Mutations.rollback(mcp)
			return 0, err
		}
		pop.Gametes.Gametes[b].N++
		next[i] = model.Diploid{First: a, Second: b}
	}

	pop.Diploids = next
	pop.N = nextN
	pop.Generation = generation
	return wbar, nil
}

// SampleDiploidMeta advances every deme of mp by one generation. Each parent
// of an offspring in deme d comes from deme mig.SourceDeme(r, d); a nil
// migration model keeps all parents local. Demes are processed in order and
// the per-deme mean fitness of the parental generation is returned.
func SampleDiploidMeta(r rng.Source, mp *Metapopulation, nextNs []int, mu float64,
	mm MutationModel, rec RecombinationModel, fits []FitnessModel, mig MigrationModel,
) ([]float64, error) {
	if len(nextNs) != len(mp.Demes) || len(fits) != len(mp.Demes) {
		return nil, fmt.Errorf("%w: %d demes, %d sizes, %d fitness models", ErrInvariantViolation, len(mp.Demes), len(nextNs), len(fits))
	}
	for d, n := range nextNs {
		if err := checkStepArgs(n, mu, mm, fits[d] != nil); err != nil {
			return nil, fmt.Errorf("deme %d: %w", d, err)
		}
	}
	if rec == nil {
		rec = NoRecombination{}
	}

	lookups := make([]*rng.Lookup, len(mp.Demes))
	wbars := make([]float64, len(mp.Demes))
	for d := range mp.Demes {
		deme := &mp.Demes[d]
		lookup, wbar, err := fitnessLookup(deme.Diploids, deme.Gametes, mp.Mutations, fits[d])
		if err != nil {
			return nil, fmt.Errorf("deme %d: %w", d, err)
		}
		lookups[d] = lookup
		wbars[d] = wbar
	}
	for d := range mp.Demes {
		mp.Demes[d].Gametes.Prune()
	}

	gcps := make([]gameteCheckpoint, len(mp.Demes))
	for d := range mp.Demes {
		gcps[d] = mp.Demes[d].Gametes.checkpoint()
	}
	mcp := mp.Mutations.checkpoint()
	rollback := func() {
		for d := range mp.Demes {
			mp.Demes[d].Gametes.rollback(gcps[d])
		}
		mp.Mutations.rollback(mcp)
	}
	for d := range mp.Demes {
		mp.Demes[d].Gametes.zeroCounts()
	}

	generation := mp.Generation + 1
	m := meiosis{r: r, muts: mp.Mutations, mu: mu, mm: mm, generation: generation}
	next := make([][]model.Diploid, len(mp.Demes))
	for d := range mp.Demes {
		dst := mp.Demes[d].Gametes
		next[d] = make([]model.Diploid, nextNs[d])
		for i := range next[d] {
			var pair [2]int
			for k := range pair {
				src := d
				if mig != nil {
					src = mig.SourceDeme(r, d)
				}
				if src < 0 || src >= len(mp.Demes) {
					rollback()
					return nil, fmt.Errorf("%w: migration to deme %d of %d", ErrIndexOutOfRange, src, len(mp.Demes))
				}
				from := &mp.Demes[src]
				parent := from.Diploids[lookups[src].Sample(r)]
				g, err := m.transmit(from.Gametes, parent, dst, rec)
				if err != nil {
					rollback()
					return nil, err
				}
				dst.Gametes[g].N++
				pair[k] = g
			}
			next[d][i] = model.Diploid{First: pair[0], Second: pair[1]}
		}
	}

	for d := range mp.Demes {
		mp.Demes[d].Diploids = next[d]
		mp.Demes[d].N = nextNs[d]
	}
	mp.Generation = generation
	return wbars, nil
}

func checkStepArgs(nextN int, mu float64, mm MutationModel, hasFitness bool) error {
	if nextN <= 0 {
		return fmt.Errorf("%w: next generation size must be > 0, got %d", ErrInvariantViolation, nextN)
	}
	if mu < 0 || math.IsNaN(mu) {
		return fmt.Errorf("%w: mutation rate must be >= 0, got %v", ErrInvariantViolation, mu)
	}
	if mu > 0 && mm == nil {
		return fmt.Errorf("%w: mutation model is required for a positive mutation rate", ErrInvariantViolation)
	}
	if !hasFitness {
		return fmt.Errorf("%w: fitness model is required", ErrInvariantViolation)
	}
	return nil
}

// fitnessLookup evaluates every diploid and returns a sampler over them
// together with the mean fitness.
func fitnessLookup(diploids []model.Diploid, gametes *GametePool, muts *MutationPool, fit FitnessModel) (*rng.Lookup, float64, error) {
	if len(diploids) == 0 {
		return nil, 0, fmt.Errorf("%w: no parents", ErrInvalidFitnessDistribution)
	}
	weights := make([]float64, len(diploids))
	total := 0.0
	for i, d := range diploids {
		w := fit.Fitness(d, gametes.Gametes, muts.Mutations)
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, 0, fmt.Errorf("%w: diploid %d has fitness %v", ErrInvalidFitnessDistribution, i, w)
		}
		w = max(0, w)
		weights[i] = w
		total += w
	}
	lookup, err := rng.NewLookup(weights)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: total fitness %v", ErrInvalidFitnessDistribution, total)
	}
	return lookup, total / float64(len(diploids)), nil
}

// meiosis carries the per-step state needed to build offspring gametes.
type meiosis struct {
	r          rng.Source
	muts       *MutationPool
	mu         float64
	mm         MutationModel
	generation uint32
}

// transmit builds one gamete from parent in dst: the parental chromosomes
// are swapped with probability 1/2 before recombination.
func (m *meiosis) transmit(src *GametePool, parent model.Diploid, dst *GametePool, rec RecombinationModel) (int, error) {
	g1, g2 := parent.First, parent.Second
	if m.r.Uniform() < 0.5 {
		g1, g2 = g2, g1
	}
	g, _, err := m.gamete(src, g1, g2, dst, m.mu, m.mm, rec)
	return g, err
}

// gamete recombines g1 and g2 from src, adds a Poisson number of new
// mutations and interns the result in dst. It also returns the number of
// crossovers. The returned gamete's count is not incremented.
func (m *meiosis) gamete(src *GametePool, g1, g2 int, dst *GametePool, mu float64, mm MutationModel, rec RecombinationModel) (int, int, error) {
	muts := m.muts
	breakpoints := rec.Breakpoints(m.r, &src.Gametes[g1], &src.Gametes[g2], muts.Mutations)
	nmuts := m.r.Poisson(mu)

	if len(breakpoints) == 0 && nmuts == 0 && src == dst {
		return g1, 0, nil
	}

	var neutral, selected []int
	if len(breakpoints) == 0 {
		clone := src.Gametes[g1].Clone()
		neutral, selected = clone.Neutral, clone.Selected
	} else {
		neutral, selected = Recombine(breakpoints, &src.Gametes[g1], &src.Gametes[g2], muts.Mutations)
	}
	for k := 0; k < nmuts; k++ {
		key, err := mm.NewMutation(m.r, muts, m.generation)
		if err != nil {
			return 0, 0, err
		}
		if muts.Mutations[key].Neutral {
			neutral = insertSorted(neutral, key, muts.Mutations)
		} else {
			selected = insertSorted(selected, key, muts.Mutations)
		}
	}
	return dst.Intern(neutral, selected), len(breakpoints), nil
}
