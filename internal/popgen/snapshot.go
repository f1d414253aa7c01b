package popgen

import (
	"fmt"

	"fwdpop/internal/model"
)

// Snapshot returns a deep copy of pop in its persisted form. Schema and
// codec versions are left for the storage layer to stamp.
func (p *Population) Snapshot(id string) model.PopulationSnapshot {
	return model.PopulationSnapshot{
		ID:            id,
		N:             p.N,
		Generation:    p.Generation,
		NextID:        p.Mutations.nextID,
		Mutations:     append([]model.Mutation(nil), p.Mutations.Mutations...),
		MCounts:       append([]int(nil), p.Mutations.Counts...),
		Gametes:       cloneGametes(p.Gametes.Gametes),
		Diploids:      append([]model.Diploid(nil), p.Diploids...),
		Fixations:     append([]model.Mutation(nil), p.Mutations.Fixations...),
		FixationTimes: append([]uint32(nil), p.Mutations.FixationTimes...),
	}
}

// RestorePopulation rebuilds a population from a snapshot and validates it.
func RestorePopulation(s model.PopulationSnapshot) (*Population, error) {
	muts := restoreMutations(s.Mutations, s.MCounts, s.Fixations, s.FixationTimes, s.NextID)
	gametes := restoreGametes(s.Gametes)
	pop := &Population{
		N:          s.N,
		Generation: s.Generation,
		Diploids:   append([]model.Diploid(nil), s.Diploids...),
		Gametes:    gametes,
		Mutations:  muts,
	}
	if err := pop.Validate(); err != nil {
		return nil, fmt.Errorf("restore population %s: %w", s.ID, err)
	}
	return pop, nil
}

// Snapshot returns a deep copy of mp in its persisted form.
func (m *Metapopulation) Snapshot(id string) model.MetapopulationSnapshot {
	demes := make([]model.DemeSnapshot, len(m.Demes))
	for i, d := range m.Demes {
		demes[i] = model.DemeSnapshot{
			N:        d.N,
			Gametes:  cloneGametes(d.Gametes.Gametes),
			Diploids: append([]model.Diploid(nil), d.Diploids...),
		}
	}
	return model.MetapopulationSnapshot{
		ID:            id,
		Generation:    m.Generation,
		NextID:        m.Mutations.nextID,
		Mutations:     append([]model.Mutation(nil), m.Mutations.Mutations...),
		MCounts:       append([]int(nil), m.Mutations.Counts...),
		Demes:         demes,
		Fixations:     append([]model.Mutation(nil), m.Mutations.Fixations...),
		FixationTimes: append([]uint32(nil), m.Mutations.FixationTimes...),
	}
}

// RestoreMetapopulation rebuilds a metapopulation from a snapshot and
// validates it.
func RestoreMetapopulation(s model.MetapopulationSnapshot) (*Metapopulation, error) {
	mp := &Metapopulation{
		Generation: s.Generation,
		Demes:      make([]Deme, len(s.Demes)),
		Mutations:  restoreMutations(s.Mutations, s.MCounts, s.Fixations, s.FixationTimes, s.NextID),
	}
	for i, d := range s.Demes {
		mp.Demes[i] = Deme{
			N:        d.N,
			Diploids: append([]model.Diploid(nil), d.Diploids...),
			Gametes:  restoreGametes(d.Gametes),
		}
	}
	if err := mp.Validate(); err != nil {
		return nil, fmt.Errorf("restore metapopulation %s: %w", s.ID, err)
	}
	return mp, nil
}

func restoreMutations(mutations []model.Mutation, counts []int, fixations []model.Mutation, times []uint32, nextID uint64) *MutationPool {
	p := &MutationPool{
		Mutations:     append([]model.Mutation(nil), mutations...),
		Counts:        append([]int(nil), counts...),
		Fixations:     append([]model.Mutation(nil), fixations...),
		FixationTimes: append([]uint32(nil), times...),
		nextID:        max(nextID, 1),
	}
	p.rebuild()
	return p
}

// restoreGametes copies the gametes and recovers the free list and index.
func restoreGametes(gametes []model.Gamete) *GametePool {
	p := NewGametePool()
	p.Gametes = cloneGametes(gametes)
	p.reindex()
	return p
}

func cloneGametes(gametes []model.Gamete) []model.Gamete {
	out := make([]model.Gamete, len(gametes))
	for i := range gametes {
		out[i] = gametes[i].Clone()
	}
	return out
}
