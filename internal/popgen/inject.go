package popgen

import (
	"fmt"

	"fwdpop/internal/model"
)

// Placement selects which chromosome copies of a diploid receive an
// injected mutation.
type Placement int

const (
	PlaceFirst Placement = iota
	PlaceSecond
	PlaceBoth
)

func (p Placement) weight() int {
	if p == PlaceBoth {
		return 2
	}
	return 1
}

func (p Placement) valid() bool {
	return p >= PlaceFirst && p <= PlaceBoth
}

// AddMutation stores m in the mutation pool and places it on the requested
// chromosome copies of the listed diploids. Each placement gets its own new
// gamete equal to the diploid's current gamete plus m; diploids not listed
// keep their gametes. The mutation's count is set to the number of copies
// placed and its slot is returned.
func AddMutation(pop *Population, diploids []int, placements []Placement, m model.Mutation) (int, error) {
	return addMutation(pop.Mutations, pop.Gametes, pop.Diploids, diploids, placements, m)
}

// AddMutationParams is AddMutation for a mutation built from raw parameters.
func AddMutationParams(pop *Population, diploids []int, placements []Placement, pos, s, h float64, origin uint32) (int, error) {
	return AddMutation(pop, diploids, placements, model.NewMutation(pos, s, h, origin))
}

// AddMutationMeta places m in one deme of a metapopulation.
func AddMutationMeta(mp *Metapopulation, deme int, diploids []int, placements []Placement, m model.Mutation) (int, error) {
	if deme < 0 || deme >= len(mp.Demes) {
		return 0, fmt.Errorf("%w: deme %d of %d", ErrIndexOutOfRange, deme, len(mp.Demes))
	}
	d := &mp.Demes[deme]
	return addMutation(mp.Mutations, d.Gametes, d.Diploids, diploids, placements, m)
}

func addMutation(muts *MutationPool, gametes *GametePool, population []model.Diploid,
	diploids []int, placements []Placement, m model.Mutation,
) (int, error) {
	if len(diploids) != len(placements) {
		return 0, fmt.Errorf("%w: %d diploids with %d placements", ErrIndexOutOfRange, len(diploids), len(placements))
	}
	seen := make(map[int]struct{}, len(diploids))
	for j, d := range diploids {
		if d < 0 || d >= len(population) {
			return 0, fmt.Errorf("%w: diploid %d of %d", ErrIndexOutOfRange, d, len(population))
		}
		if !placements[j].valid() {
			return 0, fmt.Errorf("%w: placement code %d for diploid %d", ErrIndexOutOfRange, placements[j], d)
		}
		if _, ok := seen[d]; ok {
			return 0, fmt.Errorf("%w: diploid %d listed twice", ErrInvariantViolation, d)
		}
		seen[d] = struct{}{}
	}
	if muts.HasPosition(m.Pos) {
		return 0, fmt.Errorf("%w: %v", ErrDuplicatePosition, m.Pos)
	}

	key := muts.Add(m)
	count := 0
	for j, d := range diploids {
		dip := &population[d]
		if placements[j] != PlaceSecond {
			dip.First = withMutation(gametes, dip.First, key, muts)
		}
		if placements[j] != PlaceFirst {
			dip.Second = withMutation(gametes, dip.Second, key, muts)
		}
		count += placements[j].weight()
	}
	muts.Counts[key] = count
	return key, nil
}

// withMutation moves one reference from gamete g to a new gamete carrying key.
func withMutation(gametes *GametePool, g, key int, muts *MutationPool) int {
	next := gametes.Gametes[g].Clone()
	gametes.Gametes[g].N--
	next.N = 1
	if muts.Mutations[key].Neutral {
		next.Neutral = insertSorted(next.Neutral, key, muts.Mutations)
	} else {
		next.Selected = insertSorted(next.Selected, key, muts.Mutations)
	}
	return gametes.Append(next)
}
