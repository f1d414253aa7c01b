package popgen

import (
	"fmt"
	"slices"
)

// UpdateMutations recomputes mutation counts from the gamete pools and
// retires mutations that fixed or were lost this generation. A fixed
// mutation (count == twoN) is appended to the fixation records with
// generation, stripped from every gamete and its slot recycled. A lost
// mutation (count == 0) has its slot cleared and recycled. Unreferenced
// gametes are freed.
func UpdateMutations(mp *MutationPool, generation uint32, twoN int, pools ...*GametePool) error {
	if err := mp.checkSizes(); err != nil {
		return err
	}
	counts, err := countMutations(mp, pools)
	if err != nil {
		return err
	}
	for i, c := range counts {
		if c > twoN {
			return fmt.Errorf("%w: mutation %d has count %d above 2N=%d", ErrInvariantViolation, i, c, twoN)
		}
	}
	copy(mp.Counts, counts)

	var fixed []int
	for i := range mp.Mutations {
		if mp.Mutations[i].ID == 0 {
			continue
		}
		switch c := mp.Counts[i]; {
		case c == twoN:
			mp.Fixations = append(mp.Fixations, mp.Mutations[i])
			mp.FixationTimes = append(mp.FixationTimes, generation)
			fixed = append(fixed, i)
		case c == 0:
			mp.release(i)
		}
	}

	if len(fixed) > 0 {
		for _, pool := range pools {
			for j := range pool.Gametes {
				g := &pool.Gametes[j]
				if g.N == 0 {
					continue
				}
				g.Neutral = strip(g.Neutral, fixed)
				g.Selected = strip(g.Selected, fixed)
			}
		}
		for _, i := range fixed {
			mp.release(i)
		}
	}
	// Same order as rebuild, so a restored pool hands out the same slots.
	slices.SortFunc(mp.free, func(a, b int) int { return b - a })
	for _, pool := range pools {
		pool.Prune()
	}
	return nil
}

// ValidateCounts checks that the stored counts match the gamete pools.
func ValidateCounts(mp *MutationPool, pools ...*GametePool) error {
	if err := mp.checkSizes(); err != nil {
		return err
	}
	counts, err := countMutations(mp, pools)
	if err != nil {
		return err
	}
	for i, c := range counts {
		if mp.Counts[i] != c {
			return fmt.Errorf("%w: mutation %d stored count %d, gametes carry %d", ErrInvariantViolation, i, mp.Counts[i], c)
		}
	}
	return nil
}

func countMutations(mp *MutationPool, pools []*GametePool) ([]int, error) {
	counts := make([]int, len(mp.Mutations))
	for _, pool := range pools {
		for j := range pool.Gametes {
			g := &pool.Gametes[j]
			if g.N == 0 {
				continue
			}
			for _, list := range [][]int{g.Neutral, g.Selected} {
				for _, k := range list {
					if k < 0 || k >= len(counts) {
						return nil, fmt.Errorf("%w: gamete %d references mutation %d of %d", ErrIndexOutOfRange, j, k, len(counts))
					}
					counts[k] += g.N
				}
			}
		}
	}
	return counts, nil
}

// strip returns keys without any member of drop, in a new slice when
// something is removed.
func strip(keys, drop []int) []int {
	if !slices.ContainsFunc(keys, func(k int) bool { return slices.Contains(drop, k) }) {
		return keys
	}
	out := make([]int, 0, len(keys))
	for _, k := range keys {
		if !slices.Contains(drop, k) {
			out = append(out, k)
		}
	}
	return out
}
