package popgen

import (
	"fmt"

	"fwdpop/internal/model"
)

// MutationPool stores every mutation by value together with its population
// count (Counts is kept parallel to Mutations), the position lookup used by
// the infinite-sites rule and the fixation records.
type MutationPool struct {
	Mutations     []model.Mutation
	Counts        []int
	Lookup        map[float64]int
	Fixations     []model.Mutation
	FixationTimes []uint32

	free   []int
	nextID uint64
}

func NewMutationPool() *MutationPool {
	return &MutationPool{
		Lookup: make(map[float64]int),
		nextID: 1,
	}
}

// Len returns the number of slots, live or free.
func (p *MutationPool) Len() int {
	return len(p.Mutations)
}

// Live reports whether slot i holds a mutation.
func (p *MutationPool) Live(i int) bool {
	return i >= 0 && i < len(p.Mutations) && p.Mutations[i].ID != 0
}

// Segregating returns the number of live slots.
func (p *MutationPool) Segregating() int {
	n := 0
	for i := range p.Mutations {
		if p.Mutations[i].ID != 0 {
			n++
		}
	}
	return n
}

// HasPosition reports whether a live mutation sits at pos.
func (p *MutationPool) HasPosition(pos float64) bool {
	return p.Lookup[pos] > 0
}

// Add stores m in a recycled slot if one is free and otherwise appends it.
// The slot's count is left at zero; counts are owned by UpdateMutations and
// the injector. The mutation receives a fresh identity.
func (p *MutationPool) Add(m model.Mutation) int {
	m.ID = p.nextID
	p.nextID++

	var idx int
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
		p.Mutations[idx] = m
		p.Counts[idx] = 0
	} else {
		idx = len(p.Mutations)
		p.Mutations = append(p.Mutations, m)
		p.Counts = append(p.Counts, 0)
	}
	p.Lookup[m.Pos]++
	return idx
}

// release clears slot i, drops its position from the lookup and makes it
// available to Add.
func (p *MutationPool) release(i int) {
	p.dropPosition(p.Mutations[i].Pos)
	p.Mutations[i] = model.Mutation{}
	p.Counts[i] = 0
	p.free = append(p.free, i)
}

// rebuild recomputes the lookup and free stack from the slots. The free
// stack is ordered so the lowest slot is reused first.
func (p *MutationPool) rebuild() {
	p.Lookup = make(map[float64]int, len(p.Mutations))
	p.free = p.free[:0]
	for i := len(p.Mutations) - 1; i >= 0; i-- {
		m := p.Mutations[i]
		if m.ID == 0 {
			p.free = append(p.free, i)
			continue
		}
		p.Lookup[m.Pos]++
		if m.ID >= p.nextID {
			p.nextID = m.ID + 1
		}
	}
	for _, m := range p.Fixations {
		if m.ID >= p.nextID {
			p.nextID = m.ID + 1
		}
	}
}

func (p *MutationPool) checkSizes() error {
	if len(p.Counts) != len(p.Mutations) {
		return fmt.Errorf("%w: %d counts for %d mutations", ErrInvariantViolation, len(p.Counts), len(p.Mutations))
	}
	if len(p.Fixations) != len(p.FixationTimes) {
		return fmt.Errorf("%w: %d fixations with %d fixation times", ErrInvariantViolation, len(p.Fixations), len(p.FixationTimes))
	}
	return nil
}

type mutationCheckpoint struct {
	n      int
	free   []int
	nextID uint64
}

func (p *MutationPool) checkpoint() mutationCheckpoint {
	return mutationCheckpoint{
		n:      len(p.Mutations),
		free:   append([]int(nil), p.free...),
		nextID: p.nextID,
	}
}

// rollback undoes every Add since cp.
func (p *MutationPool) rollback(cp mutationCheckpoint) {
	for _, i := range cp.free {
		if p.Mutations[i].ID != 0 {
			p.dropPosition(p.Mutations[i].Pos)
			p.Mutations[i] = model.Mutation{}
			p.Counts[i] = 0
		}
	}
	for i := cp.n; i < len(p.Mutations); i++ {
		p.dropPosition(p.Mutations[i].Pos)
	}
	p.Mutations = p.Mutations[:cp.n]
	p.Counts = p.Counts[:cp.n]
	p.free = cp.free
	p.nextID = cp.nextID
}

func (p *MutationPool) dropPosition(pos float64) {
	if c := p.Lookup[pos]; c <= 1 {
		delete(p.Lookup, pos)
	} else {
		p.Lookup[pos] = c - 1
	}
}
