package popgen

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"

	"fwdpop/internal/model"
)

// GametePool stores gametes by value. Slots whose count drops to zero are
// recycled on the next Prune. Content is hash-consed: Intern returns the
// existing slot for a neutral/selected pair already in the pool.
type GametePool struct {
	Gametes []model.Gamete

	free  []int
	index map[uint64][]int
	buf   []byte
}

func NewGametePool() *GametePool {
	return &GametePool{index: make(map[uint64][]int)}
}

// Len returns the number of slots, live or free.
func (p *GametePool) Len() int {
	return len(p.Gametes)
}

// Live returns the number of gametes with a positive count.
func (p *GametePool) Live() int {
	n := 0
	for i := range p.Gametes {
		if p.Gametes[i].N > 0 {
			n++
		}
	}
	return n
}

// TotalCount returns the sum of all gamete counts.
func (p *GametePool) TotalCount() int {
	n := 0
	for i := range p.Gametes {
		n += p.Gametes[i].N
	}
	return n
}

// Intern returns the slot holding exactly the given lists, creating one with
// a zero count if none exists. The lists are owned by the pool afterwards.
func (p *GametePool) Intern(neutral, selected []int) int {
	key := p.key(neutral, selected)
	for _, i := range p.index[key] {
		g := &p.Gametes[i]
		if slices.Equal(g.Neutral, neutral) && slices.Equal(g.Selected, selected) {
			return i
		}
	}
	i := p.insert(model.Gamete{Neutral: neutral, Selected: selected})
	p.index[key] = append(p.index[key], i)
	return i
}

// Append stores g in a new slot without consulting the content index.
func (p *GametePool) Append(g model.Gamete) int {
	return p.insert(g)
}

func (p *GametePool) insert(g model.Gamete) int {
	if n := len(p.free); n > 0 {
		i := p.free[n-1]
		p.free = p.free[:n-1]
		p.Gametes[i] = g
		return i
	}
	p.Gametes = append(p.Gametes, g)
	return len(p.Gametes) - 1
}

// Prune frees every slot with a zero count and rebuilds the content index
// over the remaining gametes.
func (p *GametePool) Prune() {
	for i := range p.Gametes {
		g := &p.Gametes[i]
		if g.N <= 0 {
			*g = model.Gamete{}
		}
	}
	p.reindex()
}

// reindex recovers the free stack (zero-count slots) and the content index
// (all other slots) without modifying any gamete.
func (p *GametePool) reindex() {
	p.free = p.free[:0]
	clear(p.index)
	for i := len(p.Gametes) - 1; i >= 0; i-- {
		if p.Gametes[i].N <= 0 {
			p.free = append(p.free, i)
		}
	}
	for i := range p.Gametes {
		g := &p.Gametes[i]
		if g.N <= 0 {
			continue
		}
		key := p.key(g.Neutral, g.Selected)
		p.index[key] = append(p.index[key], i)
	}
}

func (p *GametePool) key(neutral, selected []int) uint64 {
	buf := p.buf[:0]
	for _, k := range neutral {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(k))
	}
	// Separator; indices are never negative.
	buf = binary.LittleEndian.AppendUint64(buf, ^uint64(0))
	for _, k := range selected {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(k))
	}
	p.buf = buf
	return xxhash.Sum64(buf)
}

func (p *GametePool) check(i int) error {
	if i < 0 || i >= len(p.Gametes) {
		return fmt.Errorf("%w: gamete %d of %d", ErrIndexOutOfRange, i, len(p.Gametes))
	}
	return nil
}

type gameteCheckpoint struct {
	n      int
	counts []int
	free   []int
}

func (p *GametePool) checkpoint() gameteCheckpoint {
	counts := make([]int, len(p.Gametes))
	for i := range p.Gametes {
		counts[i] = p.Gametes[i].N
	}
	return gameteCheckpoint{
		n:      len(p.Gametes),
		counts: counts,
		free:   append([]int(nil), p.free...),
	}
}

// rollback restores counts and drops every gamete created since cp.
func (p *GametePool) rollback(cp gameteCheckpoint) {
	p.Gametes = p.Gametes[:cp.n]
	for i := range p.Gametes {
		p.Gametes[i].N = cp.counts[i]
	}
	for _, i := range cp.free {
		p.Gametes[i] = model.Gamete{}
	}
	p.Prune()
}

// zeroCounts resets all counts ahead of building a new generation.
func (p *GametePool) zeroCounts() {
	for i := range p.Gametes {
		p.Gametes[i].N = 0
	}
}
