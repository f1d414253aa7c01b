package popgen

import (
	"fmt"

	"fwdpop/internal/model"
)

// Population is a single deme of N diploids.
type Population struct {
	N          int
	Generation uint32
	Diploids   []model.Diploid
	Gametes    *GametePool
	Mutations  *MutationPool
}

// NewPopulation returns n diploids that all carry the ancestral, mutation
// free gamete on both chromosomes.
func NewPopulation(n int) *Population {
	gametes := NewGametePool()
	gametes.Intern(nil, nil)
	gametes.Gametes[0].N = 2 * n
	return &Population{
		N:         n,
		Diploids:  make([]model.Diploid, n),
		Gametes:   gametes,
		Mutations: NewMutationPool(),
	}
}

// TwoN returns the number of chromosome copies in the population.
func (p *Population) TwoN() int {
	return 2 * p.N
}

// Update runs the bookkeeping step for the generation just sampled.
func (p *Population) Update() error {
	return UpdateMutations(p.Mutations, p.Generation, p.TwoN(), p.Gametes)
}

// Validate checks the structural invariants of the population.
func (p *Population) Validate() error {
	if err := p.Mutations.checkSizes(); err != nil {
		return err
	}
	if len(p.Diploids) != p.N {
		return fmt.Errorf("%w: %d diploids for N=%d", ErrInvariantViolation, len(p.Diploids), p.N)
	}
	return checkGametes(p.Gametes, p.Mutations, [][]model.Diploid{p.Diploids})
}

// Deme is one sub-population of a Metapopulation. Its gamete pool is local.
type Deme struct {
	N        int
	Diploids []model.Diploid
	Gametes  *GametePool
}

// Metapopulation holds several demes sharing one mutation pool.
type Metapopulation struct {
	Generation uint32
	Demes      []Deme
	Mutations  *MutationPool
}

func NewMetapopulation(sizes []int) *Metapopulation {
	demes := make([]Deme, len(sizes))
	for i, n := range sizes {
		gametes := NewGametePool()
		gametes.Intern(nil, nil)
		gametes.Gametes[0].N = 2 * n
		demes[i] = Deme{N: n, Diploids: make([]model.Diploid, n), Gametes: gametes}
	}
	return &Metapopulation{Demes: demes, Mutations: NewMutationPool()}
}

// TwoN returns the number of chromosome copies across all demes.
func (m *Metapopulation) TwoN() int {
	n := 0
	for _, d := range m.Demes {
		n += 2 * d.N
	}
	return n
}

// Sizes returns the current deme sizes.
func (m *Metapopulation) Sizes() []int {
	out := make([]int, len(m.Demes))
	for i, d := range m.Demes {
		out[i] = d.N
	}
	return out
}

func (m *Metapopulation) pools() []*GametePool {
	out := make([]*GametePool, len(m.Demes))
	for i := range m.Demes {
		out[i] = m.Demes[i].Gametes
	}
	return out
}

func (m *Metapopulation) Update() error {
	return UpdateMutations(m.Mutations, m.Generation, m.TwoN(), m.pools()...)
}

func (m *Metapopulation) Validate() error {
	if err := m.Mutations.checkSizes(); err != nil {
		return err
	}
	for i, d := range m.Demes {
		if len(d.Diploids) != d.N {
			return fmt.Errorf("%w: deme %d has %d diploids for N=%d", ErrInvariantViolation, i, len(d.Diploids), d.N)
		}
		if err := checkGametes(d.Gametes, m.Mutations, [][]model.Diploid{d.Diploids}); err != nil {
			return fmt.Errorf("deme %d: %w", i, err)
		}
	}
	return nil
}

// MultilocusPopulation holds N individuals, each with one diploid per locus.
// All loci share one gamete pool.
type MultilocusPopulation struct {
	N          int
	Loci       int
	Generation uint32
	Diploids   [][]model.Diploid
	Gametes    *GametePool
	Mutations  *MutationPool
}

func NewMultilocusPopulation(n, loci int) *MultilocusPopulation {
	gametes := NewGametePool()
	gametes.Intern(nil, nil)
	gametes.Gametes[0].N = 2 * n * loci
	diploids := make([][]model.Diploid, n)
	for i := range diploids {
		diploids[i] = make([]model.Diploid, loci)
	}
	return &MultilocusPopulation{
		N:         n,
		Loci:      loci,
		Diploids:  diploids,
		Gametes:   gametes,
		Mutations: NewMutationPool(),
	}
}

// TwoN returns the number of chromosome copies at any one locus.
func (m *MultilocusPopulation) TwoN() int {
	return 2 * m.N
}

func (m *MultilocusPopulation) Update() error {
	return UpdateMutations(m.Mutations, m.Generation, m.TwoN(), m.Gametes)
}

func (m *MultilocusPopulation) Validate() error {
	if err := m.Mutations.checkSizes(); err != nil {
		return err
	}
	if len(m.Diploids) != m.N {
		return fmt.Errorf("%w: %d individuals for N=%d", ErrInvariantViolation, len(m.Diploids), m.N)
	}
	for i, ind := range m.Diploids {
		if len(ind) != m.Loci {
			return fmt.Errorf("%w: individual %d has %d loci, want %d", ErrInvariantViolation, i, len(ind), m.Loci)
		}
	}
	return checkGametes(m.Gametes, m.Mutations, m.Diploids)
}

// checkGametes verifies that each gamete's count equals the number of
// chromosome slots pointing at it and that its lists are sorted, live and
// split correctly between neutral and selected mutations.
func checkGametes(pool *GametePool, muts *MutationPool, individuals [][]model.Diploid) error {
	refs := make([]int, len(pool.Gametes))
	for _, ind := range individuals {
		for _, d := range ind {
			if err := pool.check(d.First); err != nil {
				return err
			}
			if err := pool.check(d.Second); err != nil {
				return err
			}
			refs[d.First]++
			refs[d.Second]++
		}
	}
	for i := range pool.Gametes {
		g := &pool.Gametes[i]
		if g.N != refs[i] {
			return fmt.Errorf("%w: gamete %d has count %d but %d references", ErrInvariantViolation, i, g.N, refs[i])
		}
		if g.N == 0 {
			continue
		}
		if err := checkList(g.Neutral, muts, true); err != nil {
			return fmt.Errorf("gamete %d: %w", i, err)
		}
		if err := checkList(g.Selected, muts, false); err != nil {
			return fmt.Errorf("gamete %d: %w", i, err)
		}
	}
	return nil
}

func checkList(keys []int, muts *MutationPool, neutral bool) error {
	prev := -1.0
	for j, k := range keys {
		if !muts.Live(k) {
			return fmt.Errorf("%w: reference to dead mutation slot %d", ErrInvariantViolation, k)
		}
		m := muts.Mutations[k]
		if m.Neutral != neutral {
			return fmt.Errorf("%w: mutation %d in wrong list", ErrInvariantViolation, k)
		}
		if j > 0 && m.Pos < prev {
			return fmt.Errorf("%w: list not sorted at %d", ErrInvariantViolation, j)
		}
		prev = m.Pos
	}
	return nil
}
