package popgen

import (
	"fmt"
	"sort"

	"fwdpop/internal/model"
	"fwdpop/internal/rng"
)

// MutationModel creates one new mutation in pool and returns its slot.
type MutationModel interface {
	NewMutation(r rng.Source, pool *MutationPool, generation uint32) (int, error)
}

// MutationFunc adapts a function to MutationModel.
type MutationFunc func(r rng.Source, pool *MutationPool, generation uint32) (int, error)

func (f MutationFunc) NewMutation(r rng.Source, pool *MutationPool, generation uint32) (int, error) {
	return f(r, pool, generation)
}

// RecurrencePolicy decides what happens when a new mutation lands on a
// position that already holds a live mutation.
type RecurrencePolicy int

const (
	// RecurrenceRedraw draws positions until a free one is found.
	RecurrenceRedraw RecurrencePolicy = iota
	// RecurrenceReject fails with ErrDuplicatePosition.
	RecurrenceReject
	// RecurrenceAllow stores a second mutation at the same position.
	RecurrenceAllow
)

func (p RecurrencePolicy) String() string {
	switch p {
	case RecurrenceRedraw:
		return "redraw"
	case RecurrenceReject:
		return "reject"
	case RecurrenceAllow:
		return "allow"
	default:
		return fmt.Sprintf("recurrence(%d)", int(p))
	}
}

// ParseRecurrencePolicy maps a config name to a policy.
func ParseRecurrencePolicy(name string) (RecurrencePolicy, error) {
	switch name {
	case "", "redraw":
		return RecurrenceRedraw, nil
	case "reject":
		return RecurrenceReject, nil
	case "allow":
		return RecurrenceAllow, nil
	default:
		return 0, fmt.Errorf("unknown recurrence policy: %s", name)
	}
}

// maxRedraws bounds the search for a free position.
const maxRedraws = 1 << 20

// InfiniteSites generates neutral mutations with probability
// NeutralRate/(NeutralRate+SelectedRate) and selected ones otherwise.
// Nil generators default to Uniform() positions, zero effect and dominance 1.
type InfiniteSites struct {
	NeutralRate  float64
	SelectedRate float64
	Position     func(rng.Source) float64
	Effect       func(rng.Source) float64
	Dominance    func(rng.Source) float64
	Recurrence   RecurrencePolicy
}

// Rate returns the total per-gamete mutation rate.
func (m InfiniteSites) Rate() float64 {
	return m.NeutralRate + m.SelectedRate
}

func (m InfiniteSites) NewMutation(r rng.Source, pool *MutationPool, generation uint32) (int, error) {
	total := m.Rate()
	neutral := total <= 0 || r.Uniform() < m.NeutralRate/total

	pos, err := m.position(r, pool)
	if err != nil {
		return 0, err
	}
	if neutral {
		return pool.Add(model.NewMutation(pos, 0, 0, generation)), nil
	}
	s := 0.0
	if m.Effect != nil {
		s = m.Effect(r)
	}
	h := 1.0
	if m.Dominance != nil {
		h = m.Dominance(r)
	}
	return pool.Add(model.NewMutation(pos, s, h, generation)), nil
}

func (m InfiniteSites) position(r rng.Source, pool *MutationPool) (float64, error) {
	draw := m.Position
	if draw == nil {
		draw = func(r rng.Source) float64 { return r.Uniform() }
	}
	pos := draw(r)
	switch m.Recurrence {
	case RecurrenceAllow:
		return pos, nil
	case RecurrenceReject:
		if pool.HasPosition(pos) {
			return 0, fmt.Errorf("%w: %v", ErrDuplicatePosition, pos)
		}
		return pos, nil
	default:
		for i := 0; pool.HasPosition(pos); i++ {
			if i == maxRedraws {
				return 0, fmt.Errorf("%w: no free position after %d draws", ErrDuplicatePosition, maxRedraws)
			}
			pos = draw(r)
		}
		return pos, nil
	}
}

// insertSorted inserts key into keys keeping position order. A key at an
// equal position goes after the existing ones.
func insertSorted(keys []int, key int, muts []model.Mutation) []int {
	pos := muts[key].Pos
	i := sort.Search(len(keys), func(j int) bool {
		return muts[keys[j]].Pos > pos
	})
	keys = append(keys, 0)
	copy(keys[i+1:], keys[i:])
	keys[i] = key
	return keys
}
