package popgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwdpop/internal/model"
)

var (
	injectDiploids   = []int{0, 1, 3, 5, 7, 9}
	injectPlacements = []Placement{PlaceFirst, PlaceSecond, PlaceFirst, PlaceBoth, PlaceBoth, PlaceFirst}
)

func requireInjected(t *testing.T, pop *Population) {
	t.Helper()
	require.Equal(t, 9, pop.Gametes.Len())
	require.Len(t, pop.Mutations.Mutations, 1)
	require.Len(t, pop.Mutations.Counts, 1)
	require.Equal(t, 8, pop.Mutations.Counts[0])
	require.False(t, pop.Mutations.Mutations[0].Neutral)

	gametes := pop.Gametes.Gametes
	for _, i := range []int{0, 3, 9} {
		require.Len(t, gametes[pop.Diploids[i].First].Selected, 1, "diploid %d", i)
		require.Empty(t, gametes[pop.Diploids[i].Second].Selected, "diploid %d", i)
	}
	require.Empty(t, gametes[pop.Diploids[1].First].Selected)
	require.Len(t, gametes[pop.Diploids[1].Second].Selected, 1)
	for _, i := range []int{5, 7} {
		require.Len(t, gametes[pop.Diploids[i].First].Selected, 1, "diploid %d", i)
		require.Len(t, gametes[pop.Diploids[i].Second].Selected, 1, "diploid %d", i)
	}
	require.Equal(t, 2*1000-8, gametes[0].N)
	require.NoError(t, pop.Validate())
	require.NoError(t, ValidateCounts(pop.Mutations, pop.Gametes))
}

func TestAddMutationParams(t *testing.T) {
	pop := NewPopulation(1000)
	key, err := AddMutationParams(pop, injectDiploids, injectPlacements, 0.1, -0.1, 1, 0)
	require.NoError(t, err)
	require.Equal(t, 0, key)
	requireInjected(t, pop)
}

func TestAddMutationFromValue(t *testing.T) {
	pop := NewPopulation(1000)
	m := model.NewMutation(0.1, -0.1, 1, 0)
	_, err := AddMutation(pop, injectDiploids, injectPlacements, m)
	require.NoError(t, err)
	requireInjected(t, pop)
	assert.Equal(t, 0.1, pop.Mutations.Mutations[0].Pos)
	assert.NotZero(t, pop.Mutations.Mutations[0].ID)
}

func TestAddMutationKeepsListsSorted(t *testing.T) {
	pop := NewPopulation(10)
	_, err := AddMutationParams(pop, []int{0, 1}, []Placement{PlaceBoth, PlaceFirst}, 0.5, 0, 0, 0)
	require.NoError(t, err)
	_, err = AddMutationParams(pop, []int{0}, []Placement{PlaceFirst}, 0.2, 0, 0, 0)
	require.NoError(t, err)
	_, err = AddMutationParams(pop, []int{0}, []Placement{PlaceFirst}, 0.8, 0, 0, 0)
	require.NoError(t, err)

	g := pop.Gametes.Gametes[pop.Diploids[0].First]
	require.Len(t, g.Neutral, 3)
	positions := []float64{}
	for _, k := range g.Neutral {
		positions = append(positions, pop.Mutations.Mutations[k].Pos)
	}
	assert.Equal(t, []float64{0.2, 0.5, 0.8}, positions)
	require.NoError(t, pop.Validate())
}

func TestAddMutationDuplicatePosition(t *testing.T) {
	pop := NewPopulation(10)
	_, err := AddMutationParams(pop, []int{0}, []Placement{PlaceFirst}, 0.1, -0.1, 1, 0)
	require.NoError(t, err)
	before := pop.Snapshot("before")

	_, err = AddMutationParams(pop, []int{2}, []Placement{PlaceFirst}, 0.1, 0.3, 1, 0)
	require.ErrorIs(t, err, ErrDuplicatePosition)
	assert.Equal(t, before, pop.Snapshot("before"))
}

func TestAddMutationIndexOutOfRange(t *testing.T) {
	tests := []struct {
		name       string
		diploids   []int
		placements []Placement
	}{
		{name: "negative", diploids: []int{-1}, placements: []Placement{PlaceFirst}},
		{name: "past end", diploids: []int{10}, placements: []Placement{PlaceFirst}},
		{name: "bad code", diploids: []int{1}, placements: []Placement{Placement(3)}},
		{name: "length mismatch", diploids: []int{1, 2}, placements: []Placement{PlaceFirst}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pop := NewPopulation(10)
			_, err := AddMutationParams(pop, tc.diploids, tc.placements, 0.4, 0, 0, 0)
			require.ErrorIs(t, err, ErrIndexOutOfRange)
			assert.Empty(t, pop.Mutations.Mutations)
			assert.Equal(t, 1, pop.Gametes.Len())
		})
	}
}

func TestAddMutationRejectsRepeatedDiploid(t *testing.T) {
	pop := NewPopulation(10)
	_, err := AddMutationParams(pop, []int{1, 1}, []Placement{PlaceFirst, PlaceSecond}, 0.4, 0, 0, 0)
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestAddMutationMeta(t *testing.T) {
	mp := NewMetapopulation([]int{5, 5})
	_, err := AddMutationMeta(mp, 1, []int{0, 4}, []Placement{PlaceBoth, PlaceSecond}, model.NewMutation(0.3, -0.05, 0.5, 0))
	require.NoError(t, err)
	assert.Equal(t, 3, mp.Mutations.Counts[0])
	assert.Equal(t, 1, mp.Demes[0].Gametes.Len())
	require.NoError(t, mp.Validate())
	require.NoError(t, ValidateCounts(mp.Mutations, mp.pools()...))

	_, err = AddMutationMeta(mp, 2, []int{0}, []Placement{PlaceFirst}, model.NewMutation(0.6, 0, 0, 0))
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestGameteMoveLeavesSourceEmpty(t *testing.T) {
	g1 := model.Gamete{N: 1, Neutral: []int{0}}
	g2 := model.Gamete{N: 1, Neutral: []int{1}, Selected: []int{2}}

	g3 := g2.Move()
	assert.Len(t, g1.Neutral, 1)
	assert.Empty(t, g2.Neutral)
	assert.Empty(t, g2.Selected)
	assert.Len(t, g3.Neutral, 1)
	assert.Len(t, g3.Selected, 1)
	assert.Equal(t, 1, g3.N)
	assert.Zero(t, g2.N)
}
