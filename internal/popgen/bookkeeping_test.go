package popgen

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fwdpop/internal/model"
)

func allDiploids(n int) ([]int, []Placement) {
	diploids := make([]int, n)
	placements := make([]Placement, n)
	for i := range diploids {
		diploids[i] = i
		placements[i] = PlaceBoth
	}
	return diploids, placements
}

func TestUpdateMutationsRecordsFixation(t *testing.T) {
	pop := NewPopulation(10)
	diploids, placements := allDiploids(10)
	_, err := AddMutationParams(pop, diploids, placements, 0.5, 0, 0, 0)
	require.NoError(t, err)
	require.Equal(t, pop.TwoN(), pop.Mutations.Counts[0])

	_, err = SampleDiploid(newTestRNG(1), pop, pop.N, 0, nil, nil, Neutral{})
	require.NoError(t, err)
	require.NoError(t, pop.Update())

	require.Len(t, pop.Mutations.Fixations, 1)
	assert.Equal(t, []uint32{1}, pop.Mutations.FixationTimes)
	assert.Equal(t, 0.5, pop.Mutations.Fixations[0].Pos)
	assert.NotZero(t, pop.Mutations.Fixations[0].ID)
	assert.False(t, pop.Mutations.Live(0))
	assert.False(t, pop.Mutations.HasPosition(0.5))
	assert.Zero(t, pop.Mutations.Segregating())
	for _, g := range pop.Gametes.Gametes {
		assert.Zero(t, g.Size())
	}
	require.NoError(t, pop.Validate())
	require.NoError(t, ValidateCounts(pop.Mutations, pop.Gametes))

	key := pop.Mutations.Add(model.NewMutation(0.7, 0, 0, 2))
	assert.Equal(t, 0, key, "fixed slot is recycled")
}

func TestUpdateMutationsReleasesLostMutation(t *testing.T) {
	pop := NewPopulation(10)
	lost, err := AddMutationParams(pop, []int{0}, []Placement{PlaceFirst}, 0.2, -0.1, 0.5, 0)
	require.NoError(t, err)
	kept, err := AddMutationParams(pop, []int{3, 4}, []Placement{PlaceBoth, PlaceSecond}, 0.8, 0, 0, 0)
	require.NoError(t, err)

	// Point diploid 0 back at the ancestral gamete.
	pop.Gametes.Gametes[pop.Diploids[0].First].N--
	pop.Gametes.Gametes[0].N++
	pop.Diploids[0].First = 0

	require.NoError(t, pop.Update())
	assert.False(t, pop.Mutations.Live(lost))
	assert.False(t, pop.Mutations.HasPosition(0.2))
	assert.Empty(t, pop.Mutations.Fixations)

	require.True(t, pop.Mutations.Live(kept))
	assert.Equal(t, 0.8, pop.Mutations.Mutations[kept].Pos)
	assert.Equal(t, 3, pop.Mutations.Counts[kept])
	require.NoError(t, pop.Validate())
	require.NoError(t, ValidateCounts(pop.Mutations, pop.Gametes))
}

func TestUpdateMutationsRejectsOvercount(t *testing.T) {
	pop := NewPopulation(10)
	_, err := AddMutationParams(pop, []int{0}, []Placement{PlaceFirst}, 0.2, 0, 0, 0)
	require.NoError(t, err)
	pop.Gametes.Gametes[pop.Diploids[0].First].N = 50

	err = pop.Update()
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestUpdateMutationsOvercountLeavesPoolUntouched(t *testing.T) {
	pop := NewPopulation(10)
	lost, err := AddMutationParams(pop, []int{0}, []Placement{PlaceFirst}, 0.2, 0, 0, 0)
	require.NoError(t, err)
	over, err := AddMutationParams(pop, []int{1}, []Placement{PlaceFirst}, 0.8, 0, 0, 0)
	require.NoError(t, err)
	require.Less(t, lost, over)

	pop.Gametes.Gametes[pop.Diploids[0].First].N--
	pop.Gametes.Gametes[0].N++
	pop.Diploids[0].First = 0
	pop.Gametes.Gametes[pop.Diploids[1].First].N = 50
	before := pop.Snapshot("p")

	require.ErrorIs(t, pop.Update(), ErrInvariantViolation)
	assert.Equal(t, before, pop.Snapshot("p"))
	assert.True(t, pop.Mutations.Live(lost))
	assert.True(t, pop.Mutations.HasPosition(0.2))
}

func TestUpdateMutationsRejectsBadReference(t *testing.T) {
	pop := NewPopulation(10)
	pop.Gametes.Gametes[0].Neutral = []int{5}

	err := pop.Update()
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestValidateCountsDetectsStaleCounts(t *testing.T) {
	pop := NewPopulation(10)
	_, err := AddMutationParams(pop, []int{0, 1}, []Placement{PlaceBoth, PlaceFirst}, 0.2, 0, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ValidateCounts(pop.Mutations, pop.Gametes))

	pop.Mutations.Counts[0] = 1
	require.ErrorIs(t, ValidateCounts(pop.Mutations, pop.Gametes), ErrInvariantViolation)

	pop.Mutations.Counts = pop.Mutations.Counts[:0]
	require.ErrorIs(t, ValidateCounts(pop.Mutations, pop.Gametes), ErrInvariantViolation)
}

func TestPopulationSnapshotRoundTrip(t *testing.T) {
	pop := NewPopulation(100)
	evolve(t, newTestRNG(21), pop, 15)
	snap := pop.Snapshot("pop-1")

	restored, err := RestorePopulation(snap)
	require.NoError(t, err)
	assert.Equal(t, snap, restored.Snapshot("pop-1"))
	assert.Equal(t, pop.Mutations.Segregating(), restored.Mutations.Segregating())

	// The restored pools keep working and hand out unused identities.
	evolve(t, newTestRNG(22), restored, 5)
	seen := map[uint64]bool{}
	for _, m := range snap.Mutations {
		seen[m.ID] = true
	}
	for _, m := range restored.Mutations.Mutations {
		if m.ID != 0 && m.Origin > snap.Generation {
			assert.False(t, seen[m.ID], "id %d reused", m.ID)
		}
	}
}

func TestRestoredPopulationContinuesSameTrajectory(t *testing.T) {
	for _, gens := range []int{10, 20, 30} {
		live := NewPopulation(100)
		evolve(t, newTestRNG(7), live, gens)

		restored, err := RestorePopulation(live.Snapshot("p"))
		require.NoError(t, err)
		assert.True(t, slices.Equal(live.Mutations.free, restored.Mutations.free),
			"after %d generations: free slots %v vs %v", gens, live.Mutations.free, restored.Mutations.free)

		evolve(t, newTestRNG(99), live, 5)
		evolve(t, newTestRNG(99), restored, 5)
		assert.Equal(t, live.Snapshot("p"), restored.Snapshot("p"), "after %d generations", gens)
	}
}

func TestRestorePopulationRejectsCorruptSnapshot(t *testing.T) {
	pop := NewPopulation(10)
	snap := pop.Snapshot("bad")
	snap.Diploids[3].First = 7

	_, err := RestorePopulation(snap)
	require.ErrorIs(t, err, ErrIndexOutOfRange)

	snap = pop.Snapshot("bad")
	snap.Gametes[0].N = 3
	_, err = RestorePopulation(snap)
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestMetapopulationSnapshotRoundTrip(t *testing.T) {
	mp := NewMetapopulation([]int{30, 40})
	_, err := AddMutationMeta(mp, 0, []int{1, 2}, []Placement{PlaceBoth, PlaceFirst}, model.NewMutation(0.4, -0.02, 0.5, 0))
	require.NoError(t, err)
	fits := []FitnessModel{Multiplicative{Scaling: 2}, Additive{Scaling: 2}}
	r := newTestRNG(30)
	for g := 0; g < 5; g++ {
		_, err := SampleDiploidMeta(r, mp, mp.Sizes(), 0.02, InfiniteSites{NeutralRate: 0.02}, nil, fits, IslandMigration{Rate: 0.1, Demes: 2})
		require.NoError(t, err)
		require.NoError(t, mp.Update())
	}

	snap := mp.Snapshot("meta")
	restored, err := RestoreMetapopulation(snap)
	require.NoError(t, err)
	assert.Equal(t, snap, restored.Snapshot("meta"))
	assert.Equal(t, []int{30, 40}, restored.Sizes())
}
