package storage

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"fwdpop/internal/model"
	"fwdpop/internal/popgen"
	"fwdpop/internal/rng"
)

func TestDecodeSnapshotFixture(t *testing.T) {
	snapshot := decodeSnapshotFixture(t, "minimal_snapshot_v1.json")
	if snapshot.ID != "snapshot-minimal-1" || snapshot.RunID != "run-minimal-1" {
		t.Fatalf("unexpected snapshot ids: %s %s", snapshot.ID, snapshot.RunID)
	}
	if len(snapshot.Mutations) != 2 || snapshot.Mutations[1].S != -0.01 {
		t.Fatalf("unexpected mutations: %+v", snapshot.Mutations)
	}
	if len(snapshot.FixationTimes) != 1 || snapshot.FixationTimes[0] != 2 {
		t.Fatalf("unexpected fixation times: %+v", snapshot.FixationTimes)
	}

	pop, err := popgen.RestorePopulation(snapshot)
	if err != nil {
		t.Fatalf("restore fixture: %v", err)
	}
	if err := popgen.ValidateCounts(pop.Mutations, pop.Gametes); err != nil {
		t.Fatalf("fixture counts: %v", err)
	}
}

func TestDecodeSnapshotRejectsOldSchema(t *testing.T) {
	data, err := os.ReadFile(fixturePath("snapshot_v0.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if _, err := DecodeSnapshot(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestSnapshotCodecRoundTrip(t *testing.T) {
	input := evolvedSnapshot(t, "snap-1", 25)

	encoded, err := EncodeSnapshot(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeSnapshot(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, input) {
		t.Fatalf("snapshot changed through codec")
	}

	pop, err := popgen.RestorePopulation(decoded)
	if err != nil {
		t.Fatalf("restore decoded snapshot: %v", err)
	}
	if pop.Generation != input.Generation || pop.N != input.N {
		t.Fatalf("unexpected restored population: generation=%d n=%d", pop.Generation, pop.N)
	}
}

func TestRunCodecRoundTrip(t *testing.T) {
	input := model.RunRecord{
		VersionedRecord: currentVersion(),
		ID:              "run-1",
		SnapshotID:      "run-1-final",
		Seed:            7,
		N:               100,
		Generations:     10,
		NeutralRate:     0.01,
		Fitness:         "multiplicative",
		FinalWBar:       0.98,
		CreatedAtUTC:    "2026-01-02T03:04:05Z",
	}
	encoded, err := EncodeRun(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeRun(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != input {
		t.Fatalf("decoded run mismatch: got=%+v want=%+v", decoded, input)
	}

	input.CodecVersion = 2
	encoded, err = EncodeRun(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeRun(encoded); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestHistoryCodecRoundTrip(t *testing.T) {
	input := []model.GenerationStats{
		{Generation: 1, MeanFitness: 1, Segregating: 3, Gametes: 4},
		{Generation: 2, MeanFitness: 0.995, Segregating: 5, Gametes: 6, Fixations: 1},
	}
	encoded, err := EncodeHistory(input)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeHistory(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, input) {
		t.Fatalf("decoded history mismatch: got=%+v want=%+v", decoded, input)
	}
}

func fixturePath(name string) string {
	return filepath.Join("..", "..", "testdata", "fixtures", name)
}

func decodeSnapshotFixture(t *testing.T, name string) model.PopulationSnapshot {
	t.Helper()
	data, err := os.ReadFile(fixturePath(name))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	snapshot, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return snapshot
}

// evolvedSnapshot runs a small population for gens generations and returns
// its snapshot stamped with the current versions.
func evolvedSnapshot(t *testing.T, id string, gens int) model.PopulationSnapshot {
	t.Helper()
	r := rng.New(11)
	pop := popgen.NewPopulation(50)
	mm := popgen.InfiniteSites{
		NeutralRate:  0.05,
		SelectedRate: 0.05,
		Effect:       func(rng.Source) float64 { return -0.02 },
		Dominance:    func(rng.Source) float64 { return 0.5 },
	}
	rec := popgen.PoissonCrossover{Rate: 1, Max: 1}
	for g := 0; g < gens; g++ {
		if _, err := popgen.SampleDiploid(r, pop, pop.N, mm.Rate(), mm, rec, popgen.Multiplicative{Scaling: 2}); err != nil {
			t.Fatalf("sample generation %d: %v", g, err)
		}
		if err := pop.Update(); err != nil {
			t.Fatalf("update generation %d: %v", g, err)
		}
	}
	snapshot := pop.Snapshot(id)
	snapshot.RunID = "run-1"
	snapshot.VersionedRecord = currentVersion()
	return snapshot
}
