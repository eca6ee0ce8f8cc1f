package storage

import (
	"context"
	"reflect"
	"testing"

	"evonet/internal/model"
)

// exerciseStore runs the behavior every backend shares against an
// initialized store.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	genome := model.GenomeRecord{
		VersionedRecord: Versioned(),
		ID:              "g1",
		Topology:        []int{2, 3, 2},
		Activation:      "sigmoid",
		Weights:         []byte{0, 0, 128, 63},
	}
	if err := store.SaveGenome(ctx, genome); err != nil {
		t.Fatalf("save genome: %v", err)
	}
	loadedGenome, ok, err := store.GetGenome(ctx, "g1")
	if err != nil || !ok {
		t.Fatalf("get genome: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(loadedGenome, genome) {
		t.Fatalf("unexpected genome loaded: %+v", loadedGenome)
	}
	if _, ok, err := store.GetGenome(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected missing genome, ok=%t err=%v", ok, err)
	}

	population := model.PopulationSnapshot{
		VersionedRecord: Versioned(),
		ID:              "p1",
		RunID:           "r1",
		Generation:      3,
		Topology:        []int{2, 3, 2},
		Activation:      "sigmoid",
		ToUse:           2,
		Individuals: []model.IndividualRecord{
			{Score: 2, Weights: []byte{1, 2, 3, 4}},
			{Score: 1, Weights: []byte{5, 6, 7, 8}},
			{Score: 0, Weights: []byte{9, 10, 11, 12}},
		},
	}
	if err := store.SavePopulation(ctx, population); err != nil {
		t.Fatalf("save population: %v", err)
	}
	population.Generation = 4
	if err := store.SavePopulation(ctx, population); err != nil {
		t.Fatalf("overwrite population: %v", err)
	}
	loadedPopulation, ok, err := store.GetPopulation(ctx, "p1")
	if err != nil || !ok {
		t.Fatalf("get population: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(loadedPopulation, population) {
		t.Fatalf("unexpected population loaded: %+v", loadedPopulation)
	}

	for _, id := range []string{"r1", "r2", "r3"} {
		run := model.RunRecord{VersionedRecord: Versioned(), ID: id, Task: "xor", Topology: []int{2, 3, 2}}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", id, err)
		}
	}
	updated := model.RunRecord{VersionedRecord: Versioned(), ID: "r1", Task: "xor", Generations: 12, StopReason: "goal_reached"}
	if err := store.SaveRun(ctx, updated); err != nil {
		t.Fatalf("update run: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "r1" || runs[1].ID != "r2" || runs[2].ID != "r3" {
		t.Fatalf("unexpected run order: %+v", runs)
	}
	run, ok, err := store.GetRun(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get run: ok=%t err=%v", ok, err)
	}
	if run.Generations != 12 || run.StopReason != "goal_reached" {
		t.Fatalf("run update not persisted: %+v", run)
	}

	history := []float64{0.5, 1.5, 3}
	if err := store.SaveFitnessHistory(ctx, "r1", history); err != nil {
		t.Fatalf("save history: %v", err)
	}
	loadedHistory, ok, err := store.GetFitnessHistory(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get history: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(loadedHistory, history) {
		t.Fatalf("unexpected history: %v", loadedHistory)
	}

	diagnostics := []model.GenerationDiagnostics{
		{Generation: 0, BestScore: 0.5, MeanScore: 0.1, MinScore: -1, MaxScore: 0.5, StdDev: 0.4},
		{Generation: 1, BestScore: 1.5, MeanScore: 0.2, MinScore: -1, MaxScore: 1.5, StdDev: 0.6},
	}
	if err := store.SaveGenerationDiagnostics(ctx, "r1", diagnostics); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	loadedDiagnostics, ok, err := store.GetGenerationDiagnostics(ctx, "r1")
	if err != nil || !ok {
		t.Fatalf("get diagnostics: ok=%t err=%v", ok, err)
	}
	if !reflect.DeepEqual(loadedDiagnostics, diagnostics) {
		t.Fatalf("unexpected diagnostics: %+v", loadedDiagnostics)
	}

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok, _ := store.GetGenome(ctx, "g1"); ok {
		t.Fatal("expected genome removed by reset")
	}
	if _, ok, _ := store.GetFitnessHistory(ctx, "r1"); ok {
		t.Fatal("expected history removed by reset")
	}
	runs, err = store.ListRuns(ctx)
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected no runs after reset, got %d err=%v", len(runs), err)
	}
}
