package storage

import (
	"context"
	"testing"

	"evonet/internal/model"
)

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	exerciseStore(t, store)
}

func TestMemoryStoreRequiresInit(t *testing.T) {
	store := NewMemoryStore()
	if err := store.SaveRun(context.Background(), model.RunRecord{ID: "r1"}); err == nil {
		t.Fatal("expected uninitialized store error")
	}
	if _, err := store.ListRuns(context.Background()); err == nil {
		t.Fatal("expected uninitialized store error")
	}
}

func TestMemoryStoreInitKeepsRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := store.SaveFitnessHistory(ctx, "r1", []float64{1}); err != nil {
		t.Fatalf("save history: %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("second init: %v", err)
	}
	if _, ok, _ := store.GetFitnessHistory(ctx, "r1"); !ok {
		t.Fatal("second init dropped records")
	}
}

func TestMemoryStoreCopiesRecords(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	weights := []byte{1, 2, 3, 4}
	if err := store.SaveGenome(ctx, model.GenomeRecord{ID: "g1", Weights: weights}); err != nil {
		t.Fatalf("save genome: %v", err)
	}
	weights[0] = 99

	loaded, _, err := store.GetGenome(ctx, "g1")
	if err != nil {
		t.Fatalf("get genome: %v", err)
	}
	if loaded.Weights[0] != 1 {
		t.Fatal("store aliases caller weights on save")
	}
	loaded.Weights[1] = 99
	again, _, _ := store.GetGenome(ctx, "g1")
	if again.Weights[1] != 2 {
		t.Fatal("store aliases returned weights")
	}
}
