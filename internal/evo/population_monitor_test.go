package evo

import (
	"context"
	"errors"
	"testing"
	"time"

	"evonet/internal/nn"
	"evonet/internal/scape"
)

func xorPopulation(t *testing.T, toUse int, seed int64) *Population {
	t.Helper()
	p, err := New(mustTopology(t, 2, 3, 2), toUse, 0, WithSeed(seed))
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	return p.Randomize()
}

func TestNewPopulationMonitorValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  MonitorConfig
	}{
		{name: "missing task", cfg: MonitorConfig{Generations: 1}},
		{name: "negative mutations", cfg: MonitorConfig{Task: scape.XOR(), Mutations: -1, Generations: 1}},
		{name: "negative generations", cfg: MonitorConfig{Task: scape.XOR(), Generations: -1}},
		{name: "negative time limit", cfg: MonitorConfig{Task: scape.XOR(), TimeLimit: -time.Second}},
		{name: "unbounded", cfg: MonitorConfig{Task: scape.XOR()}},
	}
	for _, tc := range cases {
		if _, err := NewPopulationMonitor(tc.cfg); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestMonitorGenerationLimit(t *testing.T) {
	var seen []int
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Task:        scape.XOR(),
		Mutations:   2,
		Generations: 3,
		OnGeneration: func(d GenerationDiagnostics) {
			seen = append(seen, d.Generation)
		},
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background(), xorPopulation(t, 4, 1))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StopReason != StopReasonGenerations {
		t.Fatalf("unexpected stop reason: %s", result.StopReason)
	}
	if result.Generations != 3 || len(result.BestByGeneration) != 3 || len(result.Diagnostics) != 3 {
		t.Fatalf("unexpected generation accounting: %+v", result)
	}
	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Fatalf("unexpected callback generations: %v", seen)
	}
	if float64(result.BestScore) != result.BestByGeneration[2] {
		t.Fatalf("best score %f does not match last generation %f", result.BestScore, result.BestByGeneration[2])
	}
}

func TestMonitorLeavesPopulationScored(t *testing.T) {
	task := scape.XOR()
	monitor, err := NewPopulationMonitor(MonitorConfig{Task: task, Mutations: 2, Comparator: Greater, Generations: 2})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	pop := xorPopulation(t, 3, 2)
	result, err := monitor.Run(context.Background(), pop)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for i := 0; i < pop.Len(); i++ {
		g := pop.Individual(i).Genome
		var want float32
		for _, c := range task.Cases() {
			want += c.Fitness(g.Forward(c.Input))
		}
		if pop.Individual(i).Score != want {
			t.Fatalf("individual %d: score %f, rescored %f", i, pop.Individual(i).Score, want)
		}
	}
	if pop.BestScore(Greater) != result.BestScore {
		t.Fatalf("population best %f differs from result %f", pop.BestScore(Greater), result.BestScore)
	}
}

func TestMonitorDefaultComparatorMatchesPopulation(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{Task: scape.XOR(), Mutations: 2, Generations: 3})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	pop := xorPopulation(t, 4, 8)
	result, err := monitor.Run(context.Background(), pop)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := pop.BestScore(nil); got != result.BestScore {
		t.Fatalf("monitor best %f, population default best %f", result.BestScore, got)
	}
	if got := pop.BestScore(CloserToZero); got != result.BestScore {
		t.Fatalf("monitor best %f, closer-to-zero best %f", result.BestScore, got)
	}
}

func TestMonitorBestNeverRegressesUnderGreater(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Task:        scape.XOR(),
		Mutations:   5,
		Comparator:  Greater,
		Generations: 40,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background(), xorPopulation(t, 6, 3))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i := 1; i < len(result.BestByGeneration); i++ {
		if result.BestByGeneration[i] < result.BestByGeneration[i-1] {
			t.Fatalf("best regressed at generation %d: %v", i, result.BestByGeneration)
		}
	}
}

func TestMonitorGoalStopsBeforeAdvancing(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Task:        scape.XOR(),
		Mutations:   2,
		Generations: 50,
		FitnessGoal: -100,
		GoalEnabled: true,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	pop := xorPopulation(t, 3, 4)
	before := xorPopulation(t, 3, 4)
	result, err := monitor.Run(context.Background(), pop)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StopReason != StopReasonGoal || result.Generations != 1 {
		t.Fatalf("expected goal on first generation, got %s after %d", result.StopReason, result.Generations)
	}
	if !pop.Equal(before) {
		t.Fatal("population advanced after reaching the goal")
	}
}

func TestMonitorTimeLimit(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{
		Task:      scape.XOR(),
		Mutations: 2,
		TimeLimit: 20 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(context.Background(), xorPopulation(t, 3, 5))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StopReason != StopReasonTimeLimit {
		t.Fatalf("unexpected stop reason: %s", result.StopReason)
	}
	if result.Generations < 1 {
		t.Fatal("expected at least one scored generation")
	}
}

func TestMonitorCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor, err := NewPopulationMonitor(MonitorConfig{
		Task:        scape.XOR(),
		Mutations:   2,
		Generations: 100,
		OnGeneration: func(d GenerationDiagnostics) {
			if d.Generation == 2 {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	result, err := monitor.Run(ctx, xorPopulation(t, 3, 6))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if result.Generations != 3 {
		t.Fatalf("expected partial result of 3 generations, got %d", result.Generations)
	}

	if _, err := monitor.Run(ctx, xorPopulation(t, 3, 6)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected error for cancelled context, got %v", err)
	}
}

func TestMonitorRejectsMismatchedTopology(t *testing.T) {
	monitor, err := NewPopulationMonitor(MonitorConfig{Task: scape.XOR(), Generations: 1})
	if err != nil {
		t.Fatalf("new monitor: %v", err)
	}
	topology, _ := nn.NewTopology(3, 2)
	pop, err := New(topology, 2, 0)
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	if _, err := monitor.Run(context.Background(), pop); err == nil {
		t.Fatal("expected topology mismatch error")
	}
}

func TestMonitorDeterministicForSeed(t *testing.T) {
	run := func() RunResult {
		monitor, err := NewPopulationMonitor(MonitorConfig{Task: scape.XOR(), Mutations: 3, Generations: 10})
		if err != nil {
			t.Fatalf("new monitor: %v", err)
		}
		result, err := monitor.Run(context.Background(), xorPopulation(t, 5, 11))
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return result
	}
	a, b := run(), run()
	for i := range a.BestByGeneration {
		if a.BestByGeneration[i] != b.BestByGeneration[i] {
			t.Fatalf("generation %d differs: %f vs %f", i, a.BestByGeneration[i], b.BestByGeneration[i])
		}
	}
}

func TestMonitorLearnsXOR(t *testing.T) {
	if testing.Short() {
		t.Skip("long-running training run")
	}
	task := scape.XOR()
	for seed := int64(1); seed <= 5; seed++ {
		pop, err := New(mustTopology(t, 2, 3, 2), 25, 0, WithSeed(seed), WithWorkers(4))
		if err != nil {
			t.Fatalf("new population: %v", err)
		}
		pop.Randomize()
		monitor, err := NewPopulationMonitor(MonitorConfig{
			Task:        task,
			Mutations:   5,
			Comparator:  Greater,
			Generations: 3000,
			TimeLimit:   20 * time.Second,
			FitnessGoal: 7.5,
			GoalEnabled: true,
		})
		if err != nil {
			t.Fatalf("new monitor: %v", err)
		}
		result, err := monitor.Run(context.Background(), pop)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		if result.StopReason != StopReasonGoal {
			t.Logf("seed %d stopped on %s at best %f", seed, result.StopReason, result.BestScore)
			continue
		}
		best := pop.Best(Greater).Genome
		if got := task.Accuracy(best.Forward); got != 4 {
			t.Fatalf("seed %d: best genome scored %f but classifies %d/4", seed, result.BestScore, got)
		}
		return
	}
	t.Fatal("no seed reached the xor goal")
}
