package evonet

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"evonet/internal/evo"
)

func newTestClient(t *testing.T, artifactsDir string) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: artifactsDir,
		ExportsDir:   filepath.Join(filepath.Dir(artifactsDir), "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func smallRun(seed int64) RunRequest {
	return RunRequest{
		Task:        "xor",
		Topology:    []int{2, 3, 2},
		ToUse:       4,
		Immutable:   1,
		Mutations:   2,
		Seed:        seed,
		Workers:     2,
		Generations: 3,
	}
}

func TestClientRunRunsAndExport(t *testing.T) {
	base := t.TempDir()
	artifactsDir := filepath.Join(base, "artifacts")
	client := newTestClient(t, artifactsDir)
	ctx := context.Background()

	summary, err := client.Run(ctx, smallRun(42))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" || summary.Generations != 3 || len(summary.BestByGeneration) != 3 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.StopReason != "generation_limit" {
		t.Fatalf("unexpected stop reason: %s", summary.StopReason)
	}
	if summary.ArtifactsDir != filepath.Join(artifactsDir, summary.RunID) {
		t.Fatalf("unexpected artifacts dir: %s", summary.ArtifactsDir)
	}
	for _, file := range []string{"config.json", "fitness_history.csv", "diagnostics.json", "best_genome.bin", "fitness.png"} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}

	second, err := client.Run(ctx, smallRun(43))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != second.RunID || runs[1].RunID != summary.RunID {
		t.Fatalf("unexpected runs listing: %+v", runs)
	}
	if runs[0].PopulationSize != 11 || runs[0].Task != "xor" || runs[0].Seed != 43 {
		t.Fatalf("unexpected run item: %+v", runs[0])
	}
	limited, err := client.Runs(ctx, RunsRequest{Limit: 1})
	if err != nil || len(limited) != 1 {
		t.Fatalf("limited runs: %v err=%v", limited, err)
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export latest: %v", err)
	}
	if exported.RunID != second.RunID {
		t.Fatalf("export picked %s, want %s", exported.RunID, second.RunID)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "config.json")); err != nil {
		t.Fatalf("expected exported config: %v", err)
	}

	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected export without run id to fail")
	}
	if _, err := client.Export(ctx, ExportRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected conflicting export request to fail")
	}
}

func TestClientRunDefaultsMutations(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "artifacts"))
	ctx := context.Background()

	cases := []struct {
		name      string
		mutations int
		want      int
	}{
		{name: "unset", mutations: 0, want: evo.DefaultMutations},
		{name: "explicit", mutations: 4, want: 4},
		{name: "none", mutations: NoMutations, want: 0},
	}
	for _, tc := range cases {
		req := smallRun(5)
		req.Mutations = tc.mutations
		summary, err := client.Run(ctx, req)
		if err != nil {
			t.Fatalf("%s: run: %v", tc.name, err)
		}
		run, ok, err := client.store.GetRun(ctx, summary.RunID)
		if err != nil || !ok {
			t.Fatalf("%s: get run: ok=%v err=%v", tc.name, ok, err)
		}
		if run.Mutations != tc.want {
			t.Fatalf("%s: persisted mutations=%d want=%d", tc.name, run.Mutations, tc.want)
		}
	}
}

func TestClientRunIndexMatchesRunRecord(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "artifacts"))
	ctx := context.Background()

	summary, err := client.Run(ctx, smallRun(9))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	run, ok, err := client.store.GetRun(ctx, summary.RunID)
	if err != nil || !ok {
		t.Fatalf("get run: ok=%v err=%v", ok, err)
	}
	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs: %v err=%v", runs, err)
	}
	if runs[0].CreatedAtUTC != run.CreatedAtUTC {
		t.Fatalf("index created_at %q, run record %q", runs[0].CreatedAtUTC, run.CreatedAtUTC)
	}
}

func TestClientHistoryAndDiagnostics(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "artifacts"))
	ctx := context.Background()

	req := smallRun(5)
	req.Generations = 4
	summary, err := client.Run(ctx, req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	history, err := client.FitnessHistory(ctx, FitnessHistoryRequest{Latest: true})
	if err != nil {
		t.Fatalf("fitness history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("unexpected history length: %d", len(history))
	}
	limited, err := client.FitnessHistory(ctx, FitnessHistoryRequest{RunID: summary.RunID, Limit: 2})
	if err != nil || len(limited) != 2 || limited[0] != history[0] {
		t.Fatalf("limited history: %v err=%v", limited, err)
	}

	diagnostics, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diagnostics) != 4 || diagnostics[3].Generation != 3 {
		t.Fatalf("unexpected diagnostics: %+v", diagnostics)
	}
	if diagnostics[0].BestScore != history[0] {
		t.Fatalf("diagnostics best %f differs from history %f", diagnostics[0].BestScore, history[0])
	}

	if _, err := client.FitnessHistory(ctx, FitnessHistoryRequest{}); err == nil {
		t.Fatal("expected missing run id error")
	}
	if _, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: summary.RunID, Limit: -1}); err == nil {
		t.Fatal("expected negative limit error")
	}
	if _, err := client.FitnessHistory(ctx, FitnessHistoryRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected missing history error")
	}
}

func TestClientReadsArtifactsAfterRestart(t *testing.T) {
	artifactsDir := filepath.Join(t.TempDir(), "artifacts")
	ctx := context.Background()

	first := newTestClient(t, artifactsDir)
	summary, err := first.Run(ctx, smallRun(9))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// A fresh memory store knows nothing about the run; reads fall back to
	// the artifacts directory.
	second := newTestClient(t, artifactsDir)
	history, err := second.FitnessHistory(ctx, FitnessHistoryRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("fitness history: %v", err)
	}
	if len(history) != len(summary.BestByGeneration) {
		t.Fatalf("history length %d, want %d", len(history), len(summary.BestByGeneration))
	}
	for i := range history {
		if history[i] != summary.BestByGeneration[i] {
			t.Fatalf("history[%d]=%f want %f", i, history[i], summary.BestByGeneration[i])
		}
	}
	diagnostics, err := second.Diagnostics(ctx, DiagnosticsRequest{Latest: true})
	if err != nil || len(diagnostics) != 3 {
		t.Fatalf("diagnostics: %d err=%v", len(diagnostics), err)
	}

	fromStore, err := first.Eval(ctx, EvalRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("eval from store: %v", err)
	}
	fromArtifacts, err := second.Eval(ctx, EvalRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("eval from artifacts: %v", err)
	}
	if fromStore.Score != fromArtifacts.Score || fromStore.Accuracy != fromArtifacts.Accuracy {
		t.Fatalf("eval differs: store=%+v artifacts=%+v", fromStore, fromArtifacts)
	}
}

func TestClientEval(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "artifacts"))
	ctx := context.Background()

	summary, err := client.Run(ctx, smallRun(3))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	result, err := client.Eval(ctx, EvalRequest{Latest: true})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if result.RunID != summary.RunID || result.Task != "xor" {
		t.Fatalf("unexpected eval target: %+v", result)
	}
	if len(result.Cases) != 4 || result.MaxScore != 8 {
		t.Fatalf("unexpected cases: %d max=%f", len(result.Cases), result.MaxScore)
	}
	var total float32
	for _, c := range result.Cases {
		total += c.Score
	}
	if total != result.Score {
		t.Fatalf("case scores sum to %f, result says %f", total, result.Score)
	}
	if float64(result.Score) != summary.FinalBestScore {
		t.Fatalf("eval score %f differs from final best %f", result.Score, summary.FinalBestScore)
	}
	if result.Accuracy < 0 || result.Accuracy > 4 {
		t.Fatalf("unexpected accuracy: %d", result.Accuracy)
	}

	single, err := client.Eval(ctx, EvalRequest{RunID: summary.RunID, Input: []float32{1, 0}})
	if err != nil {
		t.Fatalf("eval input: %v", err)
	}
	if len(single.Output) != 2 || single.Cases != nil {
		t.Fatalf("unexpected single eval: %+v", single)
	}
	if _, err := client.Eval(ctx, EvalRequest{RunID: summary.RunID, Input: []float32{1}}); err == nil {
		t.Fatal("expected input width error")
	}
	if _, err := client.Eval(ctx, EvalRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected missing run error")
	}
}

func TestClientTasksAndReset(t *testing.T) {
	client := newTestClient(t, filepath.Join(t.TempDir(), "artifacts"))
	ctx := context.Background()

	tasks, err := client.Tasks(ctx)
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if len(tasks) != 4 || tasks[3].Name != "xor" || tasks[3].InputWidth != 2 || tasks[3].Cases != 4 {
		t.Fatalf("unexpected tasks: %+v", tasks)
	}

	summary, err := client.Run(ctx, smallRun(1))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := client.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, ok, err := client.store.GetRun(ctx, summary.RunID); err != nil || ok {
		t.Fatalf("run survived reset: ok=%v err=%v", ok, err)
	}
}
