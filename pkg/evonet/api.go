package evonet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"evonet/internal/evo"
	"evonet/internal/model"
	"evonet/internal/nn"
	"evonet/internal/platform"
	"evonet/internal/scape"
	"evonet/internal/stats"
	"evonet/internal/storage"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "evonet.db"
	defaultTask         = "xor"
	defaultToUse        = 25
	defaultGenerations  = 1000
)

// NoMutations requests children that are pure crossovers. A zero
// RunRequest.Mutations means evo.DefaultMutations.
const NoMutations = -1

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store storage.Store
	hub   *platform.Hub
	log   *slog.Logger

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	Task        string
	Topology    []int
	Activation  string
	ToUse       int
	Immutable   int
	Mutations   int
	Seed        int64
	Workers     int
	Selection   string
	Generations int
	TimeLimit   time.Duration
	FitnessGoal float64
	GoalEnabled bool
	// ContinueFrom resumes training from a stored population snapshot.
	ContinueFrom string
	OnGeneration func(model.GenerationDiagnostics)
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	BestGenomeID     string
	BestByGeneration []float64
	FinalBestScore   float64
	StopReason       string
	Generations      int
	PopulationSize   int
	Elapsed          time.Duration
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Task           string
	Seed           int64
	PopulationSize int
	Generations    int
	FinalBestScore float64
	StopReason     string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

// EvalRequest evaluates the best genome of a run. With Input set only that
// input is forwarded; otherwise every case of the run's task is scored.
type EvalRequest struct {
	RunID  string
	Latest bool
	Input  []float32
}

type EvalCase struct {
	Input  []float32
	Output []float32
	Score  float32
}

type EvalResult struct {
	RunID    string
	Task     string
	Topology []int
	Output   []float32
	Cases    []EvalCase
	Score    float32
	MaxScore float32
	// Accuracy counts correctly classified cases for tasks that classify;
	// it is -1 otherwise.
	Accuracy int
}

type TaskItem struct {
	Name        string
	InputWidth  int
	OutputWidth int
	Cases       int
	MaxScore    float32
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		log:          logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureHub(ctx)
	return err
}

// Reset drops every stored record. Artifact directories are left on disk.
func (c *Client) Reset(ctx context.Context) error {
	h, err := c.ensureHub(ctx)
	if err != nil {
		return err
	}
	return h.Reset(ctx)
}

func (c *Client) Tasks(ctx context.Context) ([]TaskItem, error) {
	h, err := c.ensureHub(ctx)
	if err != nil {
		return nil, err
	}

	names := h.RegisteredTasks()
	out := make([]TaskItem, 0, len(names))
	for _, name := range names {
		task, ok := h.GetTask(name)
		if !ok {
			continue
		}
		out = append(out, TaskItem{
			Name:        name,
			InputWidth:  task.InputWidth(),
			OutputWidth: task.OutputWidth(),
			Cases:       len(task.Cases()),
			MaxScore:    task.MaxScore(),
		})
	}
	return out, nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Task == "" {
		req.Task = defaultTask
	}
	if req.ContinueFrom == "" {
		if len(req.Topology) == 0 {
			req.Topology = []int{2, 3, 2}
		}
		if req.ToUse <= 0 {
			req.ToUse = defaultToUse
		}
	}
	switch {
	case req.Mutations == 0:
		req.Mutations = evo.DefaultMutations
	case req.Mutations < 0:
		req.Mutations = 0
	}
	if req.Workers <= 0 {
		req.Workers = 1
	}
	if req.Selection == "" {
		req.Selection = "greater"
	}
	if req.Generations == 0 && req.TimeLimit == 0 {
		req.Generations = defaultGenerations
	}

	h, err := c.ensureHub(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	result, err := h.Train(ctx, platform.TrainConfig{
		Task:         req.Task,
		Topology:     nn.Topology(req.Topology),
		Activation:   req.Activation,
		ToUse:        req.ToUse,
		Immutable:    req.Immutable,
		Mutations:    req.Mutations,
		Seed:         req.Seed,
		Workers:      req.Workers,
		Selection:    req.Selection,
		Generations:  req.Generations,
		TimeLimit:    req.TimeLimit,
		FitnessGoal:  req.FitnessGoal,
		GoalEnabled:  req.GoalEnabled,
		ContinueFrom: req.ContinueFrom,
		OnGeneration: req.OnGeneration,
	})
	if err != nil {
		return RunSummary{}, err
	}

	run, ok, err := c.store.GetRun(ctx, result.RunID)
	if err != nil {
		return RunSummary{}, err
	}
	if !ok {
		return RunSummary{}, fmt.Errorf("run record not found after training: %s", result.RunID)
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:         result.RunID,
			ContinuedFrom: result.ContinuedFrom,
			Task:          run.Task,
			Topology:      run.Topology,
			Activation:    run.Activation,
			ToUse:         run.ToUse,
			Immutable:     run.Immutable,
			PopulationLen: result.PopulationSize,
			Mutations:     run.Mutations,
			Seed:          run.Seed,
			Workers:       run.Workers,
			Selection:     run.Selection,
			Generations:   run.MaxGenerations,
			TimeLimitMS:   run.TimeLimitMS,
			FitnessGoal:   run.FitnessGoal,
			GoalEnabled:   run.GoalEnabled,
		},
		BestByGeneration: result.BestByGeneration,
		Diagnostics:      result.Diagnostics,
		FinalBestScore:   result.BestScore,
		StopReason:       string(result.StopReason),
		BestGenome:       result.BestGenome,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:          result.RunID,
		Task:           run.Task,
		PopulationSize: result.PopulationSize,
		Generations:    result.Generations,
		Seed:           run.Seed,
		Workers:        run.Workers,
		FinalBestScore: result.BestScore,
		StopReason:     string(result.StopReason),
		CreatedAtUTC:   run.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:            result.RunID,
		ArtifactsDir:     filepath.Clean(runDir),
		BestGenomeID:     result.BestGenomeID,
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		FinalBestScore:   result.BestScore,
		StopReason:       string(result.StopReason),
		Generations:      result.Generations,
		PopulationSize:   result.PopulationSize,
		Elapsed:          result.Elapsed,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:          e.RunID,
			CreatedAtUTC:   e.CreatedAtUTC,
			Task:           e.Task,
			Seed:           e.Seed,
			PopulationSize: e.PopulationSize,
			Generations:    e.Generations,
			FinalBestScore: e.FinalBestScore,
			StopReason:     e.StopReason,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// FitnessHistory reads the best score per generation from the store, falling
// back to the run's artifacts when the store no longer holds it.
func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if runID == "" {
		return nil, errors.New("fitness history requires run id or latest")
	}

	if _, err := c.ensureHub(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadFitnessHistory(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if runID == "" {
		return nil, errors.New("diagnostics requires run id or latest")
	}

	if _, err := c.ensureHub(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadDiagnostics(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

// Eval loads the best genome of a run and forwards inputs through it.
func (c *Client) Eval(ctx context.Context, req EvalRequest) (EvalResult, error) {
	if req.RunID != "" && req.Latest {
		return EvalResult{}, errors.New("use either run id or latest")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return EvalResult{}, err
	}
	if runID == "" {
		return EvalResult{}, errors.New("eval requires run id or latest")
	}

	h, err := c.ensureHub(ctx)
	if err != nil {
		return EvalResult{}, err
	}
	genome, taskName, err := c.loadBestGenome(ctx, h, runID)
	if err != nil {
		return EvalResult{}, err
	}

	result := EvalResult{
		RunID:    runID,
		Task:     taskName,
		Topology: genome.Topology(),
		Accuracy: -1,
	}
	if len(req.Input) > 0 {
		if len(req.Input) != genome.Topology().InputWidth() {
			return EvalResult{}, fmt.Errorf("input has %d values, network expects %d", len(req.Input), genome.Topology().InputWidth())
		}
		result.Output = genome.Forward(req.Input)
		return result, nil
	}

	task, ok := h.GetTask(taskName)
	if !ok {
		return EvalResult{}, fmt.Errorf("%w: %s", scape.ErrTaskNotFound, taskName)
	}
	for _, tc := range task.Cases() {
		output := genome.Forward(tc.Input)
		score := tc.Fitness(output)
		result.Cases = append(result.Cases, EvalCase{Input: tc.Input, Output: output, Score: score})
		result.Score += score
	}
	result.MaxScore = task.MaxScore()
	if classifier, ok := task.(interface {
		Accuracy(func([]float32) []float32) int
	}); ok {
		result.Accuracy = classifier.Accuracy(genome.Forward)
	}
	return result, nil
}

// loadBestGenome prefers the stored genome record and falls back to the
// run's artifact directory.
func (c *Client) loadBestGenome(ctx context.Context, h *platform.Hub, runID string) (*nn.Genome, string, error) {
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, "", err
	}
	if ok {
		genome, err := h.LoadGenome(ctx, run.BestGenomeID)
		if err != nil {
			return nil, "", err
		}
		return genome, run.Task, nil
	}

	cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, runID)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", fmt.Errorf("run not found: %s", runID)
	}
	payload, ok, err := stats.ReadBestGenome(c.artifactsDir, runID)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", fmt.Errorf("best genome not found for run id: %s", runID)
	}
	genome, err := nn.NewGenomeWithActivation(cfg.Topology, cfg.Activation)
	if err != nil {
		return nil, "", err
	}
	if err := genome.UnmarshalBinary(payload); err != nil {
		return nil, "", fmt.Errorf("decode best genome %s: %w", runID, err)
	}
	return genome, cfg.Task, nil
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if !latest {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func (c *Client) ensureHub(ctx context.Context) (*platform.Hub, error) {
	if c.hub != nil {
		return c.hub, nil
	}
	h := platform.NewHub(platform.Config{Store: c.store, Logger: c.log})
	if err := h.Init(ctx); err != nil {
		return nil, err
	}
	c.hub = h
	return c.hub, nil
}
