package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"evonet/internal/evo"
	"evonet/internal/model"
	"evonet/internal/nn"
	"evonet/internal/scape"
	"evonet/internal/storage"
)

var (
	ErrNotInitialized = errors.New("hub is not initialized")
	ErrRunNotActive   = errors.New("run is not active")
	ErrRunReset       = errors.New("run was discarded by reset")
)

type Config struct {
	Store  storage.Store
	Logger *slog.Logger
}

// TrainConfig describes one training run. When ContinueFrom names a stored
// population snapshot, the network shape and breeding parameters come from
// the snapshot and the matching fields here are ignored.
type TrainConfig struct {
	RunID        string
	Task         string
	Topology     nn.Topology
	Activation   string
	ToUse        int
	Immutable    int
	Mutations    int
	Seed         int64
	Workers      int
	Selection    string
	Generations  int
	TimeLimit    time.Duration
	FitnessGoal  float64
	GoalEnabled  bool
	ContinueFrom string
	OnGeneration func(model.GenerationDiagnostics)
}

type TrainResult struct {
	RunID             string
	PopulationID      string
	BestGenomeID      string
	ContinuedFrom     string
	InitialGeneration int
	// BestByGeneration and Diagnostics include the history of the run the
	// population was continued from.
	BestByGeneration []float64
	Diagnostics      []model.GenerationDiagnostics
	BestScore        float64
	BestGenome       []byte
	StopReason       evo.StopReason
	Generations      int
	PopulationSize   int
	Elapsed          time.Duration
}

// Hub owns the task registry and a store, and runs training over them.
type Hub struct {
	store storage.Store
	log   *slog.Logger

	mu      sync.RWMutex
	tasks   map[string]scape.Task
	started bool
	runs    map[string]*activeRun
}

type activeRun struct {
	cancel    context.CancelFunc
	done      chan struct{}
	stopped   bool
	discarded bool
}

func NewHub(cfg Config) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Hub{
		store: cfg.Store,
		log:   logger,
		tasks: make(map[string]scape.Task),
		runs:  make(map[string]*activeRun),
	}
}

// Init initializes the store and registers every built-in task.
func (h *Hub) Init(ctx context.Context) error {
	if h.store == nil {
		return fmt.Errorf("store is required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}
	if err := h.store.Init(ctx); err != nil {
		return err
	}
	for _, name := range scape.Names() {
		task, err := scape.Lookup(name)
		if err != nil {
			return err
		}
		h.tasks[name] = task
	}
	h.started = true
	return nil
}

// Reset discards active runs, waits for them to return and drops every
// stored record. Registered tasks are kept. Discarded runs persist nothing
// and their Train calls fail with ErrRunReset. Reset must not be called from
// an OnGeneration callback.
func (h *Hub) Reset(ctx context.Context) error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return ErrNotInitialized
	}
	pending := make([]chan struct{}, 0, len(h.runs))
	for _, run := range h.runs {
		run.discarded = true
		run.cancel()
		pending = append(pending, run.done)
	}
	h.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return h.store.Reset(ctx)
}

func (h *Hub) RegisterTask(task scape.Task) error {
	if task == nil {
		return fmt.Errorf("task is nil")
	}
	if task.Name() == "" {
		return fmt.Errorf("task name is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return ErrNotInitialized
	}
	h.tasks[task.Name()] = task
	return nil
}

// GetTask resolves name exactly, then through scape.NormalizeName.
func (h *Hub) GetTask(name string) (scape.Task, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	task, ok := h.tasks[name]
	if !ok {
		task, ok = h.tasks[scape.NormalizeName(name)]
	}
	return task, ok
}

func (h *Hub) RegisteredTasks() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.tasks))
	for name := range h.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Hub) Store() storage.Store {
	return h.store
}

// StopRun cancels an active run. The run still persists what it scored,
// with stop reason "stopped".
func (h *Hub) StopRun(runID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	run, ok := h.runs[runID]
	if !ok || run.stopped || run.discarded {
		return fmt.Errorf("%w: %s", ErrRunNotActive, runID)
	}
	run.stopped = true
	run.cancel()
	return nil
}

// registerRun tracks runID until release is called. The entry stays in
// place while the run persists, so Reset can wait for it.
func (h *Hub) registerRun(ctx context.Context, runID string) (context.Context, *activeRun, func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.runs[runID]; exists {
		return nil, nil, nil, fmt.Errorf("run already active: %s", runID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &activeRun{cancel: cancel, done: make(chan struct{})}
	h.runs[runID] = run
	return runCtx, run, func() {
		cancel()
		h.mu.Lock()
		delete(h.runs, runID)
		h.mu.Unlock()
		close(run.done)
	}, nil
}

func (h *Hub) runDiscarded(run *activeRun) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return run.discarded
}

// Train builds or restores a population, runs it to a stop condition and
// persists the final snapshot, best genome, fitness history, diagnostics and
// run record.
func (h *Hub) Train(ctx context.Context, cfg TrainConfig) (TrainResult, error) {
	h.mu.RLock()
	started := h.started
	h.mu.RUnlock()

	if !started {
		return TrainResult{}, ErrNotInitialized
	}
	if cfg.Task == "" {
		return TrainResult{}, fmt.Errorf("task name is required")
	}
	task, ok := h.GetTask(cfg.Task)
	if !ok {
		return TrainResult{}, fmt.Errorf("%w: %s", scape.ErrTaskNotFound, cfg.Task)
	}
	cfg.Task = task.Name()
	cmp, err := evo.ComparatorFromName(cfg.Selection)
	if err != nil {
		return TrainResult{}, err
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := h.log.With("run_id", runID)

	var (
		pop      *evo.Population
		previous priorRun
	)
	if cfg.ContinueFrom != "" {
		pop, previous, err = h.restorePopulation(ctx, cfg, cmp)
	} else {
		pop, err = evo.New(cfg.Topology, cfg.ToUse, cfg.Immutable,
			evo.WithSeed(cfg.Seed),
			evo.WithWorkers(cfg.Workers),
			evo.WithActivation(cfg.Activation),
		)
		if err == nil {
			pop.Randomize()
		}
	}
	if err != nil {
		return TrainResult{}, err
	}

	offset := previous.generation
	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Task:        task,
		Mutations:   cfg.Mutations,
		Comparator:  cmp,
		Generations: cfg.Generations,
		TimeLimit:   cfg.TimeLimit,
		FitnessGoal: float32(cfg.FitnessGoal),
		GoalEnabled: cfg.GoalEnabled,
		Logger:      logger,
		OnGeneration: func(d evo.GenerationDiagnostics) {
			if cfg.OnGeneration != nil {
				d.Generation += offset
				cfg.OnGeneration(model.GenerationDiagnostics(d))
			}
		},
	})
	if err != nil {
		return TrainResult{}, err
	}

	runCtx, active, release, err := h.registerRun(ctx, runID)
	if err != nil {
		return TrainResult{}, err
	}
	defer release()

	logger.Info("run started",
		"task", cfg.Task,
		"population", pop.Len(),
		"topology", pop.Topology().String(),
		"continued_from", cfg.ContinueFrom,
	)
	createdAt := time.Now().UTC()
	runResult, err := monitor.Run(runCtx, pop)
	if h.runDiscarded(active) {
		logger.Info("run discarded by reset")
		return TrainResult{}, fmt.Errorf("%w: %s", ErrRunReset, runID)
	}
	if err != nil {
		if ctx.Err() != nil || !errors.Is(err, context.Canceled) || runResult.Generations == 0 {
			return TrainResult{}, err
		}
		runResult.StopReason = evo.StopReasonStopped
	}

	result := TrainResult{
		RunID:             runID,
		PopulationID:      runID,
		BestGenomeID:      uuid.NewString(),
		ContinuedFrom:     cfg.ContinueFrom,
		InitialGeneration: offset,
		BestByGeneration:  append(append([]float64(nil), previous.history...), runResult.BestByGeneration...),
		Diagnostics:       append([]model.GenerationDiagnostics(nil), previous.diagnostics...),
		BestScore:         float64(runResult.BestScore),
		StopReason:        runResult.StopReason,
		Generations:       offset + runResult.Generations,
		PopulationSize:    pop.Len(),
		Elapsed:           runResult.Elapsed,
	}
	for _, d := range runResult.Diagnostics {
		d.Generation += offset
		result.Diagnostics = append(result.Diagnostics, model.GenerationDiagnostics(d))
	}

	best := pop.Best(cmp)
	result.BestGenome, err = best.Genome.MarshalBinary()
	if err != nil {
		return TrainResult{}, err
	}
	if err := h.persist(ctx, cfg, pop, result, createdAt); err != nil {
		return TrainResult{}, err
	}

	logger.Info("run persisted",
		"stop_reason", string(result.StopReason),
		"generations", result.Generations,
		"best", result.BestScore,
	)
	return result, nil
}

type priorRun struct {
	generation  int
	history     []float64
	diagnostics []model.GenerationDiagnostics
}

// restorePopulation rebuilds a population from a stored snapshot and breeds
// it once, so training resumes where the snapshotted run stopped.
func (h *Hub) restorePopulation(ctx context.Context, cfg TrainConfig, cmp evo.Comparator) (*evo.Population, priorRun, error) {
	snapshot, ok, err := h.store.GetPopulation(ctx, cfg.ContinueFrom)
	if err != nil {
		return nil, priorRun{}, err
	}
	if !ok {
		return nil, priorRun{}, fmt.Errorf("population snapshot not found: %s", cfg.ContinueFrom)
	}

	pop, err := evo.New(snapshot.Topology, snapshot.ToUse, snapshot.Immutable,
		evo.WithSeed(cfg.Seed),
		evo.WithWorkers(cfg.Workers),
		evo.WithActivation(snapshot.Activation),
	)
	if err != nil {
		return nil, priorRun{}, fmt.Errorf("rebuild population %s: %w", snapshot.ID, err)
	}
	states := make([]evo.IndividualState, len(snapshot.Individuals))
	for i, ind := range snapshot.Individuals {
		states[i] = evo.IndividualState{Score: ind.Score, Weights: ind.Weights}
	}
	if err := pop.Restore(states); err != nil {
		return nil, priorRun{}, fmt.Errorf("restore population %s: %w", snapshot.ID, err)
	}
	pop.AdvanceGeneration(cfg.Mutations, cmp)

	prior := priorRun{generation: snapshot.Generation}
	if snapshot.RunID != "" {
		if history, ok, err := h.store.GetFitnessHistory(ctx, snapshot.RunID); err != nil {
			return nil, priorRun{}, err
		} else if ok {
			prior.history = history
		}
		if diagnostics, ok, err := h.store.GetGenerationDiagnostics(ctx, snapshot.RunID); err != nil {
			return nil, priorRun{}, err
		} else if ok {
			prior.diagnostics = diagnostics
		}
	}
	return pop, prior, nil
}

func (h *Hub) persist(ctx context.Context, cfg TrainConfig, pop *evo.Population, result TrainResult, createdAt time.Time) error {
	states, err := pop.Snapshot()
	if err != nil {
		return err
	}
	topology := []int(pop.Topology())
	snapshot := model.PopulationSnapshot{
		VersionedRecord: storage.Versioned(),
		ID:              result.PopulationID,
		RunID:           result.RunID,
		Generation:      result.Generations,
		Topology:        topology,
		Activation:      pop.Activation(),
		ToUse:           pop.ToUse(),
		Immutable:       pop.Immutable(),
		Individuals:     make([]model.IndividualRecord, len(states)),
	}
	for i, state := range states {
		snapshot.Individuals[i] = model.IndividualRecord{Score: state.Score, Weights: state.Weights}
	}
	if err := h.store.SavePopulation(ctx, snapshot); err != nil {
		return fmt.Errorf("save population: %w", err)
	}

	if err := h.store.SaveGenome(ctx, model.GenomeRecord{
		VersionedRecord: storage.Versioned(),
		ID:              result.BestGenomeID,
		Topology:        topology,
		Activation:      pop.Activation(),
		Weights:         result.BestGenome,
	}); err != nil {
		return fmt.Errorf("save best genome: %w", err)
	}
	if err := h.store.SaveFitnessHistory(ctx, result.RunID, result.BestByGeneration); err != nil {
		return fmt.Errorf("save fitness history: %w", err)
	}
	if err := h.store.SaveGenerationDiagnostics(ctx, result.RunID, result.Diagnostics); err != nil {
		return fmt.Errorf("save diagnostics: %w", err)
	}

	run := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              result.RunID,
		Task:            cfg.Task,
		CreatedAtUTC:    createdAt.Format(time.RFC3339Nano),
		Topology:        topology,
		Activation:      pop.Activation(),
		ToUse:           pop.ToUse(),
		Immutable:       pop.Immutable(),
		Mutations:       cfg.Mutations,
		Seed:            cfg.Seed,
		Workers:         cfg.Workers,
		Selection:       cfg.Selection,
		FitnessGoal:     cfg.FitnessGoal,
		GoalEnabled:     cfg.GoalEnabled,
		MaxGenerations:  cfg.Generations,
		TimeLimitMS:     cfg.TimeLimit.Milliseconds(),
		ContinuedFrom:   cfg.ContinueFrom,
		Generations:     result.Generations,
		FinalBestScore:  result.BestScore,
		StopReason:      string(result.StopReason),
		ElapsedMS:       result.Elapsed.Milliseconds(),
		BestGenomeID:    result.BestGenomeID,
		PopulationID:    result.PopulationID,
	}
	if err := h.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

// LoadGenome decodes a stored genome record into a runnable genome.
func (h *Hub) LoadGenome(ctx context.Context, id string) (*nn.Genome, error) {
	record, ok, err := h.store.GetGenome(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("genome not found: %s", id)
	}
	genome, err := nn.NewGenomeWithActivation(record.Topology, record.Activation)
	if err != nil {
		return nil, fmt.Errorf("genome %s: %w", id, err)
	}
	if err := genome.UnmarshalBinary(record.Weights); err != nil {
		return nil, fmt.Errorf("genome %s: %w", id, err)
	}
	return genome, nil
}
