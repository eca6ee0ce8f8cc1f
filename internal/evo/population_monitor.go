package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"evonet/internal/scape"
)

type StopReason string

const (
	StopReasonGoal        StopReason = "goal_reached"
	StopReasonGenerations StopReason = "generation_limit"
	StopReasonTimeLimit   StopReason = "time_limit"
	// StopReasonStopped marks a run cancelled by its owner rather than by a
	// limit. The monitor itself never reports it.
	StopReasonStopped StopReason = "stopped"
)

type MonitorConfig struct {
	Task       scape.Task
	Mutations int
	// Comparator ranks and picks the best individual; nil means
	// CloserToZero, as in Population.
	Comparator Comparator
	// Generations caps scored generations; 0 leaves the run bounded by
	// TimeLimit or the goal only.
	Generations int
	TimeLimit   time.Duration
	// FitnessGoal stops the run once the best score reaches it under
	// Comparator. Ignored unless GoalEnabled is set.
	FitnessGoal  float32
	GoalEnabled  bool
	Logger       *slog.Logger
	OnGeneration func(GenerationDiagnostics)
}

type RunResult struct {
	Generations      int
	BestByGeneration []float64
	Diagnostics      []GenerationDiagnostics
	BestScore        float32
	StopReason       StopReason
	Elapsed          time.Duration
}

// PopulationMonitor drives the training loop over a task: reset, feed and
// score every case, check the goal, advance.
type PopulationMonitor struct {
	cfg MonitorConfig
	log *slog.Logger
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Task == nil {
		return nil, fmt.Errorf("task is required")
	}
	if len(cfg.Task.Cases()) == 0 {
		return nil, fmt.Errorf("task %s has no cases", cfg.Task.Name())
	}
	if cfg.Mutations < 0 {
		return nil, fmt.Errorf("mutations must be >= 0")
	}
	if cfg.Generations < 0 {
		return nil, fmt.Errorf("generations must be >= 0")
	}
	if cfg.TimeLimit < 0 {
		return nil, fmt.Errorf("time limit must be >= 0")
	}
	if cfg.Generations == 0 && cfg.TimeLimit == 0 {
		return nil, fmt.Errorf("generations or time limit is required")
	}
	if cfg.Comparator == nil {
		cfg.Comparator = CloserToZero
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PopulationMonitor{
		cfg: cfg,
		log: logger.With("task", cfg.Task.Name()),
	}, nil
}

// Run trains pop until the goal, the generation limit or the time limit is
// hit. The population is left fully scored for its last generation. A
// cancelled parent context returns its error with the partial result.
func (m *PopulationMonitor) Run(ctx context.Context, pop *Population) (RunResult, error) {
	topology := pop.Topology()
	if topology.InputWidth() != m.cfg.Task.InputWidth() || topology.OutputWidth() != m.cfg.Task.OutputWidth() {
		return RunResult{}, fmt.Errorf("topology %s does not fit task %s (%d inputs, %d outputs)",
			topology, m.cfg.Task.Name(), m.cfg.Task.InputWidth(), m.cfg.Task.OutputWidth())
	}
	if err := ctx.Err(); err != nil {
		return RunResult{}, err
	}

	runCtx := ctx
	if m.cfg.TimeLimit > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.cfg.TimeLimit)
		defer cancel()
	}

	cmp := m.cfg.Comparator
	cases := m.cfg.Task.Cases()
	start := time.Now()
	result := RunResult{}
	if m.cfg.Generations > 0 {
		result.BestByGeneration = make([]float64, 0, m.cfg.Generations)
		result.Diagnostics = make([]GenerationDiagnostics, 0, m.cfg.Generations)
	}

	for gen := 0; ; gen++ {
		pop.ResetScore()
		for _, c := range cases {
			pop.Feed(c.Input).CountScore(FitnessFunc(c.Fitness))
		}

		diag := pop.Diagnose(gen, cmp)
		result.Generations = gen + 1
		result.BestScore = float32(diag.BestScore)
		result.BestByGeneration = append(result.BestByGeneration, diag.BestScore)
		result.Diagnostics = append(result.Diagnostics, diag)
		m.log.Debug("generation scored", "generation", gen, "best", diag.BestScore, "mean", diag.MeanScore)
		if m.cfg.OnGeneration != nil {
			m.cfg.OnGeneration(diag)
		}

		if m.cfg.GoalEnabled && Reached(cmp, result.BestScore, m.cfg.FitnessGoal) {
			result.StopReason = StopReasonGoal
			break
		}
		if m.cfg.Generations > 0 && gen+1 >= m.cfg.Generations {
			result.StopReason = StopReasonGenerations
			break
		}
		if err := ctx.Err(); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			result.StopReason = StopReasonTimeLimit
			break
		}

		pop.AdvanceGeneration(m.cfg.Mutations, cmp)
	}

	result.Elapsed = time.Since(start)
	m.log.Info("run stopped",
		"reason", string(result.StopReason),
		"generations", result.Generations,
		"best", result.BestScore,
		"elapsed", result.Elapsed,
	)
	return result, nil
}
