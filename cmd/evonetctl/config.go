package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"evonet/internal/config"
	"evonet/pkg/evonet"
)

// storeFlags are shared by every subcommand that touches the store or the
// artifacts directory. Flags explicitly set on the command line win over the
// INI file, which wins over the built-in defaults.
type storeFlags struct {
	configPath *string
	storeKind  *string
	dbPath     *string
	artifacts  *string
	verbose    *bool
}

func addStoreFlags(fs *flag.FlagSet) *storeFlags {
	defaults := config.Default()
	return &storeFlags{
		configPath: fs.String("config", "", "optional INI config path"),
		storeKind:  fs.String("store", defaults.Store.Kind, "store backend: memory|sqlite"),
		dbPath:     fs.String("db-path", defaults.Store.Path, "sqlite database path"),
		artifacts:  fs.String("artifacts", defaults.Store.ArtifactsDir, "run artifacts directory"),
		verbose:    fs.Bool("v", false, "log debug output to stderr"),
	}
}

func setFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

func (s *storeFlags) load(fs *flag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if *s.configPath != "" {
		loaded, err := config.Load(*s.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	set := setFlags(fs)
	if set["store"] {
		cfg.Store.Kind = *s.storeKind
	}
	if set["db-path"] {
		cfg.Store.Path = *s.dbPath
	}
	if set["artifacts"] {
		cfg.Store.ArtifactsDir = *s.artifacts
	}
	return cfg, nil
}

func (s *storeFlags) client(cfg config.Config) (*evonet.Client, error) {
	return evonet.New(evonet.Options{
		StoreKind:    cfg.Store.Kind,
		DBPath:       cfg.Store.Path,
		ArtifactsDir: cfg.Store.ArtifactsDir,
		Logger:       newLogger(*s.verbose),
	})
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// runFlags mirror the [network], [population] and [run] INI sections.
type runFlags struct {
	task        *string
	topology    *string
	activation  *string
	toUse       *int
	immutable   *int
	mutations   *int
	seed        *int64
	workers     *int
	selection   *string
	generations *int
	timeLimit   *time.Duration
	goal        *float64
	goalEnabled *bool
}

func addRunFlags(fs *flag.FlagSet) *runFlags {
	defaults := config.Default()
	f := &runFlags{
		task:        fs.String("task", defaults.Run.Task, "task name"),
		topology:    fs.String("topology", defaults.Network.Topology, "layer widths, e.g. \"2 3 2\" or 2x3x2"),
		activation:  fs.String("activation", defaults.Network.Activation, "activation function name"),
		toUse:       fs.Int("to-use", defaults.Population.ToUse, "individuals bred each generation (>= 2)"),
		immutable:   fs.Int("immutable", defaults.Population.Immutable, "additional top individuals kept unchanged"),
		mutations:   fs.Int("mutations", defaults.Population.Mutations, "weight mutations per child"),
		seed:        fs.Int64("seed", defaults.Population.Seed, "rng seed"),
		workers:     fs.Int("workers", defaults.Population.Workers, "feed and score worker count"),
		selection:   fs.String("selection", defaults.Run.Selection, "ranking: greater|less|closer_to_zero"),
		generations: fs.Int("gens", defaults.Run.Generations, "generation limit (0 disables)"),
		timeLimit:   fs.Duration("time-limit", defaults.Run.TimeLimit, "wall clock limit, e.g. 30s (0 disables)"),
		goal:        fs.Float64("goal", defaults.Run.FitnessGoal, "fitness goal"),
		goalEnabled: fs.Bool("goal-enabled", defaults.Run.GoalEnabled, "stop once the fitness goal is reached"),
	}
	return f
}

func (f *runFlags) apply(fs *flag.FlagSet, cfg *config.Config) error {
	set := setFlags(fs)
	if set["task"] {
		cfg.Run.Task = *f.task
	}
	if set["topology"] {
		cfg.Network.Topology = *f.topology
	}
	if set["activation"] {
		cfg.Network.Activation = *f.activation
	}
	if set["to-use"] {
		cfg.Population.ToUse = *f.toUse
	}
	if set["immutable"] {
		cfg.Population.Immutable = *f.immutable
	}
	if set["mutations"] {
		cfg.Population.Mutations = *f.mutations
	}
	if set["seed"] {
		cfg.Population.Seed = *f.seed
	}
	if set["workers"] {
		cfg.Population.Workers = *f.workers
	}
	if set["selection"] {
		cfg.Run.Selection = *f.selection
	}
	if set["gens"] {
		cfg.Run.Generations = *f.generations
	}
	if set["time-limit"] {
		cfg.Run.TimeLimit = *f.timeLimit
	}
	if set["goal"] {
		cfg.Run.FitnessGoal = *f.goal
	}
	if set["goal-enabled"] {
		cfg.Run.GoalEnabled = *f.goalEnabled
	}
	return cfg.Validate()
}

func runRequestFromConfig(cfg config.Config) evonet.RunRequest {
	mutations := cfg.Population.Mutations
	if mutations == 0 {
		mutations = evonet.NoMutations
	}
	return evonet.RunRequest{
		Task:        cfg.Run.Task,
		Topology:    cfg.Topology(),
		Activation:  cfg.Network.Activation,
		ToUse:       cfg.Population.ToUse,
		Immutable:   cfg.Population.Immutable,
		Mutations:   mutations,
		Seed:        cfg.Population.Seed,
		Workers:     cfg.Population.Workers,
		Selection:   cfg.Run.Selection,
		Generations: cfg.Run.Generations,
		TimeLimit:   cfg.Run.TimeLimit,
		FitnessGoal: cfg.Run.FitnessGoal,
		GoalEnabled: cfg.Run.GoalEnabled,
	}
}

func parseInput(s string) ([]float32, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(fields) == 0 {
		return nil, fmt.Errorf("input is empty")
	}
	out := make([]float32, len(fields))
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return nil, fmt.Errorf("input value %d: %w", i, err)
		}
		out[i] = float32(v)
	}
	return out, nil
}
