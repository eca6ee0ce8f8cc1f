package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"evonet/internal/evo"
	"evonet/internal/nn"
	"evonet/internal/storage"
)

var ErrInvalid = errors.New("invalid config")

// Config is the full run configuration, one struct per INI section.
type Config struct {
	Network    NetworkConfig
	Population PopulationConfig
	Run        RunConfig
	Store      StoreConfig
}

type NetworkConfig struct {
	// Topology lists layer widths separated by spaces, commas or 'x'.
	Topology   string `ini:"topology"`
	Activation string `ini:"activation"`
}

type PopulationConfig struct {
	ToUse     int   `ini:"to_use"`
	Immutable int   `ini:"immutable"`
	Mutations int   `ini:"mutations"`
	Seed      int64 `ini:"seed"`
	Workers   int   `ini:"workers"`
}

type RunConfig struct {
	Task        string        `ini:"task"`
	Selection   string        `ini:"selection"`
	Generations int           `ini:"generations"`
	TimeLimit   time.Duration `ini:"time_limit"`
	FitnessGoal float64       `ini:"fitness_goal"`
	GoalEnabled bool          `ini:"goal_enabled"`
}

type StoreConfig struct {
	Kind         string `ini:"kind"`
	Path         string `ini:"path"`
	ArtifactsDir string `ini:"artifacts_dir"`
}

// Default trains the xor gate on a 2-3-2 network until the best score
// reaches 7.5 of 8.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			Topology:   "2 3 2",
			Activation: nn.DefaultActivation,
		},
		Population: PopulationConfig{
			ToUse:     25,
			Mutations: 5,
			Seed:      1,
			Workers:   1,
		},
		Run: RunConfig{
			Task:        "xor",
			Selection:   "greater",
			Generations: 1000,
			FitnessGoal: 7.5,
			GoalEnabled: true,
		},
		Store: StoreConfig{
			Kind:         storage.DefaultStoreKind(),
			Path:         "evonet.db",
			ArtifactsDir: "artifacts",
		},
	}
}

// Load reads an INI file over Default. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, path)
	if err != nil {
		return Config{}, fmt.Errorf("load config file %s: %w", path, err)
	}

	cfg := Default()
	sections := []struct {
		name string
		dst  any
	}{
		{"network", &cfg.Network},
		{"population", &cfg.Population},
		{"run", &cfg.Run},
		{"store", &cfg.Store},
	}
	for _, s := range sections {
		if !file.HasSection(s.name) {
			continue
		}
		if err := file.Section(s.name).StrictMapTo(s.dst); err != nil {
			return Config{}, fmt.Errorf("map [%s] section: %w", s.name, err)
		}
	}

	cfg.Network.Topology = strings.TrimSpace(cfg.Network.Topology)
	cfg.Network.Activation = strings.TrimSpace(cfg.Network.Activation)
	cfg.Run.Task = strings.TrimSpace(cfg.Run.Task)
	cfg.Run.Selection = strings.TrimSpace(cfg.Run.Selection)
	cfg.Store.Kind = strings.TrimSpace(cfg.Store.Kind)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg as INI, one section per struct.
func Save(path string, cfg Config) error {
	file := ini.Empty()
	sections := []struct {
		name string
		src  any
	}{
		{"network", &cfg.Network},
		{"population", &cfg.Population},
		{"run", &cfg.Run},
		{"store", &cfg.Store},
	}
	for _, s := range sections {
		section, err := file.NewSection(s.name)
		if err != nil {
			return err
		}
		if err := section.ReflectFrom(s.src); err != nil {
			return fmt.Errorf("reflect [%s] section: %w", s.name, err)
		}
	}
	return file.SaveTo(path)
}

func (c Config) Validate() error {
	if _, err := nn.ParseTopology(c.Network.Topology); err != nil {
		return fmt.Errorf("%w: network.topology: %w", ErrInvalid, err)
	}
	if _, err := nn.GetActivation(c.Network.Activation); err != nil {
		return fmt.Errorf("%w: network.activation: %w", ErrInvalid, err)
	}
	if c.Population.ToUse < 2 {
		return fmt.Errorf("%w: population.to_use must be >= 2, got %d", ErrInvalid, c.Population.ToUse)
	}
	if c.Population.Immutable < 0 {
		return fmt.Errorf("%w: population.immutable must be >= 0", ErrInvalid)
	}
	if c.Population.Mutations < 0 {
		return fmt.Errorf("%w: population.mutations must be >= 0", ErrInvalid)
	}
	if c.Population.Workers < 0 {
		return fmt.Errorf("%w: population.workers must be >= 0", ErrInvalid)
	}
	if c.Run.Task == "" {
		return fmt.Errorf("%w: run.task is required", ErrInvalid)
	}
	if _, err := evo.ComparatorFromName(c.Run.Selection); err != nil {
		return fmt.Errorf("%w: run.selection: %w", ErrInvalid, err)
	}
	if c.Run.Generations < 0 || c.Run.TimeLimit < 0 {
		return fmt.Errorf("%w: run limits must be >= 0", ErrInvalid)
	}
	if c.Run.Generations == 0 && c.Run.TimeLimit == 0 {
		return fmt.Errorf("%w: run.generations or run.time_limit is required", ErrInvalid)
	}
	switch c.Store.Kind {
	case "", storage.KindMemory:
	case storage.KindSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for sqlite", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unsupported store.kind %q", ErrInvalid, c.Store.Kind)
	}
	return nil
}

// Topology parses Network.Topology. Call Validate first.
func (c Config) Topology() nn.Topology {
	t, _ := nn.ParseTopology(c.Network.Topology)
	return t
}
