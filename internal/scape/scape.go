package scape

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrTaskExists   = errors.New("task already registered")
	ErrTaskNotFound = errors.New("task not found")
)

// Fitness scores one output vector. Higher or lower is better depending on the
// comparator the caller pairs it with.
type Fitness func(output []float32) float32

// Case is one training example: the input fed to every network and the
// fitness applied to each network's output for that input.
type Case struct {
	Input   []float32
	Fitness Fitness
}

// Task is a named, ordered training set with fixed input/output widths.
type Task interface {
	Name() string
	InputWidth() int
	OutputWidth() int
	Cases() []Case
	// MaxScore is the best total score attainable over all cases.
	MaxScore() float32
}

var taskRegistry = struct {
	mu sync.RWMutex
	m  map[string]Task
}{
	m: make(map[string]Task),
}

func init() {
	initializeBuiltInTasks()
}

func initializeBuiltInTasks() {
	for _, task := range []Task{XOR(), AND(), OR(), NAND()} {
		MustRegister(task)
	}
}

func Register(task Task) error {
	if task == nil || task.Name() == "" {
		return errors.New("task name is required")
	}
	taskRegistry.mu.Lock()
	defer taskRegistry.mu.Unlock()

	if _, exists := taskRegistry.m[task.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.Name())
	}
	taskRegistry.m[task.Name()] = task
	return nil
}

func MustRegister(task Task) {
	if err := Register(task); err != nil {
		panic(err)
	}
}

// Lookup finds a registered task by exact name, then by its normalized
// alias.
func Lookup(name string) (Task, error) {
	taskRegistry.mu.RLock()
	task, ok := taskRegistry.m[name]
	if !ok {
		task, ok = taskRegistry.m[NormalizeName(name)]
	}
	taskRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, name)
	}
	return task, nil
}

func Names() []string {
	taskRegistry.mu.RLock()
	defer taskRegistry.mu.RUnlock()

	names := make([]string, 0, len(taskRegistry.m))
	for name := range taskRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetTaskRegistryForTests() {
	taskRegistry.mu.Lock()
	taskRegistry.m = make(map[string]Task)
	taskRegistry.mu.Unlock()
	initializeBuiltInTasks()
}
