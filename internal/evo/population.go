package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"evonet/internal/nn"
)

// DefaultMutations is the mutation count applied to each child when the
// caller has no preference.
const DefaultMutations = 2

var ErrInvalidConfig = errors.New("invalid population config")

// FitnessFunc scores one individual's last result.
type FitnessFunc func(result []float32) float32

// Individual pairs a genome with its last output and accumulated score.
type Individual struct {
	Score  float32
	Genome *nn.Genome
	Result []float32
}

// Population is the ordered set of individuals evolved together. Its length is
// fixed at ToUse + Immutable + ToUse*(ToUse-1)/2.
type Population struct {
	topology    nn.Topology
	activation  string
	toUse       int
	immutable   int
	workers     int
	rng         *rand.Rand
	individuals []*Individual
}

type Option func(*Population)

// WithSeed seeds the population's random source.
func WithSeed(seed int64) Option {
	return func(p *Population) {
		p.rng = rand.New(rand.NewSource(seed))
	}
}

func WithRand(rng *rand.Rand) Option {
	return func(p *Population) {
		p.rng = rng
	}
}

// WithWorkers bounds the goroutines used by Feed and CountScore. Values below
// 2 keep both sequential.
func WithWorkers(n int) Option {
	return func(p *Population) {
		p.workers = n
	}
}

// WithActivation names the registered activation every genome uses. An
// empty name keeps the default.
func WithActivation(name string) Option {
	return func(p *Population) {
		if name != "" {
			p.activation = name
		}
	}
}

// Size returns the population length for the given breeding parameters.
func Size(toUse, immutable int) int {
	return toUse + immutable + toUse*(toUse-1)/2
}

func New(topology nn.Topology, toUse, immutable int, opts ...Option) (*Population, error) {
	if toUse < 2 {
		return nil, fmt.Errorf("%w: to_use must be >= 2, got %d", ErrInvalidConfig, toUse)
	}
	if immutable < 0 {
		return nil, fmt.Errorf("%w: immutable must be >= 0, got %d", ErrInvalidConfig, immutable)
	}
	if err := topology.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	p := &Population{
		topology:   append(nn.Topology(nil), topology...),
		activation: nn.DefaultActivation,
		toUse:      toUse,
		immutable:  immutable,
		workers:    1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(1))
	}

	size := Size(toUse, immutable)
	individuals := make([]*Individual, size)
	for i := range individuals {
		genome, err := nn.NewGenomeWithActivation(p.topology, p.activation)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		individuals[i] = &Individual{
			Genome: genome,
			Result: make([]float32, p.topology.OutputWidth()),
		}
	}
	p.individuals = individuals
	return p, nil
}

func (p *Population) Topology() nn.Topology {
	return append(nn.Topology(nil), p.topology...)
}

func (p *Population) Activation() string {
	return p.activation
}

func (p *Population) ToUse() int {
	return p.toUse
}

func (p *Population) Immutable() int {
	return p.immutable
}

func (p *Population) Len() int {
	return len(p.individuals)
}

// Individual returns the individual at rank order i. The pointer stays valid
// across generations but its position may change on AdvanceGeneration.
func (p *Population) Individual(i int) *Individual {
	return p.individuals[i]
}

// Randomize fills every genome with uniform [0, 1) weights.
func (p *Population) Randomize() *Population {
	for _, ind := range p.individuals {
		ind.Genome.Randomize(p.rng)
	}
	return p
}

// Feed runs every genome on input and stores the output as its Result. Scores
// are untouched.
func (p *Population) Feed(input []float32) *Population {
	p.each(func(ind *Individual) {
		ind.Result = ind.Genome.Forward(input)
	})
	return p
}

// CountScore adds fn(Result) to every individual's score. fn must be safe for
// concurrent use when the population has more than one worker.
func (p *Population) CountScore(fn FitnessFunc) *Population {
	p.each(func(ind *Individual) {
		ind.Score += fn(ind.Result)
	})
	return p
}

func (p *Population) ResetScore() *Population {
	for _, ind := range p.individuals {
		ind.Score = 0
	}
	return p
}

// AdvanceGeneration ranks the population with a stable sort under cmp, keeps
// the first ToUse individuals as parents and the next Immutable untouched,
// and overwrites the remaining slots with one mutated child per parent pair
// (i, j), i < j, in lexicographic order.
func (p *Population) AdvanceGeneration(mutations int, cmp Comparator) *Population {
	if cmp == nil {
		cmp = CloserToZero
	}
	sort.SliceStable(p.individuals, func(i, j int) bool {
		return cmp(p.individuals[i].Score, p.individuals[j].Score)
	})

	child := p.toUse + p.immutable
	for i := 0; i < p.toUse; i++ {
		for j := i + 1; j < p.toUse; j++ {
			dst := p.individuals[child].Genome
			p.individuals[i].Genome.MergeInto(dst, p.individuals[j].Genome, p.rng)
			dst.Mutate(p.rng, mutations)
			child++
		}
	}
	return p
}

// Score is the arithmetic mean of all scores.
func (p *Population) Score() float32 {
	var sum float64
	for _, ind := range p.individuals {
		sum += float64(ind.Score)
	}
	return float32(sum / float64(len(p.individuals)))
}

// Best returns the first individual that no later one outranks under cmp.
func (p *Population) Best(cmp Comparator) *Individual {
	if cmp == nil {
		cmp = CloserToZero
	}
	best := p.individuals[0]
	for _, ind := range p.individuals[1:] {
		if cmp(ind.Score, best.Score) {
			best = ind
		}
	}
	return best
}

func (p *Population) BestScore(cmp Comparator) float32 {
	return p.Best(cmp).Score
}

func (p *Population) BestResult(cmp Comparator) []float32 {
	return append([]float32(nil), p.Best(cmp).Result...)
}

// Result is the element-wise mean of every individual's last result.
func (p *Population) Result() []float32 {
	width := p.topology.OutputWidth()
	sums := make([]float64, width)
	for _, ind := range p.individuals {
		for i := 0; i < width && i < len(ind.Result); i++ {
			sums[i] += float64(ind.Result[i])
		}
	}
	out := make([]float32, width)
	for i, s := range sums {
		out[i] = float32(s / float64(len(p.individuals)))
	}
	return out
}

func (p *Population) Scores() []float32 {
	out := make([]float32, len(p.individuals))
	for i, ind := range p.individuals {
		out[i] = ind.Score
	}
	return out
}

// Equal compares genomes position by position.
func (p *Population) Equal(other *Population) bool {
	if len(p.individuals) != len(other.individuals) {
		return false
	}
	for i, ind := range p.individuals {
		if !ind.Genome.Equal(other.individuals[i].Genome) {
			return false
		}
	}
	return true
}
