package evo

import (
	"fmt"
)

// IndividualState is the persistable part of an individual: its score and the
// raw binary genome.
type IndividualState struct {
	Score   float32
	Weights []byte
}

// Snapshot captures scores and genome buffers in rank order.
func (p *Population) Snapshot() ([]IndividualState, error) {
	out := make([]IndividualState, len(p.individuals))
	for i, ind := range p.individuals {
		payload, err := ind.Genome.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("snapshot individual %d: %w", i, err)
		}
		out[i] = IndividualState{Score: ind.Score, Weights: payload}
	}
	return out, nil
}

// Restore overwrites scores and genomes from a snapshot of the same shape.
// Results are zeroed. On error the population is left unchanged.
func (p *Population) Restore(states []IndividualState) error {
	if len(states) != len(p.individuals) {
		return fmt.Errorf("%w: snapshot has %d individuals, population has %d", ErrInvalidConfig, len(states), len(p.individuals))
	}
	decoded := make([]*Individual, len(states))
	for i, state := range states {
		ind := p.individuals[i]
		genome := ind.Genome.Clone()
		if err := genome.UnmarshalBinary(state.Weights); err != nil {
			return fmt.Errorf("restore individual %d: %w", i, err)
		}
		decoded[i] = &Individual{Score: state.Score, Genome: genome}
	}
	for i, ind := range p.individuals {
		ind.Score = decoded[i].Score
		ind.Genome.CopyFrom(decoded[i].Genome)
		for j := range ind.Result {
			ind.Result[j] = 0
		}
	}
	return nil
}
