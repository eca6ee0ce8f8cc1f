package evo

import (
	"github.com/sourcegraph/conc/pool"
)

// each applies fn to every individual. With more than one worker the
// individuals are split into contiguous chunks, one goroutine per chunk, and
// each returns only after every chunk is done. fn must touch only the
// individual it is given.
func (p *Population) each(fn func(*Individual)) {
	workers := p.workers
	if workers > len(p.individuals) {
		workers = len(p.individuals)
	}
	if workers < 2 {
		for _, ind := range p.individuals {
			fn(ind)
		}
		return
	}

	chunk := (len(p.individuals) + workers - 1) / workers
	wp := pool.New().WithMaxGoroutines(workers)
	for start := 0; start < len(p.individuals); start += chunk {
		end := start + chunk
		if end > len(p.individuals) {
			end = len(p.individuals)
		}
		part := p.individuals[start:end]
		wp.Go(func() {
			for _, ind := range part {
				fn(ind)
			}
		})
	}
	wp.Wait()
}
