package nn

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	// MutationSpread bounds a single mutation perturbation to [-MutationSpread, MutationSpread).
	MutationSpread = 50
)

// Genome owns one contiguous weight buffer and the layer/neuron views into it.
// The buffer is allocated once and only ever rewritten in place.
type Genome struct {
	topology   Topology
	activation string
	data       []float32
	layers     []Layer
}

func NewGenome(topology Topology) (*Genome, error) {
	return NewGenomeWithActivation(topology, DefaultActivation)
}

func NewGenomeWithActivation(topology Topology, activation string) (*Genome, error) {
	if err := topology.Validate(); err != nil {
		return nil, err
	}
	if activation == "" {
		activation = DefaultActivation
	}
	act, err := GetActivation(activation)
	if err != nil {
		return nil, err
	}

	t := append(Topology(nil), topology...)
	g := &Genome{
		topology:   t,
		activation: activation,
		data:       make([]float32, t.DataSize()),
		layers:     make([]Layer, 0, t.LayerCount()),
	}
	offset := 0
	for i := 1; i < len(t); i++ {
		size := LayerDataSize(t[i-1], t[i])
		g.layers = append(g.layers, newLayer(g.data[offset:offset+size], t[i-1], t[i], act))
		offset += size
	}
	return g, nil
}

func (g *Genome) Topology() Topology {
	return append(Topology(nil), g.topology...)
}

func (g *Genome) Activation() string {
	return g.activation
}

func (g *Genome) DataSize() int {
	return len(g.data)
}

func (g *Genome) LayerCount() int {
	return len(g.layers)
}

func (g *Genome) Layer(i int) Layer {
	return g.layers[i]
}

// Weights returns a copy of the weight buffer in layout order.
func (g *Genome) Weights() []float32 {
	return append([]float32(nil), g.data...)
}

func (g *Genome) SetWeights(weights []float32) error {
	if len(weights) != len(g.data) {
		return fmt.Errorf("weights length mismatch: got=%d want=%d", len(weights), len(g.data))
	}
	copy(g.data, weights)
	return nil
}

// Forward threads input through every layer. Input must hold
// Topology().InputWidth() values.
func (g *Genome) Forward(input []float32) []float32 {
	last := len(g.layers) - 1
	if last == 0 {
		return g.layers[0].Forward(input)
	}

	width := g.topology.maxWidth()
	scratch := make([]float32, 2*width)
	buffers := [2][]float32{scratch[:width], scratch[width:]}
	current := input
	for i, layer := range g.layers[:last] {
		current = layer.ForwardInto(buffers[i&1], current)
	}
	return g.layers[last].Forward(current)
}

// Randomize fills every slot with an independent uniform sample in [0, 1).
func (g *Genome) Randomize(rng *rand.Rand) {
	for i := range g.data {
		g.data[i] = rng.Float32()
	}
}

func (g *Genome) Clone() *Genome {
	c, err := NewGenomeWithActivation(g.topology, g.activation)
	if err != nil {
		// The receiver was built from the same topology and activation.
		panic(err)
	}
	copy(c.data, g.data)
	return c
}

// CopyFrom overwrites the receiver's buffer with src's. Both genomes must
// share a topology.
func (g *Genome) CopyFrom(src *Genome) {
	copy(g.data, src.data)
}

// Equal compares topologies and the weight buffers bit for bit.
func (g *Genome) Equal(other *Genome) bool {
	if g == other {
		return true
	}
	if other == nil || !g.topology.Equal(other.topology) {
		return false
	}
	for i, v := range g.data {
		if math.Float32bits(v) != math.Float32bits(other.data[i]) {
			return false
		}
	}
	return true
}

// CutPoints draws two independent indices in [0, size) and orders them.
func CutPoints(rng *rand.Rand, size int) (l, r int) {
	r = rng.Intn(size)
	l = rng.Intn(size)
	if l > r {
		l, r = r, l
	}
	return l, r
}

// Merge returns a child holding other's slots in [l, r) and the receiver's
// everywhere else, with l <= r drawn by CutPoints.
func (g *Genome) Merge(rng *rand.Rand, other *Genome) *Genome {
	child := g.Clone()
	g.MergeInto(child, other, rng)
	return child
}

func (g *Genome) MergeAt(other *Genome, l, r int) *Genome {
	child := g.Clone()
	g.SpliceInto(child, other, l, r)
	return child
}

// MergeInto writes the two-point splice of the receiver and other into dst
// without allocating. dst may be either parent.
func (g *Genome) MergeInto(dst, other *Genome, rng *rand.Rand) {
	l, r := CutPoints(rng, len(g.data))
	g.SpliceInto(dst, other, l, r)
}

// SpliceInto writes g[0:l] ++ other[l:r] ++ g[r:] into dst. All three genomes
// must share a topology and 0 <= l <= r <= DataSize.
func (g *Genome) SpliceInto(dst, other *Genome, l, r int) {
	copy(dst.data[:l], g.data[:l])
	copy(dst.data[r:], g.data[r:])
	copy(dst.data[l:r], other.data[l:r])
}

// Mutate adds count uniform perturbations in [-50, 50) to uniformly chosen
// slots. Indices are drawn with replacement, so repeated hits accumulate.
func (g *Genome) Mutate(rng *rand.Rand, count int) *Genome {
	for i := 0; i < count; i++ {
		idx := rng.Intn(len(g.data))
		g.data[idx] += rng.Float32()*2*MutationSpread - MutationSpread
	}
	return g
}

// Mutated returns a mutated copy and leaves the receiver untouched.
func (g *Genome) Mutated(rng *rand.Rand, count int) *Genome {
	return g.Clone().Mutate(rng, count)
}
