package nn

// Layer is a fixed-width run of neurons laid out contiguously in the owning
// genome's buffer.
type Layer struct {
	in      int
	neurons []Neuron
}

func newLayer(data []float32, in, out int, act ActivationFunc) Layer {
	neurons := make([]Neuron, out)
	size := NeuronDataSize(in)
	for i := range neurons {
		neurons[i] = Neuron{data: data[i*size : (i+1)*size : (i+1)*size], act: act}
	}
	return Layer{in: in, neurons: neurons}
}

func LayerDataSize(in, out int) int {
	return NeuronDataSize(in) * out
}

func (l Layer) InputWidth() int {
	return l.in
}

func (l Layer) OutputWidth() int {
	return len(l.neurons)
}

func (l Layer) Neuron(i int) Neuron {
	return l.neurons[i]
}

// Forward evaluates every neuron against the same input, in neuron order.
func (l Layer) Forward(input []float32) []float32 {
	out := make([]float32, len(l.neurons))
	l.ForwardInto(out, input)
	return out
}

// ForwardInto writes the layer output into dst, which must hold OutputWidth
// values, and returns it.
func (l Layer) ForwardInto(dst, input []float32) []float32 {
	dst = dst[:len(l.neurons)]
	for i, n := range l.neurons {
		dst[i] = n.Evaluate(input)
	}
	return dst
}
