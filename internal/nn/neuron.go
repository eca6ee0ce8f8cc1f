package nn

// Neuron is a view over 2*in slots of its genome's weight buffer. Slot 2i holds
// the weight applied to input i and slot 2i+1 the bias term added for it.
type Neuron struct {
	data []float32
	act  ActivationFunc
}

// NeuronDataSize reports the number of buffer slots a neuron with the given
// input width occupies.
func NeuronDataSize(in int) int {
	return 2 * in
}

func (n Neuron) InputWidth() int {
	return len(n.data) / 2
}

// Evaluate computes act(sum(input[i]*w[2i] + w[2i+1])). The input must hold
// exactly InputWidth values.
func (n Neuron) Evaluate(input []float32) float32 {
	data := n.data[:2*len(input)]
	var o float32
	for i, x := range input {
		o += x*data[i<<1] + data[i<<1+1]
	}
	return n.act(o)
}
