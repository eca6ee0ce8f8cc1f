package scape

// GateTask classifies the four binary input pairs of a two-input logic gate
// with a two-wide output: output[0] > output[1] means true. Each case scores
// the signed margin in the expected direction, so the best total is 8.
type GateTask struct {
	name  string
	truth func(a, b bool) bool
	cases []Case
}

func NewGateTask(name string, truth func(a, b bool) bool) *GateTask {
	g := &GateTask{name: name, truth: truth}
	for _, in := range [][2]float32{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		fitness := CheckFalse
		if truth(in[0] == 1, in[1] == 1) {
			fitness = CheckTrue
		}
		g.cases = append(g.cases, Case{Input: []float32{in[0], in[1]}, Fitness: fitness})
	}
	return g
}

func XOR() *GateTask {
	return NewGateTask("xor", func(a, b bool) bool { return a != b })
}

func AND() *GateTask {
	return NewGateTask("and", func(a, b bool) bool { return a && b })
}

func OR() *GateTask {
	return NewGateTask("or", func(a, b bool) bool { return a || b })
}

func NAND() *GateTask {
	return NewGateTask("nand", func(a, b bool) bool { return !(a && b) })
}

// CheckTrue rewards output[0] exceeding output[1].
func CheckTrue(output []float32) float32 {
	return output[0] - output[1]
}

// CheckFalse rewards output[1] exceeding output[0].
func CheckFalse(output []float32) float32 {
	return output[1] - output[0]
}

func (g *GateTask) Name() string {
	return g.name
}

func (*GateTask) InputWidth() int {
	return 2
}

func (*GateTask) OutputWidth() int {
	return 2
}

func (g *GateTask) Cases() []Case {
	out := make([]Case, len(g.cases))
	for i, c := range g.cases {
		out[i] = Case{Input: append([]float32(nil), c.Input...), Fitness: c.Fitness}
	}
	return out
}

func (g *GateTask) MaxScore() float32 {
	return 2 * float32(len(g.cases))
}

// Classify reports the gate decision encoded by an output vector.
func Classify(output []float32) bool {
	return output[0] > output[1]
}

// Accuracy counts the cases whose output is classified correctly.
func (g *GateTask) Accuracy(forward func(input []float32) []float32) int {
	correct := 0
	for _, in := range [][2]float32{{0, 0}, {0, 1}, {1, 0}, {1, 1}} {
		want := g.truth(in[0] == 1, in[1] == 1)
		if Classify(forward([]float32{in[0], in[1]})) == want {
			correct++
		}
	}
	return correct
}
