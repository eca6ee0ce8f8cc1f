package nn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidTopology = errors.New("invalid topology")

// Topology lists layer widths from the input vector to the output vector.
// A topology of [2 3 2] describes two layers: 2->3 and 3->2.
type Topology []int

func NewTopology(widths ...int) (Topology, error) {
	t := Topology(append([]int(nil), widths...))
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ParseTopology reads widths separated by spaces, commas or 'x'
// ("2 3 2", "2,3,2", "2x3x2").
func ParseTopology(s string) (Topology, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == ',' || r == 'x' || r == '\t'
	})
	widths := make([]int, 0, len(fields))
	for _, f := range fields {
		w, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: width %q: %v", ErrInvalidTopology, f, err)
		}
		widths = append(widths, w)
	}
	return NewTopology(widths...)
}

func (t Topology) Validate() error {
	if len(t) < 2 {
		return fmt.Errorf("%w: need at least 2 widths, got %d", ErrInvalidTopology, len(t))
	}
	for i, w := range t {
		if w <= 0 {
			return fmt.Errorf("%w: width at %d must be > 0, got %d", ErrInvalidTopology, i, w)
		}
	}
	return nil
}

func (t Topology) InputWidth() int {
	return t[0]
}

func (t Topology) OutputWidth() int {
	return t[len(t)-1]
}

func (t Topology) LayerCount() int {
	return len(t) - 1
}

// DataSize is the number of float32 slots a genome of this topology owns.
func (t Topology) DataSize() int {
	size := 0
	for i := 1; i < len(t); i++ {
		size += LayerDataSize(t[i-1], t[i])
	}
	return size
}

func (t Topology) maxWidth() int {
	m := 0
	for _, w := range t {
		if w > m {
			m = w
		}
	}
	return m
}

func (t Topology) Equal(other Topology) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

func (t Topology) String() string {
	parts := make([]string, len(t))
	for i, w := range t {
		parts[i] = strconv.Itoa(w)
	}
	return strings.Join(parts, "x")
}
