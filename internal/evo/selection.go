package evo

import (
	"fmt"
	"strings"
)

// Comparator reports whether score a ranks strictly before score b. Ranking
// at generation boundaries and Best/BestScore/BestResult must use the same
// comparator, and it must agree with the fitness function's sign convention.
type Comparator func(a, b float32) bool

// Greater ranks higher scores first.
func Greater(a, b float32) bool {
	return a > b
}

// Less ranks lower scores first.
func Less(a, b float32) bool {
	return a < b
}

// CloserToZero ranks scores by absolute value, smallest first. It suits
// error-style fitness functions and is the default when no comparator is set.
func CloserToZero(a, b float32) bool {
	return abs32(a) < abs32(b)
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

// ComparatorFromName maps a configuration name to a comparator. An empty
// name yields CloserToZero, the same default Population uses.
func ComparatorFromName(name string) (Comparator, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "greater", "max":
		return Greater, nil
	case "less", "min":
		return Less, nil
	case "closer_to_zero", "abs", "zero", "":
		return CloserToZero, nil
	default:
		return nil, fmt.Errorf("unsupported comparator: %s", name)
	}
}

// Reached reports whether best ranks at least as well as goal under cmp.
func Reached(cmp Comparator, best, goal float32) bool {
	return !cmp(goal, best)
}
