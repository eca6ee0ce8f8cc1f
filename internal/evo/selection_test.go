package evo

import "testing"

func TestComparators(t *testing.T) {
	if !Greater(2, 1) || Greater(1, 1) || Greater(1, 2) {
		t.Fatal("unexpected Greater ordering")
	}
	if !Less(1, 2) || Less(1, 1) || Less(2, 1) {
		t.Fatal("unexpected Less ordering")
	}
	if !CloserToZero(-0.5, 1) || !CloserToZero(0.1, -0.2) || CloserToZero(-3, 3) {
		t.Fatal("unexpected CloserToZero ordering")
	}
}

func TestComparatorFromName(t *testing.T) {
	cases := []struct {
		name string
		a, b float32
		want bool
	}{
		{name: "greater", a: 2, b: 1, want: true},
		{name: "", a: -1, b: 2, want: true},
		{name: "", a: 2, b: 1, want: false},
		{name: "MIN", a: 2, b: 1, want: false},
		{name: "closer_to_zero", a: -1, b: 2, want: true},
	}
	for _, tc := range cases {
		cmp, err := ComparatorFromName(tc.name)
		if err != nil {
			t.Fatalf("comparator %q: %v", tc.name, err)
		}
		if got := cmp(tc.a, tc.b); got != tc.want {
			t.Fatalf("comparator %q(%f, %f): got=%t want=%t", tc.name, tc.a, tc.b, got, tc.want)
		}
	}
	if _, err := ComparatorFromName("sideways"); err == nil {
		t.Fatal("expected unsupported comparator error")
	}
}

func TestReached(t *testing.T) {
	if !Reached(Greater, 7.5, 7.5) || !Reached(Greater, 8, 7.5) || Reached(Greater, 7, 7.5) {
		t.Fatal("unexpected Greater goal checks")
	}
	if !Reached(CloserToZero, 0.01, 0.05) || Reached(CloserToZero, -0.1, 0.05) {
		t.Fatal("unexpected CloserToZero goal checks")
	}
}
