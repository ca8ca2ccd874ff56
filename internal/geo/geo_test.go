package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Coordinates
		want float64
	}{
		{"same point", Coordinates{5, 5}, Coordinates{5, 5}, 0},
		{"horizontal", Coordinates{0, 0}, Coordinates{10, 0}, 10},
		{"vertical", Coordinates{0, -3}, Coordinates{0, 4}, 7},
		{"diagonal 3-4-5", Coordinates{0, 0}, Coordinates{3, 4}, 5},
		{"negative quadrant", Coordinates{-3, -4}, Coordinates{0, 0}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("Distance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := Coordinates{17, -42}
	b := Coordinates{-100, 250}
	if Distance(a, b) != Distance(b, a) {
		t.Fatalf("distance is not symmetric: %v vs %v", Distance(a, b), Distance(b, a))
	}
}

func TestSectionID(t *testing.T) {
	tests := []struct {
		name        string
		c           Coordinates
		sectionSize int
		want        string
	}{
		{"origin", Coordinates{0, 0}, 100, "sec_0_0"},
		{"inside first section", Coordinates{99, 99}, 100, "sec_0_0"},
		{"section boundary", Coordinates{100, 100}, 100, "sec_1_1"},
		{"negative coords floor down", Coordinates{-1, -1}, 100, "sec_-1_-1"},
		{"negative boundary", Coordinates{-100, -100}, 100, "sec_-1_-1"},
		{"past negative boundary", Coordinates{-101, -101}, 100, "sec_-2_-2"},
		{"zero size falls back to default", Coordinates{250, 0}, 0, "sec_2_0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SectionID(tt.c, tt.sectionSize); got != tt.want {
				t.Fatalf("SectionID(%v, %d) = %q, want %q", tt.c, tt.sectionSize, got, tt.want)
			}
		})
	}
}

func TestHashDeterministic(t *testing.T) {
	c := Coordinates{123, -456}
	if Hash(c) != Hash(c) {
		t.Fatal("hash of the same coordinate differs between calls")
	}
}

func TestHashDistinguishesPoints(t *testing.T) {
	// Points that naive string concatenation would conflate.
	pairs := [][2]Coordinates{
		{{1, 23}, {12, 3}},
		{{0, 0}, {0, 1}},
		{{-1, 1}, {1, -1}},
	}

	for _, p := range pairs {
		if Hash(p[0]) == Hash(p[1]) {
			t.Fatalf("Hash(%v) == Hash(%v)", p[0], p[1])
		}
	}
}

func TestInBounds(t *testing.T) {
	tests := []struct {
		name   string
		c      Coordinates
		radius int
		want   bool
	}{
		{"origin", Coordinates{0, 0}, 100, true},
		{"on positive edge", Coordinates{100, 100}, 100, true},
		{"on negative edge", Coordinates{-100, -100}, 100, true},
		{"past x edge", Coordinates{101, 0}, 100, false},
		{"past negative y edge", Coordinates{0, -101}, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InBounds(tt.c, tt.radius); got != tt.want {
				t.Fatalf("InBounds(%v, %d) = %v, want %v", tt.c, tt.radius, got, tt.want)
			}
		})
	}
}
