package geom

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestClamp360(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{in: 0, want: 0},
		{in: 359.5, want: 359.5},
		{in: 360, want: 0},
		{in: -10, want: 350},
		{in: 725, want: 5},
		{in: -725, want: 355},
	}
	for _, tc := range tests {
		if got := Clamp360(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("Clamp360(%f): got=%f want=%f", tc.in, got, tc.want)
		}
	}
}

func TestProjectHeadingConvention(t *testing.T) {
	origin := orb.Point{10, 10}
	up := Project(origin, 0, 5)
	if math.Abs(up[0]-10) > 1e-9 || math.Abs(up[1]-15) > 1e-9 {
		t.Fatalf("heading 0 should move up: %v", up)
	}
	right := Project(origin, 90, 5)
	if math.Abs(right[0]-15) > 1e-9 || math.Abs(right[1]-10) > 1e-9 {
		t.Fatalf("heading 90 should move right: %v", right)
	}
	if h := HeadingTo(origin, right); math.Abs(h-90) > 1e-9 {
		t.Fatalf("unexpected heading to right point: %f", h)
	}
	if h := HeadingTo(origin, orb.Point{5, 10}); math.Abs(h-270) > 1e-9 {
		t.Fatalf("unexpected heading to left point: %f", h)
	}
}

func TestPointInTriangle(t *testing.T) {
	a, b, c := orb.Point{0, 0}, orb.Point{10, 0}, orb.Point{0, 10}
	tests := []struct {
		name string
		p    orb.Point
		want bool
	}{
		{name: "inside", p: orb.Point{2, 2}, want: true},
		{name: "vertex", p: orb.Point{0, 0}, want: true},
		{name: "edge", p: orb.Point{5, 0}, want: true},
		{name: "outside", p: orb.Point{8, 8}, want: false},
		{name: "behind", p: orb.Point{-1, 1}, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PointInTriangle(tc.p, a, b, c); got != tc.want {
				t.Fatalf("got=%t want=%t", got, tc.want)
			}
			// orientation must not matter
			if got := PointInTriangle(tc.p, a, c, b); got != tc.want {
				t.Fatalf("reversed orientation: got=%t want=%t", got, tc.want)
			}
		})
	}
}

func TestPointInDegenerateTriangle(t *testing.T) {
	apex, end := orb.Point{0, 0}, orb.Point{0, 100}
	tests := []struct {
		name string
		p    orb.Point
	}{
		{name: "on the ray", p: orb.Point{0, 40}},
		{name: "beside the ray", p: orb.Point{0.5, 40}},
		{name: "beyond the ray", p: orb.Point{0, 140}},
		{name: "behind the apex", p: orb.Point{-30, -30}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !PointInTriangle(tc.p, apex, end, end) {
				t.Fatalf("zero-area triangle must contain %v", tc.p)
			}
			if !PointInTriangle(tc.p, apex, apex, apex) {
				t.Fatalf("point triangle must contain %v", tc.p)
			}
		})
	}
}
