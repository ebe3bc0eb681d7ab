package nn

import (
	"math"
	"testing"
)

func TestActivate(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		want float64
	}{
		{name: "zero", x: 0, want: 0},
		{name: "positive", x: 1, want: math.Tanh(1)},
		{name: "negative", x: -2, want: math.Tanh(-2)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Activate(tc.x); math.Abs(got-tc.want) > 1e-12 {
				t.Fatalf("unexpected activation: got=%f want=%f", got, tc.want)
			}
		})
	}
}

func TestActivateBounded(t *testing.T) {
	for _, x := range []float64{-1e6, -50, 50, 1e6} {
		got := Activate(x)
		if got < -1 || got > 1 {
			t.Fatalf("activation out of range for %f: %f", x, got)
		}
	}
}
