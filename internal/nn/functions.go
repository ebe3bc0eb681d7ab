package nn

import "math"

// Activate is the hyperbolic tangent; every neuron output lies in (-1, 1).
func Activate(value float64) float64 {
	return math.Tanh(value)
}
