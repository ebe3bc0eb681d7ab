package nn

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

var ErrInvalidTopology = errors.New("invalid topology")

// initialSpread bounds the uniform draw used for fresh biases and weights.
const initialSpread = 0.5

// Network is a fixed-topology feedforward network with tanh activations.
//
// Weights[l] has shape [Layers[l+1]][Layers[l]] and Biases[l] has length
// Layers[l+1]; the input layer owns neither.
type Network struct {
	ID      int
	Layers  []int
	Neurons [][]float64
	Biases  [][]float64
	Weights [][][]float64
	Fitness float64
}

// New allocates a network for the given layer sizes and draws every bias and
// weight uniformly from [-0.5, +0.5].
func New(id int, layers []int, rng *rand.Rand) (*Network, error) {
	if len(layers) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 layers, got %d", ErrInvalidTopology, len(layers))
	}
	for i, size := range layers {
		if size <= 0 {
			return nil, fmt.Errorf("%w: layer %d has size %d", ErrInvalidTopology, i, size)
		}
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}

	n := &Network{
		ID:     id,
		Layers: append([]int(nil), layers...),
	}
	n.Neurons = make([][]float64, len(layers))
	for l, size := range layers {
		n.Neurons[l] = make([]float64, size)
	}
	n.Biases = make([][]float64, len(layers)-1)
	n.Weights = make([][][]float64, len(layers)-1)
	for l := 1; l < len(layers); l++ {
		n.Biases[l-1] = make([]float64, layers[l])
		n.Weights[l-1] = make([][]float64, layers[l])
		for j := range n.Weights[l-1] {
			n.Weights[l-1][j] = make([]float64, layers[l-1])
		}
	}
	n.Randomize(rng)
	return n, nil
}

// Randomize redraws every bias and weight in the same order Mutate visits them.
func (n *Network) Randomize(rng *rand.Rand) {
	for l := range n.Biases {
		for j := range n.Biases[l] {
			n.Biases[l][j] = uniform(rng, initialSpread)
		}
	}
	for l := range n.Weights {
		for j := range n.Weights[l] {
			for k := range n.Weights[l][j] {
				n.Weights[l][j][k] = uniform(rng, initialSpread)
			}
		}
	}
}

// Forward propagates inputs through the network and returns the output layer.
//
// The returned slice is the network's own output buffer: callers must not
// modify it and must copy it if they need it after the next Forward call.
// Forward panics when len(inputs) differs from the input layer width.
func (n *Network) Forward(inputs []float64) []float64 {
	if len(inputs) != n.Layers[0] {
		panic(fmt.Sprintf("nn: network %d expects %d inputs, got %d", n.ID, n.Layers[0], len(inputs)))
	}
	copy(n.Neurons[0], inputs)

	for l := 1; l < len(n.Layers); l++ {
		prev := n.Neurons[l-1]
		for j := range n.Neurons[l] {
			n.Neurons[l][j] = Activate(floats.Dot(n.Weights[l-1][j], prev) + n.Biases[l-1][j])
		}
	}
	return n.Neurons[len(n.Neurons)-1]
}

// Mutate perturbs each bias and weight with probability percentChance/100 by
// a uniform amount in [-magnitude, +magnitude]. Passes repeat until at least
// one element changed, so a mutated copy never equals its donor.
func (n *Network) Mutate(rng *rand.Rand, percentChance, magnitude float64) int {
	if percentChance <= 0 || magnitude == 0 {
		return 0
	}
	chance := percentChance / 100

	for {
		changed := 0
		for l := range n.Biases {
			for j := range n.Biases[l] {
				if rng.Float64() < chance {
					if delta := uniform(rng, magnitude); delta != 0 {
						n.Biases[l][j] += delta
						changed++
					}
				}
			}
		}
		for l := range n.Weights {
			for j := range n.Weights[l] {
				for k := range n.Weights[l][j] {
					if rng.Float64() < chance {
						if delta := uniform(rng, magnitude); delta != 0 {
							n.Weights[l][j][k] += delta
							changed++
						}
					}
				}
			}
		}
		if changed > 0 {
			return changed
		}
	}
}

// ParameterCount is the number of persisted scalars besides fitness.
func (n *Network) ParameterCount() int {
	total := 0
	for l := 1; l < len(n.Layers); l++ {
		total += n.Layers[l] + n.Layers[l]*n.Layers[l-1]
	}
	return total
}

// SameTopology reports whether two networks have identical layer sizes.
func SameTopology(a, b *Network) bool {
	if len(a.Layers) != len(b.Layers) {
		return false
	}
	for i := range a.Layers {
		if a.Layers[i] != b.Layers[i] {
			return false
		}
	}
	return true
}

// CopyFromTo deep-copies biases and weights from src into dst. Topology and
// ID are left alone; dst.Fitness becomes -src.Fitness to mark the copy.
func CopyFromTo(src, dst *Network) {
	if !SameTopology(src, dst) {
		panic(fmt.Sprintf("nn: copy between networks %d and %d with different topologies", src.ID, dst.ID))
	}
	dst.Fitness = -src.Fitness
	for l := range src.Biases {
		copy(dst.Biases[l], src.Biases[l])
	}
	for l := range src.Weights {
		for j := range src.Weights[l] {
			copy(dst.Weights[l][j], src.Weights[l][j])
		}
	}
}

// SortByFitness orders networks by ascending fitness: worst first, best last.
func SortByFitness(networks []*Network) {
	sort.SliceStable(networks, func(i, j int) bool {
		return networks[i].Fitness < networks[j].Fitness
	})
}

func uniform(rng *rand.Rand, spread float64) float64 {
	return (rng.Float64()*2 - 1) * spread
}
