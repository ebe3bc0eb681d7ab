package evo

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"interceptor/internal/model"
	"interceptor/internal/nn"
)

var (
	ErrOddPopulation    = errors.New("population size must be even and at least 2")
	ErrTopologyMismatch = errors.New("network topology mismatch")
)

// Population owns the networks and their rolling ratios. Networks[i].ID is
// always i.
type Population struct {
	Networks   []*nn.Network
	Ratios     *Ratios
	Generation int
	MutateHalf bool
	layers     []int
}

func NewPopulation(size int, layers []int, rng *rand.Rand) (*Population, error) {
	if size < 2 || size%2 != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrOddPopulation, size)
	}
	p := &Population{
		Networks:   make([]*nn.Network, size),
		Ratios:     NewRatios(size),
		Generation: 1,
		MutateHalf: true,
		layers:     append([]int(nil), layers...),
	}
	for id := range p.Networks {
		n, err := nn.New(id, layers, rng)
		if err != nil {
			return nil, err
		}
		p.Networks[id] = n
	}
	return p, nil
}

func (p *Population) Size() int {
	return len(p.Networks)
}

func (p *Population) Layers() []int {
	return append([]int(nil), p.layers...)
}

// Reinitialize redraws every network from scratch. Ratios and counters are
// kept.
func (p *Population) Reinitialize(rng *rand.Rand) {
	for _, n := range p.Networks {
		n.Randomize(rng)
		n.Fitness = 0
	}
}

// Diversity is the number of distinct parameter sets in the population.
func (p *Population) Diversity() int {
	seen := make(map[string]struct{}, len(p.Networks))
	for _, n := range p.Networks {
		seen[n.Fingerprint()] = struct{}{}
	}
	return len(seen)
}

// Best returns the network with the highest fitness, lowest id on ties.
func (p *Population) Best() *nn.Network {
	var best *nn.Network
	for _, n := range p.Networks {
		if best == nil || n.Fitness > best.Fitness {
			best = n
		}
	}
	return best
}

// SaveNetworks writes every network into dir as missile<ID>.ai.
func (p *Population) SaveNetworks(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create network dir: %w", err)
	}
	for _, n := range p.Networks {
		if err := n.Save(filepath.Join(dir, nn.FileName(n.ID))); err != nil {
			return err
		}
	}
	return nil
}

// LoadNetworks reads missile<ID>.ai files from dir. Networks without a file
// keep their current parameters.
func (p *Population) LoadNetworks(dir string) error {
	for _, n := range p.Networks {
		if err := n.Load(filepath.Join(dir, nn.FileName(n.ID))); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot copies the population into a persistable record.
func (p *Population) Snapshot(id string) model.PopulationSnapshot {
	s := model.PopulationSnapshot{
		ID:         id,
		Generation: p.Generation,
		MutateHalf: p.MutateHalf,
		KillRatios: append([]float64(nil), p.Ratios.Kill...),
		MissRatios: append([]float64(nil), p.Ratios.Miss...),
		Networks:   make([]model.NetworkRecord, 0, len(p.Networks)),
	}
	for _, n := range p.Networks {
		s.Networks = append(s.Networks, NetworkRecord(n))
	}
	return s
}

// RestorePopulation rebuilds a population from a snapshot. Every network
// must share the topology of the first.
func RestorePopulation(s model.PopulationSnapshot) (*Population, error) {
	size := len(s.Networks)
	if size < 2 || size%2 != 0 {
		return nil, fmt.Errorf("%w: snapshot holds %d networks", ErrOddPopulation, size)
	}
	if len(s.KillRatios) != size || len(s.MissRatios) != size {
		return nil, fmt.Errorf("snapshot ratios length mismatch: kill=%d miss=%d networks=%d", len(s.KillRatios), len(s.MissRatios), size)
	}
	layers := s.Networks[0].Layers
	p := &Population{
		Networks:   make([]*nn.Network, size),
		Ratios:     &Ratios{Kill: append([]float64(nil), s.KillRatios...), Miss: append([]float64(nil), s.MissRatios...)},
		Generation: s.Generation,
		MutateHalf: s.MutateHalf,
		layers:     append([]int(nil), layers...),
	}
	rng := rand.New(rand.NewSource(1))
	for _, rec := range s.Networks {
		if rec.ID < 0 || rec.ID >= size || p.Networks[rec.ID] != nil {
			return nil, fmt.Errorf("snapshot network id %d out of range or duplicated", rec.ID)
		}
		n, err := nn.New(rec.ID, layers, rng)
		if err != nil {
			return nil, err
		}
		if err := applyRecord(n, rec); err != nil {
			return nil, err
		}
		p.Networks[rec.ID] = n
	}
	return p, nil
}

// NetworkRecord converts a network into its structured record.
func NetworkRecord(n *nn.Network) model.NetworkRecord {
	rec := model.NetworkRecord{
		ID:      n.ID,
		Layers:  append([]int(nil), n.Layers...),
		Fitness: n.Fitness,
		Biases:  make([][]float64, len(n.Biases)),
		Weights: make([][][]float64, len(n.Weights)),
	}
	for l := range n.Biases {
		rec.Biases[l] = append([]float64(nil), n.Biases[l]...)
	}
	for l := range n.Weights {
		rec.Weights[l] = make([][]float64, len(n.Weights[l]))
		for j := range n.Weights[l] {
			rec.Weights[l][j] = append([]float64(nil), n.Weights[l][j]...)
		}
	}
	return rec
}

func applyRecord(n *nn.Network, rec model.NetworkRecord) error {
	if len(rec.Layers) != len(n.Layers) || len(rec.Biases) != len(n.Biases) || len(rec.Weights) != len(n.Weights) {
		return fmt.Errorf("%w: network %d", ErrTopologyMismatch, rec.ID)
	}
	for i := range rec.Layers {
		if rec.Layers[i] != n.Layers[i] {
			return fmt.Errorf("%w: network %d layer %d", ErrTopologyMismatch, rec.ID, i)
		}
	}
	for l := range n.Biases {
		if len(rec.Biases[l]) != len(n.Biases[l]) || len(rec.Weights[l]) != len(n.Weights[l]) {
			return fmt.Errorf("%w: network %d layer %d", ErrTopologyMismatch, rec.ID, l+1)
		}
		copy(n.Biases[l], rec.Biases[l])
		for j := range n.Weights[l] {
			if len(rec.Weights[l][j]) != len(n.Weights[l][j]) {
				return fmt.Errorf("%w: network %d layer %d row %d", ErrTopologyMismatch, rec.ID, l+1, j)
			}
			copy(n.Weights[l][j], rec.Weights[l][j])
		}
	}
	n.Fitness = rec.Fitness
	return nil
}
