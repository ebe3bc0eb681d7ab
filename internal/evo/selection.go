package evo

import (
	"fmt"
	"math/rand"

	"interceptor/internal/nn"
)

// Mutation is one strength of copy-then-perturb.
type Mutation struct {
	PercentChance   float64
	Magnitude       float64
	KillRatioFactor float64
}

var (
	// GentleMutation refines a population that is already hitting.
	GentleMutation = Mutation{PercentChance: 12, Magnitude: 0.25, KillRatioFactor: 0.9}
	// HarshMutation explores.
	HarshMutation = Mutation{PercentChance: 25, Magnitude: 0.5, KillRatioFactor: 0.8}
)

type Mode int

const (
	// ModeHalfReplacement overwrites the worst half with mutated copies of
	// the best half.
	ModeHalfReplacement Mode = iota
	// ModeGrowingElite keeps an elite that widens with age and refills the
	// rest round-robin from it.
	ModeGrowingElite
)

func (m Mode) String() string {
	switch m {
	case ModeHalfReplacement:
		return "half-replacement"
	case ModeGrowingElite:
		return "growing-elite"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ChooseMode picks half replacement until something hits and the
// mutate-half flag has been cleared.
func ChooseMode(anyHit, mutateHalf bool) Mode {
	if !anyHit || mutateHalf {
		return ModeHalfReplacement
	}
	return ModeGrowingElite
}

// PreserveCount is the elite size for growing-elite selection: half the
// population plus one per thousand generations, kept within [2, size-2].
// Populations too small for that range keep half.
func PreserveCount(size, generation int) int {
	lo, hi := 2, size-2
	if hi < lo {
		return size / 2
	}
	preserve := size/2 + generation/1000
	if preserve < lo {
		return lo
	}
	if preserve > hi {
		return hi
	}
	return preserve
}

type SelectionResult struct {
	Mode        Mode
	Preserved   int
	Overwritten int
	Mutated     int
}

// Selector rewrites the weaker part of a ranked population in place.
// ranked must be sorted ascending by fitness.
type Selector interface {
	Mode() Mode
	Apply(rng *rand.Rand, ranked []*nn.Network, ratios *Ratios, generation int, anyHit bool) SelectionResult
}

func SelectorFor(mode Mode) Selector {
	if mode == ModeGrowingElite {
		return GrowingEliteSelector{}
	}
	return HalfReplacementSelector{}
}

type HalfReplacementSelector struct{}

func (HalfReplacementSelector) Mode() Mode {
	return ModeHalfReplacement
}

func (HalfReplacementSelector) Apply(rng *rand.Rand, ranked []*nn.Network, ratios *Ratios, _ int, anyHit bool) SelectionResult {
	mutation := HarshMutation
	if anyHit {
		mutation = GentleMutation
	}
	half := len(ranked) / 2
	result := SelectionResult{Mode: ModeHalfReplacement, Preserved: len(ranked) - half}
	for i := 0; i < half; i++ {
		result.Mutated += overwrite(rng, ranked[i+half], ranked[i], ratios, mutation)
		result.Overwritten++
	}
	return result
}

type GrowingEliteSelector struct{}

func (GrowingEliteSelector) Mode() Mode {
	return ModeGrowingElite
}

func (GrowingEliteSelector) Apply(rng *rand.Rand, ranked []*nn.Network, ratios *Ratios, generation int, _ bool) SelectionResult {
	n := len(ranked)
	preserve := PreserveCount(n, generation)
	result := SelectionResult{Mode: ModeGrowingElite, Preserved: preserve}
	if preserve <= 0 {
		return result
	}

	offset := 0
	for i := 0; i < n-preserve; i++ {
		donor := ranked[n-1-offset]
		result.Mutated += overwrite(rng, donor, ranked[i], ratios, HarshMutation)
		result.Overwritten++
		offset++
		if offset >= preserve {
			offset = 0
		}
	}
	return result
}

func overwrite(rng *rand.Rand, donor, dst *nn.Network, ratios *Ratios, m Mutation) int {
	nn.CopyFromTo(donor, dst)
	ratios.Inherit(dst.ID, donor.ID, m.KillRatioFactor)
	return dst.Mutate(rng, m.PercentChance, m.Magnitude)
}
