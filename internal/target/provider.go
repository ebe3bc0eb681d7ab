package target

import (
	"math/rand"

	"github.com/paulmach/orb"
)

// Playfield constants in world units, y up.
const (
	FieldWidth  = 256.0
	FieldHeight = 231.0
	centreX     = 128.0
	impactY     = 10.0
)

// Launch is the centre silo every interceptor departs from.
var Launch = orb.Point{123, 21}

// Cities are the defended points random episodes aim at.
var Cities = []orb.Point{
	{44, 18},
	{71, 17},
	{95, 16},
	{148, 18},
	{180, 21},
	{208, 17},
}

// TrainingTrajectories builds the fixed curriculum: attacks from three
// start heights and fifty units lower, at lateral offsets either side of the
// centre, drifting both ways by increasing amounts.
func TrainingTrajectories() []Trajectory {
	var out []Trajectory
	for y := 231.0; y > 201; y -= 10 {
		for a := 3.0; a < 63; a += 10 {
			for x := 50.0; x > 0; x -= 7 {
				for _, startY := range []float64{y, y - 50} {
					out = append(out,
						Trajectory{Start: orb.Point{centreX + x, startY}, End: orb.Point{centreX + x + a, impactY}},
						Trajectory{Start: orb.Point{centreX - x, startY}, End: orb.Point{centreX - x - a, impactY}},
						Trajectory{Start: orb.Point{centreX + x, startY}, End: orb.Point{centreX + x - a, impactY}},
						Trajectory{Start: orb.Point{centreX - x, startY}, End: orb.Point{centreX - x + a, impactY}},
					)
				}
			}
		}
	}
	return out
}

// Provider hands out one trajectory per episode. Episodes past the
// curriculum are pseudo-random but derived from the seed and the episode
// index, so two providers with the same seed replay identical episodes.
type Provider struct {
	seed       int64
	curriculum []Trajectory
	cycle      bool
	index      int
}

func NewProvider(seed int64) *Provider {
	return &Provider{
		seed:       seed,
		curriculum: TrainingTrajectories(),
		index:      -1,
	}
}

// NewFixedProvider cycles through the given trajectories forever.
func NewFixedProvider(trajectories ...Trajectory) *Provider {
	return &Provider{
		curriculum: append([]Trajectory(nil), trajectories...),
		cycle:      len(trajectories) > 0,
		index:      -1,
	}
}

// Next returns the next episode, or the previous one again when repeat is set.
func (p *Provider) Next(repeat bool) Trajectory {
	if !repeat || p.index < 0 {
		p.index++
	}
	return p.At(p.index)
}

// At returns episode i without moving the provider.
func (p *Provider) At(i int) Trajectory {
	if i < 0 {
		i = 0
	}
	if i < len(p.curriculum) {
		return p.curriculum[i]
	}
	if p.cycle {
		return p.curriculum[i%len(p.curriculum)]
	}
	return randomTrajectory(rand.New(rand.NewSource(p.seed + int64(i))))
}

// Index is the episode most recently returned by Next, -1 before the first.
func (p *Provider) Index() int {
	return p.index
}

// Resume positions the provider as if Next had last returned episode i.
func (p *Provider) Resume(i int) {
	if i < -1 {
		i = -1
	}
	p.index = i
}

// CurriculumSize is the number of non-random episodes.
func (p *Provider) CurriculumSize() int {
	return len(p.curriculum)
}

func randomTrajectory(rng *rand.Rand) Trajectory {
	offset := float64(rng.Intn(30) * 13 % 127)
	x := centreX + offset
	if rng.Intn(30) > 15 {
		x = centreX - offset
	}
	altitude := FieldHeight - float64(rng.Intn(22))
	altitude = clamp(altitude, 85, FieldHeight+50)
	return Trajectory{
		Start: orb.Point{x, altitude},
		End:   Cities[rng.Intn(len(Cities))],
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
