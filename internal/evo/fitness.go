package evo

import (
	"math"

	"interceptor/internal/agent"
)

const (
	// hitScale weights both the kill ratio and the hit bonus.
	hitScale = 160.0
	// nearMissRange is the distance, in display pixels, inside which a miss
	// still earns credit.
	nearMissRange = 320.0
	// pixelsPerUnit converts world units to display pixels. The playfield
	// is 256 units wide and drawn at twice that.
	pixelsPerUnit = 2.0
)

// NoTargetDistance stands in for the final distance of an agent that never
// had a target.
const NoTargetDistance = float64(math.MaxInt32)

// Fitness scores one finished flight from a final distance in display
// pixels. Hits always outrank misses with the same kill ratio; misses closer
// than nearMissRange earn partial credit.
func Fitness(reason agent.TerminationReason, finalDistance, killRatio float64) float64 {
	if reason == agent.ReasonHit {
		return (2 + killRatio) * hitScale
	}
	extra := (nearMissRange - finalDistance) / 2
	if extra < 0 {
		extra = 0
	}
	return killRatio*hitScale + extra
}

// AgentFitness scores a terminated agent. Its final distance is in world
// units and is converted to display pixels, so a miss earns credit only
// within 160 units of the target.
func AgentFitness(a *agent.Agent, killRatio float64) float64 {
	if a == nil {
		return Fitness(agent.ReasonNone, NoTargetDistance, killRatio)
	}
	return Fitness(a.Reason(), a.FinalDistance()*pixelsPerUnit, killRatio)
}
