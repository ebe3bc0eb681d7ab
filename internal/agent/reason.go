package agent

import "fmt"

// TerminationReason is why an agent stopped flying. The zero value means it
// is still in flight.
type TerminationReason int

const (
	ReasonNone TerminationReason = iota
	ReasonHit
	ReasonFloor
	ReasonOrbit
	ReasonEdge
	ReasonSensorLost
	ReasonExpired
)

// Reasons lists every terminal reason in reporting order.
var Reasons = []TerminationReason{
	ReasonHit,
	ReasonFloor,
	ReasonOrbit,
	ReasonEdge,
	ReasonSensorLost,
	ReasonExpired,
}

func (r TerminationReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonHit:
		return "hit"
	case ReasonFloor:
		return "floor"
	case ReasonOrbit:
		return "orbit"
	case ReasonEdge:
		return "edge"
	case ReasonSensorLost:
		return "nolock"
	case ReasonExpired:
		return "expired"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

func ParseTerminationReason(s string) (TerminationReason, error) {
	for _, r := range append([]TerminationReason{ReasonNone}, Reasons...) {
		if r.String() == s {
			return r, nil
		}
	}
	return ReasonNone, fmt.Errorf("unknown termination reason: %q", s)
}

// TickOutcome is what a single tick did to an agent.
type TickOutcome struct {
	Reason TerminationReason
}

func (o TickOutcome) Flying() bool {
	return o.Reason == ReasonNone
}

func (o TickOutcome) Hit() bool {
	return o.Reason == ReasonHit
}

// Eliminated reports whether the agent ended without hitting.
func (o TickOutcome) Eliminated() bool {
	return o.Reason != ReasonNone && o.Reason != ReasonHit
}

// GuidanceSource selects how an agent steers.
type GuidanceSource int

const (
	// NeuralNetwork steers from the sensor through the controller.
	NeuralNetwork GuidanceSource = iota
	// StraightLine keeps the launch heading and never loses lock.
	StraightLine
	// TrainingInstrumented steers like NeuralNetwork and records telemetry.
	TrainingInstrumented
)

func (g GuidanceSource) String() string {
	switch g {
	case NeuralNetwork:
		return "neural"
	case StraightLine:
		return "straight"
	case TrainingInstrumented:
		return "instrumented"
	default:
		return fmt.Sprintf("guidance(%d)", int(g))
	}
}

func (g GuidanceSource) steers() bool {
	return g == NeuralNetwork || g == TrainingInstrumented
}

func ParseGuidanceSource(s string) (GuidanceSource, error) {
	for _, g := range []GuidanceSource{NeuralNetwork, StraightLine, TrainingInstrumented} {
		if g.String() == s {
			return g, nil
		}
	}
	return NeuralNetwork, fmt.Errorf("unknown guidance source: %q", s)
}
