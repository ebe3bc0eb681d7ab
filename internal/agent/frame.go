package agent

import "github.com/paulmach/orb"

// Frame is what a display needs to draw one agent on one tick.
type Frame struct {
	ID       int               `json:"id"`
	Position orb.Point         `json:"position"`
	Heading  float64           `json:"heading"`
	Speed    float64           `json:"speed"`
	Path     orb.LineString    `json:"path"`
	Sweep    []orb.Ring        `json:"sweep,omitempty"`
	Locked   []orb.Ring        `json:"locked,omitempty"`
	Reason   TerminationReason `json:"reason"`
}

// Frame snapshots the agent. Sensor triangles are only produced while the
// agent is flying with a sensor.
func (a *Agent) Frame(target orb.Point) Frame {
	f := Frame{
		ID:       a.id,
		Position: a.position,
		Heading:  a.heading,
		Speed:    a.speed,
		Path:     a.path.Clone(),
		Reason:   a.reason,
	}
	if a.sensor != nil && a.reason == ReasonNone {
		f.Sweep, f.Locked = a.sensor.Geometry(a.heading, a.position, target)
	}
	return f
}
