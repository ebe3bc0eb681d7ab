// Package target models the attacker an interceptor chases and the
// replayable sequence of attack trajectories used for training.
package target

import (
	"github.com/paulmach/orb"

	"interceptor/internal/geom"
)

// DefaultSpeed is the distance a target covers per tick.
const DefaultSpeed = 1.0

// Trajectory is one episode's straight attack line.
type Trajectory struct {
	Start orb.Point `json:"start"`
	End   orb.Point `json:"end"`
}

// Length is the straight-line length of the trajectory.
func (t Trajectory) Length() float64 {
	return geom.Distance(t.Start, t.End)
}

// Target walks a trajectory at constant speed and stops at its end.
type Target struct {
	trajectory  Trajectory
	position    orb.Point
	speed       float64
	travelled   float64
	neutralized bool
}

// New places a target at the start of trajectory. A non-positive speed gives
// a stationary target.
func New(trajectory Trajectory, speed float64) *Target {
	if speed < 0 {
		speed = 0
	}
	return &Target{
		trajectory: trajectory,
		position:   trajectory.Start,
		speed:      speed,
	}
}

func (t *Target) Position() orb.Point {
	return t.position
}

func (t *Target) Trajectory() Trajectory {
	return t.trajectory
}

// Step advances the target one tick. Neutralized or arrived targets stay put.
func (t *Target) Step() {
	if t.neutralized || t.speed == 0 || t.Arrived() {
		return
	}
	length := t.trajectory.Length()
	t.travelled += t.speed
	if t.travelled >= length {
		t.travelled = length
		t.position = t.trajectory.End
		return
	}
	frac := t.travelled / length
	t.position = orb.Point{
		t.trajectory.Start[0] + (t.trajectory.End[0]-t.trajectory.Start[0])*frac,
		t.trajectory.Start[1] + (t.trajectory.End[1]-t.trajectory.Start[1])*frac,
	}
}

// Arrived reports whether the target reached the end of its trajectory.
func (t *Target) Arrived() bool {
	return t.position.Equal(t.trajectory.End)
}

// Neutralize freezes the target where it is.
func (t *Target) Neutralize() {
	t.neutralized = true
}

func (t *Target) Neutralized() bool {
	return t.neutralized
}
