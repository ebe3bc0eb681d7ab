package agent

import (
	"fmt"

	"github.com/paulmach/orb"

	"interceptor/internal/geom"
	"interceptor/internal/sensor"
)

// Controller turns a sensor vector into a steering command. Only the first
// output is used.
type Controller interface {
	Forward(inputs []float64) []float64
}

type Config struct {
	Launch        orb.Point `json:"launch"`
	LaunchHeading float64   `json:"launch_heading"`

	SteeringAmplifier float64 `json:"steering_amplifier"`
	SteeringDamping   float64 `json:"steering_damping"`

	BurnForce       float64 `json:"burn_force"`
	BurnScale       float64 `json:"burn_scale"`
	SpeedThreshold1 float64 `json:"speed_threshold_1"`
	BurnDiscount1   float64 `json:"burn_discount_1"`
	SpeedThreshold2 float64 `json:"speed_threshold_2"`
	BurnDiscount2   float64 `json:"burn_discount_2"`

	OrbitCeiling float64 `json:"orbit_ceiling"`
	Floor        float64 `json:"floor"`
	FieldWidth   float64 `json:"field_width"`
	HitRadius    float64 `json:"hit_radius"`

	// MaxTicks ends a flight with ReasonExpired; 0 means no limit.
	MaxTicks int `json:"max_ticks"`
}

func DefaultConfig() Config {
	return Config{
		Launch:            orb.Point{123, 21},
		SteeringAmplifier: 60,
		SteeringDamping:   0.05,
		BurnForce:         5,
		BurnScale:         0.003,
		SpeedThreshold1:   14,
		BurnDiscount1:     0.9,
		SpeedThreshold2:   16,
		BurnDiscount2:     0.8,
		OrbitCeiling:      226,
		Floor:             0,
		FieldWidth:        256,
		HitRadius:         5,
		MaxTicks:          2000,
	}
}

func (c Config) Validate() error {
	if c.HitRadius <= 0 {
		return fmt.Errorf("hit radius must be positive, got %.2f", c.HitRadius)
	}
	if c.FieldWidth <= 0 {
		return fmt.Errorf("field width must be positive, got %.2f", c.FieldWidth)
	}
	if c.OrbitCeiling <= c.Floor {
		return fmt.Errorf("orbit ceiling %.2f must be above floor %.2f", c.OrbitCeiling, c.Floor)
	}
	if c.MaxTicks < 0 {
		return fmt.Errorf("max ticks must be >= 0, got %d", c.MaxTicks)
	}
	return nil
}

// Telemetry is one tick of an instrumented flight.
type Telemetry struct {
	Tick         int       `json:"tick"`
	Inputs       []float64 `json:"inputs"`
	Output       float64   `json:"output"`
	HeadingDelta float64   `json:"heading_delta"`
	Heading      float64   `json:"heading"`
	Speed        float64   `json:"speed"`
	Position     orb.Point `json:"position"`
}

// Agent is one interceptor flight. It is not safe for concurrent use, but
// distinct agents share nothing mutable and may tick in parallel.
type Agent struct {
	id         int
	source     GuidanceSource
	controller Controller
	sensor     *sensor.Sensor
	cfg        Config

	position orb.Point
	heading  float64
	speed    float64
	ticks    int
	path     orb.LineString

	reason        TerminationReason
	finalDistance float64

	lastReading sensor.Reading
	lastOutput  float64
	telemetry   []Telemetry
}

func New(id int, source GuidanceSource, controller Controller, s *sensor.Sensor, cfg Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source.steers() {
		if controller == nil {
			return nil, fmt.Errorf("agent %d: %s guidance requires a controller", id, source)
		}
		if s == nil {
			return nil, fmt.Errorf("agent %d: %s guidance requires a sensor", id, source)
		}
	}
	return &Agent{
		id:         id,
		source:     source,
		controller: controller,
		sensor:     s,
		cfg:        cfg,
		position:   cfg.Launch,
		heading:    geom.Clamp360(cfg.LaunchHeading),
		path:       orb.LineString{cfg.Launch},
	}, nil
}

func (a *Agent) ID() int { return a.id }
func (a *Agent) Source() GuidanceSource { return a.source }
func (a *Agent) Position() orb.Point { return a.position }
func (a *Agent) Heading() float64 { return a.heading }
func (a *Agent) Speed() float64 { return a.speed }
func (a *Agent) Ticks() int { return a.ticks }
func (a *Agent) Reason() TerminationReason { return a.reason }
func (a *Agent) Flying() bool { return a.reason == ReasonNone }

// Path is every position the agent occupied, launch first.
func (a *Agent) Path() orb.LineString {
	return a.path
}

// FinalDistance is the distance to the target when the agent terminated.
func (a *Agent) FinalDistance() float64 {
	return a.finalDistance
}

// LastReading is the sensor reading taken on the most recent tick.
func (a *Agent) LastReading() sensor.Reading {
	return a.lastReading
}

// Telemetry is only recorded for TrainingInstrumented agents.
func (a *Agent) Telemetry() []Telemetry {
	return a.telemetry
}

// Terminate latches reason if the agent is still flying. It returns false
// when an earlier reason was already latched.
func (a *Agent) Terminate(reason TerminationReason, target orb.Point) bool {
	if a.reason != ReasonNone || reason == ReasonNone {
		return false
	}
	a.reason = reason
	a.finalDistance = geom.Distance(a.position, target)
	return true
}

// Tick advances the agent one step toward target. Terminated agents are left
// untouched and report their latched reason.
func (a *Agent) Tick(target orb.Point) TickOutcome {
	if a.reason != ReasonNone {
		return TickOutcome{Reason: a.reason}
	}
	a.ticks++

	var delta float64
	if a.source.steers() {
		a.lastReading = a.sensor.Read(a.heading, a.position, target)
		a.lastOutput = a.controller.Forward(a.lastReading.Values)[0]
		delta = a.lastOutput * a.cfg.SteeringAmplifier
	}

	burn := a.cfg.BurnForce
	if a.speed > a.cfg.SpeedThreshold1 {
		burn *= a.cfg.BurnDiscount1
	}
	if a.speed > a.cfg.SpeedThreshold2 {
		burn *= a.cfg.BurnDiscount2
	}
	a.speed += burn * a.cfg.BurnScale

	a.heading = geom.Clamp360(a.heading + delta*a.cfg.SteeringDamping)
	a.position = geom.Project(a.position, a.heading, a.speed)
	a.path = append(a.path, a.position)

	if a.source == TrainingInstrumented {
		a.telemetry = append(a.telemetry, Telemetry{
			Tick:         a.ticks,
			Inputs:       append([]float64(nil), a.lastReading.Values...),
			Output:       a.lastOutput,
			HeadingDelta: delta * a.cfg.SteeringDamping,
			Heading:      a.heading,
			Speed:        a.speed,
			Position:     a.position,
		})
	}

	a.Terminate(a.check(target), target)
	return TickOutcome{Reason: a.reason}
}

// check applies the termination rules in priority order.
func (a *Agent) check(target orb.Point) TerminationReason {
	switch {
	case a.position[1] > a.cfg.OrbitCeiling:
		return ReasonOrbit
	case a.position[1] < a.cfg.Floor:
		return ReasonFloor
	case a.position[0] < 0 || a.position[0] > a.cfg.FieldWidth:
		return ReasonEdge
	case a.source.steers() && !a.lastReading.WithinCone:
		return ReasonSensorLost
	case geom.Distance(a.position, target) < a.cfg.HitRadius:
		return ReasonHit
	case a.cfg.MaxTicks > 0 && a.ticks >= a.cfg.MaxTicks:
		return ReasonExpired
	default:
		return ReasonNone
	}
}
