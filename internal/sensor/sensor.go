package sensor

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"interceptor/internal/geom"
)

var ErrInvalidConfig = errors.New("invalid sensor config")

// NoLock is the value a sample reports when the target is not inside its
// triangle. The scoring formula never produces negative values, so networks
// can always tell "nothing here" from a weak contact.
const NoLock = -2.0

// proximityScale is the numerator of the distance term in a sample score.
const proximityScale = 220.0

// minDistance keeps the distance term finite when the target sits on the
// sensor origin.
const minDistance = 1.0

type Config struct {
	SamplePoints     int     `json:"sample_points"`
	FieldOfViewStart float64 `json:"fov_start"`
	FieldOfViewStop  float64 `json:"fov_stop"`
	Depth            float64 `json:"depth"`
}

func DefaultConfig() Config {
	return Config{
		SamplePoints:     17,
		FieldOfViewStart: -50,
		FieldOfViewStop:  50,
		Depth:            700,
	}
}

func (c Config) Validate() error {
	if c.SamplePoints < 1 || c.SamplePoints%2 == 0 {
		return fmt.Errorf("%w: sample points must be odd and positive, got %d", ErrInvalidConfig, c.SamplePoints)
	}
	if c.FieldOfViewStop < c.FieldOfViewStart {
		return fmt.Errorf("%w: field of view stop %.2f before start %.2f", ErrInvalidConfig, c.FieldOfViewStop, c.FieldOfViewStart)
	}
	if c.Depth <= 0 {
		return fmt.Errorf("%w: depth must be positive, got %.2f", ErrInvalidConfig, c.Depth)
	}
	return nil
}

// SampleWidth is the angular width in degrees covered by one sample.
func (c Config) SampleWidth() float64 {
	if c.SamplePoints <= 1 {
		return 0
	}
	return (c.FieldOfViewStop - c.FieldOfViewStart) / float64(c.SamplePoints-1)
}

// Reading is the result of one sweep.
type Reading struct {
	Values     []float64
	WithinCone bool
}

// Sensor is a directional proximity sensor. It holds no per-read state and
// is safe to share between goroutines.
type Sensor struct {
	cfg   Config
	width float64
	mid   int
}

func New(cfg Config) (*Sensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sensor{
		cfg:   cfg,
		width: cfg.SampleWidth(),
		mid:   (cfg.SamplePoints - 1) / 2,
	}, nil
}

func (s *Sensor) Config() Config {
	return s.cfg
}

// Samples is the length of every reading's value vector.
func (s *Sensor) Samples() int {
	return s.cfg.SamplePoints
}

// Read sweeps the cone around heading from self and scores where target falls.
func (s *Sensor) Read(headingDegrees float64, self, target orb.Point) Reading {
	reading := Reading{Values: make([]float64, s.cfg.SamplePoints)}
	distance := geom.Distance(self, target)
	if distance < minDistance {
		distance = minDistance
	}

	for i := range reading.Values {
		a, b := s.edges(headingDegrees, self, i)
		if !geom.PointInTriangle(target, self, a, b) {
			reading.Values[i] = NoLock
			continue
		}
		reading.WithinCone = true
		reading.Values[i] = s.score(i, distance)
	}
	return reading
}

// Geometry returns the sample triangles of a sweep and the subset that
// contains target. It is only needed for display.
func (s *Sensor) Geometry(headingDegrees float64, self, target orb.Point) (sweep, locked []orb.Ring) {
	sweep = make([]orb.Ring, 0, s.cfg.SamplePoints)
	for i := 0; i < s.cfg.SamplePoints; i++ {
		a, b := s.edges(headingDegrees, self, i)
		tri := geom.Triangle(self, a, b)
		sweep = append(sweep, tri)
		if geom.PointInTriangle(target, self, a, b) {
			locked = append(locked, tri)
		}
	}
	return sweep, locked
}

func (s *Sensor) edges(headingDegrees float64, self orb.Point, sample int) (orb.Point, orb.Point) {
	start := s.cfg.FieldOfViewStart - s.width/2 + headingDegrees + float64(sample)*s.width
	return geom.Project(self, start, s.cfg.Depth), geom.Project(self, start+s.width, s.cfg.Depth)
}

func (s *Sensor) score(sample int, distance float64) float64 {
	if sample == s.mid {
		return 0
	}
	offset := sample - s.mid
	if offset < 0 {
		offset = -offset
	}
	return float64(offset) / float64(s.mid) * proximityScale / distance
}
