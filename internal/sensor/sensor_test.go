package sensor

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "single sample", mutate: func(c *Config) { c.SamplePoints = 1; c.FieldOfViewStart = 0; c.FieldOfViewStop = 0 }},
		{name: "even samples", mutate: func(c *Config) { c.SamplePoints = 4 }, wantErr: true},
		{name: "zero samples", mutate: func(c *Config) { c.SamplePoints = 0 }, wantErr: true},
		{name: "reversed fov", mutate: func(c *Config) { c.FieldOfViewStart = 10; c.FieldOfViewStop = -10 }, wantErr: true},
		{name: "zero depth", mutate: func(c *Config) { c.Depth = 0 }, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			_, err := New(cfg)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Fatalf("expected invalid config error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSampleWidth(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.SampleWidth(); got != 100.0/16 {
		t.Fatalf("unexpected sample width: got=%f want=%f", got, 100.0/16)
	}
	cfg.SamplePoints = 1
	if got := cfg.SampleWidth(); got != 0 {
		t.Fatalf("single sample width must be 0, got %f", got)
	}
}

func newSensor(t *testing.T, cfg Config) *Sensor {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new sensor: %v", err)
	}
	return s
}

func TestReadCentreRay(t *testing.T) {
	s := newSensor(t, DefaultConfig())
	self := orb.Point{128, 21}
	reading := s.Read(0, self, orb.Point{128, 121})

	if len(reading.Values) != 17 {
		t.Fatalf("unexpected vector length: %d", len(reading.Values))
	}
	if !reading.WithinCone {
		t.Fatal("target on centre ray must be within cone")
	}
	if reading.Values[8] != 0 {
		t.Fatalf("centre sample: got=%f want=0", reading.Values[8])
	}
	for i, v := range reading.Values {
		if i != 8 && v != NoLock {
			t.Fatalf("sample %d: got=%f want=%f", i, v, NoLock)
		}
	}
}

func TestReadOutsideFieldOfView(t *testing.T) {
	s := newSensor(t, DefaultConfig())
	self := orb.Point{128, 21}
	tests := []struct {
		name    string
		heading float64
		target  orb.Point
	}{
		{name: "behind", heading: 0, target: orb.Point{128, 0}},
		{name: "far right", heading: 0, target: orb.Point{250, 22}},
		{name: "beyond depth", heading: 0, target: orb.Point{128, 900}},
		{name: "turned away", heading: 180, target: orb.Point{128, 121}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reading := s.Read(tc.heading, self, tc.target)
			if reading.WithinCone {
				t.Fatal("target must not be within cone")
			}
			for i, v := range reading.Values {
				if v != NoLock {
					t.Fatalf("sample %d: got=%f want=%f", i, v, NoLock)
				}
			}
		})
	}
}

func TestReadOffCentreScore(t *testing.T) {
	cfg := Config{SamplePoints: 3, FieldOfViewStart: -20, FieldOfViewStop: 20, Depth: 500}
	s := newSensor(t, cfg)
	self := orb.Point{0, 0}
	// samples cover [-30,-10], [-10,10], [10,30]; a target at heading 20 lies in the right one
	target := orb.Point{34.202014332566866, 93.96926207859084}
	reading := s.Read(0, self, target)

	if !reading.WithinCone {
		t.Fatal("expected lock")
	}
	if reading.Values[0] != NoLock || reading.Values[1] != NoLock {
		t.Fatalf("unexpected lock pattern: %v", reading.Values)
	}
	want := 1.0 * 220 / 100
	if got := reading.Values[2]; got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("unexpected score: got=%f want=%f", got, want)
	}
}

func TestReadSingleSample(t *testing.T) {
	s := newSensor(t, Config{SamplePoints: 1, Depth: 300})
	self := orb.Point{128, 21}
	if r := s.Read(0, self, orb.Point{128, 100}); !r.WithinCone || r.Values[0] != 0 {
		t.Fatalf("expected centre lock, got %+v", r)
	}
	// a zero-width cone keeps its lock whatever the heading
	for _, heading := range []float64{0.5, 30, 180} {
		if r := s.Read(heading, self, orb.Point{128, 60}); !r.WithinCone || r.Values[0] != 0 {
			t.Fatalf("heading %.1f: expected lock, got %+v", heading, r)
		}
	}
	if r := s.Read(0, self, orb.Point{130, 100}); !r.WithinCone || r.Values[0] != 0 {
		t.Fatalf("expected lock off the ray, got %+v", r)
	}
}

func TestGeometry(t *testing.T) {
	s := newSensor(t, DefaultConfig())
	sweep, locked := s.Geometry(0, orb.Point{128, 21}, orb.Point{128, 121})
	if len(sweep) != 17 {
		t.Fatalf("unexpected sweep size: %d", len(sweep))
	}
	if len(locked) != 1 {
		t.Fatalf("unexpected locked size: %d", len(locked))
	}
	if !locked[0].Closed() {
		t.Fatal("triangle ring must be closed")
	}
}
