package target

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
)

func TestTargetWalksToEnd(t *testing.T) {
	tr := Trajectory{Start: orb.Point{0, 10}, End: orb.Point{3, 6}}
	tg := New(tr, DefaultSpeed)

	tg.Step()
	if p := tg.Position(); math.Abs(p[0]-0.6) > 1e-9 || math.Abs(p[1]-9.2) > 1e-9 {
		t.Fatalf("unexpected position after one step: %v", p)
	}
	for i := 0; i < 10; i++ {
		tg.Step()
	}
	if !tg.Arrived() {
		t.Fatalf("expected target at end, got %v", tg.Position())
	}
	if tg.Position() != tr.End {
		t.Fatalf("unexpected final position: got=%v want=%v", tg.Position(), tr.End)
	}
}

func TestTargetNeutralizeFreezes(t *testing.T) {
	tg := New(Trajectory{Start: orb.Point{0, 100}, End: orb.Point{0, 0}}, 2)
	tg.Step()
	tg.Neutralize()
	before := tg.Position()
	tg.Step()
	if !tg.Neutralized() {
		t.Fatal("expected neutralized target")
	}
	if tg.Position() != before {
		t.Fatalf("neutralized target moved: got=%v want=%v", tg.Position(), before)
	}
}

func TestStationaryTarget(t *testing.T) {
	tg := New(Trajectory{Start: orb.Point{5, 5}, End: orb.Point{50, 5}}, 0)
	for i := 0; i < 5; i++ {
		tg.Step()
	}
	if tg.Position() != (orb.Point{5, 5}) {
		t.Fatalf("stationary target moved: %v", tg.Position())
	}
}

func TestTrainingTrajectories(t *testing.T) {
	list := TrainingTrajectories()
	// 3 heights x 6 drifts x 8 offsets x 8 variants
	if got, want := len(list), 3*6*8*8; got != want {
		t.Fatalf("unexpected curriculum size: got=%d want=%d", got, want)
	}
	first := list[0]
	if first.Start != (orb.Point{178, 231}) || first.End != (orb.Point{181, 10}) {
		t.Fatalf("unexpected first trajectory: %+v", first)
	}
	if list[4].Start != (orb.Point{178, 181}) {
		t.Fatalf("unexpected lowered start: %+v", list[4])
	}
}

func TestProviderNextAndRepeat(t *testing.T) {
	p := NewProvider(1)
	if p.Index() != -1 {
		t.Fatalf("unexpected initial index: %d", p.Index())
	}
	a := p.Next(true)
	if p.Index() != 0 || a != p.At(0) {
		t.Fatalf("first call must yield episode 0 even when repeating, index=%d", p.Index())
	}
	b := p.Next(false)
	if p.Index() != 1 || b != p.At(1) {
		t.Fatalf("unexpected episode after advance: index=%d", p.Index())
	}
	if again := p.Next(true); again != b || p.Index() != 1 {
		t.Fatalf("repeat must return the same episode: got=%+v want=%+v", again, b)
	}
}

func TestProviderRandomEpisodesReplay(t *testing.T) {
	a := NewProvider(99)
	b := NewProvider(99)
	n := a.CurriculumSize()
	for i := n; i < n+50; i++ {
		ta, tb := a.At(i), b.At(i)
		if ta != tb {
			t.Fatalf("episode %d differs: %+v vs %+v", i, ta, tb)
		}
		if ta.Start[1] < 85 || ta.Start[1] > FieldHeight+50 {
			t.Fatalf("episode %d altitude out of range: %f", i, ta.Start[1])
		}
		if math.Abs(ta.Start[0]-centreX) > 126 {
			t.Fatalf("episode %d start too far from centre: %f", i, ta.Start[0])
		}
		found := false
		for _, c := range Cities {
			if ta.End == c {
				found = true
			}
		}
		if !found {
			t.Fatalf("episode %d does not end on a city: %v", i, ta.End)
		}
	}
}

func TestFixedProviderCycles(t *testing.T) {
	x := Trajectory{Start: orb.Point{1, 1}, End: orb.Point{2, 2}}
	y := Trajectory{Start: orb.Point{3, 3}, End: orb.Point{4, 4}}
	p := NewFixedProvider(x, y)
	got := []Trajectory{p.Next(false), p.Next(false), p.Next(false)}
	want := []Trajectory{x, y, x}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("episode %d: got=%+v want=%+v", i, got[i], want[i])
		}
	}
	p.Resume(0)
	if next := p.Next(false); next != y {
		t.Fatalf("resume: got=%+v want=%+v", next, y)
	}
	if again := p.Next(true); again != y {
		t.Fatalf("repeat after resume: got=%+v want=%+v", again, y)
	}
}
