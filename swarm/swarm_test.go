package swarm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pthm-cable/tofu/components"
	"github.com/pthm-cable/tofu/cycle"
	"github.com/pthm-cable/tofu/geom"
)

func TestNewSwarmAtRest(t *testing.T) {
	s := New(500, 0.08, 0.85, rand.New(rand.NewSource(1)))
	if s.Len() != 500 {
		t.Fatalf("Len = %d", s.Len())
	}
	var n int
	s.Each(func(p components.Position, speed, tint float32) {
		n++
		if p.X < -1 || p.X > 1 || p.Y < -1 || p.Y > 1 {
			t.Fatalf("particle out of bounds: %+v", p)
		}
		if speed != 0 || tint < 0 || tint >= 1 {
			t.Fatalf("bad initial particle: speed %v tint %v", speed, tint)
		}
	})
	if n != 500 {
		t.Errorf("visited %d particles, want 500", n)
	}
	if s.Residual() != 0 {
		t.Errorf("residual = %v, want 0", s.Residual())
	}
	if s.Seq() != -1 {
		t.Errorf("seq = %d before any snapshot", s.Seq())
	}
}

func TestSwarmConverges(t *testing.T) {
	s := New(300, 0.08, 0.85, rand.New(rand.NewSource(2)))

	targets := make([]geom.Point, 1000)
	for i := range targets {
		targets[i] = geom.Point{X: 0.5, Y: -0.25}
	}
	snap := &cycle.Snapshot{Seq: 1, Shape: "dot", AttractK: 1.5, Targets: targets}
	if !s.SetTargets(snap) {
		t.Fatal("SetTargets reported no change")
	}
	if s.SetTargets(snap) {
		t.Error("same snapshot applied twice")
	}
	if s.Shape() != "dot" {
		t.Errorf("shape = %q", s.Shape())
	}

	start := s.Residual()
	for i := 0; i < 400; i++ {
		s.Step()
	}
	if end := s.Residual(); end > start*1e-3 {
		t.Errorf("residual %v -> %v, expected convergence", start, end)
	}
}

func TestSetTargetsStridesLargeBuffers(t *testing.T) {
	s := New(10, 0.08, 0.85, rand.New(rand.NewSource(3)))

	// Target i sits at x = i/100, so stride sampling covers the range.
	targets := make([]geom.Point, 100)
	for i := range targets {
		targets[i] = geom.Point{X: float64(i) / 100}
	}
	s.SetTargets(&cycle.Snapshot{Seq: 5, AttractK: 1.5, Targets: targets})

	seen := make(map[float32]bool)
	q := s.retarget.Query()
	for q.Next() {
		tgt, part := q.Get()
		want := float32(int(part.Index)*10) / 100
		if math.Abs(float64(tgt.X-want)) > 1e-6 {
			t.Errorf("particle %d target %v, want %v", part.Index, tgt.X, want)
		}
		seen[tgt.X] = true
	}
	if len(seen) != 10 {
		t.Errorf("%d distinct targets, want 10", len(seen))
	}
}

func TestStiffnessScalesWithAttractK(t *testing.T) {
	s := New(1, 0.08, 0.85, rand.New(rand.NewSource(4)))
	tests := []struct {
		k    float32
		want float32
	}{
		{1.5, 0.08},
		{3.0, 0.16},
		{0, 0},
		{100, 0.5},
	}
	for _, tt := range tests {
		if got := s.spring.Stiffness(tt.k); math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("Stiffness(%v) = %v, want %v", tt.k, got, tt.want)
		}
	}
}

func TestScatterThenReassemble(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	s := New(200, 0.08, 0.85, rng)
	s.Scatter(rng)
	if s.Residual() == 0 {
		t.Fatal("scatter left particles on their targets")
	}
	s.SetSpring(0.2, 0.7)
	for i := 0; i < 300; i++ {
		s.Step()
	}
	if r := s.Residual(); r > 1e-4 {
		t.Errorf("residual after reassembly = %v", r)
	}
}
