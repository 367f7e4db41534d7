package cycle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/pthm-cable/tofu/field"
	"github.com/pthm-cable/tofu/nca"
	"github.com/pthm-cable/tofu/shapes"
	"github.com/pthm-cable/tofu/telemetry"
	"github.com/pthm-cable/tofu/transport"
)

// fakeGoals serves fixed grids and rejects everything else.
type fakeGoals map[string]*field.Grid

func (f fakeGoals) Goal(name string) (*field.Grid, error) {
	g, ok := f[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, shapes.ErrUnknownShape)
	}
	return g, nil
}

type fakeGrower struct {
	mu    sync.Mutex
	calls int
	panic bool
}

func (f *fakeGrower) Grow(goal *field.Grid, rounds int, rng *rand.Rand) *field.Grid {
	f.mu.Lock()
	f.calls++
	boom := f.panic
	f.mu.Unlock()
	if boom {
		panic("grower exploded")
	}
	return goal.Clone()
}

type recorder struct {
	mu    sync.Mutex
	snaps []*Snapshot
}

func (r *recorder) Publish(s *Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func blob(size, cx, cy int) *field.Grid {
	g := field.New(size, size)
	for y := cy - 2; y <= cy+2; y++ {
		for x := cx - 2; x <= cx+2; x++ {
			g.Set(x, y, 1)
		}
	}
	return g
}

func testGoals() fakeGoals {
	return fakeGoals{
		"left":  blob(16, 4, 8),
		"right": blob(16, 11, 8),
	}
}

func testOptions() Options {
	return Options{
		Shapes:    []string{"left", "right"},
		Interval:  time.Hour,
		Particles: 200,
		Rounds:    4,
		AttractK:  1.5,
		Seed:      1,
		Pipeline: transport.Pipeline{
			K:       32,
			Jitter:  0.01,
			Sampler: transport.Sampler{},
		},
	}
}

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		target error
	}{
		{"unknown shape", func(o *Options) { o.Shapes = []string{"left", "nope"} }, shapes.ErrUnknownShape},
		{"too many representatives", func(o *Options) { o.Pipeline.K = 500 }, transport.ErrInsufficientSourcePoints},
		{"no shapes", func(o *Options) { o.Shapes = nil }, nil},
		{"zero rounds", func(o *Options) { o.Rounds = 0 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			tt.mutate(&opts)
			_, err := New(opts, testGoals(), &fakeGrower{})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("error %v does not wrap %v", err, tt.target)
			}
			if tt.target != nil && !IsFatal(err) {
				t.Errorf("IsFatal(%v) = false", err)
			}
		})
	}
}

func TestInitialSnapshot(t *testing.T) {
	o, err := New(testOptions(), testGoals(), &fakeGrower{})
	if err != nil {
		t.Fatal(err)
	}
	s := o.Snapshot()
	if s.Seq != 0 || s.Shape != "" || s.Len() != 200 {
		t.Fatalf("initial snapshot = seq %d shape %q len %d", s.Seq, s.Shape, s.Len())
	}
	for i, p := range s.Targets {
		if !p.InBounds() {
			t.Fatalf("target %d out of bounds: %+v", i, p)
		}
	}
	if st, _ := o.State(); st != Idle {
		t.Errorf("state = %v, want idle", st)
	}
	if got := len(s.Flat()); got != 400 {
		t.Errorf("flat length = %d, want 400", got)
	}
}

func TestTransitionPublishes(t *testing.T) {
	o, err := New(testOptions(), testGoals(), &fakeGrower{})
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	o.AddPublisher(rec)

	if err := o.Transition("left"); err != nil {
		t.Fatal(err)
	}
	s := o.Snapshot()
	if s.Seq != 1 || s.Shape != "left" || s.AttractK != 1.5 {
		t.Fatalf("snapshot = seq %d shape %q k %v", s.Seq, s.Shape, s.AttractK)
	}
	if rec.count() != 1 || rec.snaps[0] != s {
		t.Fatal("publisher did not receive the current snapshot")
	}

	// Targets should sit on the left half, where all the mass is.
	var left int
	for _, p := range s.Targets {
		if !p.InBounds() {
			t.Fatalf("target out of bounds: %+v", p)
		}
		if p.X < 0 {
			left++
		}
	}
	if left < len(s.Targets)*9/10 {
		t.Errorf("only %d of %d targets on the left", left, len(s.Targets))
	}

	if st, shape := o.State(); st != Holding || shape != "left" {
		t.Errorf("state = %v %q, want holding left", st, shape)
	}

	if err := o.Transition("right"); err != nil {
		t.Fatal(err)
	}
	if s := o.Snapshot(); s.Seq != 2 || s.Shape != "right" {
		t.Errorf("second snapshot = seq %d shape %q", s.Seq, s.Shape)
	}
}

func TestTransitionFailureKeepsSnapshot(t *testing.T) {
	grower := &fakeGrower{}
	o, err := New(testOptions(), testGoals(), grower)
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	o.AddPublisher(rec)
	if err := o.Transition("left"); err != nil {
		t.Fatal(err)
	}
	before := o.Snapshot()

	grower.panic = true
	err = o.Transition("right")
	if err == nil {
		t.Fatal("expected error from panicking grower")
	}
	if IsFatal(err) {
		t.Errorf("grower panic reported as fatal: %v", err)
	}
	if last := o.LastRecord(); last.OK || last.Shape != "right" || last.Error == "" {
		t.Errorf("last record = %+v", last)
	}
	if o.Snapshot() != before {
		t.Error("snapshot replaced after failed transition")
	}
	if rec.count() != 1 {
		t.Errorf("publisher called %d times, want 1", rec.count())
	}
	if st, shape := o.State(); st != Holding || shape != "left" {
		t.Errorf("state = %v %q, want holding left", st, shape)
	}

	grower.panic = false
	if err := o.Transition("unknown"); !errors.Is(err, shapes.ErrUnknownShape) {
		t.Errorf("unknown shape error = %v", err)
	}
}

func TestTransitionDeterministic(t *testing.T) {
	run := func() *Snapshot {
		o, err := New(testOptions(), testGoals(), &fakeGrower{})
		if err != nil {
			t.Fatal(err)
		}
		if err := o.Transition("right"); err != nil {
			t.Fatal(err)
		}
		return o.Snapshot()
	}
	a, b := run(), run()
	for i := range a.Targets {
		if a.Targets[i] != b.Targets[i] {
			t.Fatalf("target %d differs: %+v vs %+v", i, a.Targets[i], b.Targets[i])
		}
	}
}

func TestTransitionTelemetry(t *testing.T) {
	o, err := New(testOptions(), testGoals(), &fakeGrower{})
	if err != nil {
		t.Fatal(err)
	}
	perf := telemetry.NewPerfCollector(4)
	start := time.Now()
	c := telemetry.NewCollector(time.Hour, start)
	o.SetTelemetry(perf, nil, c)

	if err := o.Transition("left"); err != nil {
		t.Fatal(err)
	}
	stats := perf.Stats()
	if stats.Transitions != 1 {
		t.Fatalf("perf transitions = %d, want 1", stats.Transitions)
	}
	for _, phase := range []string{telemetry.PhaseGoal, telemetry.PhaseGrow, telemetry.PhaseSolve, telemetry.PhasePublish} {
		if _, ok := stats.PhaseAvg[phase]; !ok {
			t.Errorf("phase %q not recorded", phase)
		}
	}

	w := c.Flush(start.Add(time.Hour))
	if w.Transitions != 1 || w.Failures != 0 || w.WindowEndSeq != 1 {
		t.Errorf("window stats = %+v", w)
	}
}

func TestRunCyclesAndStops(t *testing.T) {
	opts := testOptions()
	opts.Interval = time.Millisecond
	o, err := New(opts, testGoals(), &fakeGrower{})
	if err != nil {
		t.Fatal(err)
	}

	seen := make(chan string, 16)
	o.AddPublisher(PublisherFunc(func(s *Snapshot) {
		select {
		case seen <- s.Shape:
		default:
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	want := []string{"left", "right", "left"}
	for i, w := range want {
		select {
		case got := <-seen:
			if got != w {
				t.Errorf("publication %d = %q, want %q", i, got, w)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for publication %d", i)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestAdvanceSkipsHold(t *testing.T) {
	o, err := New(testOptions(), testGoals(), &fakeGrower{})
	if err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	o.AddPublisher(rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	waitFor := func(n int) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for rec.count() < n {
			if time.Now().After(deadline) {
				t.Fatalf("waited for %d publications, have %d", n, rec.count())
			}
			time.Sleep(time.Millisecond)
		}
	}

	waitFor(1)
	// Interval is an hour; only Advance can move the cycle on.
	o.Advance()
	waitFor(2)
	if got := o.Snapshot().Shape; got != "right" {
		t.Errorf("shape after advance = %q, want right", got)
	}
}

func TestWithGrowthEngine(t *testing.T) {
	lib := shapes.NewLibrary(24)
	eng := nca.NewEngine(nca.NewUpdateNet(rand.New(rand.NewSource(3)), 16, 64), nca.DefaultOptions())
	defer eng.Close()

	opts := testOptions()
	opts.Shapes = []string{"circle", "star5"}
	o, err := New(opts, lib, eng)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range opts.Shapes {
		if err := o.Transition(name); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	if s := o.Snapshot(); s.Seq != 2 || s.Len() != opts.Particles {
		t.Errorf("snapshot = seq %d len %d", s.Seq, s.Len())
	}
}
