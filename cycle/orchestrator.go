// Package cycle runs the shape sequence: for each configured shape it grows
// a density field, solves the transport assignment from the current targets
// and publishes the result as the new target buffer.
//
// The orchestrator is the only writer. Readers take the current Snapshot
// through an atomic pointer and never see a partially built buffer.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pthm-cable/tofu/field"
	"github.com/pthm-cable/tofu/geom"
	"github.com/pthm-cable/tofu/shapes"
	"github.com/pthm-cable/tofu/telemetry"
	"github.com/pthm-cable/tofu/transport"
)

// State is the orchestrator's position in the Idle → Transitioning →
// Holding loop.
type State int32

const (
	Idle State = iota
	Transitioning
	Holding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Transitioning:
		return "transitioning"
	case Holding:
		return "holding"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// GoalSource supplies goal density grids by shape name. Unknown names
// must return an error wrapping shapes.ErrUnknownShape.
type GoalSource interface {
	Goal(name string) (*field.Grid, error)
}

// Grower turns a goal grid into a grown density field.
type Grower interface {
	Grow(goal *field.Grid, rounds int, rng *rand.Rand) *field.Grid
}

// Options configures an Orchestrator.
type Options struct {
	Shapes    []string      // cycle order, repeated forever
	Interval  time.Duration // dwell per shape, measured from transition start
	Particles int           // N
	Rounds    int           // growth rounds per transition
	AttractK  float64       // forwarded in every snapshot
	Seed      int64
	Pipeline  transport.Pipeline
}

type status struct {
	state State
	shape string
}

// Orchestrator owns the published target buffer and the shape cycle.
type Orchestrator struct {
	opts   Options
	goals  GoalSource
	grower Grower
	rng    *rand.Rand
	logger *slog.Logger

	// serializes transitions; also guards rng, pos and attempts
	transitionMu sync.Mutex
	pos          int
	attempts     int64

	snap    atomic.Pointer[Snapshot]
	status  atomic.Pointer[status]
	last    atomic.Pointer[telemetry.TransitionRecord]
	advance chan struct{}

	pubMu      sync.Mutex
	publishers []Publisher

	perf      *telemetry.PerfCollector
	out       *telemetry.OutputManager
	collector *telemetry.Collector
	bookmarks *telemetry.BookmarkDetector
}

// New validates the options and returns an orchestrator in the Idle state
// holding a uniformly random initial buffer. Every shape in the cycle is
// resolved up front; an unknown name fails with shapes.ErrUnknownShape,
// and K > N fails with transport.ErrInsufficientSourcePoints.
func New(opts Options, goals GoalSource, grower Grower) (*Orchestrator, error) {
	if len(opts.Shapes) == 0 {
		return nil, errors.New("cycle: no shapes configured")
	}
	if opts.Particles <= 0 || opts.Rounds <= 0 || opts.Pipeline.K <= 0 {
		return nil, fmt.Errorf("cycle: particles, rounds and representatives must be positive (got %d, %d, %d)",
			opts.Particles, opts.Rounds, opts.Pipeline.K)
	}
	if opts.Pipeline.K > opts.Particles {
		return nil, fmt.Errorf("cycle: %d representatives for %d particles: %w",
			opts.Pipeline.K, opts.Particles, transport.ErrInsufficientSourcePoints)
	}
	for _, name := range opts.Shapes {
		if _, err := goals.Goal(name); err != nil {
			return nil, fmt.Errorf("cycle: shape %q: %w", name, err)
		}
	}

	o := &Orchestrator{
		opts:    opts,
		goals:   goals,
		grower:  grower,
		rng:     rand.New(rand.NewSource(opts.Seed)),
		logger:  slog.Default(),
		advance: make(chan struct{}, 1),
		perf:    telemetry.NewPerfCollector(0),
	}
	o.snap.Store(&Snapshot{
		AttractK:  opts.AttractK,
		Targets:   geom.Uniform(opts.Particles, o.rng),
		Published: time.Now(),
	})
	o.status.Store(&status{state: Idle})
	return o, nil
}

// SetLogger replaces the orchestrator's logger.
func (o *Orchestrator) SetLogger(l *slog.Logger) {
	o.logger = l
}

// SetTelemetry attaches telemetry sinks. Any argument may be nil.
func (o *Orchestrator) SetTelemetry(perf *telemetry.PerfCollector, out *telemetry.OutputManager, c *telemetry.Collector) {
	if perf != nil {
		o.perf = perf
	}
	o.out = out
	o.collector = c
	if c != nil {
		o.bookmarks = telemetry.NewBookmarkDetector(10)
	}
}

// Perf returns the transition timing collector.
func (o *Orchestrator) Perf() *telemetry.PerfCollector {
	return o.perf
}

// AddPublisher registers p to receive every future snapshot.
func (o *Orchestrator) AddPublisher(p Publisher) {
	o.pubMu.Lock()
	defer o.pubMu.Unlock()
	o.publishers = append(o.publishers, p)
}

// Snapshot returns the current target buffer. Safe for concurrent use.
func (o *Orchestrator) Snapshot() *Snapshot {
	return o.snap.Load()
}

// State reports the current state and the shape it refers to: the shape
// being computed while Transitioning, the shape on display otherwise.
func (o *Orchestrator) State() (State, string) {
	s := o.status.Load()
	return s.state, s.shape
}

// LastRecord returns the telemetry record of the most recent transition
// attempt, successful or not. The zero record means none has run.
func (o *Orchestrator) LastRecord() telemetry.TransitionRecord {
	if r := o.last.Load(); r != nil {
		return *r
	}
	return telemetry.TransitionRecord{}
}

// Advance ends the current hold early. It never blocks; extra calls while
// a request is pending are dropped.
func (o *Orchestrator) Advance() {
	select {
	case o.advance <- struct{}{}:
	default:
	}
}

// IsFatal reports whether err is a configuration error that should stop
// the cycle rather than skip one shape.
func IsFatal(err error) bool {
	return errors.Is(err, shapes.ErrUnknownShape) || errors.Is(err, transport.ErrInsufficientSourcePoints)
}

// Run cycles through the configured shapes until ctx is cancelled or a
// fatal error occurs. Other transition errors are logged; the previous
// buffer stays current and the cycle moves on after the usual hold.
// Run returns nil on cancellation.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		name := o.next()
		start := time.Now()
		if err := o.Transition(name); err != nil {
			if IsFatal(err) {
				return err
			}
			o.logger.Error("transition failed", "shape", name, "error", err)
		}

		hold := max(0, o.opts.Interval-time.Since(start))
		if !o.hold(ctx, hold) {
			return nil
		}
	}
}

func (o *Orchestrator) next() string {
	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()
	name := o.opts.Shapes[o.pos]
	o.pos = (o.pos + 1) % len(o.opts.Shapes)
	return name
}

// hold waits for d, an Advance call or cancellation. It returns false if
// ctx was cancelled.
func (o *Orchestrator) hold(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	case <-o.advance:
	}
	return true
}

// Transition computes and publishes the targets for name. On error the
// current snapshot is left untouched. Transitions are serialized; a call
// made while another is running waits for it.
func (o *Orchestrator) Transition(name string) (err error) {
	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()

	prev := o.snap.Load()
	o.status.Store(&status{state: Transitioning, shape: name})
	o.attempts++

	start := time.Now()
	rec := telemetry.TransitionRecord{
		Seq:             o.attempts,
		Shape:           name,
		StartedUnixMS:   start.UnixMilli(),
		Particles:       o.opts.Particles,
		Representatives: o.opts.Pipeline.K,
	}
	o.perf.StartTransition()

	defer func() {
		o.perf.EndTransition()
		rec.TotalMS = ms(time.Since(start))
		rec.OK = err == nil
		if err != nil {
			rec.Error = err.Error()
		}
		o.record(rec)
		o.status.Store(&status{state: Holding, shape: o.snap.Load().Shape})
	}()

	snap, err := o.compute(name, prev, &rec)
	if err != nil {
		return err
	}

	o.perf.StartPhase(telemetry.PhasePublish)
	o.snap.Store(snap)
	o.pubMu.Lock()
	pubs := append([]Publisher(nil), o.publishers...)
	o.pubMu.Unlock()
	for _, p := range pubs {
		p.Publish(snap)
	}
	return nil
}

// compute runs goal → grow → sample → solve → broadcast. Panics are
// converted to errors so a bad shape cannot take down the cycle.
func (o *Orchestrator) compute(name string, prev *Snapshot, rec *telemetry.TransitionRecord) (snap *Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap = nil
			err = fmt.Errorf("transition %q panicked: %v", name, r)
		}
	}()

	o.perf.StartPhase(telemetry.PhaseGoal)
	goal, err := o.goals.Goal(name)
	if err != nil {
		return nil, fmt.Errorf("goal %q: %w", name, err)
	}

	o.perf.StartPhase(telemetry.PhaseGrow)
	growStart := time.Now()
	density := o.grower.Grow(goal, o.opts.Rounds, o.rng)
	rec.GrowMS = ms(time.Since(growStart))
	rec.DensityMean = density.Sum() / float64(len(density.Data))

	pipeline := o.opts.Pipeline
	pipeline.Timer = o.perf

	solveStart := time.Now()
	res, err := pipeline.Solve(prev.Targets, density, o.rng)
	if errors.Is(err, transport.ErrSolverNumerical) {
		// A fresh representative sample usually avoids the degenerate case.
		o.logger.Warn("transport solve failed, retrying", "shape", name, "error", err)
		rec.Retries++
		res, err = pipeline.Solve(prev.Targets, density, o.rng)
	}
	if err != nil {
		return nil, fmt.Errorf("transport for %q: %w", name, err)
	}
	rec.SolveMS = ms(time.Since(solveStart))
	rec.TransportCost = res.Cost

	if len(res.Targets) != o.opts.Particles {
		return nil, fmt.Errorf("transport for %q returned %d targets, want %d", name, len(res.Targets), o.opts.Particles)
	}

	moves := make([]float64, len(res.Targets))
	for i, t := range res.Targets {
		moves[i] = math.Sqrt(t.DistSq(prev.Targets[i]))
	}
	rec.SetMoves(moves)

	return &Snapshot{
		Seq:       prev.Seq + 1,
		Shape:     name,
		AttractK:  o.opts.AttractK,
		Targets:   res.Targets,
		Published: time.Now(),
	}, nil
}

func (o *Orchestrator) record(rec telemetry.TransitionRecord) {
	o.last.Store(&rec)
	o.logger.Info("transition", "record", rec)
	if err := o.out.WriteTransition(rec); err != nil {
		o.logger.Error("telemetry write failed", "error", err)
	}
	if o.collector == nil {
		return
	}

	o.collector.Record(rec)
	now := time.Now()
	if !o.collector.ShouldFlush(now) {
		return
	}
	stats := o.collector.Flush(now)
	perf := o.perf.Stats()
	o.logger.Info("window", "stats", stats, "perf", perf)
	for _, b := range o.bookmarks.Check(stats) {
		b.Log(o.logger)
	}
	if err := o.out.WriteWindow(stats); err != nil {
		o.logger.Error("telemetry write failed", "error", err)
	}
	if err := o.out.WritePerf(perf, rec.Seq); err != nil {
		o.logger.Error("telemetry write failed", "error", err)
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
