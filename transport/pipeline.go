package transport

import (
	"math/rand"

	"github.com/pthm-cable/tofu/field"
	"github.com/pthm-cable/tofu/geom"
)

// Phase names reported to a PhaseTimer.
const (
	PhaseSample    = "sample"
	PhaseSolve     = "solve"
	PhaseBroadcast = "broadcast"
)

// PhaseTimer receives the name of each stage as it starts.
type PhaseTimer interface {
	StartPhase(phase string)
}

// Pipeline chains sampling, assignment and broadcast.
type Pipeline struct {
	K       int     // representatives per side
	Jitter  float64 // std of per-particle target noise, NDC units
	Sampler Sampler

	// Timer is optional.
	Timer PhaseTimer
}

// Result is the outcome of one pipeline run.
type Result struct {
	Targets    []geom.Point // one per input particle
	SourceReps []geom.Point
	TargetReps []geom.Point
	Assignment Assignment
	Cost       float64 // mean squared representative displacement
}

// Solve computes new targets for prev given the grown density. prev is
// never modified; on error nothing is returned.
func (p Pipeline) Solve(prev []geom.Point, density *field.Grid, rng *rand.Rand) (*Result, error) {
	p.phase(PhaseSample)
	src, err := SampleSource(prev, p.K, rng)
	if err != nil {
		return nil, err
	}
	dst := p.Sampler.SampleTarget(density, p.K, rng)

	p.phase(PhaseSolve)
	a, err := SolveAssignment(src, dst)
	if err != nil {
		return nil, err
	}

	p.phase(PhaseBroadcast)
	targets := Broadcast(prev, src, a, dst, p.Jitter, rng)

	return &Result{
		Targets:    targets,
		SourceReps: src,
		TargetReps: dst,
		Assignment: a,
		Cost:       TransportCost(src, dst, a),
	}, nil
}

func (p Pipeline) phase(name string) {
	if p.Timer != nil {
		p.Timer.StartPhase(name)
	}
}
