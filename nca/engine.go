package nca

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/pthm-cable/tofu/field"
)

// Options tunes a growth rollout.
type Options struct {
	FireRate        float64 // probability a cell updates in a round
	SeedNoise       float64 // std of the Gaussian noise added to the seed
	Bound           float32 // state is clamped to [-Bound, Bound]
	ReadoutGain     float64 // slope of the alpha readout sigmoid
	ReadoutMidpoint float64 // alpha value that reads out as 0.5
}

// DefaultOptions returns the standard rollout parameters.
func DefaultOptions() Options {
	return Options{
		FireRate:        0.5,
		SeedNoise:       0.05,
		Bound:           1,
		ReadoutGain:     10,
		ReadoutMidpoint: 0.5,
	}
}

// Engine grows density fields with a fixed update network. Grow calls are
// serialized; the engine owns a worker pool that Close releases.
type Engine struct {
	net  *UpdateNet
	opts Options

	mu    sync.Mutex
	pools map[int]*rowPool // keyed by grid width
}

// NewEngine creates an engine around net. A nil net panics; use
// NewUpdateNet for the untrained model.
func NewEngine(net *UpdateNet, opts Options) *Engine {
	if net == nil {
		panic("nca: nil update net")
	}
	if err := net.Validate(); err != nil {
		panic(fmt.Sprintf("nca: %v", err))
	}
	return &Engine{net: net, opts: opts, pools: make(map[int]*rowPool)}
}

// Net returns the engine's update network.
func (e *Engine) Net() *UpdateNet {
	return e.net
}

// Options returns the engine's rollout parameters.
func (e *Engine) Options() Options {
	return e.opts
}

// Grow seeds a state from goal and runs rounds automaton updates, then
// reads channel 0 through the logistic readout. The result has the goal's
// shape and values in (0,1). All randomness comes from rng, so a fixed seed
// reproduces the output exactly. rounds must be positive.
func (e *Engine) Grow(goal *field.Grid, rounds int, rng *rand.Rand) *field.Grid {
	if rounds <= 0 {
		panic(fmt.Sprintf("nca: rounds must be positive, got %d", rounds))
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := Seed(goal, e.net.C, e.opts.SeedNoise, e.opts.Bound, rng)
	next := cur.Clone()
	feats := goalFeatureGrid(goal)
	mask := make([]bool, goal.W*goal.H)
	identity := e.net.IsIdentity()

	var pool *rowPool
	if !identity {
		pool = e.pool(goal.W)
	}

	for r := 0; r < rounds; r++ {
		// Masks are drawn even for the identity net so the random stream
		// consumed by a rollout does not depend on the weights.
		for i := range mask {
			mask[i] = rng.Float64() < e.opts.FireRate
		}
		if identity {
			continue
		}
		pool.run(&roundJob{cur: cur, next: next, feats: feats, mask: mask, bound: e.opts.Bound})
		cur, next = next, cur
	}

	return e.Readout(cur)
}

// Readout maps channel 0 of s through σ(gain·(a − midpoint)).
func (e *Engine) Readout(s *State) *field.Grid {
	out := field.New(s.W, s.H)
	gain, mid := e.opts.ReadoutGain, e.opts.ReadoutMidpoint
	for i := range out.Data {
		a := float64(s.Data[i*s.C])
		out.Data[i] = float32(1 / (1 + math.Exp(-gain*(a-mid))))
	}
	return out
}

// Step applies one automaton round to s in place using mask. It is the
// single-round building block of Grow, exposed for inspection tools.
func (e *Engine) Step(s *State, goal *field.Grid, mask []bool) {
	if !s.sameGrid(goal) || len(mask) != goal.W*goal.H {
		panic("nca: state, goal and mask shapes differ")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	next := s.Clone()
	job := &roundJob{cur: s, next: next, feats: goalFeatureGrid(goal), mask: mask, bound: e.opts.Bound}
	e.pool(goal.W).run(job)
	copy(s.Data, next.Data)
}

// Close stops the engine's worker goroutines.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for w, p := range e.pools {
		p.stopWorkers()
		delete(e.pools, w)
	}
}

func (e *Engine) pool(width int) *rowPool {
	p, ok := e.pools[width]
	if !ok {
		p = newRowPool(e.net, width)
		e.pools[width] = p
	}
	return p
}

func (s *State) sameGrid(g *field.Grid) bool {
	return s.W == g.W && s.H == g.H
}
