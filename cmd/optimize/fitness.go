package main

import (
	"math/rand"
	"sync"

	"github.com/pthm-cable/tofu/config"
	"github.com/pthm-cable/tofu/field"
	"github.com/pthm-cable/tofu/nca"
	"github.com/pthm-cable/tofu/shapes"
)

// FitnessEvaluator grows every configured shape with candidate rollout
// parameters and scores how closely the grown fields match their goals.
type FitnessEvaluator struct {
	params     *ParamVector
	net        *nca.UpdateNet
	library    *shapes.Library
	shapes     []string
	seeds      []int64
	baseConfig *config.Config

	mu        sync.Mutex
	lastWorst string // shape with the largest error in the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator. Goals for every shape are
// resolved up front so an unknown name fails before optimization starts.
func NewFitnessEvaluator(params *ParamVector, net *nca.UpdateNet, library *shapes.Library, names []string, seeds []int64, baseCfg *config.Config) (*FitnessEvaluator, error) {
	for _, name := range names {
		if _, err := library.Goal(name); err != nil {
			return nil, err
		}
	}
	return &FitnessEvaluator{
		params:     params,
		net:        net,
		library:    library,
		shapes:     names,
		seeds:      seeds,
		baseConfig: baseCfg,
	}, nil
}

// LastWorst returns the worst-matching shape from the most recent evaluation.
func (fe *FitnessEvaluator) LastWorst() string {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastWorst
}

// seedResult holds per-shape errors from one seed.
type seedResult struct {
	errs []float64
}

// Evaluate computes fitness for a raw parameter vector (lower = better):
// the mean squared difference between grown and goal density, averaged
// over shapes and seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := *fe.baseConfig
	fe.params.ApplyToConfig(&cfg, x)
	opts := nca.Options{
		FireRate:        cfg.NCA.FireRate,
		SeedNoise:       cfg.NCA.SeedNoise,
		Bound:           float32(cfg.NCA.Clamp),
		ReadoutGain:     cfg.NCA.ReadoutGain,
		ReadoutMidpoint: cfg.NCA.ReadoutMidpoint,
	}

	// Run all seeds in parallel
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSeed(opts, cfg.NCA.Rounds, s)
		}(i, seed)
	}
	wg.Wait()

	// Aggregate results
	perShape := make([]float64, len(fe.shapes))
	var total float64
	for _, r := range results {
		for j, e := range r.errs {
			perShape[j] += e
			total += e
		}
	}
	worst := 0
	for j := range perShape {
		if perShape[j] > perShape[worst] {
			worst = j
		}
	}
	fitness := total / float64(len(fe.seeds)*len(fe.shapes))

	fe.mu.Lock()
	fe.lastWorst = fe.shapes[worst]
	fe.mu.Unlock()

	return fitness
}

// runSeed grows every shape once with its own engine and rng.
func (fe *FitnessEvaluator) runSeed(opts nca.Options, rounds int, seed int64) seedResult {
	engine := nca.NewEngine(fe.net, opts)
	defer engine.Close()
	rng := rand.New(rand.NewSource(seed))

	res := seedResult{errs: make([]float64, len(fe.shapes))}
	for j, name := range fe.shapes {
		goal, _ := fe.library.Goal(name)
		grown := engine.Grow(goal, rounds, rng)
		res.errs[j] = meanSquaredError(grown, goal)
	}
	return res
}

func meanSquaredError(a, b *field.Grid) float64 {
	var sum float64
	for i := range a.Data {
		d := float64(a.Data[i] - b.Data[i])
		sum += d * d
	}
	return sum / float64(len(a.Data))
}
