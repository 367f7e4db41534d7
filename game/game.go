// Package game assembles the shape library, growth engine, orchestrator,
// websocket hub and telemetry sinks into one runnable service. It has no
// graphics dependency; the viewer package draws on top of it.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"path/filepath"
	"sync"

	"github.com/pthm-cable/tofu/config"
	"github.com/pthm-cable/tofu/cycle"
	"github.com/pthm-cable/tofu/hub"
	"github.com/pthm-cable/tofu/nca"
	"github.com/pthm-cable/tofu/shapes"
	"github.com/pthm-cable/tofu/telemetry"
	"github.com/pthm-cable/tofu/transport"
)

// Options holds command-line overrides for NewGame.
type Options struct {
	Seed      int64  // RNG seed for the initial buffer, growth and sampling
	OutputDir string // directory for CSV telemetry (empty = disabled)
	Addr      string // listen address (empty = config)
	Weights   string // update network weights (empty = config)
}

// Game owns every long-lived component of a running instance.
type Game struct {
	cfg    *config.Config
	logger *slog.Logger

	library *shapes.Library
	engine  *nca.Engine
	orch    *cycle.Orchestrator
	hub     *hub.Hub

	perf   *telemetry.PerfCollector
	output *telemetry.OutputManager

	addr      string
	weights   string
	closeOnce sync.Once
}

// NewGame wires the components described by cfg. Configuration problems
// such as an unknown shape or more representatives than particles are
// reported here rather than at the first transition.
func NewGame(cfg *config.Config, opts Options) (*Game, error) {
	g := &Game{
		cfg:     cfg,
		logger:  slog.Default(),
		addr:    cfg.Derived.Addr,
		weights: cfg.NCA.Weights,
	}
	if opts.Addr != "" {
		g.addr = opts.Addr
	}
	if opts.Weights != "" {
		g.weights = opts.Weights
	}

	g.library = shapes.NewLibrary(cfg.Grid.Size)
	g.library.SetLogger(g.logger.With("component", "shapes"))

	net, err := nca.LoadWeights(g.weights)
	if err != nil {
		return nil, err
	}
	if net == nil {
		net = nca.NewUpdateNet(rand.New(rand.NewSource(opts.Seed)), cfg.NCA.Channels, cfg.NCA.Hidden)
	} else if net.C != cfg.NCA.Channels {
		g.logger.Warn("weights override configured channel count",
			"weights_channels", net.C, "config_channels", cfg.NCA.Channels)
	}
	g.engine = nca.NewEngine(net, nca.Options{
		FireRate:        cfg.NCA.FireRate,
		SeedNoise:       cfg.NCA.SeedNoise,
		Bound:           float32(cfg.NCA.Clamp),
		ReadoutGain:     cfg.NCA.ReadoutGain,
		ReadoutMidpoint: cfg.NCA.ReadoutMidpoint,
	})

	g.orch, err = cycle.New(cycle.Options{
		Shapes:    cfg.Cycle.Shapes,
		Interval:  cfg.Derived.Interval,
		Particles: cfg.Particles.Count,
		Rounds:    cfg.NCA.Rounds,
		AttractK:  cfg.Physics.AttractK,
		Seed:      opts.Seed,
		Pipeline: transport.Pipeline{
			K:       cfg.Transport.Representatives,
			Jitter:  cfg.Transport.Jitter,
			Sampler: transport.Sampler{FloorFraction: cfg.Transport.FloorFraction},
		},
	}, g.library, g.engine)
	if err != nil {
		g.engine.Close()
		return nil, err
	}
	g.orch.SetLogger(g.logger.With("component", "cycle"))

	g.hub = hub.New(g.orch.Snapshot())
	g.hub.SetLogger(g.logger.With("component", "hub"))
	g.orch.AddPublisher(g.hub)

	g.perf = telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	g.output, err = telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		g.engine.Close()
		return nil, err
	}
	if g.output != nil {
		if err := g.output.WriteConfig(cfg); err != nil {
			g.Close()
			return nil, err
		}
	}
	var collector *telemetry.Collector
	if cfg.Derived.StatsWindow > 0 {
		collector = telemetry.NewCollector(cfg.Derived.StatsWindow, g.orch.Snapshot().Published)
	}
	g.orch.SetTelemetry(g.perf, g.output, collector)

	g.logStartup(opts)
	return g, nil
}

// Run serves the hub and cycles shapes until ctx is cancelled or either
// side fails. The first failure stops the other. Cancellation is not an
// error.
func (g *Game) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		err := g.hub.ListenAndServe(ctx, g.addr)
		if err != nil {
			err = fmt.Errorf("hub: %w", err)
		}
		errc <- err
		cancel()
	}()
	go func() {
		defer wg.Done()
		err := g.orch.Run(ctx)
		if err != nil {
			err = fmt.Errorf("cycle: %w", err)
		}
		errc <- err
		cancel()
	}()
	wg.Wait()
	close(errc)

	var errs []error
	for err := range errc {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration the game was built from.
func (g *Game) Config() *config.Config { return g.cfg }

// Library returns the shape library.
func (g *Game) Library() *shapes.Library { return g.library }

// Orchestrator returns the shape cycle.
func (g *Game) Orchestrator() *cycle.Orchestrator { return g.orch }

// Hub returns the websocket hub.
func (g *Game) Hub() *hub.Hub { return g.hub }

// Perf returns the collector shared by transitions and viewer frames.
func (g *Game) Perf() *telemetry.PerfCollector { return g.perf }

// Addr returns the configured listen address.
func (g *Game) Addr() string { return g.addr }

// Close releases the growth engine and flushes telemetry files. Safe to
// call more than once.
func (g *Game) Close() {
	g.closeOnce.Do(func() {
		g.engine.Close()
		if g.output != nil {
			if err := g.output.Close(); err != nil {
				g.logger.Error("closing telemetry output", "error", err)
			}
			g.logger.Info("telemetry written", "dir", filepath.Clean(g.output.Dir()))
		}
	})
}
