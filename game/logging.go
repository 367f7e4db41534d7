package game

import "log/slog"

// logStartup writes one structured summary of the effective settings.
func (g *Game) logStartup(opts Options) {
	cfg := g.cfg
	net := g.engine.Net()
	weights := g.weights
	if weights == "" {
		weights = "untrained"
	}

	g.logger.Info("starting",
		"seed", opts.Seed,
		"addr", g.addr,
		"output_dir", g.output.Dir(),
		slog.Group("particles",
			"count", cfg.Particles.Count,
			"preview", cfg.Derived.PreviewCount,
		),
		slog.Group("nca",
			"channels", net.C,
			"hidden", net.Hidden,
			"rounds", cfg.NCA.Rounds,
			"grid", cfg.Grid.Size,
			"weights", weights,
		),
		slog.Group("transport",
			"representatives", cfg.Transport.Representatives,
			"jitter", cfg.Transport.Jitter,
		),
		slog.Group("cycle",
			"shapes", cfg.Cycle.Shapes,
			"interval", cfg.Derived.Interval,
		),
	)
}
