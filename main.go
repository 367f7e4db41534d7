package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pthm-cable/tofu/config"
	"github.com/pthm-cable/tofu/game"
	"github.com/pthm-cable/tofu/viewer"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	headless := flag.Bool("headless", false, "Run without a window (hub and cycle only)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV telemetry and config snapshot")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	addr := flag.String("addr", "", "Listen address (empty = server.host:server.port from config)")
	weights := flag.String("weights", "", "Update network weights JSON (empty = nca.weights from config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	g, err := game.NewGame(cfg, game.Options{
		Seed:      rngSeed,
		OutputDir: *outputDir,
		Addr:      *addr,
		Weights:   *weights,
	})
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *headless {
		err = g.Run(ctx)
	} else {
		// The window owns the main thread; closing it stops everything.
		ctx, cancel := context.WithCancel(ctx)
		errc := make(chan error, 1)
		go func() {
			errc <- g.Run(ctx)
			cancel()
		}()
		viewer.New(g, rngSeed).Run(ctx)
		cancel()
		err = <-errc
	}
	g.Close()

	if err != nil {
		slog.Error("stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("stopped")
}
