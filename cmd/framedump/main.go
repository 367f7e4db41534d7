// Frame dump tool - runs one transition headlessly, lets the preview swarm
// settle and renders it to a PNG file for inspection.
//
// Usage: go run ./cmd/framedump -shape star5 -out star5.png
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/tofu/camera"
	"github.com/pthm-cable/tofu/config"
	"github.com/pthm-cable/tofu/cycle"
	"github.com/pthm-cable/tofu/nca"
	"github.com/pthm-cable/tofu/renderer"
	"github.com/pthm-cable/tofu/shapes"
	"github.com/pthm-cable/tofu/swarm"
	"github.com/pthm-cable/tofu/transport"
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	shape := flag.String("shape", "circle", "Shape to transition to")
	outPath := flag.String("out", "frame.png", "Output PNG path")
	steps := flag.Int("steps", 240, "Physics steps before rendering")
	seed := flag.Int64("seed", 1, "RNG seed")
	width := flag.Int("width", 768, "Render width")
	height := flag.Int("height", 768, "Render height")
	density := flag.Bool("density", false, "Draw the goal density behind the swarm")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	library := shapes.NewLibrary(cfg.Grid.Size)
	net, err := nca.LoadWeights(cfg.NCA.Weights)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load weights: %v\n", err)
		os.Exit(1)
	}
	if net == nil {
		net = nca.NewUpdateNet(rand.New(rand.NewSource(*seed)), cfg.NCA.Channels, cfg.NCA.Hidden)
	}
	engine := nca.NewEngine(net, nca.Options{
		FireRate:        cfg.NCA.FireRate,
		SeedNoise:       cfg.NCA.SeedNoise,
		Bound:           float32(cfg.NCA.Clamp),
		ReadoutGain:     cfg.NCA.ReadoutGain,
		ReadoutMidpoint: cfg.NCA.ReadoutMidpoint,
	})
	defer engine.Close()

	orch, err := cycle.New(cycle.Options{
		Shapes:    []string{*shape},
		Particles: cfg.Particles.Count,
		Rounds:    cfg.NCA.Rounds,
		AttractK:  cfg.Physics.AttractK,
		Seed:      *seed,
		Pipeline: transport.Pipeline{
			K:       cfg.Transport.Representatives,
			Jitter:  cfg.Transport.Jitter,
			Sampler: transport.Sampler{FloorFraction: cfg.Transport.FloorFraction},
		},
	}, library, engine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up cycle: %v\n", err)
		os.Exit(1)
	}

	// The swarm starts on the initial buffer so it travels like a live viewer.
	rng := rand.New(rand.NewSource(*seed))
	s := swarm.New(cfg.Derived.PreviewCount, float32(cfg.Physics.Spring), float32(cfg.Physics.Damping), rng)
	s.SetTargets(orch.Snapshot())
	for i := 0; i < *steps; i++ {
		s.Step()
	}
	if err := orch.Transition(*shape); err != nil {
		fmt.Fprintf(os.Stderr, "Transition failed: %v\n", err)
		os.Exit(1)
	}
	s.SetTargets(orch.Snapshot())
	for i := 0; i < *steps; i++ {
		s.Step()
	}

	// Initialize raylib with hidden window
	rl.SetConfigFlags(rl.FlagWindowHidden)
	rl.InitWindow(int32(*width), int32(*height), "Frame Dump")
	defer rl.CloseWindow()

	cam := camera.New(float32(*width), float32(*height))
	particles := renderer.NewSwarmRenderer()
	backdrop := renderer.NewDensityBackdrop()
	defer backdrop.Unload()
	if *density {
		goal, _ := library.Goal(*shape)
		backdrop.SetGrid(goal)
	}

	target := rl.LoadRenderTexture(int32(*width), int32(*height))
	defer rl.UnloadRenderTexture(target)

	rl.BeginTextureMode(target)
	rl.ClearBackground(rl.Color{R: 8, G: 10, B: 16, A: 255})
	backdrop.Draw(cam, rl.Color{R: 70, G: 80, B: 100, A: 255})
	particles.Draw(s, cam)
	rl.EndTextureMode()

	// Get image from texture and flip it (OpenGL convention)
	img := rl.LoadImageFromTexture(target.Texture)
	rl.ImageFlipVertical(img)

	success := rl.ExportImage(*img, *outPath)
	rl.UnloadImage(img)

	if !success {
		fmt.Fprintf(os.Stderr, "Failed to export image\n")
		os.Exit(1)
	}
	fmt.Printf("Frame rendered to: %s (%dx%d, %d particles, residual %.4f)\n",
		*outPath, *width, *height, s.Len(), s.Residual())
}
