// Shape preview tool - browse the shape library and tune growth readout
// parameters interactively.
//
// Usage: go run ./cmd/shapepreview [-size 128] [-weights nca.json]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"math/rand"
	"os"
	"strings"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/tofu/field"
	"github.com/pthm-cable/tofu/geom"
	"github.com/pthm-cable/tofu/nca"
	"github.com/pthm-cable/tofu/palette"
	"github.com/pthm-cable/tofu/shapes"
	"github.com/pthm-cable/tofu/transport"
)

const (
	windowWidth  = 1180
	windowHeight = 720
	previewSize  = 400
	panelX       = 2*previewSize + 40
	panelWidth   = windowWidth - panelX - 10
)

// GrowParams holds the tunable rollout settings.
type GrowParams struct {
	Rounds          int
	FireRate        float32
	SeedNoise       float32
	ReadoutGain     float32
	ReadoutMidpoint float32
	Seed            int64
	Samples         int
}

func defaultParams() GrowParams {
	opts := nca.DefaultOptions()
	return GrowParams{
		Rounds:          64,
		FireRate:        float32(opts.FireRate),
		SeedNoise:       float32(opts.SeedNoise),
		ReadoutGain:     float32(opts.ReadoutGain),
		ReadoutMidpoint: float32(opts.ReadoutMidpoint),
		Seed:            1,
		Samples:         512,
	}
}

// gridView is a texture mirroring one density grid.
type gridView struct {
	texture rl.Texture2D
	pixels  []color.RGBA
	size    int
}

func newGridView(size int) *gridView {
	img := rl.GenImageColor(size, size, rl.Black)
	defer rl.UnloadImage(img)
	t := rl.LoadTextureFromImage(img)
	rl.SetTextureFilter(t, rl.FilterBilinear)
	return &gridView{texture: t, pixels: make([]color.RGBA, size*size), size: size}
}

func (v *gridView) update(g *field.Grid) {
	for i, d := range g.Data {
		v.pixels[i] = palette.Density(d)
	}
	rl.UpdateTexture(v.texture, v.pixels)
}

func (v *gridView) draw(x, y float32, label string) {
	rl.DrawTexturePro(
		v.texture,
		rl.Rectangle{Width: float32(v.size), Height: float32(v.size)},
		rl.Rectangle{X: x, Y: y, Width: previewSize, Height: previewSize},
		rl.Vector2{}, 0, rl.White,
	)
	rl.DrawRectangleLines(int32(x), int32(y), previewSize, previewSize, rl.DarkGray)
	rl.DrawText(label, int32(x), int32(y+previewSize+6), 16, rl.LightGray)
}

func main() {
	size := flag.Int("size", 128, "Grid size (H = W)")
	weights := flag.String("weights", "", "Update network weights JSON (empty = untrained)")
	channels := flag.Int("channels", 16, "State channels for the untrained network")
	hidden := flag.Int("hidden", 64, "Hidden units for the untrained network")
	flag.Parse()

	net, err := nca.LoadWeights(*weights)
	if err != nil {
		slog.Error("failed to load weights", "error", err)
		os.Exit(1)
	}
	if net == nil {
		net = nca.NewUpdateNet(rand.New(rand.NewSource(1)), *channels, *hidden)
	}

	library := shapes.NewLibrary(*size)
	names := library.Names()

	rl.InitWindow(windowWidth, windowHeight, "Shape Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	goalView := newGridView(*size)
	grownView := newGridView(*size)
	defer rl.UnloadTexture(goalView.texture)
	defer rl.UnloadTexture(grownView.texture)

	params := defaultParams()
	current := 0
	showSamples := true
	needsRegen := true

	var grown *field.Grid
	var samples []geom.Point
	var regenErr error

	for !rl.WindowShouldClose() {
		if rl.IsKeyPressed(rl.KeyRight) {
			current = (current + 1) % len(names)
			needsRegen = true
		}
		if rl.IsKeyPressed(rl.KeyLeft) {
			current = (current + len(names) - 1) % len(names)
			needsRegen = true
		}

		if needsRegen {
			var goal *field.Grid
			goal, grown, samples, regenErr = regenerate(library, net, names[current], params)
			if regenErr == nil {
				goalView.update(goal)
				grownView.update(grown)
			}
			needsRegen = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.Color{R: 12, G: 14, B: 20, A: 255})

		goalView.draw(10, 10, "Goal")
		grownView.draw(previewSize+20, 10, "Grown")
		if showSamples {
			drawSamples(samples, previewSize+20, 10)
		}

		statsY := int32(previewSize + 40)
		rl.DrawText(fmt.Sprintf("Shape: %s (%d/%d)", names[current], current+1, len(names)), 15, statsY, 20, rl.White)
		if regenErr != nil {
			rl.DrawText(regenErr.Error(), 15, statsY+26, 16, rl.Red)
		} else if grown != nil {
			rl.DrawText(fmt.Sprintf("Grown  min %.3f  max %.3f  mean %.3f",
				grown.Min(), grown.Max(), grown.Sum()/float64(len(grown.Data))), 15, statsY+26, 16, rl.LightGray)
		}
		netLabel := "untrained"
		if *weights != "" {
			netLabel = *weights
		}
		rl.DrawText("Network: "+netLabel, 15, statsY+48, 16, rl.Gray)

		if drawPanel(&params, &showSamples, &current, len(names)) {
			needsRegen = true
		}

		rl.DrawText("[Left/Right] Shape  [C] Copy YAML", 15, windowHeight-25, 14, rl.Gray)
		if rl.IsKeyPressed(rl.KeyC) {
			rl.SetClipboardText(yamlFor(params))
		}

		rl.EndDrawing()
	}
}

// regenerate grows the named shape with the current parameters and draws
// the representatives the transport stage would sample from it.
func regenerate(library *shapes.Library, net *nca.UpdateNet, name string, p GrowParams) (goal, grown *field.Grid, samples []geom.Point, err error) {
	goal, err = library.Goal(name)
	if err != nil {
		return nil, nil, nil, err
	}

	engine := nca.NewEngine(net, nca.Options{
		FireRate:        float64(p.FireRate),
		SeedNoise:       float64(p.SeedNoise),
		Bound:           1,
		ReadoutGain:     float64(p.ReadoutGain),
		ReadoutMidpoint: float64(p.ReadoutMidpoint),
	})
	defer engine.Close()

	rng := rand.New(rand.NewSource(p.Seed))
	grown = engine.Grow(goal, p.Rounds, rng)
	samples = transport.DefaultSampler().SampleTarget(grown, p.Samples, rng)
	return goal, grown, samples, nil
}

func drawSamples(pts []geom.Point, x, y float32) {
	for _, p := range pts {
		sx := x + float32(p.X+1)/2*previewSize
		sy := y + float32(1-p.Y)/2*previewSize
		rl.DrawCircleV(rl.Vector2{X: sx, Y: sy}, 1.5, rl.Color{R: 255, G: 241, B: 214, A: 200})
	}
}

// slider draws a labelled slider and reports whether its value changed.
func slider(y *float32, label, format string, value *float32, min, max float32) bool {
	rl.DrawText(label, panelX, int32(*y), 14, rl.Gray)
	*y += 18
	v := gui.SliderBar(rl.Rectangle{X: panelX, Y: *y, Width: panelWidth - 70, Height: 20}, "", "", *value, min, max)
	rl.DrawText(fmt.Sprintf(format, *value), panelX+panelWidth-62, int32(*y+2), 16, rl.LightGray)
	*y += 35
	if v != *value {
		*value = v
		return true
	}
	return false
}

// drawPanel renders the parameter controls and reports whether the preview
// must be regrown.
func drawPanel(p *GrowParams, showSamples *bool, current *int, count int) bool {
	changed := false
	y := float32(10)

	rl.DrawText("Growth Parameters", panelX, int32(y), 20, rl.White)
	y += 35

	rounds := float32(p.Rounds)
	if slider(&y, "Rounds", "%.0f", &rounds, 1, 256) && int(rounds) != p.Rounds {
		p.Rounds = int(rounds)
		changed = true
	}
	changed = slider(&y, "Fire rate", "%.2f", &p.FireRate, 0, 1) || changed
	changed = slider(&y, "Seed noise", "%.3f", &p.SeedNoise, 0, 0.3) || changed
	changed = slider(&y, "Readout gain", "%.1f", &p.ReadoutGain, 1, 30) || changed
	changed = slider(&y, "Readout midpoint", "%.2f", &p.ReadoutMidpoint, 0, 1) || changed

	samples := float32(p.Samples)
	if slider(&y, "Representatives", "%.0f", &samples, 16, 2048) && int(samples) != p.Samples {
		p.Samples = int(samples)
		changed = true
	}

	*showSamples = gui.CheckBox(rl.Rectangle{X: panelX, Y: y, Width: 16, Height: 16}, "Show representatives", *showSamples)
	y += 30

	if gui.Button(rl.Rectangle{X: panelX, Y: y, Width: 120, Height: 30}, "< Prev") {
		*current = (*current + count - 1) % count
		changed = true
	}
	if gui.Button(rl.Rectangle{X: panelX + 130, Y: y, Width: 120, Height: 30}, "Next >") {
		*current = (*current + 1) % count
		changed = true
	}
	y += 40

	if gui.Button(rl.Rectangle{X: panelX, Y: y, Width: 120, Height: 30}, "Reseed") {
		p.Seed++
		changed = true
	}
	if gui.Button(rl.Rectangle{X: panelX + 130, Y: y, Width: 120, Height: 30}, "Reset All") {
		*p = defaultParams()
		changed = true
	}
	y += 50

	rl.DrawText("YAML Config:", panelX, int32(y), 16, rl.LightGray)
	y += 22
	for _, line := range yamlLines(*p) {
		rl.DrawText(line, panelX, int32(y), 14, rl.Gray)
		y += 16
	}
	return changed
}

func yamlLines(p GrowParams) []string {
	return []string{
		"nca:",
		fmt.Sprintf("  rounds: %d", p.Rounds),
		fmt.Sprintf("  fire_rate: %.2f", p.FireRate),
		fmt.Sprintf("  seed_noise: %.3f", p.SeedNoise),
		fmt.Sprintf("  readout_gain: %.1f", p.ReadoutGain),
		fmt.Sprintf("  readout_midpoint: %.2f", p.ReadoutMidpoint),
	}
}

func yamlFor(p GrowParams) string {
	return strings.Join(yamlLines(p), "\n") + "\n"
}
