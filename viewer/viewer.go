// Package viewer is the local raylib window: a spring-physics preview of
// the published targets with the goal density behind it, plus HUD and
// controls. It only reads from the game; the cycle keeps running whether
// or not a window is open.
package viewer

import (
	"context"
	"math/rand"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/tofu/camera"
	"github.com/pthm-cable/tofu/geom"
	"github.com/pthm-cable/tofu/game"
	"github.com/pthm-cable/tofu/renderer"
	"github.com/pthm-cable/tofu/swarm"
	"github.com/pthm-cable/tofu/ui"
)

const controlsText = "[Space] Pause  [N] Next shape  [S] Scatter  [T] Targets  [G] Density  [Tab] Panel  [Home] Reset view  [Drag/Wheel] Pan/Zoom"

var (
	targetColor = rl.Color{R: 255, G: 255, B: 255, A: 70}
	borderColor = rl.Color{R: 70, G: 80, B: 100, A: 255}
	clearColor  = rl.Color{R: 8, G: 10, B: 16, A: 255}
)

// Viewer holds the window state.
type Viewer struct {
	game *game.Game
	rng  *rand.Rand

	camera   *camera.Camera
	swarm    *swarm.Swarm
	particle *renderer.SwarmRenderer
	backdrop *renderer.DensityBackdrop

	hud        *ui.HUD
	perfPanel  *ui.PerfPanel
	transPanel *ui.TransitionPanel
	controls   *ui.ControlsPanel
	state      ui.ControlState

	// strided subset of the current snapshot for target markers
	targets     []geom.Point
	backdropFor string
	dragging    bool

	screenWidth, screenHeight float32
}

// New creates a viewer over g. The window is not opened until Run.
func New(g *game.Game, seed int64) *Viewer {
	cfg := g.Config()
	rng := rand.New(rand.NewSource(seed))

	v := &Viewer{
		game:         g,
		rng:          rng,
		camera:       camera.New(cfg.Derived.ScreenW32, cfg.Derived.ScreenH32),
		swarm:        swarm.New(cfg.Derived.PreviewCount, float32(cfg.Physics.Spring), float32(cfg.Physics.Damping), rng),
		particle:     renderer.NewSwarmRenderer(),
		backdrop:     renderer.NewDensityBackdrop(),
		hud:          ui.NewHUD(),
		transPanel:   ui.NewTransitionPanel(10, 100, 240),
		screenWidth:  cfg.Derived.ScreenW32,
		screenHeight: cfg.Derived.ScreenH32,
		state: ui.ControlState{
			Spring:      float32(cfg.Physics.Spring),
			Damping:     float32(cfg.Physics.Damping),
			ShowDensity: true,
		},
	}
	v.controls = ui.NewControlsPanel(0, 10, 220)
	v.perfPanel = ui.NewPerfPanel(0, 270)
	v.layout()
	return v
}

// Run opens the window and renders until it is closed or ctx is
// cancelled. Must be called from the main goroutine.
func (v *Viewer) Run(ctx context.Context) {
	cfg := v.game.Config()
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint)
	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), "tofu")
	defer rl.CloseWindow()
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))
	defer v.backdrop.Unload()

	for !rl.WindowShouldClose() && ctx.Err() == nil {
		v.update()
		v.draw()
		v.game.Perf().RecordFrame()
	}
}

func (v *Viewer) update() {
	v.handleInput()

	snap := v.game.Orchestrator().Snapshot()
	if v.swarm.SetTargets(snap) {
		v.targets = stride(snap.Targets, v.swarm.Len())
	}
	if v.state.ShowDensity && v.backdropFor != v.swarm.Shape() {
		v.refreshBackdrop()
	}

	v.swarm.SetSpring(v.state.Spring, v.state.Damping)
	if !v.state.Paused {
		v.swarm.Step()
	}
}

// refreshBackdrop uploads the goal grid of the current shape.
func (v *Viewer) refreshBackdrop() {
	shape := v.swarm.Shape()
	v.backdropFor = shape
	if shape == "" {
		v.backdrop.SetGrid(nil)
		return
	}
	goal, err := v.game.Library().Goal(shape)
	if err != nil {
		v.backdrop.SetGrid(nil)
		return
	}
	v.backdrop.SetGrid(goal)
}

func (v *Viewer) draw() {
	rl.BeginDrawing()
	defer rl.EndDrawing()
	rl.ClearBackground(clearColor)

	if v.state.ShowDensity {
		v.backdrop.Draw(v.camera, borderColor)
	}
	if v.state.ShowTargets {
		v.particle.DrawTargets(v.targets, v.camera, targetColor)
	}
	v.particle.Draw(v.swarm, v.camera)

	v.drawUI()
}

func (v *Viewer) drawUI() {
	orch := v.game.Orchestrator()
	state, shape := orch.State()
	snap := orch.Snapshot()

	v.hud.Draw(ui.HUDData{
		Title:     "tofu",
		Shape:     shape,
		State:     state.String(),
		Seq:       snap.Seq,
		Particles: snap.Len(),
		Preview:   v.swarm.Len(),
		Clients:   v.game.Hub().Clients(),
		FPS:       rl.GetFPS(),
		Paused:    v.state.Paused,
	})

	v.transPanel.Draw(&ui.TransitionView{
		Record:    orch.LastRecord(),
		MeanSpeed: v.swarm.MeanSpeed(),
		Residual:  float32(v.swarm.Residual()),
	})

	act := v.controls.Draw(&v.state)
	if act.NextShape {
		orch.Advance()
	}
	if act.ResetView {
		v.camera.Reset()
	}
	if act.ResetSwarm {
		v.swarm.Scatter(v.rng)
	}
	if v.controls.IsVisible() {
		v.perfPanel.Draw(v.game.Perf().Stats())
	}

	v.hud.DrawControls(int32(v.screenHeight), controlsText)
}

// layout pins the right-hand panels to the window edge.
func (v *Viewer) layout() {
	x := int32(v.screenWidth) - 230
	v.controls.SetPosition(x, 10)
	v.perfPanel.SetPosition(x, 270)
}

// stride returns n points spread evenly over all, matching the targets the
// preview particles follow.
func stride(all []geom.Point, n int) []geom.Point {
	if n >= len(all) {
		return all
	}
	out := make([]geom.Point, n)
	for i := range out {
		out[i] = all[i*len(all)/n]
	}
	return out
}
