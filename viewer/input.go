package viewer

import rl "github.com/gen2brain/raylib-go/raylib"

// handleInput processes keyboard and mouse input.
func (v *Viewer) handleInput() {
	v.handleResize()

	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
	}
	if rl.IsKeyPressed(rl.KeySpace) {
		v.state.Paused = !v.state.Paused
	}
	if rl.IsKeyPressed(rl.KeyN) {
		v.game.Orchestrator().Advance()
	}
	if rl.IsKeyPressed(rl.KeyS) {
		v.swarm.Scatter(v.rng)
	}
	if rl.IsKeyPressed(rl.KeyT) {
		v.state.ShowTargets = !v.state.ShowTargets
	}
	if rl.IsKeyPressed(rl.KeyG) {
		v.state.ShowDensity = !v.state.ShowDensity
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		v.controls.Toggle()
	}

	v.handleCameraInput()
}

// handleResize checks for window resize and propagates new dimensions.
func (v *Viewer) handleResize() {
	if !rl.IsWindowResized() {
		return
	}
	w := float32(rl.GetScreenWidth())
	h := float32(rl.GetScreenHeight())
	if w == v.screenWidth && h == v.screenHeight {
		return
	}
	v.screenWidth = w
	v.screenHeight = h
	v.camera.Resize(w, h)
	v.layout()
}

// handleCameraInput processes camera pan/zoom controls.
func (v *Viewer) handleCameraInput() {
	const panSpeed = 8

	// Arrow keys move the view, so content moves the other way
	if rl.IsKeyDown(rl.KeyRight) {
		v.camera.Pan(-panSpeed, 0)
	}
	if rl.IsKeyDown(rl.KeyLeft) {
		v.camera.Pan(panSpeed, 0)
	}
	if rl.IsKeyDown(rl.KeyDown) {
		v.camera.Pan(0, -panSpeed)
	}
	if rl.IsKeyDown(rl.KeyUp) {
		v.camera.Pan(0, panSpeed)
	}

	mouse := rl.GetMousePosition()
	overPanel := v.controls.Contains(mouse.X, mouse.Y)

	if rl.IsMouseButtonPressed(rl.MouseButtonLeft) && !overPanel {
		v.dragging = true
	}
	if rl.IsMouseButtonReleased(rl.MouseButtonLeft) {
		v.dragging = false
	}
	if v.dragging {
		d := rl.GetMouseDelta()
		v.camera.Pan(d.X, d.Y)
	}

	if wheel := rl.GetMouseWheelMove(); wheel != 0 && !overPanel {
		v.camera.ZoomBy(1 + wheel*0.1)
	}
	if rl.IsKeyPressed(rl.KeyEqual) || rl.IsKeyPressed(rl.KeyKpAdd) {
		v.camera.ZoomBy(1.25)
	}
	if rl.IsKeyPressed(rl.KeyMinus) || rl.IsKeyPressed(rl.KeyKpSubtract) {
		v.camera.ZoomBy(0.8)
	}

	if rl.IsKeyPressed(rl.KeyHome) {
		v.camera.Reset()
	}
}
