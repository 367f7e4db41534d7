package ui

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"
)

// ControlState is the set of values the controls panel edits.
type ControlState struct {
	Spring      float32
	Damping     float32
	ShowTargets bool
	ShowDensity bool
	Paused      bool
}

// ControlActions reports one-shot requests made this frame.
type ControlActions struct {
	NextShape  bool
	ResetView  bool
	ResetSwarm bool
}

// ControlsPanel renders the right-side controls with raygui widgets.
type ControlsPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
	visible  bool
}

// NewControlsPanel creates a new controls panel.
func NewControlsPanel(x, y, width int32) *ControlsPanel {
	return &ControlsPanel{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
		visible:  true,
	}
}

// SetPosition updates the panel position.
func (c *ControlsPanel) SetPosition(x, y int32) {
	c.x = x
	c.y = y
}

// IsVisible returns whether the panel is shown.
func (c *ControlsPanel) IsVisible() bool {
	return c.visible
}

// Toggle switches panel visibility.
func (c *ControlsPanel) Toggle() bool {
	c.visible = !c.visible
	return c.visible
}

// Contains reports whether the screen point lies on the panel, so mouse
// input there is not also treated as a camera drag.
func (c *ControlsPanel) Contains(x, y float32) bool {
	return c.visible &&
		x >= float32(c.x) && x <= float32(c.x+c.width) &&
		y >= float32(c.y) && y <= float32(c.y+c.height())
}

func (c *ControlsPanel) height() int32 {
	return 250
}

// Draw renders the panel, applies slider edits to state and returns the
// buttons pressed this frame.
func (c *ControlsPanel) Draw(state *ControlState) ControlActions {
	var act ControlActions
	if !c.visible {
		return act
	}

	r := c.renderer
	padding := r.Theme.Padding
	r.DrawPanel(c.x, c.y, c.width, c.height())

	x := float32(c.x + padding)
	y := float32(c.y + padding)
	w := float32(c.width - padding*2)

	rl.DrawText("Controls", int32(x), int32(y), 16, rl.White)
	y += 24

	rl.DrawText(fmt.Sprintf("Spring %.3f", state.Spring), int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	y += 14
	state.Spring = gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "", state.Spring, 0.005, 0.3)
	y += 24

	rl.DrawText(fmt.Sprintf("Damping %.3f", state.Damping), int32(x), int32(y), r.Theme.FontSize, r.Theme.LabelColor)
	y += 14
	state.Damping = gui.SliderBar(rl.Rectangle{X: x, Y: y, Width: w, Height: 16}, "", "", state.Damping, 0.5, 0.99)
	y += 26

	state.ShowTargets = gui.CheckBox(rl.Rectangle{X: x, Y: y, Width: 14, Height: 14}, "Show targets", state.ShowTargets)
	y += 20
	state.ShowDensity = gui.CheckBox(rl.Rectangle{X: x, Y: y, Width: 14, Height: 14}, "Show goal density", state.ShowDensity)
	y += 26

	half := (w - 10) / 2
	act.NextShape = gui.Button(rl.Rectangle{X: x, Y: y, Width: half, Height: 26}, "Next shape")
	if gui.Button(rl.Rectangle{X: x + half + 10, Y: y, Width: half, Height: 26}, toggleText(state.Paused, "Resume", "Pause")) {
		state.Paused = !state.Paused
	}
	y += 34
	act.ResetView = gui.Button(rl.Rectangle{X: x, Y: y, Width: half, Height: 26}, "Reset view")
	act.ResetSwarm = gui.Button(rl.Rectangle{X: x + half + 10, Y: y, Width: half, Height: 26}, "Scatter")

	return act
}

func toggleText(on bool, onText, offText string) string {
	if on {
		return onText
	}
	return offText
}
