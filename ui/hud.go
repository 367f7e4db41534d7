package ui

import (
	"fmt"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/tofu/telemetry"
)

// HUDData holds all the data needed to render the main HUD.
type HUDData struct {
	Title     string
	Shape     string
	State     string
	Seq       int64
	Particles int
	Preview   int
	Clients   int
	FPS       int32
	Paused    bool
}

// HUD renders the main heads-up display.
type HUD struct {
	renderer *Renderer
}

// NewHUD creates a new HUD renderer.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer()}
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	rl.DrawText(data.Title, 10, 10, 20, rl.White)

	shape := data.Shape
	if shape == "" {
		shape = "(scatter)"
	}
	rl.DrawText(
		fmt.Sprintf("Shape: %s | %s | Seq: %d", shape, data.State, data.Seq),
		10, 35, 16, rl.LightGray,
	)
	rl.DrawText(
		fmt.Sprintf("Particles: %d (preview %d) | Clients: %d | FPS: %d", data.Particles, data.Preview, data.Clients, data.FPS),
		10, 55, 16, rl.LightGray,
	)
	if data.Paused {
		rl.DrawText("PAUSED", 10, 75, 16, rl.Yellow)
	}
}

// DrawControls renders the control legend at the bottom of the screen.
func (h *HUD) DrawControls(screenHeight int32, controls string) {
	rl.DrawText(controls, 10, screenHeight-25, 14, rl.Gray)
}

// perfPhases is the display order of transition phases.
var perfPhases = []string{
	telemetry.PhaseGoal,
	telemetry.PhaseGrow,
	telemetry.PhaseSample,
	telemetry.PhaseSolve,
	telemetry.PhaseBroadcast,
	telemetry.PhasePublish,
}

// PerfPanel renders transition timing by phase.
type PerfPanel struct {
	renderer *Renderer
	x, y     int32
}

// NewPerfPanel creates a new performance panel.
func NewPerfPanel(x, y int32) *PerfPanel {
	return &PerfPanel{renderer: NewRenderer(), x: x, y: y}
}

// SetPosition updates the panel position.
func (p *PerfPanel) SetPosition(x, y int32) {
	p.x = x
	p.y = y
}

// Draw renders the performance panel.
func (p *PerfPanel) Draw(stats telemetry.PerfStats) {
	x, y := p.x, p.y

	rl.DrawText("Transition Timing", x, y, 16, rl.White)
	y += 20

	rl.DrawText(fmt.Sprintf("Avg: %s  (min %s, max %s, n=%d)",
		stats.AvgDuration.Round(time.Millisecond),
		stats.MinDuration.Round(time.Millisecond),
		stats.MaxDuration.Round(time.Millisecond),
		stats.Transitions), x, y, 14, rl.Yellow)
	y += 16

	for _, phase := range perfPhases {
		avg, ok := stats.PhaseAvg[phase]
		if !ok {
			continue
		}
		pct := stats.PhasePct[phase]

		color := rl.LightGray
		if pct > 50 {
			color = rl.Red
		} else if pct > 20 {
			color = rl.Orange
		}
		rl.DrawText(fmt.Sprintf("%-10s %8s %5.1f%%", phase, avg.Round(time.Microsecond), pct), x, y, 12, color)
		y += 14
	}
}

// TransitionView is the data behind the transition panel.
type TransitionView struct {
	Record    telemetry.TransitionRecord
	MeanSpeed float32
	Residual  float32
}

var transitionSections = []SectionDescriptor{
	{
		Title: "Last Transition",
		Visible: func(d any) bool {
			return d.(*TransitionView).Record.Seq > 0
		},
		Fields: []FieldDescriptor{
			{Label: "Shape", Widget: WidgetText, TextGetter: func(d any) string {
				r := d.(*TransitionView).Record
				if !r.OK {
					return r.Shape + " (failed)"
				}
				return r.Shape
			}},
			{Label: "Grow", Widget: WidgetText, Format: "%.1f ms", Getter: func(d any) float32 {
				return float32(d.(*TransitionView).Record.GrowMS)
			}},
			{Label: "Solve", Widget: WidgetText, Format: "%.1f ms", Getter: func(d any) float32 {
				return float32(d.(*TransitionView).Record.SolveMS)
			}},
			{Label: "Cost", Widget: WidgetText, Format: "%.4f", Getter: func(d any) float32 {
				return float32(d.(*TransitionView).Record.TransportCost)
			}},
			{Label: "Move p50", Widget: WidgetBar, Range: FieldRange{Min: 0, Max: 2}, Getter: func(d any) float32 {
				return float32(d.(*TransitionView).Record.MoveP50)
			}},
			{Label: "Density", Widget: WidgetBar, Range: DefaultRange(), Getter: func(d any) float32 {
				return float32(d.(*TransitionView).Record.DensityMean)
			}},
		},
	},
	{
		Title: "Preview",
		Fields: []FieldDescriptor{
			{Label: "Speed", Widget: WidgetText, Format: "%.5f", Getter: func(d any) float32 {
				return d.(*TransitionView).MeanSpeed
			}},
			{Label: "Residual", Widget: WidgetBar, Range: FieldRange{Min: 0, Max: 0.5}, Getter: func(d any) float32 {
				return d.(*TransitionView).Residual
			}},
		},
	},
}

// TransitionPanel shows the most recent transition record and the state
// of the local preview.
type TransitionPanel struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewTransitionPanel creates a transition panel.
func NewTransitionPanel(x, y, width int32) *TransitionPanel {
	return &TransitionPanel{renderer: NewRenderer(), x: x, y: y, width: width}
}

// SetPosition updates the panel position.
func (t *TransitionPanel) SetPosition(x, y int32) {
	t.x = x
	t.y = y
}

// Draw renders the panel.
func (t *TransitionPanel) Draw(view *TransitionView) {
	r := t.renderer
	padding := r.Theme.Padding

	height := padding * 2
	for _, sd := range transitionSections {
		if sd.Visible == nil || sd.Visible(view) {
			height += r.SectionHeight(sd)
		}
	}
	r.DrawPanel(t.x, t.y, t.width, height)

	y := t.y + padding
	for _, sd := range transitionSections {
		y = r.DrawSection(t.x+padding, y, sd, view, t.width-padding*2)
	}
}
