package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/tofu/camera"
	"github.com/pthm-cable/tofu/components"
	"github.com/pthm-cable/tofu/geom"
	"github.com/pthm-cable/tofu/palette"
	"github.com/pthm-cable/tofu/swarm"
)

// SwarmRenderer draws preview particles as small squares.
type SwarmRenderer struct {
	Palette *palette.Palette
	Size    float32 // particle edge length in pixels at zoom 1
}

// NewSwarmRenderer creates a renderer with the default palette.
func NewSwarmRenderer() *SwarmRenderer {
	return &SwarmRenderer{
		Palette: palette.Default(),
		Size:    2,
	}
}

// Draw renders every particle of s through cam.
func (r *SwarmRenderer) Draw(s *swarm.Swarm, cam *camera.Camera) {
	size := r.Size * cam.Zoom
	if size < 1 {
		size = 1
	}
	half := size / 2
	margin := half / cam.Scale()
	dim := rl.Vector2{X: size, Y: size}

	s.Each(func(p components.Position, speed, tint float32) {
		if !cam.IsVisible(p.X, p.Y, margin) {
			return
		}
		sx, sy := cam.WorldToScreen(p.X, p.Y)
		rl.DrawRectangleV(rl.Vector2{X: sx - half, Y: sy - half}, dim, r.Palette.Particle(tint, speed))
	})
}

// DrawTargets marks published targets with single pixels.
func (r *SwarmRenderer) DrawTargets(targets []geom.Point, cam *camera.Camera, color rl.Color) {
	for _, t := range targets {
		x, y := float32(t.X), float32(t.Y)
		if !cam.IsVisible(x, y, 0) {
			continue
		}
		sx, sy := cam.WorldToScreen(x, y)
		rl.DrawPixelV(rl.Vector2{X: sx, Y: sy}, color)
	}
}
