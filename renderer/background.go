package renderer

import (
	"image"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/tofu/camera"
	"github.com/pthm-cable/tofu/field"
	"github.com/pthm-cable/tofu/palette"
)

// DensityBackdrop shows a density grid behind the swarm, stretched over
// the [-1,1]² square.
type DensityBackdrop struct {
	texture rl.Texture2D
	loaded  bool
	w, h    int32
}

// NewDensityBackdrop creates an empty backdrop.
func NewDensityBackdrop() *DensityBackdrop {
	return &DensityBackdrop{}
}

// SetGrid uploads g as the backdrop texture. Must be called on the render
// thread after the window exists.
func (b *DensityBackdrop) SetGrid(g *field.Grid) {
	b.Unload()
	if g == nil {
		return
	}

	img := image.NewRGBA(image.Rect(0, 0, g.W, g.H))
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			img.SetRGBA(x, y, palette.Density(g.At(x, y)))
		}
	}
	rlImg := rl.NewImageFromImage(img)
	b.texture = rl.LoadTextureFromImage(rlImg)
	rl.UnloadImage(rlImg)
	rl.SetTextureFilter(b.texture, rl.FilterBilinear)
	b.w, b.h = int32(g.W), int32(g.H)
	b.loaded = true
}

// Draw renders the backdrop and the outline of the particle space.
func (b *DensityBackdrop) Draw(cam *camera.Camera, border rl.Color) {
	x0, y0 := cam.WorldToScreen(-1, 1)
	x1, y1 := cam.WorldToScreen(1, -1)
	dst := rl.Rectangle{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}

	if b.loaded {
		src := rl.Rectangle{Width: float32(b.w), Height: float32(b.h)}
		rl.DrawTexturePro(b.texture, src, dst, rl.Vector2{}, 0, rl.White)
	}
	rl.DrawRectangleLinesEx(dst, 1, border)
}

// Unload frees the texture.
func (b *DensityBackdrop) Unload() {
	if b.loaded {
		rl.UnloadTexture(b.texture)
		b.loaded = false
	}
}
