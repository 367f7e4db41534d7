package main

import (
	"image/color"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/pthm-cable/tofu/palette"
)

// Raster accumulates particles into a pixel grid two pixels tall per
// terminal row, drawn with upper half blocks.
type Raster struct {
	cols, rows int // terminal cells
	count      []int32
	speed      []float32
	tint       []float32

	palette    *palette.Palette
	background colorful.Color
	saturation float32 // particles per pixel at full brightness
}

// NewRaster creates a raster for a cols×rows terminal area.
func NewRaster(cols, rows int, p *palette.Palette) *Raster {
	r := &Raster{
		palette:    p,
		background: colorful.Color{R: 0.03, G: 0.04, B: 0.06},
		saturation: 4,
	}
	r.Resize(cols, rows)
	return r
}

// Resize changes the terminal area and clears the raster.
func (r *Raster) Resize(cols, rows int) {
	r.cols, r.rows = max(cols, 0), max(rows, 0)
	n := r.cols * r.rows * 2
	r.count = make([]int32, n)
	r.speed = make([]float32, n)
	r.tint = make([]float32, n)
}

// Clear resets every pixel.
func (r *Raster) Clear() {
	clear(r.count)
	clear(r.speed)
	clear(r.tint)
}

// Plot adds a particle at NDC position (x, y). The [-1,1]² square is fitted
// into the raster, keeping it square in pixels. Points outside are dropped.
func (r *Raster) Plot(x, y, speed, tint float32) {
	px, py, ok := r.pixel(x, y)
	if !ok {
		return
	}
	i := py*r.cols + px
	r.count[i]++
	r.speed[i] += speed
	r.tint[i] += tint
}

func (r *Raster) pixel(x, y float32) (px, py int, ok bool) {
	w, h := r.cols, r.rows*2
	side := min(w, h)
	if side == 0 {
		return 0, 0, false
	}
	ox := (w - side) / 2
	oy := (h - side) / 2
	fx := (x + 1) / 2 * float32(side)
	fy := (1 - y) / 2 * float32(side)
	if fx < 0 || fy < 0 || fx >= float32(side) || fy >= float32(side) {
		return 0, 0, false
	}
	return ox + int(fx), oy + int(fy), true
}

// Color returns the color of pixel (px, py): the palette color of the
// average particle, faded toward the background when sparsely covered.
func (r *Raster) Color(px, py int) color.RGBA {
	i := py*r.cols + px
	n := r.count[i]
	if n == 0 {
		return toRGBA(r.background)
	}
	fg, _ := colorful.MakeColor(r.palette.Particle(r.tint[i]/float32(n), r.speed[i]/float32(n)))
	t := min(float64(n)/float64(r.saturation), 1)
	return toRGBA(r.background.BlendLab(fg, 0.35+0.65*t))
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Draw paints the raster onto screen starting at row top.
func (r *Raster) Draw(screen tcell.Screen, top int) {
	for row := 0; row < r.rows; row++ {
		for col := 0; col < r.cols; col++ {
			upper := r.Color(col, row*2)
			lower := r.Color(col, row*2+1)
			style := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(upper.R), int32(upper.G), int32(upper.B))).
				Background(tcell.NewRGBColor(int32(lower.R), int32(lower.G), int32(lower.B)))
			screen.SetContent(col, top+row, '▀', nil, style)
		}
	}
}
