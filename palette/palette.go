// Package palette maps particle state to display colours. It is shared by
// the raylib viewer and the terminal viewer.
package palette

import (
	"fmt"
	"image/color"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// Stop is one gradient key.
type Stop struct {
	Color colorful.Color
	Pos   float64
}

// Gradient interpolates between stops in HCL space.
type Gradient []Stop

// ParseGradient builds a gradient from hex colours spaced evenly on [0,1].
func ParseGradient(hexes ...string) (Gradient, error) {
	if len(hexes) < 2 {
		return nil, fmt.Errorf("gradient needs at least two colours, got %d", len(hexes))
	}
	g := make(Gradient, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("colour %d: %w", i, err)
		}
		g[i] = Stop{Color: c, Pos: float64(i) / float64(len(hexes)-1)}
	}
	return g, nil
}

// At returns the colour at t, clamped to [0,1].
func (g Gradient) At(t float64) colorful.Color {
	if t <= g[0].Pos {
		return g[0].Color
	}
	last := len(g) - 1
	if t >= g[last].Pos {
		return g[last].Color
	}
	i := sort.Search(len(g), func(i int) bool { return g[i].Pos >= t })
	a, b := g[i-1], g[i]
	if b.Pos == t {
		return b.Color
	}
	return a.Color.BlendHcl(b.Color, (t-a.Pos)/(b.Pos-a.Pos)).Clamped()
}

const (
	tintSteps  = 32
	speedSteps = 32
)

// Palette is a precomputed colour table indexed by particle tint and speed.
type Palette struct {
	MaxSpeed float32
	lut      [tintSteps * speedSteps]color.RGBA
}

// New builds a palette: resting particles take their colour from base at
// their tint, moving particles blend toward hot as speed approaches
// maxSpeed.
func New(base Gradient, hot colorful.Color, maxSpeed float32) *Palette {
	p := &Palette{MaxSpeed: maxSpeed}
	for ti := 0; ti < tintSteps; ti++ {
		c := base.At(float64(ti) / float64(tintSteps-1))
		for si := 0; si < speedSteps; si++ {
			s := float64(si) / float64(speedSteps-1)
			r, g, b := c.BlendLab(hot, s*s).Clamped().RGB255()
			p.lut[ti*speedSteps+si] = color.RGBA{R: r, G: g, B: b, A: 255}
		}
	}
	return p
}

// Default returns the viewer palette: a cool teal to violet range that
// flares toward warm white in motion.
func Default() *Palette {
	base, err := ParseGradient("#1fa2a8", "#3d7dd8", "#7b5cd6", "#c45ab3")
	if err != nil {
		panic(err)
	}
	hot, _ := colorful.Hex("#fff1d6")
	return New(base, hot, 0.02)
}

// Particle returns the colour for a particle with the given tint in [0,1)
// and speed in NDC units per tick.
func (p *Palette) Particle(tint, speed float32) color.RGBA {
	ti := int(tint * tintSteps)
	ti = min(max(ti, 0), tintSteps-1)
	si := 0
	if p.MaxSpeed > 0 {
		si = int(speed / p.MaxSpeed * (speedSteps - 1))
	}
	si = min(max(si, 0), speedSteps-1)
	return p.lut[ti*speedSteps+si]
}

// Density maps a density value in [0,1] to a dim background shade.
func Density(v float32) color.RGBA {
	v = min(max(v, 0), 1)
	c := colorful.Hsv(200, 0.6, 0.08+0.32*float64(v))
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
