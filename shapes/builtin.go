package shapes

import (
	"math"

	"github.com/pthm-cable/tofu/field"
)

const (
	softSigma   = 1.5
	glyphSigma  = 1.0
	nebulaSeed  = 7
	curveWidth  = 0.035
	curveSample = 2048
)

func registerBuiltins(l *Library) {
	l.Register("circle", softSigma, mask(func(x, y float64) bool {
		return x*x+y*y < 0.36*0.36
	}))
	l.Register("ring", softSigma, mask(func(x, y float64) bool {
		return math.Abs(math.Hypot(x, y)-0.34) < 0.04
	}))
	l.Register("diamond", softSigma, mask(func(x, y float64) bool {
		return math.Abs(x)+math.Abs(y) < 0.36
	}))
	l.Register("star5", softSigma, mask(star(5, 0.38, 0.16)))
	l.Register("star6", softSigma, mask(star(6, 0.38, 0.16)))
	l.Register("star8", softSigma, mask(star(8, 0.38, 0.2)))
	l.Register("triangle", softSigma, mask(triangle))
	l.Register("cross", softSigma, mask(func(x, y float64) bool {
		ax, ay := math.Abs(x), math.Abs(y)
		return (ax < 0.1 && ay < 0.36) || (ay < 0.1 && ax < 0.36)
	}))
	l.Register("heart", softSigma, mask(heart))
	l.Register("rose3", softSigma, mask(rose(3)))
	l.Register("rose4", softSigma, mask(rose(4)))

	l.Register("wave", softSigma, curve(0, 1, func(t float64) (float64, float64) {
		return -0.4 + 0.8*t, 0.18 * math.Sin(4*math.Pi*t)
	}))
	l.Register("spiral", softSigma, curve(0, 1, func(t float64) (float64, float64) {
		const turns = 3
		a := t * turns * 2 * math.Pi
		r := 0.04 + 0.34*t
		return r * math.Cos(a), r * math.Sin(a)
	}))
	l.Register("lissajous", softSigma, curve(0, 2*math.Pi, func(t float64) (float64, float64) {
		return 0.36 * math.Sin(3*t+math.Pi/2), 0.36 * math.Sin(2*t)
	}))

	l.Register("nebula", 0, nebula(nebulaSeed))

	for _, r := range []string{"A", "E", "I", "O", "0"} {
		l.Register(r, glyphSigma, glyph(r))
	}
}

// centred maps cell (col, row) of a size×size grid to coordinates centred
// on the grid with +y up, spanning [-0.5, 0.5].
func centred(col, row, size int) (x, y float64) {
	s := float64(size)
	return (float64(col)+0.5)/s - 0.5, 0.5 - (float64(row)+0.5)/s
}

// mask renders an indicator function as a 0/1 grid.
func mask(inside func(x, y float64) bool) Generator {
	return func(size int) *field.Grid {
		g := field.New(size, size)
		for row := 0; row < size; row++ {
			for col := 0; col < size; col++ {
				if inside(centred(col, row, size)) {
					g.Set(col, row, 1)
				}
			}
		}
		return g
	}
}

// star is an n-pointed star with one tip pointing up. The boundary radius
// interpolates linearly between outer at the tips and inner at the valleys.
func star(n int, outer, inner float64) func(x, y float64) bool {
	wedge := 2 * math.Pi / float64(n)
	return func(x, y float64) bool {
		theta := math.Atan2(y, x) - math.Pi/2
		f := math.Mod(theta, wedge)
		if f < 0 {
			f += wedge
		}
		f /= wedge
		r := inner + (outer-inner)*math.Abs(1-2*f)
		return math.Hypot(x, y) < r
	}
}

// triangle is an upward equilateral-ish triangle.
func triangle(x, y float64) bool {
	const top, base, halfBase = 0.36, -0.30, 0.38
	if y > top || y < base {
		return false
	}
	return math.Abs(x) <= halfBase*(top-y)/(top-base)
}

// heart uses (x² + y² − 1)³ − x²y³ < 0 scaled to the grid.
func heart(x, y float64) bool {
	x *= 2.8
	y = (y + 0.02) * 2.8
	a := x*x + y*y - 1
	return a*a*a-x*x*y*y*y < 0
}

// rose is the filled polar rose r < 0.38·cos(kθ), k petals.
func rose(k int) func(x, y float64) bool {
	return func(x, y float64) bool {
		return math.Hypot(x, y) < 0.38*math.Cos(float64(k)*math.Atan2(y, x))
	}
}

// curve rasterizes the parametric path p(t), t in [t0, t1], as a stroke
// of width curveWidth.
func curve(t0, t1 float64, p func(t float64) (float64, float64)) Generator {
	return func(size int) *field.Grid {
		g := field.New(size, size)
		s := float64(size)
		rad := max(curveWidth/2*s, 0.75)
		for i := 0; i <= curveSample; i++ {
			t := t0 + (t1-t0)*float64(i)/curveSample
			x, y := p(t)
			// Back to fractional cell coordinates.
			cx := (x + 0.5) * s
			cy := (0.5 - y) * s
			stamp(g, cx, cy, rad)
		}
		return g
	}
}

// stamp fills every cell whose centre is within rad of (cx, cy).
func stamp(g *field.Grid, cx, cy, rad float64) {
	x0 := max(int(cx-rad), 0)
	x1 := min(int(cx+rad)+1, g.W-1)
	y0 := max(int(cy-rad), 0)
	y1 := min(int(cy+rad)+1, g.H-1)
	for row := y0; row <= y1; row++ {
		for col := x0; col <= x1; col++ {
			dx := float64(col) + 0.5 - cx
			dy := float64(row) + 0.5 - cy
			if dx*dx+dy*dy <= rad*rad {
				g.Set(col, row, 1)
			}
		}
	}
}
