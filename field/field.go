// Package field provides the scalar density grid consumed by the growth
// engine and the transport sampler.
package field

import "fmt"

// Grid is an H×W scalar field stored row-major. Row 0 is the top of the
// silhouette, column 0 the left edge. Values are conceptually in [0,1].
type Grid struct {
	W, H int
	Data []float32
}

// New allocates a zeroed w×h grid. Non-positive dimensions panic.
func New(w, h int) *Grid {
	if w <= 0 || h <= 0 {
		panic(fmt.Sprintf("field: invalid grid size %dx%d", w, h))
	}
	return &Grid{W: w, H: h, Data: make([]float32, w*h)}
}

// FromRows builds a grid from a slice of equal-length rows.
func FromRows(rows [][]float32) *Grid {
	if len(rows) == 0 {
		panic("field: no rows")
	}
	g := New(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != g.W {
			panic(fmt.Sprintf("field: row %d has %d cells, want %d", y, len(row), g.W))
		}
		copy(g.Data[y*g.W:], row)
	}
	return g
}

// Index returns the flat index of cell (x, y).
func (g *Grid) Index(x, y int) int {
	return y*g.W + x
}

// At returns the value at column x, row y.
func (g *Grid) At(x, y int) float32 {
	return g.Data[y*g.W+x]
}

// Set stores v at column x, row y.
func (g *Grid) Set(x, y int, v float32) {
	g.Data[y*g.W+x] = v
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := &Grid{W: g.W, H: g.H, Data: make([]float32, len(g.Data))}
	copy(c.Data, g.Data)
	return c
}

// Max returns the largest cell value.
func (g *Grid) Max() float32 {
	m := g.Data[0]
	for _, v := range g.Data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// Min returns the smallest cell value.
func (g *Grid) Min() float32 {
	m := g.Data[0]
	for _, v := range g.Data[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Sum returns the total mass of the grid.
func (g *Grid) Sum() float64 {
	var s float64
	for _, v := range g.Data {
		s += float64(v)
	}
	return s
}

// Normalize rescales values in place to [0,1] (min-max). A flat grid is
// left untouched.
func (g *Grid) Normalize() {
	lo, hi := g.Min(), g.Max()
	if hi-lo < 1e-6 {
		return
	}
	scale := 1 / (hi - lo)
	for i, v := range g.Data {
		g.Data[i] = (v - lo) * scale
	}
}

// SameShape reports whether g and o have identical dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g.W == o.W && g.H == o.H
}

// CellToNDC maps a fractional cell position to normalized device
// coordinates. col and row address cell centres at integer+0.5; the grid's
// outer edges map to ±1. Rows grow downward while NDC y grows upward, so
// row 0 is the top of the screen (y = +1).
func (g *Grid) CellToNDC(col, row float64) (x, y float64) {
	x = col/float64(g.W)*2 - 1
	y = 1 - row/float64(g.H)*2
	return x, y
}

// NDCToCell is the inverse of CellToNDC, truncated to the containing cell
// and clamped to the grid.
func (g *Grid) NDCToCell(x, y float64) (col, row int) {
	col = int((x + 1) / 2 * float64(g.W))
	row = int((1 - y) / 2 * float64(g.H))
	col = min(max(col, 0), g.W-1)
	row = min(max(row, 0), g.H-1)
	return col, row
}
