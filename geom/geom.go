// Package geom holds the 2-D point type shared by the transport pipeline,
// the shape cycle and the viewers. All coordinates are normalized device
// coordinates (NDC): both axes span [-1, 1], +y is up.
package geom

import (
	"math"
	"math/rand"
)

// Point is a position in NDC.
type Point struct {
	X, Y float64
}

// Clamp returns p with both coordinates limited to [-1, 1].
func (p Point) Clamp() Point {
	return Point{X: clamp1(p.X), Y: clamp1(p.Y)}
}

// InBounds reports whether both coordinates lie in [-1, 1].
func (p Point) InBounds() bool {
	return p.X >= -1 && p.X <= 1 && p.Y >= -1 && p.Y <= 1
}

// DistSq returns the squared Euclidean distance between p and q.
func (p Point) DistSq(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// Finite reports whether neither coordinate is NaN or infinite.
func (p Point) Finite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

func clamp1(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// Uniform returns n points drawn uniformly from [-1, 1]².
// This is the swarm's "no shape yet" scatter.
func Uniform(n int, rng *rand.Rand) []Point {
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = Point{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1}
	}
	return pts
}

// Flatten packs points into the wire layout x0, y0, x1, y1, ... as float32.
func Flatten(pts []Point) []float32 {
	out := make([]float32, 2*len(pts))
	for i, p := range pts {
		out[2*i] = float32(p.X)
		out[2*i+1] = float32(p.Y)
	}
	return out
}

// Unflatten is the inverse of Flatten. A trailing odd value is ignored.
func Unflatten(flat []float32) []Point {
	pts := make([]Point, len(flat)/2)
	for i := range pts {
		pts[i] = Point{X: float64(flat[2*i]), Y: float64(flat[2*i+1])}
	}
	return pts
}

// Bounds returns the axis-aligned bounding box of pts.
// It returns zero values for an empty slice.
func Bounds(pts []Point) (minP, maxP Point) {
	if len(pts) == 0 {
		return Point{}, Point{}
	}
	minP, maxP = pts[0], pts[0]
	for _, p := range pts[1:] {
		minP.X = math.Min(minP.X, p.X)
		minP.Y = math.Min(minP.Y, p.Y)
		maxP.X = math.Max(maxP.X, p.X)
		maxP.Y = math.Max(maxP.Y, p.Y)
	}
	return minP, maxP
}
