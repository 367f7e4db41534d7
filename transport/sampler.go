package transport

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/tofu/field"
	"github.com/pthm-cable/tofu/geom"
)

// DefaultFloorFraction is the share of the peak cell value added to every
// cell before sampling, so no cell is unreachable.
const DefaultFloorFraction = 0.01

// SampleSource draws k distinct particles uniformly without replacement.
// Coordinates are copied exactly. particles is not modified.
func SampleSource(particles []geom.Point, k int, rng *rand.Rand) ([]geom.Point, error) {
	n := len(particles)
	if k > n {
		return nil, fmt.Errorf("need %d representatives from %d particles: %w", k, n, ErrInsufficientSourcePoints)
	}
	if k <= 0 {
		return nil, fmt.Errorf("representative count must be positive, got %d", k)
	}

	// Partial Fisher-Yates over an index permutation.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	out := make([]geom.Point, k)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = particles[idx[i]]
	}
	return out, nil
}

// Sampler importance-samples points from a density grid.
type Sampler struct {
	// FloorFraction × max(density) is added to every cell before
	// normalizing. Zero disables the floor.
	FloorFraction float64
}

// DefaultSampler returns a sampler with the standard 1% floor.
func DefaultSampler() Sampler {
	return Sampler{FloorFraction: DefaultFloorFraction}
}

// SampleTarget treats density as an unnormalized mass function over cells
// and draws k points from it with replacement. Each drawn cell is jittered
// uniformly by up to half a cell on both axes and mapped to NDC, so every
// point lies in [-1,1]². Row 0 of the grid maps to the top (y = +1).
//
// Negative and non-finite cells count as empty. A grid with no mass at all
// is sampled uniformly.
func (s Sampler) SampleTarget(density *field.Grid, k int, rng *rand.Rand) []geom.Point {
	if k <= 0 {
		return nil
	}
	cdf := s.cdf(density)
	total := cdf[len(cdf)-1]

	out := make([]geom.Point, k)
	for i := range out {
		u := rng.Float64() * total
		cell := sort.Search(len(cdf), func(j int) bool { return cdf[j] > u })
		if cell >= len(cdf) {
			cell = len(cdf) - 1
		}
		// Cell centre plus U(-0.5, 0.5) on each axis.
		jx, jy := rng.Float64()-0.5, rng.Float64()-0.5
		col := float64(cell%density.W) + 0.5 + jx
		row := float64(cell/density.W) + 0.5 + jy
		x, y := density.CellToNDC(col, row)
		out[i] = geom.Point{X: x, Y: y}.Clamp()
	}
	return out
}

// cdf returns the cumulative mass per cell, floor included.
func (s Sampler) cdf(density *field.Grid) []float64 {
	w := make([]float64, len(density.Data))
	for i, v := range density.Data {
		f := float64(v)
		if f > 0 && !math.IsInf(f, 0) {
			w[i] = f
		}
	}

	if peak := floats.Max(w); peak > 0 && s.FloorFraction > 0 {
		floats.AddConst(s.FloorFraction*peak, w)
	}
	if sum := floats.Sum(w); sum <= 0 || math.IsInf(sum, 0) {
		for i := range w {
			w[i] = 1
		}
	}

	return floats.CumSum(w, w)
}
