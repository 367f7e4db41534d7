package transport

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/pthm-cable/tofu/geom"
)

// parallelQueryThreshold is the particle count above which nearest
// lookups are spread over worker goroutines.
const parallelQueryThreshold = 4096

// repPoint is a representative stored in the k-d tree. idx is its position
// in the representative set.
type repPoint struct {
	x, y float64
	idx  int
}

func (p repPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(repPoint)
	if d == 0 {
		return p.x - q.x
	}
	return p.y - q.y
}

func (p repPoint) Dims() int { return 2 }

func (p repPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(repPoint)
	dx, dy := p.x-q.x, p.y-q.y
	return dx*dx + dy*dy
}

type repPoints []repPoint

func (p repPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p repPoints) Len() int                      { return len(p) }
func (p repPoints) Pivot(d kdtree.Dim) int        { return plane{repPoints: p, Dim: d}.Pivot() }
func (p repPoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

// plane orders representatives along one axis for median partitioning.
type plane struct {
	kdtree.Dim
	repPoints
}

func (p plane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.repPoints[i].x < p.repPoints[j].x
	}
	return p.repPoints[i].y < p.repPoints[j].y
}

func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.repPoints = p.repPoints[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.repPoints[i], p.repPoints[j] = p.repPoints[j], p.repPoints[i]
}

// nearestIndex finds, for every particle, the index of the closest source
// representative.
func nearestIndex(all, reps []geom.Point) []int {
	pts := make(repPoints, len(reps))
	for i, r := range reps {
		pts[i] = repPoint{x: r.X, y: r.Y, idx: i}
	}
	tree := kdtree.New(pts, false)

	nearest := make([]int, len(all))
	query := func(start, end int) {
		for i := start; i < end; i++ {
			c, _ := tree.Nearest(repPoint{x: all[i].X, y: all[i].Y})
			nearest[i] = c.(repPoint).idx
		}
	}

	if len(all) < parallelQueryThreshold {
		query(0, len(all))
		return nearest
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (len(all) + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < len(all); start += chunk {
		end := min(start+chunk, len(all))
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			query(start, end)
		}(start, end)
	}
	wg.Wait()
	return nearest
}

// Broadcast extends a K-to-K assignment to every particle. Each particle
// follows its nearest source representative to that representative's
// assigned target, plus N(0, jitter²) noise per axis, clamped to [-1,1].
// The result always has len(all) points. Noise is drawn in particle order,
// so the output is reproducible for a given rng.
//
// sourceReps, targetReps and a must have the same non-zero length.
func Broadcast(all, sourceReps []geom.Point, a Assignment, targetReps []geom.Point, jitter float64, rng *rand.Rand) []geom.Point {
	if len(sourceReps) == 0 || len(a) != len(sourceReps) || len(targetReps) != len(sourceReps) {
		panic(fmt.Sprintf("transport: broadcast with %d source reps, %d assignments, %d target reps",
			len(sourceReps), len(a), len(targetReps)))
	}

	nearest := nearestIndex(all, sourceReps)

	out := make([]geom.Point, len(all))
	for i, r := range nearest {
		t := targetReps[a[r]]
		if jitter > 0 {
			t.X += rng.NormFloat64() * jitter
			t.Y += rng.NormFloat64() * jitter
		}
		out[i] = t.Clamp()
	}
	return out
}
