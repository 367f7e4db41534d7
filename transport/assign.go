package transport

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/tofu/geom"
)

// costEpsilon keeps the normalization finite when all points coincide.
const costEpsilon = 1e-9

// Assignment maps source representative i to target representative a[i].
type Assignment []int

// IsPermutation reports whether every index in [0, len(a)) appears exactly
// once.
func (a Assignment) IsPermutation() bool {
	seen := make([]bool, len(a))
	for _, j := range a {
		if j < 0 || j >= len(a) || seen[j] {
			return false
		}
		seen[j] = true
	}
	return true
}

// Plan returns the K×K transport plan of the assignment: mass 1/K on every
// assigned pair and zero elsewhere. Rows and columns each sum to 1/K.
func (a Assignment) Plan() *mat.Dense {
	k := len(a)
	plan := mat.NewDense(k, k, nil)
	w := 1 / float64(k)
	for i, j := range a {
		plan.Set(i, j, w)
	}
	return plan
}

// ReadAssignment recovers an assignment from a transport plan by taking
// the column holding the largest share of each row's mass.
func ReadAssignment(plan mat.Matrix) Assignment {
	r, c := plan.Dims()
	a := make(Assignment, r)
	for i := 0; i < r; i++ {
		best, bestJ := math.Inf(-1), 0
		for j := 0; j < c; j++ {
			if v := plan.At(i, j); v > best {
				best, bestJ = v, j
			}
		}
		a[i] = bestJ
	}
	return a
}

// CostMatrix returns the K×K matrix of squared distances between src and
// dst, divided by its largest entry (plus a small epsilon) so values lie in
// [0,1) whatever the coordinate scale.
func CostMatrix(src, dst []geom.Point) (*mat.Dense, error) {
	if len(src) != len(dst) {
		return nil, fmt.Errorf("%d sources, %d targets: %w", len(src), len(dst), ErrSizeMismatch)
	}
	for i := range src {
		if !src[i].Finite() || !dst[i].Finite() {
			return nil, fmt.Errorf("non-finite representative at %d: %w", i, ErrSolverNumerical)
		}
	}

	k := len(src)
	cost := mat.NewDense(k, k, nil)
	for i, s := range src {
		for j, d := range dst {
			cost.Set(i, j, s.DistSq(d))
		}
	}

	peak := mat.Max(cost)
	if math.IsInf(peak, 0) || math.IsNaN(peak) {
		return nil, fmt.Errorf("cost matrix overflow: %w", ErrSolverNumerical)
	}
	cost.Scale(1/(peak+costEpsilon), cost)
	return cost, nil
}

// SolveAssignment computes the exact minimum-cost bijection between two
// equal-size point sets under squared Euclidean cost. Ties (for example
// duplicate points) are broken by scan order; the result is always a
// permutation.
func SolveAssignment(src, dst []geom.Point) (Assignment, error) {
	if len(src) != len(dst) {
		return nil, fmt.Errorf("%d sources, %d targets: %w", len(src), len(dst), ErrSizeMismatch)
	}
	if len(src) == 0 {
		return Assignment{}, nil
	}
	cost, err := CostMatrix(src, dst)
	if err != nil {
		return nil, err
	}
	return hungarian(cost)
}

// hungarian solves the square assignment problem with the shortest
// augmenting path method and dual potentials, O(K³). Rows are inserted one
// at a time; indices are 1-based internally with 0 as the virtual column.
func hungarian(cost *mat.Dense) (Assignment, error) {
	raw := cost.RawMatrix()
	n := raw.Rows
	inf := math.Inf(1)

	u := make([]float64, n+1)    // row potentials
	v := make([]float64, n+1)    // column potentials
	p := make([]int, n+1)        // p[j]: row matched to column j, 0 if free
	way := make([]int, n+1)      // previous column on the augmenting path
	minv := make([]float64, n+1) // slack per column
	used := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			row := raw.Data[(i0-1)*raw.Stride : (i0-1)*raw.Stride+n]
			delta, j1 := inf, 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := row[j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			if j1 == 0 {
				return nil, fmt.Errorf("no augmenting path for row %d: %w", i-1, ErrSolverNumerical)
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	a := make(Assignment, n)
	for j := 1; j <= n; j++ {
		a[p[j]-1] = j - 1
	}
	return a, nil
}

// TransportCost returns the mean squared displacement of the assignment,
// an estimate of the squared 2-Wasserstein distance between the two
// representative clouds.
func TransportCost(src, dst []geom.Point, a Assignment) float64 {
	if len(a) == 0 {
		return 0
	}
	var sum float64
	for i, j := range a {
		sum += src[i].DistSq(dst[j])
	}
	return sum / float64(len(a))
}
