package nca

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// UpdateNet is the per-cell update rule: a two-layer feedforward network
// mapping (perception ‖ goal features) to a channel delta.
//
//	hidden = relu(W1·in + B1)
//	delta  = W2·hidden + B2
//
// W1 is Hidden×In and W2 is C×Hidden, both row-major. B2 is zero unless
// loaded weights supply one.
type UpdateNet struct {
	C, Hidden, In int

	W1 []float32
	B1 []float32
	W2 []float32
	B2 []float32
}

// InputSize returns the MLP input width for c state channels.
func InputSize(c int) int {
	return PerceptionSize(c) + NumGoalFeatures
}

// NewUpdateNet creates an untrained network. The first layer gets a scaled
// normal init; the output layer is all zeros, so the network starts as the
// zero function and a rollout leaves the seed untouched.
func NewUpdateNet(rng *rand.Rand, channels, hidden int) *UpdateNet {
	in := InputSize(channels)
	n := &UpdateNet{
		C:      channels,
		Hidden: hidden,
		In:     in,
		W1:     make([]float32, hidden*in),
		B1:     make([]float32, hidden),
		W2:     make([]float32, channels*hidden),
		B2:     make([]float32, channels),
	}
	scale := math.Sqrt(2.0 / float64(in))
	for i := range n.W1 {
		n.W1[i] = float32(rng.NormFloat64() * scale)
	}
	return n
}

// IsIdentity reports whether the output layer is the zero function, in
// which case every delta is zero and growth reduces to the seed itself.
func (n *UpdateNet) IsIdentity() bool {
	for _, w := range n.W2 {
		if w != 0 {
			return false
		}
	}
	for _, b := range n.B2 {
		if b != 0 {
			return false
		}
	}
	return true
}

// Validate checks the weight slices against the declared dimensions.
func (n *UpdateNet) Validate() error {
	if n.In != InputSize(n.C) {
		return fmt.Errorf("input width %d, want %d for %d channels", n.In, InputSize(n.C), n.C)
	}
	checks := []struct {
		name      string
		got, want int
	}{
		{"w1", len(n.W1), n.Hidden * n.In},
		{"b1", len(n.B1), n.Hidden},
		{"w2", len(n.W2), n.C * n.Hidden},
		{"b2", len(n.B2), n.C},
	}
	for _, c := range checks {
		if c.got != c.want {
			return fmt.Errorf("%s has %d values, want %d", c.name, c.got, c.want)
		}
	}
	return nil
}

// Forward computes the delta for a single cell input. hidden must have
// length Hidden and out length C.
func (n *UpdateNet) Forward(in, hidden, out []float32) {
	for i := 0; i < n.Hidden; i++ {
		sum := n.B1[i]
		row := n.W1[i*n.In : (i+1)*n.In]
		for j, w := range row {
			sum += w * in[j]
		}
		hidden[i] = relu(sum)
	}
	for i := 0; i < n.C; i++ {
		sum := n.B2[i]
		row := n.W2[i*n.Hidden : (i+1)*n.Hidden]
		for j, w := range row {
			sum += w * hidden[j]
		}
		out[i] = sum
	}
}

// forwardRows evaluates the network for a batch of cells at once.
// x is rows×In, hidden rows×Hidden and out rows×C.
func (n *UpdateNet) forwardRows(x, hidden, out blas32.General) {
	for r := 0; r < hidden.Rows; r++ {
		copy(hidden.Data[r*hidden.Stride:r*hidden.Stride+n.Hidden], n.B1)
	}
	w1 := blas32.General{Rows: n.Hidden, Cols: n.In, Stride: n.In, Data: n.W1}
	blas32.Gemm(blas.NoTrans, blas.Trans, 1, x, w1, 1, hidden)

	for i, v := range hidden.Data[:hidden.Rows*hidden.Stride] {
		hidden.Data[i] = relu(v)
	}

	for r := 0; r < out.Rows; r++ {
		copy(out.Data[r*out.Stride:r*out.Stride+n.C], n.B2)
	}
	w2 := blas32.General{Rows: n.C, Cols: n.Hidden, Stride: n.Hidden, Data: n.W2}
	blas32.Gemm(blas.NoTrans, blas.Trans, 1, hidden, w2, 1, out)
}

func relu(x float32) float32 {
	if x < 0 {
		return 0
	}
	return x
}
