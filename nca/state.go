// Package nca implements the goal-guided neural cellular automaton that
// grows an organic density field toward a target silhouette.
//
// Each cell carries C channels; channel 0 is alpha and is read out as the
// density. One round perceives the 3×3 neighbourhood (identity, Sobel-x,
// Sobel-y per channel), appends eight fixed features of the goal value,
// runs a two-layer MLP to get a per-cell delta, and applies it to a random
// subset of cells.
package nca

import (
	"fmt"
	"math/rand"

	"github.com/pthm-cable/tofu/field"
)

// State is the H×W×C cell grid, cell-major: Data[(y*W+x)*C + c].
type State struct {
	W, H, C int
	Data    []float32
}

// NewState allocates a zeroed state.
func NewState(w, h, c int) *State {
	if w <= 0 || h <= 0 || c <= 0 {
		panic(fmt.Sprintf("nca: invalid state size %dx%dx%d", w, h, c))
	}
	return &State{W: w, H: h, C: c, Data: make([]float32, w*h*c)}
}

// Cell returns the channel slice of cell (x, y).
func (s *State) Cell(x, y int) []float32 {
	i := (y*s.W + x) * s.C
	return s.Data[i : i+s.C]
}

// Alpha returns channel 0 of cell (x, y).
func (s *State) Alpha(x, y int) float32 {
	return s.Data[(y*s.W+x)*s.C]
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := &State{W: s.W, H: s.H, C: s.C, Data: make([]float32, len(s.Data))}
	copy(c.Data, s.Data)
	return c
}

// ClampAll limits every value to [-bound, bound].
func (s *State) ClampAll(bound float32) {
	for i, v := range s.Data {
		s.Data[i] = clampf(v, bound)
	}
}

// Seed builds the starting state for a rollout: channel 0 holds the goal
// plus N(0, noise²), every other channel is zero, and the whole state is
// clamped to [-bound, bound]. Noise is drawn in row-major cell order.
func Seed(goal *field.Grid, channels int, noise float64, bound float32, rng *rand.Rand) *State {
	s := NewState(goal.W, goal.H, channels)
	for i, g := range goal.Data {
		v := g
		if noise > 0 {
			v += float32(rng.NormFloat64() * noise)
		}
		s.Data[i*channels] = v
	}
	s.ClampAll(bound)
	return s
}

func clampf(v, bound float32) float32 {
	if v < -bound {
		return -bound
	}
	if v > bound {
		return bound
	}
	return v
}
