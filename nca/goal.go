package nca

import (
	"math"

	"github.com/pthm-cable/tofu/field"
)

// NumGoalFeatures is the width of the goal feature vector.
const NumGoalFeatures = 8

// GoalFeatures writes the fixed nonlinear features of goal value g into dst:
// g, g², 1−g, sin(πg), cos(2πg), √g, 4g(1−g), and a 0/1 step at g > 0.5.
// g is clamped to [0,1] first.
func GoalFeatures(g float32, dst []float32) {
	v := float64(min(max(g, 0), 1))
	dst[0] = float32(v)
	dst[1] = float32(v * v)
	dst[2] = float32(1 - v)
	dst[3] = float32(math.Sin(math.Pi * v))
	dst[4] = float32(math.Cos(2 * math.Pi * v))
	dst[5] = float32(math.Sqrt(v))
	dst[6] = float32(4 * v * (1 - v))
	if v > 0.5 {
		dst[7] = 1
	} else {
		dst[7] = 0
	}
}

// goalFeatureGrid precomputes features for every cell. The goal does not
// change during a rollout, so this runs once per Grow.
func goalFeatureGrid(goal *field.Grid) []float32 {
	out := make([]float32, len(goal.Data)*NumGoalFeatures)
	for i, g := range goal.Data {
		GoalFeatures(g, out[i*NumGoalFeatures:(i+1)*NumGoalFeatures])
	}
	return out
}
