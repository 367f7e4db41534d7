package shapes

import (
	"math"

	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/tofu/field"
)

// nebula is fractal simplex noise under a soft radial falloff: a cloud
// with no hard edge.
func nebula(seed int64) Generator {
	noise := opensimplex.NewNormalized(seed)
	return func(size int) *field.Grid {
		g := field.New(size, size)
		for row := 0; row < size; row++ {
			for col := 0; col < size; col++ {
				x, y := centred(col, row, size)
				r := math.Hypot(x, y) / 0.45
				falloff := 1 - smoothstep(0.6, 1, r)
				if falloff <= 0 {
					continue
				}
				g.Set(col, row, float32(fbm(noise, x*4, y*4, 4)*falloff))
			}
		}
		return g
	}
}

// fbm sums octaves of noise with halving amplitude, normalized to [0,1].
func fbm(n opensimplex.Noise, x, y float64, octaves int) float64 {
	var sum, amp, norm float64 = 0, 1, 0
	freq := 1.0
	for i := 0; i < octaves; i++ {
		sum += amp * n.Eval2(x*freq, y*freq)
		norm += amp
		amp *= 0.5
		freq *= 2
	}
	return sum / norm
}

func smoothstep(e0, e1, x float64) float64 {
	t := math.Min(math.Max((x-e0)/(e1-e0), 0), 1)
	return t * t * (3 - 2*t)
}
