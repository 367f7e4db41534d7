package nca

// Sobel kernels, normalized by 1/8, applied as cross-correlation.
// Indexed [dy+1][dx+1].
var (
	sobelX = [3][3]float32{
		{-1.0 / 8, 0, 1.0 / 8},
		{-2.0 / 8, 0, 2.0 / 8},
		{-1.0 / 8, 0, 1.0 / 8},
	}
	sobelY = [3][3]float32{
		{-1.0 / 8, -2.0 / 8, -1.0 / 8},
		{0, 0, 0},
		{1.0 / 8, 2.0 / 8, 1.0 / 8},
	}
)

// PerceptionSize returns the perception vector width for c channels.
func PerceptionSize(c int) int {
	return 3 * c
}

// perceiveCell writes the perception vector of cell (x, y) into dst:
// dst[0:C] identity, dst[C:2C] horizontal gradient, dst[2C:3C] vertical
// gradient. Borders replicate the edge cell.
func perceiveCell(s *State, x, y int, dst []float32) {
	c := s.C
	id := dst[:c]
	gx := dst[c : 2*c]
	gy := dst[2*c : 3*c]

	copy(id, s.Cell(x, y))
	for k := range gx {
		gx[k] = 0
		gy[k] = 0
	}

	for dy := -1; dy <= 1; dy++ {
		yy := min(max(y+dy, 0), s.H-1)
		for dx := -1; dx <= 1; dx++ {
			kx := sobelX[dy+1][dx+1]
			ky := sobelY[dy+1][dx+1]
			if kx == 0 && ky == 0 {
				continue
			}
			xx := min(max(x+dx, 0), s.W-1)
			nb := s.Cell(xx, yy)
			for k, v := range nb {
				gx[k] += kx * v
				gy[k] += ky * v
			}
		}
	}
}

// Perceive applies the fixed perception filters to every cell and returns
// an H×W×3C buffer in cell-major order.
func Perceive(s *State) []float32 {
	p := PerceptionSize(s.C)
	out := make([]float32, s.W*s.H*p)
	for y := 0; y < s.H; y++ {
		for x := 0; x < s.W; x++ {
			i := (y*s.W + x) * p
			perceiveCell(s, x, y, out[i:i+p])
		}
	}
	return out
}
