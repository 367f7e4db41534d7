package nca

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/tofu/field"
)

func squareGoal(w, h, x0, y0, size int) *field.Grid {
	g := field.New(w, h)
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			g.Set(x, y, 1)
		}
	}
	return g
}

func TestNewUpdateNetIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n := NewUpdateNet(rng, 16, 64)

	if n.In != 56 {
		t.Errorf("In = %d, want 56", n.In)
	}
	if !n.IsIdentity() {
		t.Fatal("untrained net should be the zero function")
	}
	if err := n.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	in := make([]float32, n.In)
	for i := range in {
		in[i] = rng.Float32()*2 - 1
	}
	hidden := make([]float32, n.Hidden)
	out := make([]float32, n.C)
	for i := range out {
		out[i] = 99
	}
	n.Forward(in, hidden, out)
	for i, v := range out {
		if v != 0 {
			t.Errorf("delta[%d] = %f, want 0", i, v)
		}
	}

	n.W2[3] = 0.1
	if n.IsIdentity() {
		t.Error("net with a non-zero output weight reported as identity")
	}
}

func TestPerceiveConstantAndRamp(t *testing.T) {
	s := NewState(5, 4, 2)
	for y := 0; y < s.H; y++ {
		for x := 0; x < s.W; x++ {
			c := s.Cell(x, y)
			c[0] = 0.3        // constant
			c[1] = float32(x) // ramp in x
		}
	}

	p := Perceive(s)
	ps := PerceptionSize(s.C)
	at := func(x, y, k int) float32 { return p[(y*s.W+x)*ps+k] }

	tests := []struct {
		name string
		x, y int
		k    int
		want float32
	}{
		{"identity ch0", 2, 1, 0, 0.3},
		{"identity ch1", 3, 2, 1, 3},
		{"constant gx", 0, 0, 2, 0},
		{"constant gy", 4, 3, 4, 0},
		{"ramp gx interior", 2, 1, 3, 1},
		{"ramp gx left border", 0, 2, 3, 0.5},
		{"ramp gx right border", 4, 2, 3, 0.5},
		{"ramp gy", 2, 0, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := at(tt.x, tt.y, tt.k)
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("got %f, want %f", got, tt.want)
			}
		})
	}
}

func TestGoalFeatures(t *testing.T) {
	tests := []struct {
		g    float32
		want [NumGoalFeatures]float32
	}{
		{0, [NumGoalFeatures]float32{0, 0, 1, 0, 1, 0, 0, 0}},
		{0.5, [NumGoalFeatures]float32{0.5, 0.25, 0.5, 1, -1, float32(math.Sqrt(0.5)), 1, 0}},
		{1, [NumGoalFeatures]float32{1, 1, 0, 0, 1, 1, 0, 1}},
		{2, [NumGoalFeatures]float32{1, 1, 0, 0, 1, 1, 0, 1}},
		{-1, [NumGoalFeatures]float32{0, 0, 1, 0, 1, 0, 0, 0}},
	}
	for _, tt := range tests {
		dst := make([]float32, NumGoalFeatures)
		GoalFeatures(tt.g, dst)
		for i := range dst {
			if math.Abs(float64(dst[i]-tt.want[i])) > 1e-6 {
				t.Errorf("GoalFeatures(%v)[%d] = %f, want %f", tt.g, i, dst[i], tt.want[i])
			}
		}
	}
}

func TestGrowIdentityIgnoresRounds(t *testing.T) {
	goal := squareGoal(16, 16, 4, 4, 8)
	net := NewUpdateNet(rand.New(rand.NewSource(1)), 16, 64)
	e := NewEngine(net, DefaultOptions())
	defer e.Close()

	short := e.Grow(goal, 4, rand.New(rand.NewSource(7)))
	long := e.Grow(goal, 64, rand.New(rand.NewSource(7)))

	for i := range short.Data {
		if short.Data[i] != long.Data[i] {
			t.Fatalf("cell %d: 4 rounds = %f, 64 rounds = %f", i, short.Data[i], long.Data[i])
		}
	}

	opts := e.Options()
	for i, g := range goal.Data {
		want := 1 / (1 + math.Exp(-opts.ReadoutGain*(float64(g)-opts.ReadoutMidpoint)))
		if math.Abs(float64(long.Data[i])-want) > 0.1 {
			t.Errorf("cell %d: got %f, want about %f", i, long.Data[i], want)
		}
	}
}

func TestGrowIdentityWithoutNoiseIsReadoutOfGoal(t *testing.T) {
	goal := squareGoal(8, 8, 0, 0, 4)
	opts := DefaultOptions()
	opts.SeedNoise = 0
	e := NewEngine(NewUpdateNet(rand.New(rand.NewSource(1)), 16, 64), opts)
	defer e.Close()

	out := e.Grow(goal, 64, rand.New(rand.NewSource(3)))
	for i, g := range goal.Data {
		want := float32(1 / (1 + math.Exp(-opts.ReadoutGain*(float64(g)-opts.ReadoutMidpoint))))
		if out.Data[i] != want {
			t.Errorf("cell %d: got %f, want %f", i, out.Data[i], want)
		}
	}
}

func trainedNet(seed int64, channels, hidden int) *UpdateNet {
	rng := rand.New(rand.NewSource(seed))
	n := NewUpdateNet(rng, channels, hidden)
	for i := range n.W2 {
		n.W2[i] = float32(rng.NormFloat64() * 0.3)
	}
	return n
}

func TestGrowTrainedDeterministicAndBounded(t *testing.T) {
	// 40×40 crosses the parallel threshold, so the worker pool is exercised.
	goal := squareGoal(40, 40, 10, 10, 20)
	e := NewEngine(trainedNet(5, 8, 16), DefaultOptions())
	defer e.Close()

	a := e.Grow(goal, 12, rand.New(rand.NewSource(99)))
	b := e.Grow(goal, 12, rand.New(rand.NewSource(99)))

	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("cell %d differs between runs: %f vs %f", i, a.Data[i], b.Data[i])
		}
		if a.Data[i] <= 0 || a.Data[i] >= 1 {
			t.Errorf("cell %d = %f outside (0,1)", i, a.Data[i])
		}
	}
}

func TestStepMatchesPerCellForward(t *testing.T) {
	for _, size := range []int{6, 40} {
		goal := squareGoal(size, size, 1, 1, size/2)
		net := trainedNet(11, 4, 8)
		e := NewEngine(net, DefaultOptions())

		rng := rand.New(rand.NewSource(2))
		s := Seed(goal, net.C, 0.2, 1, rng)
		before := s.Clone()

		mask := make([]bool, size*size)
		for i := range mask {
			mask[i] = i%3 != 0
		}
		e.Step(s, goal, mask)
		e.Close()

		percept := Perceive(before)
		ps := PerceptionSize(net.C)
		in := make([]float32, net.In)
		hidden := make([]float32, net.Hidden)
		delta := make([]float32, net.C)
		for i := 0; i < size*size; i++ {
			copy(in, percept[i*ps:(i+1)*ps])
			GoalFeatures(goal.Data[i], in[ps:])
			net.Forward(in, hidden, delta)
			for k := 0; k < net.C; k++ {
				want := before.Data[i*net.C+k]
				if mask[i] {
					want = clampf(want+delta[k], 1)
				}
				got := s.Data[i*net.C+k]
				if math.Abs(float64(got-want)) > 1e-4 {
					t.Fatalf("size %d cell %d ch %d: got %f, want %f", size, i, k, got, want)
				}
				if got < -1 || got > 1 {
					t.Fatalf("size %d cell %d ch %d: %f escapes the clamp", size, i, k, got)
				}
			}
		}
	}
}

func TestSeedClampsAndZeroesHiddenChannels(t *testing.T) {
	goal := field.New(4, 4)
	for i := range goal.Data {
		goal.Data[i] = 1
	}
	s := Seed(goal, 3, 0.5, 1, rand.New(rand.NewSource(4)))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := s.Cell(x, y)
			if c[0] < -1 || c[0] > 1 {
				t.Errorf("alpha at (%d,%d) = %f outside [-1,1]", x, y, c[0])
			}
			if c[1] != 0 || c[2] != 0 {
				t.Errorf("hidden channels at (%d,%d) = %v, want zeros", x, y, c[1:])
			}
		}
	}
}

func TestLoadWeights(t *testing.T) {
	dir := t.TempDir()

	n, err := LoadWeights("")
	if n != nil || err != nil {
		t.Errorf("empty path: got (%v, %v), want (nil, nil)", n, err)
	}

	n, err = LoadWeights(filepath.Join(dir, "missing.json"))
	if n != nil || err != nil {
		t.Errorf("missing file: got (%v, %v), want (nil, nil)", n, err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWeights(bad); err == nil {
		t.Error("malformed file: expected error")
	}

	short := filepath.Join(dir, "short.json")
	if err := os.WriteFile(short, []byte(`{"channels":1,"hidden":2,"w1":[[1]],"b1":[0,0],"w2":[[0,0]]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWeights(short); err == nil {
		t.Error("wrong w1 shape: expected error")
	}

	row := `[0,0,0,0,0,0,0,0,0,0,0]`
	good := filepath.Join(dir, "good.json")
	body := `{"channels":1,"hidden":2,"w1":[` + row + `,` + row + `],"b1":[0.1,0.2],"w2":[[0.5,0]]}`
	if err := os.WriteFile(good, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	n, err = LoadWeights(good)
	if err != nil {
		t.Fatalf("good file: %v", err)
	}
	if n.C != 1 || n.Hidden != 2 || n.In != 11 {
		t.Errorf("dims = %d/%d/%d, want 1/2/11", n.C, n.Hidden, n.In)
	}
	if len(n.B2) != 1 || n.B2[0] != 0 {
		t.Errorf("missing b2 should default to zero, got %v", n.B2)
	}
	if n.IsIdentity() {
		t.Error("loaded net has a non-zero output weight")
	}
}

func BenchmarkGrowRound(b *testing.B) {
	goal := squareGoal(64, 64, 16, 16, 32)
	e := NewEngine(trainedNet(1, 16, 64), DefaultOptions())
	defer e.Close()
	rng := rand.New(rand.NewSource(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Grow(goal, 1, rng)
	}
}
