package main

import (
	"math/rand"
	"testing"

	"github.com/pthm-cable/tofu/config"
	"github.com/pthm-cable/tofu/nca"
	"github.com/pthm-cable/tofu/shapes"
)

func newEvaluator(t *testing.T) (*FitnessEvaluator, *ParamVector) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.NCA.Rounds = 4
	net := nca.NewUpdateNet(rand.New(rand.NewSource(1)), 4, 8)
	params := NewParamVector()
	fe, err := NewFitnessEvaluator(params, net, shapes.NewLibrary(24), []string{"circle", "cross"}, []int64{1, 2}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return fe, params
}

func TestEvaluatePrefersCenteredReadout(t *testing.T) {
	fe, params := newEvaluator(t)

	good := fe.Evaluate(params.DefaultVector())
	// A midpoint near 1 reads almost every cell as empty.
	bad := fe.Evaluate([]float64{30, 0.95, 0.5, 0.05})
	if !(good < bad) {
		t.Errorf("default readout error %.4f not below darkened readout %.4f", good, bad)
	}
	if w := fe.LastWorst(); w != "circle" && w != "cross" {
		t.Errorf("worst shape = %q", w)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	fe, params := newEvaluator(t)
	x := params.DefaultVector()
	if a, b := fe.Evaluate(x), fe.Evaluate(x); a != b {
		t.Errorf("repeat evaluation differs: %v vs %v", a, b)
	}
}

func TestNewFitnessEvaluatorUnknownShape(t *testing.T) {
	cfg, _ := config.Load("")
	net := nca.NewUpdateNet(rand.New(rand.NewSource(1)), 4, 8)
	_, err := NewFitnessEvaluator(NewParamVector(), net, shapes.NewLibrary(8), []string{"nope"}, []int64{1}, cfg)
	if err == nil {
		t.Fatal("expected error for unknown shape")
	}
}

func TestParamVectorApply(t *testing.T) {
	cfg, _ := config.Load("")
	pv := NewParamVector()
	pv.ApplyToConfig(cfg, []float64{100, -1, 0.3, 0.1})
	if cfg.NCA.ReadoutGain != 30 || cfg.NCA.ReadoutMidpoint != 0.05 {
		t.Errorf("values not clamped: gain %v midpoint %v", cfg.NCA.ReadoutGain, cfg.NCA.ReadoutMidpoint)
	}
	got := pv.ExtractFromConfig(cfg)
	if got[2] != 0.3 || got[3] != 0.1 {
		t.Errorf("extract = %v", got)
	}
}
