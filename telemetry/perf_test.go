package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_TransitionPhases(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 3; i++ {
		pc.StartTransition()
		pc.StartPhase(PhaseGrow)
		time.Sleep(2 * time.Millisecond)
		pc.StartPhase(PhaseSolve)
		time.Sleep(200 * time.Microsecond)
		sample := pc.EndTransition()

		if sample.Duration <= 0 {
			t.Fatal("expected positive transition duration")
		}
		if _, ok := sample.Phases[PhaseSolve]; !ok {
			t.Fatal("final phase not closed by EndTransition")
		}
	}

	stats := pc.Stats()
	if stats.Transitions != 3 {
		t.Errorf("transitions = %d, want 3", stats.Transitions)
	}
	if stats.AvgDuration <= 0 || stats.MinDuration > stats.MaxDuration {
		t.Errorf("bad durations: avg %v min %v max %v", stats.AvgDuration, stats.MinDuration, stats.MaxDuration)
	}
	if stats.PhasePct[PhaseGrow] <= stats.PhasePct[PhaseSolve] {
		t.Errorf("grow %.1f%% should exceed solve %.1f%%", stats.PhasePct[PhaseGrow], stats.PhasePct[PhaseSolve])
	}
	if _, ok := stats.PhaseAvg[PhaseBroadcast]; ok {
		t.Error("broadcast was never started but has an average")
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(4)

	for i := 0; i < 10; i++ {
		pc.StartTransition()
		pc.StartPhase(PhaseGoal)
		pc.EndTransition()
	}

	if got := pc.Stats().Transitions; got != 4 {
		t.Errorf("transitions in window = %d, want 4", got)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	stats := NewPerfCollector(0).Stats()

	if stats.AvgDuration != 0 || stats.Transitions != 0 {
		t.Error("expected zero values for an empty collector")
	}
	if stats.PhaseAvg == nil || stats.PhasePct == nil {
		t.Error("expected non-nil phase maps")
	}
}

func TestPerfCollector_FrameTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	pc.RecordFrame()
	time.Sleep(16 * time.Millisecond)
	pc.RecordFrame()

	stats := pc.Stats()
	if stats.FrameDuration < 15*time.Millisecond {
		t.Errorf("expected frame duration >= 15ms, got %v", stats.FrameDuration)
	}
	if stats.FPS <= 0 || stats.FPS > 70 {
		t.Errorf("FPS = %v, want in (0, 70]", stats.FPS)
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	s := PerfStats{
		Transitions: 2,
		AvgDuration: 1500 * time.Millisecond,
		PhasePct:    map[string]float64{PhaseGrow: 60, PhaseSolve: 30},
	}
	row := s.ToCSV(7)
	if row.WindowEnd != 7 || row.AvgMS != 1500 || row.GrowPct != 60 || row.SolvePct != 30 {
		t.Errorf("unexpected CSV row %+v", row)
	}
}
