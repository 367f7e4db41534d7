package telemetry

import (
	"log/slog"
	"sync"
	"time"
)

// Phase names for one shape transition. The sample, solve and broadcast
// names match the transport package's.
const (
	PhaseGoal      = "goal"
	PhaseGrow      = "grow"
	PhaseSample    = "sample"
	PhaseSolve     = "solve"
	PhaseBroadcast = "broadcast"
	PhasePublish   = "publish"
)

// phaseOrder lists the phases in execution order.
var phaseOrder = []string{
	PhaseGoal, PhaseGrow, PhaseSample, PhaseSolve, PhaseBroadcast, PhasePublish,
}

// PerfSample holds timing data for a single transition.
type PerfSample struct {
	Duration time.Duration
	Phases   map[string]time.Duration
}

// PerfCollector tracks transition timing over a rolling window.
// It is safe for concurrent use: the orchestrator records while viewers
// read Stats.
type PerfCollector struct {
	mu sync.Mutex

	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	start         time.Time
	phaseStart    time.Time
	lastPhase     string

	// Frame timing (for graphics mode)
	lastFrameTime time.Time
	frameDuration time.Duration
}

// NewPerfCollector creates a new performance collector.
// windowSize: number of transitions to average over.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 16
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartTransition begins timing a new transition.
func (p *PerfCollector) StartTransition() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.start = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase ends the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndTransition closes the running phase, records the sample and returns
// it. Failed transitions are recorded too; their later phases are absent.
func (p *PerfCollector) EndTransition() PerfSample {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
		p.lastPhase = ""
	}

	sample := PerfSample{
		Duration: now.Sub(p.start),
		Phases:   p.currentPhases,
	}

	p.samples[p.writeIndex] = sample
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	return sample
}

// RecordFrame records frame timing for graphics mode.
func (p *PerfCollector) RecordFrame() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if !p.lastFrameTime.IsZero() {
		p.frameDuration = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	Transitions int // samples in the window

	AvgDuration time.Duration
	MinDuration time.Duration
	MaxDuration time.Duration

	// Average duration and share of the average transition per phase
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	// Frame timing (graphics mode)
	FrameDuration time.Duration
	FPS           float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := PerfStats{
		Transitions:   p.sampleCount,
		PhaseAvg:      make(map[string]time.Duration),
		PhasePct:      make(map[string]float64),
		FrameDuration: p.frameDuration,
	}
	if p.frameDuration > 0 {
		stats.FPS = float64(time.Second) / float64(p.frameDuration)
	}
	if p.sampleCount == 0 {
		return stats
	}

	var total time.Duration
	phaseSum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.Duration
		if i == 0 || s.Duration < stats.MinDuration {
			stats.MinDuration = s.Duration
		}
		if s.Duration > stats.MaxDuration {
			stats.MaxDuration = s.Duration
		}
		for phase, d := range s.Phases {
			phaseSum[phase] += d
		}
	}

	stats.AvgDuration = total / time.Duration(p.sampleCount)
	for phase, sum := range phaseSum {
		avg := sum / time.Duration(p.sampleCount)
		stats.PhaseAvg[phase] = avg
		if stats.AvgDuration > 0 {
			stats.PhasePct[phase] = float64(avg) / float64(stats.AvgDuration) * 100
		}
	}
	return stats
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("transitions", s.Transitions),
		slog.Int64("avg_ms", s.AvgDuration.Milliseconds()),
		slog.Int64("min_ms", s.MinDuration.Milliseconds()),
		slog.Int64("max_ms", s.MaxDuration.Milliseconds()),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Int("fps", int(s.FPS)))
	}
	for _, phase := range phaseOrder {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	WindowEnd    int64   `csv:"window_end"`
	Transitions  int     `csv:"transitions"`
	AvgMS        float64 `csv:"avg_ms"`
	MinMS        float64 `csv:"min_ms"`
	MaxMS        float64 `csv:"max_ms"`
	FPS          float64 `csv:"fps"`
	GoalPct      float64 `csv:"goal_pct"`
	GrowPct      float64 `csv:"grow_pct"`
	SamplePct    float64 `csv:"sample_pct"`
	SolvePct     float64 `csv:"solve_pct"`
	BroadcastPct float64 `csv:"broadcast_pct"`
	PublishPct   float64 `csv:"publish_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct. windowEnd is the
// sequence number of the last transition in the window.
func (s PerfStats) ToCSV(windowEnd int64) PerfStatsCSV {
	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		Transitions:  s.Transitions,
		AvgMS:        ms(s.AvgDuration),
		MinMS:        ms(s.MinDuration),
		MaxMS:        ms(s.MaxDuration),
		FPS:          s.FPS,
		GoalPct:      s.PhasePct[PhaseGoal],
		GrowPct:      s.PhasePct[PhaseGrow],
		SamplePct:    s.PhasePct[PhaseSample],
		SolvePct:     s.PhasePct[PhaseSolve],
		BroadcastPct: s.PhasePct[PhaseBroadcast],
		PublishPct:   s.PhasePct[PhasePublish],
	}
}
