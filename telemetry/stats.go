package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TransitionRecord describes one shape transition, successful or not.
type TransitionRecord struct {
	Seq           int64  `csv:"seq"`
	Shape         string `csv:"shape"`
	StartedUnixMS int64  `csv:"started_unix_ms"`
	OK            bool   `csv:"ok"`
	Error         string `csv:"error"`
	Retries       int    `csv:"retries"`

	Particles       int `csv:"particles"`
	Representatives int `csv:"representatives"`

	GrowMS  float64 `csv:"grow_ms"`
	SolveMS float64 `csv:"solve_ms"`
	TotalMS float64 `csv:"total_ms"`

	// Grown density
	DensityMean float64 `csv:"density_mean"`

	// Mean squared representative displacement (EMD² estimate)
	TransportCost float64 `csv:"transport_cost"`

	// Distance each particle's target moved, NDC units
	MoveMean float64 `csv:"move_mean"`
	MoveStd  float64 `csv:"move_std"`
	MoveP10  float64 `csv:"move_p10"`
	MoveP50  float64 `csv:"move_p50"`
	MoveP90  float64 `csv:"move_p90"`
}

// SetMoves fills the displacement fields from per-particle distances.
func (r *TransitionRecord) SetMoves(dist []float64) {
	r.MoveMean, r.MoveStd, r.MoveP10, r.MoveP50, r.MoveP90 = ComputeSpread(dist)
}

// LogValue implements slog.LogValuer for structured logging.
func (r TransitionRecord) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("seq", r.Seq),
		slog.String("shape", r.Shape),
		slog.Bool("ok", r.OK),
		slog.Float64("total_ms", r.TotalMS),
	}
	if !r.OK {
		attrs = append(attrs, slog.String("error", r.Error))
		return slog.GroupValue(attrs...)
	}
	attrs = append(attrs,
		slog.Int("retries", r.Retries),
		slog.Float64("grow_ms", r.GrowMS),
		slog.Float64("solve_ms", r.SolveMS),
		slog.Float64("transport_cost", r.TransportCost),
		slog.Float64("move_p50", r.MoveP50),
		slog.Float64("move_p90", r.MoveP90),
	)
	return slog.GroupValue(attrs...)
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeSpread returns the mean, sample standard deviation and the 10th,
// 50th and 90th percentiles of values. values is not modified.
func ComputeSpread(values []float64) (mean, std, p10, p50, p90 float64) {
	switch len(values) {
	case 0:
		return 0, 0, 0, 0, 0
	case 1:
		v := values[0]
		return v, 0, v, v, v
	}

	mean, std = stat.MeanStdDev(values, nil)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// WindowStats aggregates the transitions of one wall-clock window.
type WindowStats struct {
	WindowEndSeq  int64   `csv:"window_end"`
	WindowSec     float64 `csv:"window_sec"`
	Transitions   int     `csv:"transitions"`
	Failures      int     `csv:"failures"`
	Retries       int     `csv:"retries"`
	MeanTotalMS   float64 `csv:"mean_total_ms"`
	MeanCost      float64 `csv:"mean_transport_cost"`
	MeanMoveP50   float64 `csv:"mean_move_p50"`
	DistinctShape int     `csv:"distinct_shapes"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_end", s.WindowEndSeq),
		slog.Float64("window_sec", s.WindowSec),
		slog.Int("transitions", s.Transitions),
		slog.Int("failures", s.Failures),
		slog.Int("retries", s.Retries),
		slog.Float64("mean_total_ms", s.MeanTotalMS),
		slog.Float64("mean_transport_cost", s.MeanCost),
		slog.Float64("mean_move_p50", s.MeanMoveP50),
		slog.Int("distinct_shapes", s.DistinctShape),
	)
}
