package telemetry

import (
	"log/slog"
	"sort"
)

// WindowStats holds aggregated field statistics for a window of steps.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTime         float64 `csv:"sim_time"`
	Backend         string  `csv:"backend"`

	// Field distribution at window end
	Mean       float64 `csv:"mean"`
	Max        float64 `csv:"max"`
	Min        float64 `csv:"min"`
	ActiveFrac float64 `csv:"active_frac"`
	P10        float64 `csv:"p10"`
	P50        float64 `csv:"p50"`
	P90        float64 `csv:"p90"`

	// Drift of the mean since the previous window end
	MeanDelta float64 `csv:"mean_delta"`

	// Controller activity during the window
	FeedbackFirings int `csv:"feedback_firings"`

	// Throughput over the window, wall clock
	StepsPerSec float64 `csv:"steps_per_sec"`
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

// ComputeFieldStats calculates mean and percentiles from cell values.
// The input is sorted in place.
func ComputeFieldStats(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	sort.Float64s(values)
	p10 = Percentile(values, 0.10)
	p50 = Percentile(values, 0.50)
	p90 = Percentile(values, 0.90)

	return mean, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTime),
		slog.String("backend", s.Backend),
		slog.Float64("mean", s.Mean),
		slog.Float64("max", s.Max),
		slog.Float64("min", s.Min),
		slog.Float64("active_frac", s.ActiveFrac),
		slog.Float64("p10", s.P10),
		slog.Float64("p50", s.P50),
		slog.Float64("p90", s.P90),
		slog.Float64("mean_delta", s.MeanDelta),
		slog.Int("feedback_firings", s.FeedbackFirings),
		slog.Float64("steps_per_sec", s.StepsPerSec),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTime,
		"backend", s.Backend,
		"mean", s.Mean,
		"max", s.Max,
		"min", s.Min,
		"active_frac", s.ActiveFrac,
		"p10", s.P10,
		"p50", s.P50,
		"p90", s.P90,
		"mean_delta", s.MeanDelta,
		"feedback_firings", s.FeedbackFirings,
		"steps_per_sec", int(s.StepsPerSec),
	)
}
