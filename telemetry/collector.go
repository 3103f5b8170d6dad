package telemetry

import (
	"time"

	"github.com/pthm-cable/lenia/field"
)

// Cells above this count as active when computing coverage.
const activeThreshold = 0.1

// FieldSource is the view of a running simulation the collector reads.
type FieldSource interface {
	Tick() int
	Side() int
	Mean() float64
	Max() float64
	BackendName() string
	FeedbackFired() bool
	CopyField(dst *field.Grid)
}

// Collector aggregates field statistics over fixed windows of steps. Cheap
// scalar reads happen every step; the full field is downloaded and sorted
// only at window boundaries.
type Collector struct {
	windowSteps int
	dt          float64

	windowStart int
	wallStart   time.Time
	firings     int

	lastMean float64
	haveLast bool

	host *field.Grid
	xs   []float64
}

// NewCollector creates a stats collector flushing every windowSteps steps.
// dt converts ticks to simulation time.
func NewCollector(windowSteps int, dt float64) *Collector {
	if windowSteps < 1 {
		windowSteps = 1
	}
	return &Collector{
		windowSteps: windowSteps,
		dt:          dt,
		wallStart:   time.Now(),
	}
}

// WindowSteps returns the number of steps per window.
func (c *Collector) WindowSteps() int { return c.windowSteps }

// Observe records one completed step. At window boundaries it computes and
// returns the window's stats with flushed=true.
func (c *Collector) Observe(src FieldSource) (stats WindowStats, flushed bool) {
	if src.FeedbackFired() {
		c.firings++
	}

	tick := src.Tick()
	if tick-c.windowStart < c.windowSteps {
		return WindowStats{}, false
	}

	if c.host == nil {
		c.host = field.New(src.Side())
		c.xs = make([]float64, src.Side()*src.Side())
	}
	src.CopyField(c.host)
	for i, v := range c.host.Data {
		c.xs[i] = float64(v)
	}
	mean, p10, p50, p90 := ComputeFieldStats(c.xs)

	elapsed := time.Since(c.wallStart).Seconds()
	var stepsPerSec float64
	if elapsed > 0 {
		stepsPerSec = float64(tick-c.windowStart) / elapsed
	}

	stats = WindowStats{
		WindowStartTick: int32(c.windowStart),
		WindowEndTick:   int32(tick),
		SimTime:         float64(tick) * c.dt,
		Backend:         src.BackendName(),
		Mean:            mean,
		Max:             src.Max(),
		Min:             c.host.Min(),
		ActiveFrac:      c.host.ActiveFraction(activeThreshold),
		P10:             p10,
		P50:             p50,
		P90:             p90,
		FeedbackFirings: c.firings,
		StepsPerSec:     stepsPerSec,
	}
	if c.haveLast {
		stats.MeanDelta = mean - c.lastMean
	}

	c.windowStart = tick
	c.wallStart = time.Now()
	c.firings = 0
	c.lastMean = mean
	c.haveLast = true
	return stats, true
}
