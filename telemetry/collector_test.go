package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/lenia/field"
)

type fakeSource struct {
	tick  int
	grid  *field.Grid
	fired bool
}

func (f *fakeSource) Tick() int                 { return f.tick }
func (f *fakeSource) Side() int                 { return f.grid.Side() }
func (f *fakeSource) Mean() float64             { return f.grid.Mean() }
func (f *fakeSource) Max() float64              { return f.grid.Max() }
func (f *fakeSource) BackendName() string       { return "frequency" }
func (f *fakeSource) FeedbackFired() bool       { return f.fired }
func (f *fakeSource) CopyField(dst *field.Grid) { dst.CopyFrom(f.grid) }

func TestCollectorWindowCadence(t *testing.T) {
	g := field.New(8)
	g.Fill(0.5)
	src := &fakeSource{grid: g}

	c := NewCollector(5, 0.1)

	var flushes []WindowStats
	for tick := 1; tick <= 12; tick++ {
		src.tick = tick
		src.fired = tick == 2 || tick == 3
		stats, flushed := c.Observe(src)
		if flushed {
			flushes = append(flushes, stats)
		}
	}

	if len(flushes) != 2 {
		t.Fatalf("12 steps at window 5 should flush twice, got %d", len(flushes))
	}

	first := flushes[0]
	if first.WindowStartTick != 0 || first.WindowEndTick != 5 {
		t.Errorf("first window [%d, %d], want [0, 5]",
			first.WindowStartTick, first.WindowEndTick)
	}
	if math.Abs(first.SimTime-0.5) > 1e-9 {
		t.Errorf("sim time = %v, want 0.5", first.SimTime)
	}
	if first.Backend != "frequency" {
		t.Errorf("backend = %q", first.Backend)
	}
	if math.Abs(first.Mean-0.5) > 1e-6 {
		t.Errorf("mean = %v, want 0.5", first.Mean)
	}
	if math.Abs(first.Min-0.5) > 1e-6 || math.Abs(first.Max-0.5) > 1e-6 {
		t.Errorf("min/max = %v/%v on a uniform field", first.Min, first.Max)
	}
	if first.ActiveFrac != 1 {
		t.Errorf("active fraction = %v, want 1 for uniform 0.5", first.ActiveFrac)
	}
	if first.FeedbackFirings != 2 {
		t.Errorf("firings = %d, want 2", first.FeedbackFirings)
	}
	if first.MeanDelta != 0 {
		t.Errorf("first window has no previous mean, delta = %v", first.MeanDelta)
	}
	if first.StepsPerSec <= 0 {
		t.Errorf("steps/sec = %v", first.StepsPerSec)
	}

	second := flushes[1]
	if second.WindowStartTick != 5 || second.WindowEndTick != 10 {
		t.Errorf("second window [%d, %d], want [5, 10]",
			second.WindowStartTick, second.WindowEndTick)
	}
	if second.FeedbackFirings != 0 {
		t.Errorf("firing count should reset per window, got %d", second.FeedbackFirings)
	}
}

func TestCollectorMeanDelta(t *testing.T) {
	g := field.New(8)
	g.Fill(0.2)
	src := &fakeSource{grid: g}

	c := NewCollector(2, 0.1)

	for tick := 1; tick <= 2; tick++ {
		src.tick = tick
		c.Observe(src)
	}

	// Field brightens between windows.
	g.Fill(0.3)
	var got WindowStats
	for tick := 3; tick <= 4; tick++ {
		src.tick = tick
		if stats, flushed := c.Observe(src); flushed {
			got = stats
		}
	}

	if math.Abs(got.MeanDelta-0.1) > 1e-6 {
		t.Errorf("mean delta = %v, want 0.1", got.MeanDelta)
	}
}

func TestCollectorWindowFloor(t *testing.T) {
	g := field.New(4)
	src := &fakeSource{grid: g}

	c := NewCollector(0, 0.1)
	if c.WindowSteps() != 1 {
		t.Fatalf("window steps = %d, want floor of 1", c.WindowSteps())
	}

	src.tick = 1
	if _, flushed := c.Observe(src); !flushed {
		t.Error("window of 1 should flush every step")
	}
}
