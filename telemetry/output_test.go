package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestOutputManagerCSV(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("new output manager: %v", err)
	}
	if om.Dir() != dir {
		t.Errorf("dir = %q, want %q", om.Dir(), dir)
	}

	stats := WindowStats{
		WindowEndTick: 50,
		SimTime:       5.0,
		Backend:       "frequency",
		Mean:          0.21,
	}
	if err := om.WriteStats(stats); err != nil {
		t.Fatalf("write stats: %v", err)
	}
	stats.WindowEndTick = 100
	if err := om.WriteStats(stats); err != nil {
		t.Fatalf("write stats: %v", err)
	}

	perf := PerfStats{AvgTickDuration: 500 * time.Microsecond}
	if err := om.WritePerf(perf, 50); err != nil {
		t.Fatalf("write perf: %v", err)
	}

	if err := om.WriteEvent(NewRunStartEvent("frequency", 128)); err != nil {
		t.Fatalf("write event: %v", err)
	}
	if err := om.WriteEvent(NewRunEndEvent(100, 0.21)); err != nil {
		t.Fatalf("write event: %v", err)
	}

	if err := om.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines := readLines(t, filepath.Join(dir, "stats.csv"))
	if len(lines) != 3 {
		t.Fatalf("stats.csv has %d lines, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "window_end,") {
		t.Errorf("stats header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "50,") || !strings.HasPrefix(lines[2], "100,") {
		t.Errorf("stats rows = %q, %q", lines[1], lines[2])
	}

	lines = readLines(t, filepath.Join(dir, "perf.csv"))
	if len(lines) != 2 {
		t.Fatalf("perf.csv has %d lines, want header + 1 row", len(lines))
	}
	if !strings.Contains(lines[0], "avg_step_us") {
		t.Errorf("perf header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "50,500,") {
		t.Errorf("perf row = %q", lines[1])
	}

	lines = readLines(t, filepath.Join(dir, "events.csv"))
	if len(lines) != 3 {
		t.Fatalf("events.csv has %d lines, want header + 2 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "event,tick,") {
		t.Errorf("events header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "run_start,0,frequency,") {
		t.Errorf("first event row = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "run_end,100,") {
		t.Errorf("second event row = %q", lines[2])
	}
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatalf("empty dir should disable output, got error %v", err)
	}
	if om != nil {
		t.Fatal("empty dir should return a nil manager")
	}

	// The nil manager accepts and drops everything.
	if err := om.WriteStats(WindowStats{}); err != nil {
		t.Errorf("nil manager WriteStats: %v", err)
	}
	if err := om.WritePerf(PerfStats{}, 0); err != nil {
		t.Errorf("nil manager WritePerf: %v", err)
	}
	if err := om.WriteEvent(Event{}); err != nil {
		t.Errorf("nil manager WriteEvent: %v", err)
	}
	if err := om.WriteConfig(nil); err != nil {
		t.Errorf("nil manager WriteConfig: %v", err)
	}
	if om.Dir() != "" {
		t.Errorf("nil manager dir = %q", om.Dir())
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil manager Close: %v", err)
	}
}
