package telemetry

import "testing"

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		name   string
		event  Event
		wantN  string
		tick   int32
		detail string
		value  float64
	}{
		{"run start", NewRunStartEvent("frequency", 128), "run_start", 0, "frequency", 128},
		{"calibration", NewCalibrationEvent(10, "mean", 0.33), "calibration", 10, "mean", 0.33},
		{"backend switch", NewBackendSwitchEvent(40, "frequency", "device"), "backend_switch", 40, "frequency->device", 0},
		{"degraded", NewDegradedEvent(0, "one-shot transforms"), "degraded", 0, "one-shot transforms", 0},
		{"extinction", NewExtinctionEvent(900, 0.0004), "extinction", 900, "", 0.0004},
		{"run end", NewRunEndEvent(1000, 0.18), "run_end", 1000, "", 0.18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.event
			if e.Name != tt.wantN || e.Name != e.Type.String() {
				t.Errorf("name = %q (type %v), want %q", e.Name, e.Type, tt.wantN)
			}
			if e.Tick != tt.tick {
				t.Errorf("tick = %d, want %d", e.Tick, tt.tick)
			}
			if e.Detail != tt.detail {
				t.Errorf("detail = %q, want %q", e.Detail, tt.detail)
			}
			if e.Value != tt.value {
				t.Errorf("value = %v, want %v", e.Value, tt.value)
			}
		})
	}

	if got := EventType(99).String(); got != "unknown" {
		t.Errorf("out of range type = %q", got)
	}
}
