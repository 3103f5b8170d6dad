// Package telemetry tracks field statistics, step timing, and run events,
// and writes them to structured output.
package telemetry

// EventType identifies run lifecycle events.
type EventType uint8

const (
	EventRunStart EventType = iota
	EventCalibration
	EventBackendSwitch
	EventDegraded
	EventExtinction
	EventRunEnd
)

func (e EventType) String() string {
	switch e {
	case EventRunStart:
		return "run_start"
	case EventCalibration:
		return "calibration"
	case EventBackendSwitch:
		return "backend_switch"
	case EventDegraded:
		return "degraded"
	case EventExtinction:
		return "extinction"
	case EventRunEnd:
		return "run_end"
	default:
		return "unknown"
	}
}

// Event is a single run lifecycle record.
type Event struct {
	Type   EventType `csv:"-"`
	Name   string    `csv:"event"`
	Tick   int32     `csv:"tick"`
	Detail string    `csv:"detail"`
	Value  float64   `csv:"value"`
}

func newEvent(t EventType, tick int32) Event {
	return Event{Type: t, Name: t.String(), Tick: tick}
}

// NewRunStartEvent records a run beginning on a backend.
func NewRunStartEvent(backend string, side int) Event {
	e := newEvent(EventRunStart, 0)
	e.Detail = backend
	e.Value = float64(side)
	return e
}

// NewCalibrationEvent records a one-shot calibration and its scale.
func NewCalibrationEvent(tick int32, statistic string, scale float64) Event {
	e := newEvent(EventCalibration, tick)
	e.Detail = statistic
	e.Value = scale
	return e
}

// NewBackendSwitchEvent records a mid-run backend change.
func NewBackendSwitchEvent(tick int32, from, to string) Event {
	e := newEvent(EventBackendSwitch, tick)
	e.Detail = from + "->" + to
	return e
}

// NewDegradedEvent records a backend continuing in a degraded mode.
func NewDegradedEvent(tick int32, detail string) Event {
	e := newEvent(EventDegraded, tick)
	e.Detail = detail
	return e
}

// NewExtinctionEvent records the field mean collapsing to nothing.
func NewExtinctionEvent(tick int32, mean float64) Event {
	e := newEvent(EventExtinction, tick)
	e.Value = mean
	return e
}

// NewRunEndEvent records a run finishing with the final field mean.
func NewRunEndEvent(tick int32, mean float64) Event {
	e := newEvent(EventRunEnd, tick)
	e.Value = mean
	return e
}
