package sim

import "github.com/pthm-cable/lenia/telemetry"

// Run advances the simulation steps times. The observer, when non-nil,
// sees the state after every step and returns false to stop early. Perf
// tick boundaries are handled here so the observer's own cost is visible
// as the telemetry phase.
func (s *State) Run(p Params, steps int, integ Integrator, observer func(step int, s *State) bool) error {
	for i := 0; i < steps; i++ {
		if s.perf != nil {
			s.perf.StartTick()
		}
		if err := s.Step(p, integ); err != nil {
			return err
		}
		cont := true
		if observer != nil {
			s.phase(telemetry.PhaseTelemetry)
			cont = observer(i, s)
		}
		if s.perf != nil {
			s.perf.EndTick()
		}
		if !cont {
			return nil
		}
	}
	return nil
}
