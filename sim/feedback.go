package sim

import (
	"errors"
	"fmt"
)

// ErrUnknownFeedbackMode is returned when a feedback mode does not parse.
var ErrUnknownFeedbackMode = errors.New("unknown feedback mode")

// FeedbackMode selects how the controller nudges the field.
type FeedbackMode uint8

const (
	// FeedbackAdditive shifts every cell toward the target mean.
	FeedbackAdditive FeedbackMode = iota
	// FeedbackRescale multiplies the field so its mean approaches the target.
	FeedbackRescale

	numFeedbackModes
)

// ParseFeedbackMode maps a config name to a FeedbackMode.
func ParseFeedbackMode(name string) (FeedbackMode, error) {
	switch name {
	case "additive":
		return FeedbackAdditive, nil
	case "rescale":
		return FeedbackRescale, nil
	default:
		return numFeedbackModes, fmt.Errorf("%w: %q", ErrUnknownFeedbackMode, name)
	}
}

func (m FeedbackMode) String() string {
	switch m {
	case FeedbackAdditive:
		return "additive"
	case FeedbackRescale:
		return "rescale"
	default:
		return fmt.Sprintf("FeedbackMode(%d)", uint8(m))
	}
}

// FeedbackSpec is the homeostatic controller: every Period steps it pulls
// the field mean toward Target.
type FeedbackSpec struct {
	Mode   FeedbackMode
	Target float64
	Gain   float64 // additive mode only; the nudge per firing is dt*Gain*(Target-mean)
	Period int     // steps between firings, values below 1 act as 1

	// Rescale bounds per firing. Zero values default to 0.5 and 2.
	ScaleLo float64
	ScaleHi float64
}

// Validate checks the controller settings.
func (f *FeedbackSpec) Validate() error {
	if f.Mode >= numFeedbackModes {
		return fmt.Errorf("%w: FeedbackMode(%d)", ErrUnknownFeedbackMode, uint8(f.Mode))
	}
	return nil
}

func (f *FeedbackSpec) bounds() (lo, hi float64) {
	lo, hi = f.ScaleLo, f.ScaleHi
	if lo == 0 {
		lo = 0.5
	}
	if hi == 0 {
		hi = 2
	}
	return lo, hi
}

const meanEpsilon = 1e-6

// applyFeedback advances the controller counter and, on firing steps,
// nudges the field. Reports whether it fired.
func (s *State) applyFeedback(f *FeedbackSpec, dt float64) bool {
	s.fbCount++
	period := f.Period
	if period < 1 {
		period = 1
	}
	if s.fbCount%period != 0 {
		return false
	}

	mean := s.a.Mean()
	switch f.Mode {
	case FeedbackAdditive:
		s.a.AddScalar(float32(dt * f.Gain * (f.Target - mean)))
	case FeedbackRescale:
		// A dead field has no mass to rescale; the firing is a no-op
		// rather than a division blowup.
		if mean > meanEpsilon {
			scale := f.Target / mean
			lo, hi := f.bounds()
			if scale < lo {
				scale = lo
			}
			if scale > hi {
				scale = hi
			}
			s.a.Scale(float32(scale))
		}
	}
	return true
}
