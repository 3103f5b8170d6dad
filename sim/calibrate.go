package sim

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrUnknownStatistic is returned when a statistic name does not parse.
	ErrUnknownStatistic = errors.New("unknown calibration statistic")
	// ErrCalibrate is returned when the measured potential is too close to
	// zero to derive a scale from.
	ErrCalibrate = errors.New("calibration statistic degenerate")
)

// Statistic selects what Calibrate measures on the potential.
type Statistic uint8

const (
	// StatMean targets the mean potential.
	StatMean Statistic = iota
	// StatMedian targets the median potential, robust to hot spots.
	StatMedian

	numStatistics
)

// ParseStatistic maps a config name to a Statistic.
func ParseStatistic(name string) (Statistic, error) {
	switch name {
	case "mean":
		return StatMean, nil
	case "median":
		return StatMedian, nil
	default:
		return numStatistics, fmt.Errorf("%w: %q", ErrUnknownStatistic, name)
	}
}

func (st Statistic) String() string {
	switch st {
	case StatMean:
		return "mean"
	case StatMedian:
		return "median"
	default:
		return fmt.Sprintf("Statistic(%d)", uint8(st))
	}
}

// Scale bounds for one calibration, wide enough for any sane seed field
// and tight enough that a degenerate measurement cannot erase it.
const (
	calibScaleMin = 0.05
	calibScaleMax = 20.0
)

// Calibrate rescales the field once so the chosen statistic of its
// potential lands near target. It returns the applied scale and the
// statistic measured before scaling. The feedback cadence restarts.
func (s *State) Calibrate(p Params, target float64, st Statistic) (scale, measured float64, err error) {
	if err := p.Kernel.Validate(); err != nil {
		return 0, 0, err
	}
	if st >= numStatistics {
		return 0, 0, fmt.Errorf("%w: Statistic(%d)", ErrUnknownStatistic, uint8(st))
	}

	s.ensureScratch(&s.u)
	if err := s.backend.Compute(s.u, s.a, p.Kernel); err != nil {
		return 0, 0, err
	}

	switch st {
	case StatMean:
		measured = s.u.Mean()
	case StatMedian:
		host := s.ensureHostScratch()
		s.u.HostInto(host)
		xs := make([]float64, len(host.Data))
		for i, v := range host.Data {
			xs[i] = float64(v)
		}
		sort.Float64s(xs)
		measured = stat.Quantile(0.5, stat.Empirical, xs, nil)
	}

	if measured <= meanEpsilon {
		return 0, measured, fmt.Errorf("%w: %s=%g", ErrCalibrate, st, measured)
	}

	scale = target / measured
	if scale < calibScaleMin {
		scale = calibScaleMin
	}
	if scale > calibScaleMax {
		scale = calibScaleMax
	}

	s.a.Scale(float32(scale))
	s.a.Clamp01()
	s.fbCount = 0
	s.fbFired = false
	return scale, measured, nil
}
