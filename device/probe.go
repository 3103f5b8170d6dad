package device

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/lenia/field"
)

// ErrProbe is returned when an engine round trip produces a value that no
// known normalization convention explains.
var ErrProbe = errors.New("device transform probe failed")

// ProbeScale discovers the factor that makes an engine round trip identity:
// a unit impulse goes forward and back, and the observed center value is
// matched against the conventions transforms actually use. A nil plan runs
// the one-shot engine path.
func ProbeScale(eng Engine, plan Plan, side int) (float64, error) {
	imp := field.New(side)
	imp.Set(0, 0, 1)

	src, err := eng.NewGrid(side)
	if err != nil {
		return 0, fmt.Errorf("probe alloc: %w", err)
	}
	src.LoadFrom(imp)

	var f Spectrum
	if plan != nil {
		f = plan.Alloc()
		err = plan.Forward(f, src)
	} else {
		f, err = eng.Forward(src)
	}
	if err != nil {
		return 0, fmt.Errorf("probe forward: %w", err)
	}

	dst, err := eng.NewGrid(side)
	if err != nil {
		return 0, fmt.Errorf("probe alloc: %w", err)
	}
	if plan != nil {
		err = plan.Inverse(dst, f)
	} else {
		err = eng.Inverse(dst, f)
	}
	if err != nil {
		return 0, fmt.Errorf("probe inverse: %w", err)
	}

	out := field.New(side)
	dst.HostInto(out)
	return ResolveScale(float64(out.At(0, 0)), side)
}

// ResolveScale maps an observed impulse round-trip value to the correction
// factor. Self-normalizing transforms come back at 1, unnormalized ones at
// side*side; anything else positive is treated as an exotic but consistent
// scale and inverted directly.
func ResolveScale(observed float64, side int) (float64, error) {
	if math.IsNaN(observed) || observed <= 0 {
		return 0, fmt.Errorf("%w: impulse came back %g", ErrProbe, observed)
	}
	n2 := float64(side * side)
	switch {
	case math.Abs(observed-1) <= 1e-3:
		return 1, nil
	case math.Abs(observed-n2) <= 1e-3*n2:
		return 1 / n2, nil
	default:
		return 1 / observed, nil
	}
}
