// Package growth provides the elementwise growth functions that map a
// potential field to a rate-of-change field.
package growth

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownKind is returned when a growth function name or kind value is
// not recognized.
var ErrUnknownKind = errors.New("unknown growth function")

// Func is an elementwise growth mapping. It receives the potential value u
// and the growth center/width and returns a rate roughly in [-1, 1].
type Func func(u, mu, sigma float64) float64

// Kind selects one of the built-in growth functions.
type Kind uint8

const (
	// Gaussian is the smooth bump 2*exp(-0.5*((u-mu)/sigma)^2) - 1.
	Gaussian Kind = iota
	// Quartic is the flatter-shouldered bump 2*exp(-((|u-mu|/sigma)^4)) - 1.
	Quartic

	numKinds
)

// ParseKind resolves a growth function name from config.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "gaussian":
		return Gaussian, nil
	case "quartic":
		return Quartic, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

func (k Kind) String() string {
	switch k {
	case Gaussian:
		return "gaussian"
	case Quartic:
		return "quartic"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Params bundles a growth function with its center and width.
// A non-nil Custom overrides Kind; custom functions run on the host, so
// device engines must advertise support before they can be used.
type Params struct {
	Kind   Kind
	Mu     float64
	Sigma  float64
	Custom Func
}

// Validate reports configuration problems before any field work starts.
func (p Params) Validate() error {
	if p.Custom == nil && p.Kind >= numKinds {
		return fmt.Errorf("%w: kind value %d", ErrUnknownKind, uint8(p.Kind))
	}
	if p.Sigma <= 0 {
		return fmt.Errorf("growth sigma must be positive, got %g", p.Sigma)
	}
	return nil
}

// Func returns the elementwise mapping for these parameters.
// Callers are expected to have validated the params first; an out-of-range
// Kind panics rather than silently picking a default.
func (p Params) Func() Func {
	if p.Custom != nil {
		return p.Custom
	}
	switch p.Kind {
	case Gaussian:
		return GaussianFunc
	case Quartic:
		return QuarticFunc
	default:
		panic(fmt.Sprintf("growth: invalid kind %d", uint8(p.Kind)))
	}
}

// GaussianFunc is the classic Lenia growth bump.
func GaussianFunc(u, mu, sigma float64) float64 {
	d := (u - mu) / sigma
	return 2*math.Exp(-0.5*d*d) - 1
}

// QuarticFunc has a wider plateau around mu and steeper falloff.
func QuarticFunc(u, mu, sigma float64) float64 {
	d := math.Abs(u-mu) / sigma
	d2 := d * d
	return 2*math.Exp(-(d2*d2)) - 1
}
