package sim

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/lenia/conv"
	"github.com/pthm-cable/lenia/field"
	"github.com/pthm-cable/lenia/growth"
	"github.com/pthm-cable/lenia/kernel"
	"github.com/pthm-cable/lenia/telemetry"
)

var (
	// ErrBadTimestep is returned for a non-positive or NaN dt.
	ErrBadTimestep = errors.New("timestep must be positive")
	// ErrUnknownIntegrator is returned when an integrator name does not parse.
	ErrUnknownIntegrator = errors.New("unknown integrator")
)

// Params are the dynamics of a step: kernel, growth, timestep, and the
// optional feedback controller.
type Params struct {
	Kernel   kernel.Spec
	Growth   growth.Params
	Dt       float64
	Feedback *FeedbackSpec
}

// Validate checks the dynamics before any state is touched.
func (p Params) Validate() error {
	if !(p.Dt > 0) {
		return fmt.Errorf("%w: dt=%g", ErrBadTimestep, p.Dt)
	}
	if err := p.Kernel.Validate(); err != nil {
		return err
	}
	if err := p.Growth.Validate(); err != nil {
		return err
	}
	if p.Feedback != nil {
		return p.Feedback.Validate()
	}
	return nil
}

// Integrator selects the explicit scheme advancing the field.
type Integrator uint8

const (
	// Euler is one rate evaluation per step.
	Euler Integrator = iota
	// Midpoint evaluates the rate again at the half step.
	Midpoint
	// RK4 is the classic four-stage scheme.
	RK4

	numIntegrators
)

// ParseIntegrator maps a config name to an Integrator.
func ParseIntegrator(name string) (Integrator, error) {
	switch name {
	case "euler":
		return Euler, nil
	case "midpoint", "rk2":
		return Midpoint, nil
	case "rk4":
		return RK4, nil
	default:
		return numIntegrators, fmt.Errorf("%w: %q", ErrUnknownIntegrator, name)
	}
}

func (i Integrator) String() string {
	switch i {
	case Euler:
		return "euler"
	case Midpoint:
		return "midpoint"
	case RK4:
		return "rk4"
	default:
		return fmt.Sprintf("Integrator(%d)", uint8(i))
	}
}

// Step advances the field by dt. Intermediate stages run unclamped; the
// field is clamped to [0,1] once, after integration and feedback.
func (s *State) Step(p Params, integ Integrator) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Growth.Custom != nil {
		if d, ok := s.backend.(*conv.Device); ok && !d.Engine().CustomGrowth() {
			return fmt.Errorf("%w: engine %q", ErrCustomGrowth, d.Engine().Name())
		}
	}

	var err error
	switch integ {
	case Euler:
		err = s.stepEuler(p)
	case Midpoint:
		err = s.stepMidpoint(p)
	case RK4:
		err = s.stepRK4(p)
	default:
		return fmt.Errorf("%w: Integrator(%d)", ErrUnknownIntegrator, uint8(integ))
	}
	if err != nil {
		return err
	}

	s.phase(telemetry.PhaseFeedback)
	if p.Feedback != nil {
		s.fbFired = s.applyFeedback(p.Feedback, p.Dt)
	} else {
		s.fbFired = false
	}
	s.a.Clamp01()

	s.tick++
	return nil
}

// rhs writes the instantaneous rate of src into dst: growth applied to
// the potential.
func (s *State) rhs(dst, src field.Buffer, p Params) error {
	s.phase(telemetry.PhaseConvolve)
	if err := s.backend.Compute(dst, src, p.Kernel); err != nil {
		return err
	}
	s.phase(telemetry.PhaseGrowth)
	dst.ApplyGrowth(p.Growth)
	return nil
}

func (s *State) stepEuler(p Params) error {
	s.ensureScratch(&s.u)
	if err := s.rhs(s.u, s.a, p); err != nil {
		return err
	}
	s.phase(telemetry.PhaseIntegrate)
	s.a.Axpy(float32(p.Dt), s.u)
	return nil
}

func (s *State) stepMidpoint(p Params) error {
	s.ensureScratch(&s.u)
	s.ensureScratch(&s.tmp)

	if err := s.rhs(s.u, s.a, p); err != nil {
		return err
	}
	s.phase(telemetry.PhaseIntegrate)
	s.tmp.CopyFrom(s.a)
	s.tmp.Axpy(float32(p.Dt/2), s.u)

	// The first stage rate is dead now; reuse its buffer.
	if err := s.rhs(s.u, s.tmp, p); err != nil {
		return err
	}
	s.phase(telemetry.PhaseIntegrate)
	s.a.Axpy(float32(p.Dt), s.u)
	return nil
}

func (s *State) stepRK4(p Params) error {
	s.ensureScratch(&s.u)
	s.ensureScratch(&s.tmp)
	s.ensureScratch(&s.k2)
	s.ensureScratch(&s.k3)
	s.ensureScratch(&s.k4)

	if err := s.rhs(s.u, s.a, p); err != nil {
		return err
	}

	s.phase(telemetry.PhaseIntegrate)
	s.tmp.CopyFrom(s.a)
	s.tmp.Axpy(float32(p.Dt/2), s.u)
	if err := s.rhs(s.k2, s.tmp, p); err != nil {
		return err
	}

	s.phase(telemetry.PhaseIntegrate)
	s.tmp.CopyFrom(s.a)
	s.tmp.Axpy(float32(p.Dt/2), s.k2)
	if err := s.rhs(s.k3, s.tmp, p); err != nil {
		return err
	}

	s.phase(telemetry.PhaseIntegrate)
	s.tmp.CopyFrom(s.a)
	s.tmp.Axpy(float32(p.Dt), s.k3)
	if err := s.rhs(s.k4, s.tmp, p); err != nil {
		return err
	}

	s.phase(telemetry.PhaseIntegrate)
	dt := p.Dt
	s.a.Axpy(float32(dt/6), s.u)
	s.a.Axpy(float32(dt/3), s.k2)
	s.a.Axpy(float32(dt/3), s.k3)
	s.a.Axpy(float32(dt/6), s.k4)
	return nil
}
