// Package sim owns the simulation state and advances it: convolve, grow,
// integrate, feed back, clamp.
package sim

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/lenia/conv"
	"github.com/pthm-cable/lenia/device"
	"github.com/pthm-cable/lenia/field"
	"github.com/pthm-cable/lenia/telemetry"
)

var (
	// ErrCustomGrowth is returned when the active engine cannot evaluate
	// an arbitrary growth closure on its resident buffers.
	ErrCustomGrowth = errors.New("engine cannot evaluate custom growth")
)

// Options configures a new simulation.
type Options struct {
	Side    int
	Pattern string // seeding pattern name, default "noise"
	Seed    int64
	Backend conv.Kind
	Engine  string // device engine name, "" picks the default
	Init    field.PatternOpts
}

// State is a running simulation: the field, its backend, scratch buffers,
// and the feedback controller counters.
type State struct {
	side        int
	backendKind conv.Kind
	backend     conv.Backend

	a field.Buffer

	// Integrator scratch, allocated on demand in the active residency.
	// u doubles as the first stage rate.
	u, tmp, k2, k3, k4 field.Buffer

	hostScratch *field.Grid

	tick    int
	fbCount int
	fbFired bool

	perf *telemetry.PerfCollector
}

// New seeds a field and wires it to a convolution backend.
func New(opts Options) (*State, error) {
	if opts.Side < 4 {
		return nil, fmt.Errorf("sim: side %d too small", opts.Side)
	}
	pattern := opts.Pattern
	if pattern == "" {
		pattern = "noise"
	}

	seeded, err := field.NewFromPattern(opts.Side, pattern, opts.Seed, opts.Init)
	if err != nil {
		return nil, err
	}

	backend, err := newBackend(opts.Backend, opts.Side, opts.Engine)
	if err != nil {
		return nil, err
	}

	a, err := backend.NewBuffer()
	if err != nil {
		backend.Release()
		return nil, err
	}
	a.LoadFrom(seeded)

	return &State{
		side:        opts.Side,
		backendKind: opts.Backend,
		backend:     backend,
		a:           a,
	}, nil
}

func newBackend(kind conv.Kind, side int, engine string) (conv.Backend, error) {
	if kind == conv.DeviceResident && engine != "" {
		eng, err := device.Open(engine)
		if err != nil {
			return nil, err
		}
		return conv.NewDevice(side, eng)
	}
	return conv.New(kind, side)
}

// Side returns the grid edge length.
func (s *State) Side() int { return s.side }

// Tick returns the number of completed steps.
func (s *State) Tick() int { return s.tick }

// Backend returns the active backend.
func (s *State) Backend() conv.Backend { return s.backend }

// BackendName returns the active backend's name for telemetry.
func (s *State) BackendName() string { return s.backendKind.String() }

// Mean returns the current field mean.
func (s *State) Mean() float64 { return s.a.Mean() }

// Max returns the current field maximum.
func (s *State) Max() float64 { return s.a.Max() }

// FeedbackFired reports whether the controller fired on the last step.
func (s *State) FeedbackFired() bool { return s.fbFired }

// CopyField copies the field into a host grid.
func (s *State) CopyField(dst *field.Grid) { s.a.HostInto(dst) }

// SetField replaces the field contents from a host grid.
func (s *State) SetField(src *field.Grid) error {
	if src.Side() != s.side {
		return fmt.Errorf("sim: field side %d, state side %d", src.Side(), s.side)
	}
	s.a.LoadFrom(src)
	return nil
}

// AttachPerf adds phase timing to every step.
func (s *State) AttachPerf(p *telemetry.PerfCollector) { s.perf = p }

// SwitchBackend swaps the convolution backend mid-run, preserving the
// field. The new backend is built before anything is torn down, so a
// failed switch leaves the simulation running on the old one.
func (s *State) SwitchBackend(kind conv.Kind, engine string) error {
	next, err := newBackend(kind, s.side, engine)
	if err != nil {
		return err
	}

	_, oldHost := s.a.(*field.Grid)
	newHost := kind != conv.DeviceResident

	if oldHost && newHost {
		// Same residency, same grid object. Nothing to copy.
	} else {
		stage := s.ensureHostScratch()
		s.a.HostInto(stage)
		a, err := next.NewBuffer()
		if err != nil {
			next.Release()
			return err
		}
		a.LoadFrom(stage)
		s.a = a
	}

	s.backend.Release()
	s.backend = next
	s.backendKind = kind

	// Scratch residency may no longer match; feedback cadence restarts.
	s.u, s.tmp, s.k2, s.k3, s.k4 = nil, nil, nil, nil, nil
	s.fbCount = 0
	s.fbFired = false
	return nil
}

func (s *State) ensureHostScratch() *field.Grid {
	if s.hostScratch == nil {
		s.hostScratch = field.New(s.side)
	}
	return s.hostScratch
}

func (s *State) ensureScratch(buf *field.Buffer) {
	if *buf == nil {
		*buf = s.a.NewLike()
	}
}

func (s *State) phase(name string) {
	if s.perf != nil {
		s.perf.StartPhase(name)
	}
}
