// Package device abstracts accelerator-style transform engines behind a
// registry. An engine owns resident buffers and spectral transforms; the
// convolution layer drives whichever engine the config names.
package device

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mjibson/go-dsp/fft"

	"github.com/pthm-cable/lenia/field"
)

// ErrUnavailable is returned when no usable engine matches a request.
var ErrUnavailable = errors.New("device engine unavailable")

// Spectrum holds a frequency-domain image owned by an engine. Spectra from
// different engines must never be mixed.
type Spectrum interface {
	// Len returns the number of frequency bins.
	Len() int
}

// Plan is a reusable transform for one grid side, the fast path. Engines
// that cannot plan return an error from NewPlan and the caller falls back
// to the one-shot engine transforms.
type Plan interface {
	// Alloc returns a spectrum sized for this plan.
	Alloc() Spectrum

	// Forward transforms src into dst.
	Forward(dst Spectrum, src field.Buffer) error

	// Inverse transforms f into dst, keeping the real part.
	Inverse(dst field.Buffer, f Spectrum) error
}

// Engine is a transform backend with resident buffers.
type Engine interface {
	// Name identifies the engine in the registry.
	Name() string

	// Probe checks the engine is usable on this host.
	Probe() error

	// NewGrid allocates a zeroed engine-resident buffer.
	NewGrid(side int) (field.Buffer, error)

	// NewPlan prepares reusable transforms for one side.
	NewPlan(side int) (Plan, error)

	// Forward is the one-shot transform for engines without plans.
	Forward(src field.Buffer) (Spectrum, error)

	// Inverse is the one-shot inverse for engines without plans.
	Inverse(dst field.Buffer, f Spectrum) error

	// Mul writes the elementwise product a*b into dst. dst may alias a.
	Mul(dst, a, b Spectrum) error

	// CustomGrowth reports whether arbitrary growth closures can run on
	// engine-resident buffers.
	CustomGrowth() bool
}

var (
	regMu   sync.RWMutex
	engines = map[string]Engine{}
)

// Register adds an engine to the registry. It panics on a duplicate name,
// which is a programming error in engine init.
func Register(e Engine) {
	regMu.Lock()
	defer regMu.Unlock()
	name := e.Name()
	if _, dup := engines[name]; dup {
		panic(fmt.Sprintf("device: Register called twice for %q", name))
	}
	engines[name] = e
}

// Open returns the named engine after a successful probe.
func Open(name string) (Engine, error) {
	regMu.RLock()
	e, ok := engines[name]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no engine %q (have %s)",
			ErrUnavailable, name, strings.Join(Engines(), ", "))
	}
	if err := e.Probe(); err != nil {
		return nil, fmt.Errorf("%w: %q failed probe: %v", ErrUnavailable, name, err)
	}
	return e, nil
}

// Default returns the preferred engine: pooled when registered, otherwise
// the first probe-passing engine by name.
func Default() (Engine, error) {
	if e, err := Open("pooled"); err == nil {
		return e, nil
	}
	for _, name := range Engines() {
		if e, err := Open(name); err == nil {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: no engine passed probe", ErrUnavailable)
}

// Engines returns the registered engine names, sorted.
func Engines() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetPoolWorkers sizes the transform worker pool shared by pooled engines.
func SetPoolWorkers(n int) {
	if n < 1 {
		n = 1
	}
	fft.SetWorkerPoolSize(n)
}
