// Package conv computes the potential field: the periodic convolution of
// the field with a kernel, behind interchangeable backends.
package conv

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/lenia/device"
	"github.com/pthm-cable/lenia/field"
	"github.com/pthm-cable/lenia/kernel"
)

// ErrUnknownKind is returned when a backend name does not parse.
var ErrUnknownKind = errors.New("unknown convolution backend")

// Kind selects a convolution strategy.
type Kind uint8

const (
	// FrequencyDomain multiplies spectra, O(n^2 log n) per step.
	FrequencyDomain Kind = iota
	// DirectSpatial walks the stencil, O(n^2 r^2) per step.
	DirectSpatial
	// DeviceResident runs on a transform engine with resident buffers.
	DeviceResident

	numKinds
)

// ParseKind maps a config name to a Kind.
func ParseKind(name string) (Kind, error) {
	switch name {
	case "frequency", "fft":
		return FrequencyDomain, nil
	case "spatial", "direct":
		return DirectSpatial, nil
	case "device":
		return DeviceResident, nil
	default:
		return numKinds, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

func (k Kind) String() string {
	switch k {
	case FrequencyDomain:
		return "frequency"
	case DirectSpatial:
		return "spatial"
	case DeviceResident:
		return "device"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Backend computes potentials for one grid side. Kernel artifacts are
// cached against the spec and rebuilt when it changes value.
type Backend interface {
	// Kind identifies the strategy.
	Kind() Kind

	// Side returns the grid side the backend was built for.
	Side() int

	// NewBuffer allocates a field buffer in this backend's residency.
	NewBuffer() (field.Buffer, error)

	// Compute writes the potential of src into dst. dst must not alias
	// src, and both must come from NewBuffer of this backend.
	Compute(dst, src field.Buffer, spec kernel.Spec) error

	// Release frees cached kernel artifacts and buffers.
	Release()
}

// New constructs a backend. DeviceResident resolves the default engine;
// use NewDevice to pick one explicitly.
func New(kind Kind, side int) (Backend, error) {
	switch kind {
	case FrequencyDomain:
		return NewSpectral(side), nil
	case DirectSpatial:
		return NewSpatial(side), nil
	case DeviceResident:
		eng, err := device.Default()
		if err != nil {
			return nil, err
		}
		return NewDevice(side, eng)
	default:
		return nil, fmt.Errorf("%w: Kind(%d)", ErrUnknownKind, uint8(kind))
	}
}

func modInt(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
