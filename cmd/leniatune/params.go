// Package main provides CMA-ES search over Lenia dynamics parameters.
package main

import (
	"github.com/pthm-cable/lenia/config"
)

// ParamSpec defines a single tunable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all tunable parameters. The search works on
// single-ring kernels; multi-ring specs in the base config are collapsed.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of tunable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Growth window (kind locked to the base config's)
			{Name: "mu", Path: "growth.mu", Min: 0.10, Max: 0.40, Default: 0.15},
			{Name: "sigma", Path: "growth.sigma", Min: 0.010, Max: 0.090, Default: 0.017},
			// Integration
			{Name: "dt", Path: "engine.dt", Min: 0.02, Max: 0.50, Default: 0.10},
			// Kernel shape (radius and weight locked)
			{Name: "ring_center", Path: "kernel.rings[0]", Min: 0.20, Max: 0.80, Default: 0.50},
			{Name: "ring_width", Path: "kernel.widths[0]", Min: 0.05, Max: 0.30, Default: 0.15},
			// Controller (mode, target, period locked). The additive nudge
			// scales with dt, so useful gains run well past 1.
			{Name: "feedback_gain", Path: "feedback.gain", Min: 0.0, Max: 20.0, Default: 2.0},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		val := v[i]
		if val < spec.Min {
			val = spec.Min
		}
		if val > spec.Max {
			val = spec.Max
		}
		clamped[i] = val
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	// Clamp values to ensure they're within bounds
	clamped := pv.Clamp(values)

	// Order must match Specs order
	cfg.Growth.Mu = clamped[0]
	cfg.Growth.Sigma = clamped[1]
	cfg.Engine.DT = clamped[2]

	// Single ring, unit weight
	cfg.Kernel.Rings = []float64{clamped[3]}
	cfg.Kernel.Widths = []float64{clamped[4]}
	cfg.Kernel.Weights = []float64{1}

	cfg.Feedback.Gain = clamped[5]

	cfg.Refresh()
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	ringCenter, ringWidth := 0.5, 0.15
	if len(cfg.Kernel.Rings) > 0 {
		ringCenter = cfg.Kernel.Rings[0]
	}
	if len(cfg.Kernel.Widths) > 0 {
		ringWidth = cfg.Kernel.Widths[0]
	}

	return []float64{
		cfg.Growth.Mu,
		cfg.Growth.Sigma,
		cfg.Engine.DT,
		ringCenter,
		ringWidth,
		cfg.Feedback.Gain,
	}
}
