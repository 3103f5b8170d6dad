// Package kernel builds the radially symmetric convolution kernels that
// define neighborhood influence, as a ring mixture of gaussian profiles.
package kernel

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrSpecShape is returned when the ring sequences are malformed.
	ErrSpecShape = errors.New("kernel spec shape invalid")
	// ErrRadiusTooLarge is returned when the kernel support cannot fit the
	// grid without wrapping onto itself.
	ErrRadiusTooLarge = errors.New("kernel radius too large for grid")
	// ErrKernelSum is returned when the spec yields a non-positive total
	// weight, which cannot be normalized.
	ErrKernelSum = errors.New("kernel sum not positive")
)

// Spec describes a kernel as a mixture of gaussian rings over the
// normalized radius rr = r/Radius in [0,1].
type Spec struct {
	Radius  int
	Rings   []float64 // ring centers in [0,1]
	Widths  []float64 // ring widths, positive
	Weights []float64 // ring weights
}

// Default returns the classic single-ring kernel.
func Default() Spec {
	return Spec{
		Radius:  13,
		Rings:   []float64{0.5},
		Widths:  []float64{0.15},
		Weights: []float64{1.0},
	}
}

// Validate checks the spec before any build work.
func (s Spec) Validate() error {
	if s.Radius < 1 {
		return fmt.Errorf("%w: radius %d", ErrSpecShape, s.Radius)
	}
	n := len(s.Rings)
	if n == 0 || len(s.Widths) != n || len(s.Weights) != n {
		return fmt.Errorf("%w: rings=%d widths=%d weights=%d",
			ErrSpecShape, n, len(s.Widths), len(s.Weights))
	}
	for i, w := range s.Widths {
		if w <= 0 {
			return fmt.Errorf("%w: width[%d]=%g", ErrSpecShape, i, w)
		}
	}
	return nil
}

// Clone returns a deep copy. Caches snapshot specs with Clone so later
// in-place edits to the caller's spec cannot alias the cache key.
func (s Spec) Clone() Spec {
	c := Spec{Radius: s.Radius}
	c.Rings = append([]float64(nil), s.Rings...)
	c.Widths = append([]float64(nil), s.Widths...)
	c.Weights = append([]float64(nil), s.Weights...)
	return c
}

// Equal compares specs by value.
func (s Spec) Equal(o Spec) bool {
	if s.Radius != o.Radius || len(s.Rings) != len(o.Rings) {
		return false
	}
	for i := range s.Rings {
		if s.Rings[i] != o.Rings[i] || s.Widths[i] != o.Widths[i] || s.Weights[i] != o.Weights[i] {
			return false
		}
	}
	return true
}

// Profile evaluates the ring mixture at normalized radius rr.
func (s Spec) Profile(rr float64) float64 {
	var v float64
	for k := range s.Rings {
		d := (rr - s.Rings[k]) / s.Widths[k]
		v += s.Weights[k] * math.Exp(-0.5*d*d)
	}
	return v
}

// BuildPeriodic constructs the n x n periodic-domain kernel with the
// conceptual center at index (0,0), the layout a frequency-domain transform
// expects for a zero-centered convolution. Only the disk r <= Radius is
// populated. The result is normalized to sum 1.
func BuildPeriodic(s Spec, n int) ([]float64, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if n <= 2*s.Radius {
		return nil, fmt.Errorf("%w: radius %d needs grid > %d, got %d",
			ErrRadiusTooLarge, s.Radius, 2*s.Radius, n)
	}

	k := make([]float64, n*n)
	radius := float64(s.Radius)
	var sum float64

	for dy := -s.Radius; dy <= s.Radius; dy++ {
		y := dy
		if y < 0 {
			y += n
		}
		for dx := -s.Radius; dx <= s.Radius; dx++ {
			r := math.Sqrt(float64(dx*dx + dy*dy))
			if r > radius {
				continue
			}
			x := dx
			if x < 0 {
				x += n
			}
			v := s.Profile(r / radius)
			k[y*n+x] = v
			sum += v
		}
	}

	if sum <= 0 {
		return nil, fmt.Errorf("%w: sum=%g", ErrKernelSum, sum)
	}
	inv := 1 / sum
	for i := range k {
		k[i] *= inv
	}
	return k, nil
}

// BuildStencil constructs the dense (2r+1) x (2r+1) stencil centered at its
// middle cell, for direct spatial convolution, normalized to sum 1. The
// square corners beyond the disk carry tiny but nonzero values, which is
// the bounded representation difference between the two builds.
func BuildStencil(s Spec) ([]float32, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	size := 2*s.Radius + 1
	st := make([]float64, size*size)
	radius := float64(s.Radius)
	var sum float64

	for dy := -s.Radius; dy <= s.Radius; dy++ {
		for dx := -s.Radius; dx <= s.Radius; dx++ {
			r := math.Sqrt(float64(dx*dx + dy*dy))
			v := s.Profile(r / radius)
			st[(dy+s.Radius)*size+(dx+s.Radius)] = v
			sum += v
		}
	}

	if sum <= 0 {
		return nil, fmt.Errorf("%w: sum=%g", ErrKernelSum, sum)
	}

	out := make([]float32, len(st))
	inv := 1 / sum
	for i, v := range st {
		out[i] = float32(v * inv)
	}
	return out, nil
}

// StencilSize returns the edge length of the stencil for a spec.
func (s Spec) StencilSize() int { return 2*s.Radius + 1 }
