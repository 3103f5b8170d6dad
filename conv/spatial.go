package conv

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/pthm-cable/lenia/field"
	"github.com/pthm-cable/lenia/kernel"
)

// Below this side, dispatch overhead beats the row work and the serial
// loop is faster.
const parallelThreshold = 128

// Spatial convolves by walking a dense stencil over every cell. Exact for
// any field, cheap for small radii, and the reference the transform
// backends are checked against.
type Spatial struct {
	side    int
	workers int

	spec       kernel.Spec
	haveKernel bool
	stencil    []float32
	radius     int
}

// NewSpatial builds a direct-stencil backend for one grid side.
func NewSpatial(side int) *Spatial {
	return &Spatial{
		side:    side,
		workers: runtime.GOMAXPROCS(0),
	}
}

func (s *Spatial) Kind() Kind { return DirectSpatial }
func (s *Spatial) Side() int  { return s.side }

// SetWorkers overrides the worker count, mainly for benchmarks.
func (s *Spatial) SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	s.workers = n
}

func (s *Spatial) NewBuffer() (field.Buffer, error) {
	return field.New(s.side), nil
}

// Stencil exposes the cached stencil. The slice is replaced wholesale on
// rebuild, never mutated.
func (s *Spatial) Stencil() []float32 { return s.stencil }

func (s *Spatial) Compute(dst, src field.Buffer, spec kernel.Spec) error {
	dg, ok := dst.(*field.Grid)
	if !ok {
		return fmt.Errorf("spatial: host buffers required, got %T", dst)
	}
	sg, ok := src.(*field.Grid)
	if !ok {
		return fmt.Errorf("spatial: host buffers required, got %T", src)
	}
	if sg.Side() != s.side || dg.Side() != s.side {
		return fmt.Errorf("spatial: side %d backend given %d/%d grids",
			s.side, sg.Side(), dg.Side())
	}
	if s.side <= 2*spec.Radius {
		return fmt.Errorf("%w: radius %d needs grid > %d, got %d",
			kernel.ErrRadiusTooLarge, spec.Radius, 2*spec.Radius, s.side)
	}

	if !s.haveKernel || !s.spec.Equal(spec) {
		st, err := kernel.BuildStencil(spec)
		if err != nil {
			return err
		}
		s.stencil = st
		s.radius = spec.Radius
		s.spec = spec.Clone()
		s.haveKernel = true
	}

	if s.side < parallelThreshold || s.workers < 2 {
		s.convolveRows(dg, sg, 0, s.side)
		return nil
	}

	chunkSize := (s.side + s.workers - 1) / s.workers
	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		y0 := w * chunkSize
		if y0 >= s.side {
			break
		}
		y1 := y0 + chunkSize
		if y1 > s.side {
			y1 = s.side
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			s.convolveRows(dg, sg, y0, y1)
		}(y0, y1)
	}
	wg.Wait()
	return nil
}

func (s *Spatial) convolveRows(dst, src *field.Grid, y0, y1 int) {
	n := s.side
	r := s.radius
	size := 2*r + 1
	for y := y0; y < y1; y++ {
		for x := 0; x < n; x++ {
			var acc float32
			for dy := -r; dy <= r; dy++ {
				rowBase := modInt(y+dy, n) * n
				stBase := (dy + r) * size
				for dx := -r; dx <= r; dx++ {
					acc += s.stencil[stBase+dx+r] * src.Data[rowBase+modInt(x+dx, n)]
				}
			}
			dst.Data[y*n+x] = acc
		}
	}
}

func (s *Spatial) Release() {
	s.stencil = nil
	s.haveKernel = false
}
