package conv

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/pthm-cable/lenia/field"
	"github.com/pthm-cable/lenia/kernel"
)

// Spectral convolves through the frequency domain on the host. The n-point
// complex transform is planned once; rows go through it in place and
// columns through a gather/scatter scratch.
type Spectral struct {
	side int
	fft  *fourier.CmplxFFT

	spec       kernel.Spec
	haveKernel bool
	kernelF    []complex128

	inF  []complex128
	col  []complex128
	colT []complex128
}

// NewSpectral builds a frequency-domain backend for one grid side.
func NewSpectral(side int) *Spectral {
	return &Spectral{
		side: side,
		fft:  fourier.NewCmplxFFT(side),
		inF:  make([]complex128, side*side),
		col:  make([]complex128, side),
		colT: make([]complex128, side),
	}
}

func (s *Spectral) Kind() Kind { return FrequencyDomain }
func (s *Spectral) Side() int  { return s.side }

func (s *Spectral) NewBuffer() (field.Buffer, error) {
	return field.New(s.side), nil
}

// KernelSpectrum exposes the cached kernel transform. The slice is replaced
// wholesale on rebuild, never mutated, so callers can watch identity.
func (s *Spectral) KernelSpectrum() []complex128 { return s.kernelF }

func (s *Spectral) Compute(dst, src field.Buffer, spec kernel.Spec) error {
	dg, ok := dst.(*field.Grid)
	if !ok {
		return fmt.Errorf("spectral: host buffers required, got %T", dst)
	}
	sg, ok := src.(*field.Grid)
	if !ok {
		return fmt.Errorf("spectral: host buffers required, got %T", src)
	}
	if sg.Side() != s.side || dg.Side() != s.side {
		return fmt.Errorf("spectral: side %d backend given %d/%d grids",
			s.side, sg.Side(), dg.Side())
	}

	if !s.haveKernel || !s.spec.Equal(spec) {
		if err := s.rebuildKernel(spec); err != nil {
			return err
		}
	}

	n2 := s.side * s.side
	for i, v := range sg.Data {
		s.inF[i] = complex(float64(v), 0)
	}
	s.fft2(s.inF, false)
	for i := range s.inF {
		s.inF[i] *= s.kernelF[i]
	}
	s.fft2(s.inF, true)

	// The transform pair is unnormalized: a 2D round trip gains n^2.
	invN2 := 1 / float64(n2)
	for i := range dg.Data {
		dg.Data[i] = float32(real(s.inF[i]) * invN2)
	}
	return nil
}

func (s *Spectral) rebuildKernel(spec kernel.Spec) error {
	k, err := kernel.BuildPeriodic(spec, s.side)
	if err != nil {
		return err
	}
	kf := make([]complex128, len(k))
	for i, v := range k {
		kf[i] = complex(v, 0)
	}
	s.fft2(kf, false)
	s.kernelF = kf
	s.spec = spec.Clone()
	s.haveKernel = true
	return nil
}

// fft2 transforms data in place, rows then columns.
func (s *Spectral) fft2(data []complex128, inverse bool) {
	n := s.side
	for y := 0; y < n; y++ {
		row := data[y*n : (y+1)*n]
		if inverse {
			s.fft.Sequence(row, row)
		} else {
			s.fft.Coefficients(row, row)
		}
	}
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			s.col[y] = data[y*n+x]
		}
		if inverse {
			s.fft.Sequence(s.colT, s.col)
		} else {
			s.fft.Coefficients(s.colT, s.col)
		}
		for y := 0; y < n; y++ {
			data[y*n+x] = s.colT[y]
		}
	}
}

func (s *Spectral) Release() {
	s.kernelF = nil
	s.haveKernel = false
	s.inF = nil
	s.col = nil
	s.colT = nil
}
