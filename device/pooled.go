package device

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"

	"github.com/pthm-cable/lenia/field"
	"github.com/pthm-cable/lenia/growth"
)

func init() {
	Register(&pooledEngine{})
}

// pooledEngine runs transforms on the go-dsp worker pool. Buffers are
// engine-resident float64 matrices, the shape the transforms consume, so
// step math avoids a host copy per tick.
type pooledEngine struct{}

func (e *pooledEngine) Name() string { return "pooled" }

func (e *pooledEngine) Probe() error {
	// A 4x4 impulse round trip exercises the whole transform path.
	probe := make([][]float64, 4)
	for y := range probe {
		probe[y] = make([]float64, 4)
	}
	probe[0][0] = 1
	back := fft.IFFT2(fft.FFT2Real(probe))
	got := real(back[0][0])
	if got < 0.99 || got > 1.01 {
		return fmt.Errorf("impulse round trip returned %g", got)
	}
	return nil
}

func (e *pooledEngine) NewGrid(side int) (field.Buffer, error) {
	if side < 1 {
		return nil, fmt.Errorf("pooled: invalid side %d", side)
	}
	return newPooledGrid(side), nil
}

func (e *pooledEngine) NewPlan(side int) (Plan, error) {
	if side < 1 {
		return nil, fmt.Errorf("pooled: invalid side %d", side)
	}
	return &pooledPlan{side: side}, nil
}

func (e *pooledEngine) Forward(src field.Buffer) (Spectrum, error) {
	g, ok := src.(*pooledGrid)
	if !ok {
		return nil, fmt.Errorf("pooled: foreign buffer %T", src)
	}
	return &pooledSpectrum{side: g.side, bins: fft.FFT2Real(g.rows)}, nil
}

func (e *pooledEngine) Inverse(dst field.Buffer, f Spectrum) error {
	g, ok := dst.(*pooledGrid)
	if !ok {
		return fmt.Errorf("pooled: foreign buffer %T", dst)
	}
	s, ok := f.(*pooledSpectrum)
	if !ok {
		return fmt.Errorf("pooled: foreign spectrum %T", f)
	}
	if s.side != g.side {
		return fmt.Errorf("pooled: spectrum side %d vs grid side %d", s.side, g.side)
	}
	back := fft.IFFT2(s.bins)
	for y, row := range back {
		out := g.rows[y]
		for x, v := range row {
			out[x] = real(v)
		}
	}
	return nil
}

func (e *pooledEngine) Mul(dst, a, b Spectrum) error {
	d, ok := dst.(*pooledSpectrum)
	if !ok {
		return fmt.Errorf("pooled: foreign spectrum %T", dst)
	}
	sa, ok := a.(*pooledSpectrum)
	if !ok {
		return fmt.Errorf("pooled: foreign spectrum %T", a)
	}
	sb, ok := b.(*pooledSpectrum)
	if !ok {
		return fmt.Errorf("pooled: foreign spectrum %T", b)
	}
	if sa.side != sb.side || sa.side != d.side {
		return fmt.Errorf("pooled: spectrum sides %d/%d/%d", d.side, sa.side, sb.side)
	}
	d.ensure()
	for y := range d.bins {
		da, db, dd := sa.bins[y], sb.bins[y], d.bins[y]
		for x := range dd {
			dd[x] = da[x] * db[x]
		}
	}
	return nil
}

// Arbitrary growth closures run fine on pool-resident buffers.
func (e *pooledEngine) CustomGrowth() bool { return true }

// pooledPlan pins a side. The transforms themselves are stateless pool
// dispatches, so planning here is validation plus sized allocation.
type pooledPlan struct {
	side int
}

func (p *pooledPlan) Alloc() Spectrum {
	s := &pooledSpectrum{side: p.side}
	s.ensure()
	return s
}

func (p *pooledPlan) Forward(dst Spectrum, src field.Buffer) error {
	d, ok := dst.(*pooledSpectrum)
	if !ok {
		return fmt.Errorf("pooled: foreign spectrum %T", dst)
	}
	g, ok := src.(*pooledGrid)
	if !ok {
		return fmt.Errorf("pooled: foreign buffer %T", src)
	}
	if g.side != p.side || d.side != p.side {
		return fmt.Errorf("pooled: plan side %d vs %d/%d", p.side, g.side, d.side)
	}
	d.bins = fft.FFT2Real(g.rows)
	return nil
}

func (p *pooledPlan) Inverse(dst field.Buffer, f Spectrum) error {
	g, ok := dst.(*pooledGrid)
	if !ok {
		return fmt.Errorf("pooled: foreign buffer %T", dst)
	}
	if g.side != p.side {
		return fmt.Errorf("pooled: plan side %d vs grid side %d", p.side, g.side)
	}
	return (&pooledEngine{}).Inverse(dst, f)
}

type pooledSpectrum struct {
	side int
	bins [][]complex128
}

func (s *pooledSpectrum) Len() int { return s.side * s.side }

func (s *pooledSpectrum) ensure() {
	if s.bins != nil {
		return
	}
	s.bins = make([][]complex128, s.side)
	for y := range s.bins {
		s.bins[y] = make([]complex128, s.side)
	}
}

// pooledGrid is an engine-resident field buffer backed by float64 rows.
type pooledGrid struct {
	side int
	rows [][]float64
}

func newPooledGrid(side int) *pooledGrid {
	rows := make([][]float64, side)
	for y := range rows {
		rows[y] = make([]float64, side)
	}
	return &pooledGrid{side: side, rows: rows}
}

func (g *pooledGrid) Side() int { return g.side }

func (g *pooledGrid) NewLike() field.Buffer { return newPooledGrid(g.side) }

func (g *pooledGrid) HostInto(dst *field.Grid) {
	if dst.Side() != g.side {
		panic(fmt.Sprintf("device: size mismatch %d vs %d", dst.Side(), g.side))
	}
	for y, row := range g.rows {
		base := y * g.side
		for x, v := range row {
			dst.Data[base+x] = float32(v)
		}
	}
}

func (g *pooledGrid) LoadFrom(src *field.Grid) {
	if src.Side() != g.side {
		panic(fmt.Sprintf("device: size mismatch %d vs %d", src.Side(), g.side))
	}
	for y, row := range g.rows {
		base := y * g.side
		for x := range row {
			row[x] = float64(src.Data[base+x])
		}
	}
}

func (g *pooledGrid) CopyFrom(src field.Buffer) {
	sg, ok := src.(*pooledGrid)
	if !ok {
		panic("device: CopyFrom across buffer residencies")
	}
	for y, row := range sg.rows {
		copy(g.rows[y], row)
	}
}

func (g *pooledGrid) Axpy(a float32, x field.Buffer) {
	xg, ok := x.(*pooledGrid)
	if !ok {
		panic("device: Axpy across buffer residencies")
	}
	af := float64(a)
	for y, row := range g.rows {
		src := xg.rows[y]
		for i := range row {
			row[i] += af * src[i]
		}
	}
}

func (g *pooledGrid) Scale(s float32) {
	sf := float64(s)
	for _, row := range g.rows {
		for i := range row {
			row[i] *= sf
		}
	}
}

func (g *pooledGrid) AddScalar(c float32) {
	cf := float64(c)
	for _, row := range g.rows {
		for i := range row {
			row[i] += cf
		}
	}
}

func (g *pooledGrid) Clamp01() {
	for _, row := range g.rows {
		for i, v := range row {
			if v < 0 {
				row[i] = 0
			} else if v > 1 {
				row[i] = 1
			}
		}
	}
}

func (g *pooledGrid) Mean() float64 {
	var sum float64
	for _, row := range g.rows {
		for _, v := range row {
			sum += v
		}
	}
	return sum / float64(g.side*g.side)
}

func (g *pooledGrid) Max() float64 {
	m := g.rows[0][0]
	for _, row := range g.rows {
		for _, v := range row {
			if v > m {
				m = v
			}
		}
	}
	return m
}

func (g *pooledGrid) ApplyGrowth(p growth.Params) {
	f := p.Func()
	for _, row := range g.rows {
		for i, v := range row {
			row[i] = f(v, p.Mu, p.Sigma)
		}
	}
}
