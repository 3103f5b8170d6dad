// Package field provides the simulated scalar grid: a square float32 field
// with toroidal topology, values held in [0,1] by clamping.
package field

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/pthm-cable/lenia/growth"
)

// Grid is a host-resident square field. Data is row-major, length Side*Side.
type Grid struct {
	side int
	Data []float32
}

// New allocates a zeroed grid.
func New(side int) *Grid {
	if side < 1 {
		panic(fmt.Sprintf("field: invalid side %d", side))
	}
	return &Grid{side: side, Data: make([]float32, side*side)}
}

// Side returns the edge length.
func (g *Grid) Side() int { return g.side }

// Idx maps (x, y) to a flat index with toroidal wraparound.
func (g *Grid) Idx(x, y int) int {
	return modInt(y, g.side)*g.side + modInt(x, g.side)
}

// At returns the value at (x, y) with wraparound.
func (g *Grid) At(x, y int) float32 { return g.Data[g.Idx(x, y)] }

// Set writes the value at (x, y) with wraparound.
func (g *Grid) Set(x, y int, v float32) { g.Data[g.Idx(x, y)] = v }

// Fill sets every cell to v.
func (g *Grid) Fill(v float32) {
	for i := range g.Data {
		g.Data[i] = v
	}
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := New(g.side)
	copy(c.Data, g.Data)
	return c
}

func (g *Grid) vec() blas32.Vector {
	return blas32.Vector{N: len(g.Data), Inc: 1, Data: g.Data}
}

// NewLike allocates a zeroed buffer with the same residency and shape.
func (g *Grid) NewLike() Buffer { return New(g.side) }

// HostInto copies the grid into dst.
func (g *Grid) HostInto(dst *Grid) {
	if dst.side != g.side {
		panic(fmt.Sprintf("field: size mismatch %d vs %d", dst.side, g.side))
	}
	blas32.Copy(g.vec(), dst.vec())
}

// LoadFrom copies src into the grid.
func (g *Grid) LoadFrom(src *Grid) { src.HostInto(g) }

// CopyFrom copies another host buffer into the grid.
func (g *Grid) CopyFrom(src Buffer) {
	sg, ok := src.(*Grid)
	if !ok {
		panic("field: CopyFrom across buffer residencies")
	}
	blas32.Copy(sg.vec(), g.vec())
}

// Axpy adds a*x elementwise.
func (g *Grid) Axpy(a float32, x Buffer) {
	xg, ok := x.(*Grid)
	if !ok {
		panic("field: Axpy across buffer residencies")
	}
	blas32.Axpy(a, xg.vec(), g.vec())
}

// Scale multiplies every cell by s.
func (g *Grid) Scale(s float32) {
	blas32.Scal(s, g.vec())
}

// AddScalar adds c to every cell.
func (g *Grid) AddScalar(c float32) {
	for i := range g.Data {
		g.Data[i] += c
	}
}

// Clamp01 clamps every cell to [0,1].
func (g *Grid) Clamp01() {
	for i, v := range g.Data {
		g.Data[i] = clamp01(v)
	}
}

// Mean returns the average cell value.
func (g *Grid) Mean() float64 {
	var sum float64
	for _, v := range g.Data {
		sum += float64(v)
	}
	return sum / float64(len(g.Data))
}

// Max returns the largest cell value.
func (g *Grid) Max() float64 {
	m := g.Data[0]
	for _, v := range g.Data[1:] {
		if v > m {
			m = v
		}
	}
	return float64(m)
}

// Min returns the smallest cell value.
func (g *Grid) Min() float64 {
	m := g.Data[0]
	for _, v := range g.Data[1:] {
		if v < m {
			m = v
		}
	}
	return float64(m)
}

// ActiveFraction returns the fraction of cells above threshold.
func (g *Grid) ActiveFraction(threshold float32) float64 {
	n := 0
	for _, v := range g.Data {
		if v > threshold {
			n++
		}
	}
	return float64(n) / float64(len(g.Data))
}

// ApplyGrowth maps every cell through the growth function.
func (g *Grid) ApplyGrowth(p growth.Params) {
	f := p.Func()
	for i, v := range g.Data {
		g.Data[i] = float32(f(float64(v), p.Mu, p.Sigma))
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func modInt(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
