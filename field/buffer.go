package field

import "github.com/pthm-cable/lenia/growth"

// Buffer is the operation surface shared by host grids and device-resident
// grids, so integration, feedback, and calibration are written once.
//
// Implementations panic when an operation mixes buffers of different
// residency (host with device, or grids from different engines); the
// simulation layer never mixes them.
type Buffer interface {
	// Side returns the edge length of the square field.
	Side() int

	// NewLike allocates a zeroed buffer of the same residency and shape.
	NewLike() Buffer

	// HostInto copies the buffer into a host grid of the same side.
	HostInto(dst *Grid)

	// LoadFrom copies a host grid of the same side into the buffer.
	LoadFrom(src *Grid)

	// CopyFrom copies a same-residency buffer.
	CopyFrom(src Buffer)

	// Axpy adds a*x elementwise, where x has the same residency.
	Axpy(a float32, x Buffer)

	// Scale multiplies every cell by s.
	Scale(s float32)

	// AddScalar adds c to every cell.
	AddScalar(c float32)

	// Clamp01 clamps every cell to [0,1].
	Clamp01()

	// Mean returns the average cell value.
	Mean() float64

	// Max returns the largest cell value.
	Max() float64

	// ApplyGrowth maps every cell u to g(u, mu, sigma).
	ApplyGrowth(p growth.Params)
}
