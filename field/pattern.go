package field

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// ErrUnknownPattern is returned for unrecognized initial pattern names.
var ErrUnknownPattern = errors.New("unknown pattern")

// PatternOpts tunes the seeded initializers. Zero values select defaults.
type PatternOpts struct {
	Amplitude  float64 // peak blob value, default 0.9
	BlobRadius float64 // blob radius in cells, default side/8
	Density    float64 // sprinkle blobs per 1000 cells, default 3.5
	NoiseLevel float64 // background noise amplitude, default per pattern
	Octaves    int     // plasma FBM octaves, default 4
	Scale      float64 // plasma base frequency, default 3
	Contrast   float64 // plasma contrast exponent, default 2
}

// NewFromPattern builds a seeded initial field. Supported patterns:
//
//	noise     - uniform random values
//	blob      - one centered gaussian blob plus light noise
//	sprinkle  - many small random blobs, count scaling with grid area
//	fragments - denser, smaller sprinkle tuned to break into fragments
//	plasma    - thresholded simplex FBM noise
//
// The same side, pattern, seed, and opts always produce the same field.
func NewFromPattern(side int, pattern string, seed int64, opts PatternOpts) (*Grid, error) {
	g := New(side)
	rng := rand.New(rand.NewSource(seed))

	switch pattern {
	case "noise":
		fillNoise(g, rng)
	case "blob":
		fillBlob(g, rng, opts)
	case "sprinkle":
		fillSprinkle(g, rng, opts, false)
	case "fragments":
		fillSprinkle(g, rng, opts, true)
	case "plasma":
		fillPlasma(g, seed, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, pattern)
	}

	g.Clamp01()
	return g, nil
}

func fillNoise(g *Grid, rng *rand.Rand) {
	for i := range g.Data {
		g.Data[i] = rng.Float32()
	}
}

func fillBlob(g *Grid, rng *rand.Rand, opts PatternOpts) {
	side := g.side
	amp := defaultF(opts.Amplitude, 0.9)
	radius := defaultF(opts.BlobRadius, float64(side)/8)
	noise := defaultF(opts.NoiseLevel, 0.05)

	cx, cy := float64(side)/2, float64(side)/2
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			d2 := dx*dx + dy*dy
			v := amp * math.Exp(-d2/(2*radius*radius))
			v += noise * rng.Float64()
			g.Data[y*side+x] = float32(v)
		}
	}
}

func fillSprinkle(g *Grid, rng *rand.Rand, opts PatternOpts, fragments bool) {
	side := g.side

	density := opts.Density
	rLo, rHi := 2.0, 5.0
	aLo, aHi := 0.6, 1.0
	if fragments {
		// Smaller, denser blobs fall apart into separate creatures.
		if density == 0 {
			density = 7.0
		}
		rLo, rHi = 1.0, 3.0
		aLo, aHi = 0.5, 0.9
	} else if density == 0 {
		density = 3.5
	}

	count := int(density * float64(side*side) / 1000)
	if count < 6 {
		count = 6
	}

	for b := 0; b < count; b++ {
		cx := rng.Float64() * float64(side)
		cy := rng.Float64() * float64(side)
		radius := rLo + rng.Float64()*(rHi-rLo)
		amp := aLo + rng.Float64()*(aHi-aLo)
		stampBlob(g, cx, cy, radius, amp)
	}

	if opts.NoiseLevel > 0 {
		for i := range g.Data {
			g.Data[i] += float32(opts.NoiseLevel * rng.Float64())
		}
	}
}

// stampBlob adds a gaussian dab with wraparound, saturating rather than
// overwriting where blobs overlap.
func stampBlob(g *Grid, cx, cy, radius, amp float64) {
	side := g.side
	ext := int(math.Ceil(3 * radius))
	x0, y0 := int(cx), int(cy)

	for dy := -ext; dy <= ext; dy++ {
		for dx := -ext; dx <= ext; dx++ {
			d2 := float64(dx*dx + dy*dy)
			v := amp * math.Exp(-d2/(2*radius*radius))
			i := g.Idx(x0+dx, y0+dy)
			sum := float64(g.Data[i]) + v
			if sum > 1 {
				sum = 1
			}
			g.Data[i] = float32(sum)
		}
	}
}

func fillPlasma(g *Grid, seed int64, opts PatternOpts) {
	side := g.side
	octaves := opts.Octaves
	if octaves <= 0 {
		octaves = 4
	}
	scale := defaultF(opts.Scale, 3.0)
	contrast := defaultF(opts.Contrast, 2.0)

	noise := opensimplex.NewNormalized(seed)

	for y := 0; y < side; y++ {
		v := (float64(y) + 0.5) / float64(side)
		for x := 0; x < side; x++ {
			u := (float64(x) + 0.5) / float64(side)

			sum := 0.0
			amp := 0.5
			freq := scale
			for o := 0; o < octaves; o++ {
				sum += amp * noise.Eval2(u*freq, v*freq)
				freq *= 2.0
				amp *= 0.5
			}

			// Contrast shaping keeps only the ridges of the noise.
			g.Data[y*side+x] = float32(math.Pow(sum, contrast))
		}
	}
}

func defaultF(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
