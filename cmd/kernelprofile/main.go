// Package main dumps a convolution kernel's shape for inspection: the
// radial profile, the dense stencil's row sums, and a summary of the
// periodic layout.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/lenia/kernel"
)

const profileSamples = 200

type profileRow struct {
	RR    float64 `csv:"rr"`
	Value float64 `csv:"value"`
}

type stencilRow struct {
	Row int     `csv:"row"`
	Sum float64 `csv:"row_sum"`
}

func main() {
	radius := flag.Int("radius", 13, "Kernel radius in cells")
	rings := flag.String("rings", "0.5", "Comma-separated ring centers in [0,1]")
	widths := flag.String("widths", "0.15", "Comma-separated ring widths")
	weights := flag.String("weights", "1", "Comma-separated ring weights")
	side := flag.Int("side", 128, "Grid side for the periodic layout")
	outDir := flag.String("out", "kernelprofile", "Output directory for CSV files")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	spec, err := parseSpec(*radius, *rings, *widths, *weights)
	if err != nil {
		slog.Error("bad kernel spec", "error", err)
		os.Exit(2)
	}

	periodic, err := kernel.BuildPeriodic(spec, *side)
	if err != nil {
		slog.Error("failed to build periodic kernel", "side", *side, "error", err)
		os.Exit(2)
	}
	stencil, err := kernel.BuildStencil(spec)
	if err != nil {
		slog.Error("failed to build stencil", "error", err)
		os.Exit(2)
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	profile := make([]profileRow, profileSamples+1)
	values := make([]float64, profileSamples+1)
	for i := range profile {
		rr := float64(i) / profileSamples
		v := spec.Profile(rr)
		profile[i] = profileRow{RR: rr, Value: v}
		values[i] = v
	}
	if err := writeCSV(filepath.Join(*outDir, "profile.csv"), profile); err != nil {
		slog.Error("failed to write profile", "error", err)
		os.Exit(1)
	}

	span := spec.StencilSize()
	rows := make([]stencilRow, span)
	for y := 0; y < span; y++ {
		var sum float64
		for x := 0; x < span; x++ {
			sum += float64(stencil[y*span+x])
		}
		rows[y] = stencilRow{Row: y - spec.Radius, Sum: sum}
	}
	if err := writeCSV(filepath.Join(*outDir, "rows.csv"), rows); err != nil {
		slog.Error("failed to write row sums", "error", err)
		os.Exit(1)
	}

	support := 0
	for _, v := range periodic {
		if v > 0 {
			support++
		}
	}

	center := stencil[spec.Radius*span+spec.Radius]
	slog.Info("kernel profile written",
		"dir", *outDir,
		"radius", spec.Radius,
		"rings", len(spec.Rings),
		"periodic_sum", floats.Sum(periodic),
		"profile_peak", floats.Max(values),
		"support_cells", support,
		"center_value", center,
	)
}

func parseSpec(radius int, rings, widths, weights string) (kernel.Spec, error) {
	spec := kernel.Spec{Radius: radius}
	var err error
	if spec.Rings, err = parseFloats(rings); err != nil {
		return kernel.Spec{}, fmt.Errorf("rings: %w", err)
	}
	if spec.Widths, err = parseFloats(widths); err != nil {
		return kernel.Spec{}, fmt.Errorf("widths: %w", err)
	}
	if spec.Weights, err = parseFloats(weights); err != nil {
		return kernel.Spec{}, fmt.Errorf("weights: %w", err)
	}
	return spec, spec.Validate()
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func writeCSV(path string, records any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(records, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
