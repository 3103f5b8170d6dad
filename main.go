package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/pthm-cable/lenia/config"
	"github.com/pthm-cable/lenia/conv"
	"github.com/pthm-cable/lenia/device"
	"github.com/pthm-cable/lenia/field"
	"github.com/pthm-cable/lenia/growth"
	"github.com/pthm-cable/lenia/kernel"
	"github.com/pthm-cable/lenia/sim"
	"github.com/pthm-cable/lenia/telemetry"
)

// Below this mean the field counts as extinct and the run stops early.
const extinctionMean = 1e-4

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	species := flag.String("species", "", "Apply a named species preset from the config")
	steps := flag.Int("steps", 1000, "Number of steps to run")
	size := flag.Int("size", 0, "Grid side length (0 = use config)")
	pattern := flag.String("pattern", "", "Seeding pattern (empty = use config)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config)")
	backend := flag.String("backend", "", "Convolution backend: frequency, spatial, device (empty = use config)")
	engine := flag.String("engine", "", "Device engine name (empty = use config)")
	integrator := flag.String("integrator", "", "Integrator: euler, midpoint, rk4 (empty = use config)")
	threads := flag.Int("threads", 0, "Worker count (0 = use config)")
	calibrate := flag.Bool("calibrate", false, "Calibrate the potential before running")
	initSnapshot := flag.String("init-snapshot", "", "Seed the field from a snapshot file")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config, and final snapshot")
	logStats := flag.Bool("log-stats", false, "Output window stats via slog")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	// Set up slog (JSON to stderr for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(*logLevel),
	}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}
	cfg := config.Cfg()

	if *species != "" {
		if err := cfg.ApplySpecies(*species); err != nil {
			slog.Error("failed to apply species", "species", *species, "error", err)
			os.Exit(2)
		}
	}

	// Flags override whatever the config resolved to.
	if *size > 0 {
		cfg.Grid.Side = *size
	}
	if *pattern != "" {
		cfg.Grid.Pattern = *pattern
	}
	if *seed != 0 {
		cfg.Grid.Seed = *seed
	}
	if *backend != "" {
		cfg.Engine.Backend = *backend
	}
	if *engine != "" {
		cfg.Engine.DeviceEngine = *engine
	}
	if *integrator != "" {
		cfg.Engine.Integrator = *integrator
	}
	if *threads > 0 {
		cfg.Engine.Threads = *threads
	}
	if *calibrate {
		cfg.Calibration.Enabled = true
	}
	cfg.Refresh()

	backendKind, err := conv.ParseKind(cfg.Engine.Backend)
	if err != nil {
		slog.Error("bad backend", "error", err)
		os.Exit(2)
	}
	integ, err := sim.ParseIntegrator(cfg.Engine.Integrator)
	if err != nil {
		slog.Error("bad integrator", "error", err)
		os.Exit(2)
	}
	p, err := paramsFromConfig(cfg)
	if err != nil {
		slog.Error("bad dynamics config", "error", err)
		os.Exit(2)
	}

	device.SetPoolWorkers(cfg.Derived.Workers)

	s, err := sim.New(sim.Options{
		Side:    cfg.Grid.Side,
		Pattern: cfg.Grid.Pattern,
		Seed:    cfg.Grid.Seed,
		Backend: backendKind,
		Engine:  cfg.Engine.DeviceEngine,
	})
	if err != nil {
		slog.Error("failed to build simulation", "error", err)
		os.Exit(2)
	}
	defer s.Backend().Release()

	if *initSnapshot != "" {
		if err := seedFromSnapshot(s, *initSnapshot); err != nil {
			slog.Error("failed to seed from snapshot", "path", *initSnapshot, "error", err)
			os.Exit(2)
		}
		slog.Info("seeded from snapshot", "path", *initSnapshot, "mean", s.Mean())
	}

	out, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := out.WriteConfig(cfg); err != nil {
		slog.Warn("failed to write resolved config", "error", err)
	}
	writeEvent(out, telemetry.NewRunStartEvent(s.BackendName(), s.Side()))

	if d, ok := s.Backend().(*conv.Device); ok && d.Degraded() {
		writeEvent(out, telemetry.NewDegradedEvent(0, "one-shot transforms"))
	}

	if cfg.Calibration.Enabled {
		stat, err := sim.ParseStatistic(cfg.Calibration.Statistic)
		if err != nil {
			slog.Error("bad calibration statistic", "error", err)
			os.Exit(2)
		}
		scale, measured, err := s.Calibrate(p, cfg.Calibration.Target, stat)
		if err != nil {
			slog.Error("calibration failed", "error", err)
			os.Exit(1)
		}
		slog.Info("calibrated",
			"statistic", stat.String(),
			"measured", measured,
			"target", cfg.Calibration.Target,
			"scale", scale,
		)
		writeEvent(out, telemetry.NewCalibrationEvent(int32(s.Tick()), stat.String(), scale))
	}

	collector := telemetry.NewCollector(cfg.Derived.WindowSteps, cfg.Engine.DT)
	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	s.AttachPerf(perf)

	slog.Info("starting simulation",
		"side", s.Side(),
		"pattern", cfg.Grid.Pattern,
		"seed", cfg.Grid.Seed,
		"backend", s.BackendName(),
		"integrator", integ.String(),
		"steps", *steps,
		"dt", p.Dt,
	)

	start := time.Now()
	err = s.Run(p, *steps, integ, func(step int, st *sim.State) bool {
		stats, flushed := collector.Observe(st)
		if !flushed {
			return true
		}
		if *logStats {
			stats.LogStats()
			perf.Stats().LogStats()
		}
		if err := out.WriteStats(stats); err != nil {
			slog.Warn("failed to write stats", "error", err)
		}
		if err := out.WritePerf(perf.Stats(), stats.WindowEndTick); err != nil {
			slog.Warn("failed to write perf", "error", err)
		}
		if stats.Mean < extinctionMean {
			slog.Info("field extinct", "tick", stats.WindowEndTick, "mean", stats.Mean)
			writeEvent(out, telemetry.NewExtinctionEvent(stats.WindowEndTick, stats.Mean))
			return false
		}
		return true
	})
	if err != nil {
		slog.Error("run failed", "tick", s.Tick(), "error", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	mean := s.Mean()
	writeEvent(out, telemetry.NewRunEndEvent(int32(s.Tick()), mean))

	if *outputDir != "" {
		path, err := saveFinalSnapshot(s, cfg, p, *outputDir)
		if err != nil {
			slog.Warn("failed to save snapshot", "error", err)
		} else {
			slog.Info("saved snapshot", "path", path)
		}
	}

	stepsPerSec := 0.0
	if elapsed > 0 {
		stepsPerSec = float64(s.Tick()) / elapsed.Seconds()
	}
	slog.Info("run complete",
		"ticks", s.Tick(),
		"mean", mean,
		"max", s.Max(),
		"elapsed_ms", elapsed.Milliseconds(),
		"steps_per_sec", int(stepsPerSec),
	)
}

func parseLogLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// paramsFromConfig assembles step parameters from the resolved config.
func paramsFromConfig(cfg *config.Config) (sim.Params, error) {
	kind, err := growth.ParseKind(cfg.Growth.Kind)
	if err != nil {
		return sim.Params{}, err
	}

	p := sim.Params{
		Kernel: kernel.Spec{
			Radius:  cfg.Kernel.Radius,
			Rings:   cfg.Kernel.Rings,
			Widths:  cfg.Kernel.Widths,
			Weights: cfg.Kernel.Weights,
		},
		Growth: growth.Params{Kind: kind, Mu: cfg.Growth.Mu, Sigma: cfg.Growth.Sigma},
		Dt:     cfg.Engine.DT,
	}

	if cfg.Feedback.Enabled {
		mode, err := sim.ParseFeedbackMode(cfg.Feedback.Mode)
		if err != nil {
			return sim.Params{}, err
		}
		p.Feedback = &sim.FeedbackSpec{
			Mode:    mode,
			Target:  cfg.Feedback.Target,
			Gain:    cfg.Feedback.Gain,
			Period:  cfg.Feedback.Period,
			ScaleLo: cfg.Feedback.ScaleLo,
			ScaleHi: cfg.Feedback.ScaleHi,
		}
	}

	return p, p.Validate()
}

func seedFromSnapshot(s *sim.State, path string) error {
	snap, err := telemetry.LoadSnapshot(path)
	if err != nil {
		return err
	}
	g, err := snap.Grid()
	if err != nil {
		return err
	}
	return s.SetField(g)
}

func saveFinalSnapshot(s *sim.State, cfg *config.Config, p sim.Params, dir string) (string, error) {
	host := field.New(s.Side())
	s.CopyField(host)

	snap := &telemetry.Snapshot{
		Version: telemetry.SnapshotVersion,
		Seed:    cfg.Grid.Seed,
		Tick:    int32(s.Tick()),
		Side:    s.Side(),
		Backend: s.BackendName(),
		Kernel:  telemetry.KernelToJSON(p.Kernel),
		Growth:  telemetry.GrowthToJSON(p.Growth),
		Dt:      p.Dt,
		Field:   host.Data,
	}
	return telemetry.SaveSnapshot(snap, dir)
}

func writeEvent(out *telemetry.OutputManager, e telemetry.Event) {
	if err := out.WriteEvent(e); err != nil {
		slog.Warn("failed to write event", "event", e.Name, "error", err)
	}
}
