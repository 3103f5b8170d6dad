// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrUnknownSpecies is returned when a species name is not configured.
var ErrUnknownSpecies = errors.New("unknown species")

// Config holds all simulation configuration parameters.
type Config struct {
	Grid        GridConfig        `yaml:"grid"`
	Engine      EngineConfig      `yaml:"engine"`
	Kernel      KernelConfig      `yaml:"kernel"`
	Growth      GrowthConfig      `yaml:"growth"`
	Feedback    FeedbackConfig    `yaml:"feedback"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Species     []SpeciesConfig   `yaml:"species"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// GridConfig holds the field dimensions and seeding.
type GridConfig struct {
	Side    int    `yaml:"side"`
	Pattern string `yaml:"pattern"` // noise, blob, sprinkle, fragments, plasma
	Seed    int64  `yaml:"seed"`
}

// EngineConfig holds the stepping machinery settings.
type EngineConfig struct {
	Backend      string  `yaml:"backend"`       // frequency, spatial, device
	DeviceEngine string  `yaml:"device_engine"` // engine name for the device backend ("" = default)
	Integrator   string  `yaml:"integrator"`    // euler, midpoint, rk4
	Threads      int     `yaml:"threads"`       // worker count (0 = all cores)
	DT           float64 `yaml:"dt"`
}

// KernelConfig holds the ring-mixture kernel shape.
type KernelConfig struct {
	Radius  int       `yaml:"radius"`
	Rings   []float64 `yaml:"rings"`
	Widths  []float64 `yaml:"widths"`
	Weights []float64 `yaml:"weights"`
}

// GrowthConfig holds the growth function parameters.
type GrowthConfig struct {
	Kind  string  `yaml:"kind"` // gaussian, quartic
	Mu    float64 `yaml:"mu"`
	Sigma float64 `yaml:"sigma"`
}

// FeedbackConfig holds the homeostatic controller parameters.
type FeedbackConfig struct {
	Enabled bool    `yaml:"enabled"`
	Mode    string  `yaml:"mode"` // additive, rescale
	Target  float64 `yaml:"target"`
	Gain    float64 `yaml:"gain"`
	Period  int     `yaml:"period"`
	ScaleLo float64 `yaml:"scale_lo"`
	ScaleHi float64 `yaml:"scale_hi"`
}

// CalibrationConfig holds the one-shot pre-run calibration settings.
type CalibrationConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Target    float64 `yaml:"target"`
	Statistic string  `yaml:"statistic"` // mean, median
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow int `yaml:"stats_window"` // steps per stats window
	PerfWindow  int `yaml:"perf_window"`  // steps averaged per perf report
}

// SpeciesConfig is a named preset bundling dynamics that produce a known
// morphology. Unset fields inherit the base config.
type SpeciesConfig struct {
	Name     string          `yaml:"name"`
	Pattern  string          `yaml:"pattern"`
	Kernel   KernelConfig    `yaml:"kernel"`
	Growth   GrowthConfig    `yaml:"growth"`
	DT       float64         `yaml:"dt"`
	Feedback *FeedbackConfig `yaml:"feedback"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DT32         float32        // Engine.DT as float32
	Workers      int            // effective worker count
	WindowSteps  int            // effective stats window
	SpeciesIndex map[string]int // name -> index for species lookup
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Compute derived values
	cfg.computeDerived()

	return cfg, nil
}

// Refresh recomputes derived values after direct field edits, such as
// command line overrides applied on top of a loaded config.
func (c *Config) Refresh() {
	c.computeDerived()
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = float32(c.Engine.DT)

	workers := c.Engine.Threads
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	c.Derived.Workers = workers

	window := c.Telemetry.StatsWindow
	if window < 1 {
		window = 50
	}
	c.Derived.WindowSteps = window

	// Synthesize default species if none specified
	if len(c.Species) == 0 {
		c.Species = []SpeciesConfig{
			{
				Name:    "orbium",
				Pattern: "blob",
				Kernel: KernelConfig{
					Radius: 13, Rings: []float64{0.5},
					Widths: []float64{0.15}, Weights: []float64{1.0},
				},
				Growth: GrowthConfig{Kind: "gaussian", Mu: 0.15, Sigma: 0.017},
				DT:     0.1,
			},
			{
				Name:    "labyrinth",
				Pattern: "sprinkle",
				Kernel: KernelConfig{
					Radius: 13, Rings: []float64{0.5},
					Widths: []float64{0.15}, Weights: []float64{1.0},
				},
				Growth: GrowthConfig{Kind: "gaussian", Mu: 0.30, Sigma: 0.057},
				DT:     0.1,
				Feedback: &FeedbackConfig{
					Enabled: true, Mode: "additive",
					Target: 0.18, Gain: 18, Period: 4,
				},
			},
			{
				Name:    "soliton-field",
				Pattern: "plasma",
				Kernel: KernelConfig{
					Radius: 10, Rings: []float64{0.25, 0.75},
					Widths: []float64{0.08, 0.1}, Weights: []float64{0.7, 0.3},
				},
				Growth: GrowthConfig{Kind: "quartic", Mu: 0.25, Sigma: 0.04},
				DT:     0.05,
				Feedback: &FeedbackConfig{
					Enabled: true, Mode: "rescale",
					Target: 0.12, Period: 8,
					ScaleLo: 0.5, ScaleHi: 2.0,
				},
			},
		}
	}

	// Apply base values to species that don't specify all fields
	for i := range c.Species {
		sp := &c.Species[i]
		if sp.Pattern == "" {
			sp.Pattern = c.Grid.Pattern
		}
		if sp.Kernel.Radius == 0 {
			sp.Kernel = c.Kernel
		}
		if sp.Growth.Sigma == 0 {
			sp.Growth = c.Growth
		}
		if sp.DT == 0 {
			sp.DT = c.Engine.DT
		}
	}

	// Build species index for fast lookup
	c.Derived.SpeciesIndex = make(map[string]int, len(c.Species))
	for i, sp := range c.Species {
		c.Derived.SpeciesIndex[sp.Name] = i
	}
}

// ApplySpecies overlays a named species preset onto the base config.
func (c *Config) ApplySpecies(name string) error {
	idx, ok := c.Derived.SpeciesIndex[name]
	if !ok {
		names := make([]string, 0, len(c.Species))
		for _, sp := range c.Species {
			names = append(names, sp.Name)
		}
		return fmt.Errorf("%w: %q (have %s)", ErrUnknownSpecies, name, strings.Join(names, ", "))
	}

	sp := c.Species[idx]
	c.Grid.Pattern = sp.Pattern
	c.Kernel = sp.Kernel
	c.Growth = sp.Growth
	c.Engine.DT = sp.DT
	if sp.Feedback != nil {
		c.Feedback = *sp.Feedback
	} else {
		c.Feedback.Enabled = false
	}

	c.Derived.DT32 = float32(c.Engine.DT)
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
