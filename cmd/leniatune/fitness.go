package main

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/lenia/config"
	"github.com/pthm-cable/lenia/conv"
	"github.com/pthm-cable/lenia/growth"
	"github.com/pthm-cable/lenia/kernel"
	"github.com/pthm-cable/lenia/sim"
	"github.com/pthm-cable/lenia/telemetry"
)

// A run counts as dead outside this mean band.
const (
	extinctionMean = 1e-3
	saturationMean = 0.95
)

// Windows skipped before quality scoring; early transients say little
// about the settled dynamics.
const qualityWarmupWindows = 2

// Quality component weights.
const (
	qualityWeightBand      = 0.35
	qualityWeightStability = 0.25
	qualityWeightStructure = 0.25
	qualityWeightContrast  = 0.15
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	steps      int
	seeds      []int64
	baseConfig *config.Config

	// Best run tracking
	mu          sync.Mutex
	bestFitness float64
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, steps int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		steps:       steps,
		seeds:       seeds,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// runResult holds the results from a single simulation run.
type runResult struct {
	survivalSteps int // steps before the field died (or steps if it survived)
	windows       []telemetry.WindowStats
}

type seedResult struct {
	fitness float64
	quality float64
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is negative survival steps: longer survival = lower (better)
// fitness, with a quality bonus of up to 20%.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	// Run all seeds in parallel
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			result := fe.runSimulation(x, s)
			quality := fe.computeQuality(result.windows)
			results[idx] = seedResult{
				fitness: fe.computeFitness(result, quality),
				quality: quality,
			}
		}(i, seed)
	}
	wg.Wait()

	// Aggregate results
	var totalFitness, totalQuality float64
	for _, r := range results {
		totalFitness += r.fitness
		totalQuality += r.quality
	}

	n := float64(len(fe.seeds))
	avgFitness := totalFitness / n

	fe.mu.Lock()
	if avgFitness < fe.bestFitness {
		fe.bestFitness = avgFitness
	}
	fe.lastQuality = totalQuality / n
	fe.mu.Unlock()

	return avgFitness
}

// runSimulation executes a single headless simulation run. It stops at the
// first stats window whose mean has left the viable band.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) *runResult {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	result := &runResult{}

	s, err := sim.New(sim.Options{
		Side:    cfg.Grid.Side,
		Pattern: cfg.Grid.Pattern,
		Seed:    seed,
		Backend: conv.FrequencyDomain,
	})
	if err != nil {
		return result
	}
	defer s.Backend().Release()

	p, err := stepParams(cfg)
	if err != nil {
		return result
	}

	collector := telemetry.NewCollector(cfg.Derived.WindowSteps, cfg.Engine.DT)

	died := false
	err = s.Run(p, fe.steps, sim.Euler, func(step int, st *sim.State) bool {
		stats, flushed := collector.Observe(st)
		if !flushed {
			return true
		}
		result.windows = append(result.windows, stats)
		if stats.Mean < extinctionMean || stats.Mean > saturationMean {
			died = true
			return false
		}
		return true
	})
	if err != nil {
		return result
	}

	if died {
		result.survivalSteps = s.Tick()
	} else {
		result.survivalSteps = fe.steps
	}
	return result
}

// copyConfig clones the base config. ApplyToConfig replaces the kernel
// slices wholesale, so a value copy is enough.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	clone := *fe.baseConfig
	return &clone
}

// stepParams assembles step parameters from a tuned config.
func stepParams(cfg *config.Config) (sim.Params, error) {
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

// computeFitness calculates the scalar fitness (lower = better).
// Formula: -(survivalSteps × (1.0 + 0.2 × quality))
// Survival dominates; quality adds up to 20% bonus to differentiate
// configs with similar survival.
func (fe *FitnessEvaluator) computeFitness(r *runResult, quality float64) float64 {
	survival := float64(r.survivalSteps)
	return -(survival * (1.0 + 0.2*quality))
}

// computeQuality scores the settled dynamics in [0, 1] from window stats.
func (fe *FitnessEvaluator) computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= qualityWarmupWindows {
		return 0
	}
	valid := windows[qualityWarmupWindows:]

	var bandSum, structureSum, contrastSum float64
	means := make([]float64, 0, len(valid))

	for _, w := range valid {
		means = append(means, w.Mean)

		// 1. Mean band score: dynamics live in the middle densities
		bandErr := (w.Mean - 0.25) / 0.20
		bandSum += math.Exp(-bandErr * bandErr)

		// 2. Structure score: neither empty nor full coverage
		structureSum += 4 * w.ActiveFrac * (1 - w.ActiveFrac)

		// 3. Contrast score: a flat field has no creatures in it
		spread := w.P90 - w.P10
		contrastSum += 1 - math.Exp(-spread/0.2)
	}

	n := float64(len(valid))
	bandScore := bandSum / n
	structureScore := structureSum / n
	contrastScore := contrastSum / n

	// 4. Stability: low variation of the mean across windows
	stabilityScore := 0.0
	if len(means) >= 2 {
		m := stat.Mean(means, nil)
		if m > 0 {
			cv := stat.StdDev(means, nil) / m
			stabilityScore = math.Exp(-cv * cv)
		}
	}

	quality := qualityWeightBand*bandScore +
		qualityWeightStability*stabilityScore +
		qualityWeightStructure*structureScore +
		qualityWeightContrast*contrastScore

	return clamp01(quality)
}

// clamp01 clamps x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
