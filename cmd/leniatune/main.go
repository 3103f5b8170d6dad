package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/lenia/config"
)

// formatDuration formats a duration as h/m/s for progress lines.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	species := flag.String("species", "", "Apply a named species preset before tuning")
	steps := flag.Int("steps", 600, "Simulation steps per run")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 120, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	dbPath := flag.String("db", "leniatune.db", "SQLite archive for runs and candidates")
	outputDir := flag.String("output", "", "Directory for the best config (empty = alongside the archive)")
	resume := flag.Bool("resume", false, "Start from the best archived candidate")
	flag.Parse()

	// Load base config
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()

	if *species != "" {
		if err := baseCfg.ApplySpecies(*species); err != nil {
			log.Fatalf("failed to apply species: %v", err)
		}
	}

	ctx := context.Background()
	store := NewStore(*dbPath)
	if err := store.Init(ctx); err != nil {
		log.Fatalf("failed to open archive: %v", err)
	}
	defer store.Close()

	runID := uuid.NewString()
	if err := store.SaveRun(ctx, Run{
		ID:        runID,
		StartedAt: time.Now(),
		Species:   *species,
		Steps:     *steps,
		Seeds:     *seeds,
		MaxEvals:  *maxEvals,
	}); err != nil {
		log.Fatalf("failed to record run: %v", err)
	}

	// Create parameter vector
	params := NewParamVector()
	dim := params.Dim()

	// Start from the base config's own dynamics, or the archived best.
	initRaw := params.Clamp(params.ExtractFromConfig(baseCfg))
	if *resume {
		best, ok, err := store.BestCandidate(ctx)
		if err != nil {
			log.Fatalf("failed to load archived best: %v", err)
		}
		if ok {
			initRaw = params.Clamp(best.Vector())
			fmt.Printf("Resuming from archived best: fitness=%.0f run=%s eval=%d\n",
				best.Fitness, best.RunID, best.Eval)
		}
	}
	initX := params.Normalize(initRaw)

	// Generate seeds for evaluation
	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	// Create fitness evaluator
	evaluator := NewFitnessEvaluator(params, *steps, evalSeeds, baseCfg)

	// Create optimization problem
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			// Denormalize to get raw parameter values
			raw := params.Denormalize(x)
			return evaluator.Evaluate(raw)
		},
	}

	// CMA-ES settings
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // Sequential evaluation; seeds parallelize inside
	}

	popSize := *population
	if popSize == 0 {
		// Auto-size: 4 + floor(3*ln(n))
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	// Track evaluations and timing
	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	// Wrap the function to archive and log evaluations
	originalFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		fitness := originalFunc(x)
		evalCount++

		// Archive the clamped values (these are the values actually used)
		raw := params.Denormalize(x)
		clamped := params.Clamp(raw)
		if fitness < bestFitness {
			bestFitness = fitness
			bestParams = make([]float64, len(clamped))
			copy(bestParams, clamped)
		}

		quality := evaluator.LastQuality()
		if err := store.SaveCandidate(ctx,
			candidateFromVector(runID, evalCount, fitness, quality, clamped)); err != nil {
			log.Printf("failed to archive candidate %d: %v", evalCount, err)
		}

		// Calculate timing
		elapsed := time.Since(startTime)
		avgPerEval := elapsed / time.Duration(evalCount)
		remaining := time.Duration(*maxEvals-evalCount) * avgPerEval

		// Fitness = -(survival × (1 + 0.2×quality)), so recover survival
		survival := -fitness / (1.0 + 0.2*quality)
		simulated := int64(evalCount) * int64(*steps) * int64(*seeds)
		fmt.Printf("Eval %d/%d: survived=%.0f steps quality=%.2f (best=%.0f) | %s sim steps, elapsed: %s, ETA: %s\n",
			evalCount, *maxEvals, survival, quality, bestFitness,
			humanize.Comma(simulated), formatDuration(elapsed), formatDuration(remaining))

		return fitness
	}

	// Run optimization
	fmt.Printf("Starting CMA-ES search: %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Seeds per evaluation: %d, steps per run: %s, run id: %s\n",
		*seeds, humanize.Comma(int64(*steps)), runID)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}

	// Use best params found (may be from any evaluation, not just final)
	if bestParams == nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}

	totalTime := time.Since(startTime)
	fmt.Printf("\nSearch complete after %d evaluations in %s\n", evalCount, formatDuration(totalTime))
	fmt.Printf("Best fitness: %.0f\n", bestFitness)

	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Name, bestParams[i])
	}

	// Save best config
	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to reload config: %v", err)
	}
	if *species != "" {
		if err := bestCfg.ApplySpecies(*species); err != nil {
			log.Fatalf("failed to apply species: %v", err)
		}
	}
	params.ApplyToConfig(bestCfg, bestParams)

	outDir := *outputDir
	if outDir == "" {
		outDir = filepath.Dir(*dbPath)
	}
	configOutPath := filepath.Join(outDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}
