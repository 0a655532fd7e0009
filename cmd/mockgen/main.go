package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"flow-metrics/cmd/mockgen/engine"
)

func main() {
	scenario := flag.String("scenario", "mild", "Scenario to generate: mild, chaos, drift")
	distribution := flag.String("distribution", "uniform", "Distribution to use: uniform, weibull")
	outDir := flag.String("out", "./mock", "Output directory for the snapshot and settings")
	count := flag.Int("count", 200, "Number of issues to generate")
	seed := flag.Int64("seed", 0, "Random seed (0 uses the clock)")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:     *scenario,
		Distribution: *distribution,
		Count:        *count,
		Now:          time.Now(),
		Seed:         *seed,
	}

	fmt.Printf("Generating scenario '%s' (Distribution: %s, Count: %d) to %s...\n", cfg.Scenario, cfg.Distribution, cfg.Count, *outDir)

	issues := engine.Generate(cfg)
	if err := engine.Save(*outDir, issues); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. Try: flow-metrics run -c %s -i %s\n",
		filepath.Join(*outDir, engine.SettingsFile), filepath.Join(*outDir, engine.SnapshotFile))
}
