package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"coupledsnakes/internal/logging"
	"coupledsnakes/pkg/config"
	"coupledsnakes/pkg/segmentation"
)

func main() {
	// Parse command line arguments
	inputFile := flag.String("input", "", "Image to segment (PNG, JPEG, TIFF or BMP)")
	outputDir := flag.String("output", "segmentation", "Directory for labels, overlay and curves")
	configPath := flag.String("config", "config.yaml", "YAML configuration file")
	initConfig := flag.Bool("init-config", false, "Write the default configuration to -config and exit")
	optimizerName := flag.String("optimizer", "", "Override the optimizer (implicit or greedy)")
	iterations := flag.Int("iterations", 0, "Override the maximum number of iterations")
	saveIntermediary := flag.Bool("save-intermediary", false, "Save intermediary results during processing")
	intermediaryDir := flag.String("intermediary-dir", "intermediary_results", "Directory to save intermediary results")
	verbose := flag.Bool("verbose", false, "Log every iteration")
	flag.Parse()

	if *initConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	// Validate inputs
	if *inputFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *optimizerName != "" {
		cfg.Snake.Optimizer = *optimizerName
	}
	if *iterations > 0 {
		cfg.Snake.MaxIterations = *iterations
	}
	if *saveIntermediary {
		cfg.Output.SaveIntermediaryResults = true
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	if cfg.Output.Verbose || *verbose {
		logging.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}

	fmt.Println("================================")
	fmt.Println("COUPLED ACTIVE CONTOURS")
	fmt.Println("Multi-object segmentation with overlap-penalized snakes")
	fmt.Println("================================")

	params := &segmentation.Params{
		InputFile:       *inputFile,
		OutputDir:       *outputDir,
		Config:          cfg,
		IntermediaryDir: *intermediaryDir,
	}
	segmenter := segmentation.NewSegmenter(params)

	fmt.Printf("Segmenting %s...\n", filepath.Base(*inputFile))
	startTime := time.Now()
	if err := segmenter.Process(); err != nil {
		log.Fatalf("Segmentation failed: %v", err)
	}
	processingTime := time.Since(startTime)

	metrics := segmenter.GetMetrics()
	fmt.Printf("\nSegmentation completed in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Results saved to: %s\n\n", *outputDir)

	fmt.Printf("Region Metrics:\n")
	fmt.Printf("=======================================\n")
	fmt.Printf("Curves: %d (%d stopped early)\n", metrics.Curves, metrics.Failed)
	fmt.Printf("Iterations: %d (converged: %v)\n", metrics.Iterations, metrics.Converged)
	fmt.Printf("Total energy: %.4f\n", metrics.Energy)
	fmt.Printf("Background: mean %.3f, std %.3f\n", metrics.MeanBackground, metrics.StdBackground)
	for i := range metrics.Areas {
		fmt.Printf("Label %d: %d px, mean %.3f, std %.3f\n",
			i+1, metrics.Areas[i], metrics.MeanInside[i], metrics.StdInside[i])
	}
	fmt.Printf("Contrast: %.3f\n", metrics.Contrast)
	fmt.Printf("Coverage: %.1f%%\n", metrics.Coverage*100)

	// Print information about intermediary results if saved
	if cfg.Output.SaveIntermediaryResults {
		fmt.Println("\nIntermediary results saved to:")
		fmt.Printf("%s\n", *intermediaryDir)
		fmt.Println("The following stages were saved:")
		fmt.Println("- 01_input: Working image luminance")
		fmt.Println("- 02_seeds: Initial curves")
		fmt.Println("- 03_evolution: Curves during optimization")
	}
}
