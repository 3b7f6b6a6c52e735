// Package main runs a scenario file against an in-memory deployment and
// writes a Markdown report plus CSV tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"farm-ledger/internal/logging"
	"farm-ledger/internal/reporting"
	"farm-ledger/internal/scenario"
)

func main() {
	scenarioPath := flag.String("scenario", "", "Path to scenario YAML (required)")
	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	fixedTime := flag.String("generated-at", "", "RFC3339 timestamp for the report header (default: now)")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "Error: --scenario is required")
		os.Exit(2)
	}

	logger, err := logging.New("text", *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	sc, err := scenario.Load(*scenarioPath)
	if err != nil {
		logger.WithError(err).Fatal("load scenario")
	}

	ctx := context.Background()
	res, err := scenario.Run(ctx, sc, scenario.Options{Logger: logger})
	if err != nil {
		logger.WithError(err).Fatal("run scenario")
	}

	gen := reporting.NewGenerator(res.Events)
	if *fixedTime != "" {
		at, err := time.Parse(time.RFC3339, *fixedTime)
		if err != nil {
			logger.WithError(err).Fatal("--generated-at")
		}
		gen = gen.WithClock(func() time.Time { return at })
	}
	report, err := gen.Generate(ctx, res.Input)
	if err != nil {
		logger.WithError(err).Fatal("generate report")
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.WithError(err).Fatal("create output directory")
	}
	files := map[string]string{
		"REPORT.md":   reporting.RenderMarkdown(report),
		"holders.csv": reporting.RenderCSV(report.Holders),
		"steps.csv":   reporting.RenderStepsCSV(report.Steps),
	}
	for name, content := range files {
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			logger.WithError(err).WithField("file", path).Fatal("write output")
		}
	}

	fmt.Printf("%s: %d steps, %d failed, checks passed: %v\n",
		sc.Name, report.Summary.Steps, report.Summary.FailedSteps, report.AllChecksPassed)
	fmt.Printf("Output written to %s/\n", *outputDir)
	if res.Failed() {
		os.Exit(1)
	}
}
