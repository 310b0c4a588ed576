package main

import (
	"flag"
	"fmt"
	"log"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/eval"
)

func main() {
	// 1. Parse flags; positional arguments override the configured inputs
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	threshold := flag.Float64("threshold", eval.DefaultThreshold, "Probability threshold for classifying a record as an attack.")
	outPath := flag.String("out", "results/metrics_report.json", "Path for the JSON metrics report.")
	csvPath := flag.String("csv", "results/metrics_report.csv", "Path for the per-record CSV detail.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	inputs := flag.Args()
	if len(inputs) == 0 {
		inputs = []string{cfg.Runner.OutputPath, cfg.Traffic.OutputPath}
	}

	// 2. Load the labelled records produced by the runner and the simulator
	records, err := eval.LoadRecords(inputs)
	if err != nil {
		log.Fatalf("Failed to load records: %v", err)
	}
	if len(records) == 0 {
		log.Fatalf("No records found in %v, nothing to evaluate.", inputs)
	}

	// 3. Score every record against the threshold and build the report
	report, rows := eval.Evaluate(records, *threshold)

	if err := report.SaveJSON(*outPath); err != nil {
		log.Fatalf("Failed to write JSON report: %v", err)
	}
	if err := eval.SaveCSV(*csvPath, rows); err != nil {
		log.Fatalf("Failed to write CSV detail: %v", err)
	}

	fmt.Println(report.Summary())
	log.Printf("Report written to %s, detail to %s", *outPath, *csvPath)
}
