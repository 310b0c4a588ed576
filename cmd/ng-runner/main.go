package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/detector"
	"NetGauntlet/internal/results"
	"NetGauntlet/internal/runner"
	"NetGauntlet/internal/watchdog"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	log.Println("Starting ng-runner...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if len(cfg.Scenarios) == 0 {
		log.Fatalf("No scenarios configured in %s", *configPath)
	}
	if info, err := os.Stat(cfg.Runner.Workdir); err != nil || !info.IsDir() {
		log.Fatalf("Workdir %q does not exist, adjust runner.workdir", cfg.Runner.Workdir)
	}

	// 2. Build the detector client, the watchdog and the result sink
	requestTimeout, err := time.ParseDuration(cfg.Detector.RequestTimeout)
	if err != nil {
		log.Fatalf("Failed to parse detector request_timeout: %v", err)
	}
	client := detector.NewClient(cfg.Detector.BaseURL, requestTimeout)

	wd, err := watchdog.NewWatchdog(cfg.Watchdog, cfg.Runner.Workdir)
	if err != nil {
		log.Fatalf("Failed to create watchdog: %v", err)
	}

	sink, err := results.NewWriter(cfg.Runner.OutputPath)
	if err != nil {
		log.Fatalf("Failed to open result log: %v", err)
	}
	defer sink.Close()

	r, err := runner.NewRunner(cfg.Runner, cfg.Watchdog, cfg.Detector, cfg.Scenarios, wd, client, sink)
	if err != nil {
		log.Fatalf("Failed to create runner: %v", err)
	}

	// 3. Run every scenario, stopping cleanly on the first interrupt
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, stopping after the current scenario...")
		cancel()
	}()

	if err := r.RunAll(ctx); err != nil {
		log.Fatalf("Run failed: %v", err)
	}
	log.Printf("All scenarios complete. Results recorded in %s", cfg.Runner.OutputPath)
}
