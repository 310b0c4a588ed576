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
	"NetGauntlet/internal/traffic"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	log.Println("Starting ng-traffic...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Traffic.BaseHost == "" {
		log.Fatalf("traffic.base_host is required")
	}

	// 2. Build the detector client, the sink and the simulator
	requestTimeout, err := time.ParseDuration(cfg.Detector.RequestTimeout)
	if err != nil {
		log.Fatalf("Failed to parse detector request_timeout: %v", err)
	}
	client := detector.NewClient(cfg.Detector.BaseURL, requestTimeout)

	sink, err := results.NewWriter(cfg.Traffic.OutputPath)
	if err != nil {
		log.Fatalf("Failed to open traffic log: %v", err)
	}
	defer sink.Close()

	sim, err := traffic.NewSimulator(cfg.Traffic, cfg.Detector, client, sink)
	if err != nil {
		log.Fatalf("Failed to create simulator: %v", err)
	}

	// 3. Run the simulation, stopping cleanly on the first interrupt
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, stopping after the current scenario...")
		cancel()
	}()

	if err := sim.Run(ctx); err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
	log.Printf("Traffic records written to %s", cfg.Traffic.OutputPath)
}
