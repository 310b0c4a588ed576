package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/detector"
	"NetGauntlet/internal/results"
)

func main() {
	// 1. Load configuration
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Build the analyzer and the request log
	analyzer, err := detector.NewFlowAnalyzer(&cfg.Service.AI)
	if err != nil {
		log.Fatalf("Failed to create flow analyzer: %v", err)
	}

	requestLog, err := results.NewWriter(cfg.Service.RequestLog)
	if err != nil {
		log.Fatalf("Failed to open request log: %v", err)
	}
	defer requestLog.Close()

	// 3. Assemble the analysis service
	svc, err := detector.NewService(cfg.Service, analyzer, requestLog)
	if err != nil {
		log.Fatalf("Failed to create detector service: %v", err)
	}
	svc.Start()

	server := &http.Server{
		Addr:    cfg.Service.ListenAddr,
		Handler: svc.Router(),
	}

	// 4. Serve until interrupted
	go func() {
		log.Printf("Detector service listening on %s (model: %s)", cfg.Service.ListenAddr, cfg.Service.AI.Model)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// 5. Graceful shutdown: stop accepting requests, then drain the workers
	log.Println("Shutdown signal received, stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown: %v", err)
	}
	svc.Stop()
	log.Println("Detector service stopped.")
}
