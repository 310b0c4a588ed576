package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"NetGauntlet/internal/archive"
	"NetGauntlet/internal/capture"
	"NetGauntlet/internal/config"
	"NetGauntlet/internal/detector"
	"NetGauntlet/internal/extractor"
	"NetGauntlet/internal/model"
	"NetGauntlet/internal/probe"
	"NetGauntlet/internal/results"
	"NetGauntlet/pkg/pcap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Parse()

	log.Println("Starting ng-extractor...")

	// 1. Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Open the packet source
	source, err := openSource(cfg)
	if err != nil {
		log.Fatalf("Failed to open packet source: %v", err)
	}
	defer source.Close()

	// 3. Optional flow archive
	var flowArchive model.FlowWriter
	if cfg.Archive.Enabled {
		w, err := archive.NewClickHouseWriter(cfg.Archive.ClickHouse)
		if err != nil {
			log.Fatalf("Failed to connect to ClickHouse: %v", err)
		}
		defer w.Close()
		flowArchive = w
	}

	// 4. Detector client, submission log and pipeline
	requestTimeout, err := time.ParseDuration(cfg.Detector.RequestTimeout)
	if err != nil {
		log.Fatalf("Failed to parse detector request_timeout: %v", err)
	}
	client := detector.NewClient(cfg.Detector.BaseURL, requestTimeout)

	sink, err := results.NewWriter(cfg.Capture.OutputPath)
	if err != nil {
		log.Fatalf("Failed to open submission log: %v", err)
	}
	defer sink.Close()

	pipeline, err := extractor.NewPipeline(cfg.Capture, cfg.Detector, source, client, sink, flowArchive)
	if err != nil {
		log.Fatalf("Failed to create pipeline: %v", err)
	}

	// 5. Run capture cycles until the source is exhausted or interrupted
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, stopping after the current cycle...")
		cancel()
	}()

	if err := pipeline.Run(ctx); err != nil {
		log.Fatalf("Pipeline failed: %v", err)
	}
	log.Println("Extraction complete.")
}

// openSource picks the packet source from configuration: a live capture, an
// offline pcap file, or the NATS probe subject.
func openSource(cfg *config.Config) (model.PacketSource, error) {
	switch cfg.Capture.Source {
	case "live":
		return capture.NewLiveSource(cfg.Capture)
	case "pcap":
		return pcap.NewReader(cfg.Capture.PcapPath, cfg.Capture.BPF)
	case "nats":
		return probe.NewNATSSource(cfg.Probe)
	default:
		return nil, fmt.Errorf("unknown capture source %q", cfg.Capture.Source)
	}
}
