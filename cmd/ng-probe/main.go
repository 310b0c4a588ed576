package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"NetGauntlet/internal/capture"
	"NetGauntlet/internal/config"
	"NetGauntlet/internal/model"
	"NetGauntlet/internal/probe"
	"NetGauntlet/internal/probe/persistent"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	mode := flag.String("mode", "pub", "Operating mode: 'pub' to capture and publish, 'sub' to subscribe.")
	iface := flag.String("iface", "", "Interface to capture from (overrides capture.interface).")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *iface != "" {
		cfg.Capture.Interface = *iface
	}

	switch *mode {
	case "pub":
		runPublisher(cfg)
	case "sub":
		runSubscriber(cfg)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// runPublisher captures packets on the configured interface and publishes
// every record to the probe subject, optionally dumping them locally.
func runPublisher(cfg *config.Config) {
	if cfg.Capture.Interface == "" {
		log.Fatalf("An interface is required for pub mode (capture.interface or -iface).")
	}
	log.Printf("Starting ng-probe in PUBLISH mode on interface %s", cfg.Capture.Interface)

	pub, err := probe.NewPublisher(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	source, err := capture.NewLiveSource(cfg.Capture)
	if err != nil {
		log.Fatalf("Failed to open capture: %v", err)
	}
	defer source.Close()

	dump := openDump(cfg)
	if dump != nil {
		defer dump.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		published := 0
		for rec := range source.Records() {
			if err := pub.Publish(rec); err != nil {
				log.Printf("Failed to publish packet: %v", err)
			}
			if dump != nil {
				dump.Enqueue(rec)
			}
			published++
			if published%1000 == 0 {
				log.Printf("%d packets published...", published)
			}
		}
	}()

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
}

// runSubscriber consumes the probe subject, printing or dumping each record.
func runSubscriber(cfg *config.Config) {
	log.Printf("Starting ng-probe in SUBSCRIBE mode on subject %s", cfg.Probe.Subject)

	sub, err := probe.NewSubscriber(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	defer sub.Close()

	dump := openDump(cfg)
	if dump != nil {
		defer dump.Stop()
	}

	handler := func(rec model.PacketRecord) {
		if dump != nil {
			dump.Enqueue(rec)
			return
		}
		log.Printf("Received packet: %+v", rec)
	}
	if err := sub.Start(handler); err != nil {
		log.Fatalf("Subscriber failed to start: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
}

func openDump(cfg *config.Config) *persistent.Worker {
	if !cfg.Probe.Dump.Enabled {
		return nil
	}
	w, err := persistent.NewWorker(cfg.Probe.Dump)
	if err != nil {
		log.Fatalf("Failed to start dump worker: %v", err)
	}
	log.Printf("Dumping packet records to %s (%s)", cfg.Probe.Dump.Path, cfg.Probe.Dump.Encoding)
	return w
}
