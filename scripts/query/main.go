package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/query"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	mode := flag.String("mode", "top", "Query mode: 'top' for source ranking, 'trace' for one flow's lifecycle.")
	limit := flag.Int("limit", 10, "Limit for the top-sources ranking.")
	since := flag.Duration("since", 24*time.Hour, "Look-back window, e.g. 30m or 24h.")
	dstIP := flag.String("dst", "", "Restrict to flows towards this destination IP (optional).")
	flowKey := flag.String("key", "", "Flow keys for trace mode (e.g. \"SrcIP=192.168.56.2,DstPort=80\").")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	q, err := query.NewClickHouseQuerier(cfg.Archive.ClickHouse)
	if err != nil {
		log.Fatalf("Failed to connect to the flow archive: %v", err)
	}
	defer q.Close()

	filter := query.Filter{
		Since: time.Now().Add(-*since),
		DstIP: *dstIP,
	}

	switch *mode {
	case "top":
		runTopSources(q, filter, *limit)
	case "trace":
		runTrace(q, filter, *flowKey)
	default:
		log.Fatalf("Invalid mode: %s. Use 'top' or 'trace'.", *mode)
	}
}

func runTopSources(q query.Querier, filter query.Filter, limit int) {
	summaries, err := q.TopSources(context.Background(), filter, limit)
	if err != nil {
		log.Fatalf("Top-sources query failed: %v", err)
	}
	if len(summaries) == 0 {
		log.Println("No archived flows matched the criteria.")
		return
	}

	fmt.Println("--- Top Sources by Packet Volume ---")
	for i, s := range summaries {
		fmt.Printf("%2d. %s\n", i+1, s.SrcIP)
		fmt.Printf("    Flows: %d  Packets: %d  Bytes: %d  AvgPPS: %.1f\n",
			s.FlowCount, s.TotalPackets, s.TotalBytes, s.AvgPPS)
	}
}

func runTrace(q query.Querier, filter query.Filter, flowKey string) {
	if flowKey == "" {
		log.Fatal("Error: -key is required for trace mode.")
	}

	keys := map[string]string{}
	for _, pair := range strings.Split(flowKey, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			log.Fatalf("Invalid key pair %q, expected Column=value.", pair)
		}
		keys[parts[0]] = parts[1]
	}

	lifecycle, err := q.TraceFlow(context.Background(), keys, filter)
	if err != nil {
		log.Fatalf("Trace query failed: %v", err)
	}

	fmt.Println("--- Flow Lifecycle ---")
	fmt.Printf("FirstSeen:    %s\n", lifecycle.FirstSeen.Format(time.RFC3339))
	fmt.Printf("LastSeen:     %s\n", lifecycle.LastSeen.Format(time.RFC3339))
	fmt.Printf("Segments:     %d\n", lifecycle.Segments)
	fmt.Printf("TotalPackets: %d\n", lifecycle.TotalPackets)
	fmt.Printf("TotalBytes:   %d\n", lifecycle.TotalBytes)
}
