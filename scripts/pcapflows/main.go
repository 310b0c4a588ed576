package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"NetGauntlet/internal/engine/flowaggregator"
	"NetGauntlet/internal/model"
	"NetGauntlet/pkg/pcap"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/pcapflows/main.go <path_to_pcap_file> [flow_timeout_seconds]")
		os.Exit(1)
	}
	pcapFilePath := os.Args[1]

	flowTimeout := 60.0
	if len(os.Args) > 2 {
		v, err := strconv.ParseFloat(os.Args[2], 64)
		if err != nil {
			log.Fatalf("Invalid flow timeout %q: %v", os.Args[2], err)
		}
		flowTimeout = v
	}

	reader, err := pcap.NewReader(pcapFilePath, "")
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	var packets []model.PacketRecord
	for rec := range reader.Records() {
		packets = append(packets, rec)
	}

	flows := flowaggregator.PacketsToFlows(packets, flowTimeout)
	fmt.Printf("%d packets -> %d flows (timeout %.0fs)\n\n", len(packets), len(flows), flowTimeout)

	for i, f := range flows {
		fmt.Printf("[%03d] %s:%d -> %s:%d proto=%d pkts=%d bytes=%d dur=%.3fs pps=%.1f bps=%.1f iat=%.4f±%.4f\n",
			i+1,
			f.SrcIP, f.SrcPort,
			f.DstIP, f.DstPort,
			f.Protocol, f.PacketCount, f.TotalBytes,
			f.Duration, f.PacketsPerSecond, f.BytesPerSecond,
			f.IATMean, f.IATStd,
		)
	}
}
