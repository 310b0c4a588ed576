package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/detector"
)

// Smoke-tests the detector service: submits a flow payload and waits for the
// verdict, the same round trip the extractor performs.
func main() {
	// 1. Parse command-line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	payloadFile := flag.String("f", "", "File with the JSON flow payload to submit.")
	flag.Parse()

	// 2. Load the payload from the file or from non-flag arguments
	var payload []byte
	switch {
	case *payloadFile != "":
		data, err := os.ReadFile(*payloadFile)
		if err != nil {
			log.Fatalf("Failed to read payload file: %v", err)
		}
		payload = data
	case flag.NArg() > 0:
		payload = []byte(strings.Join(flag.Args(), " "))
	default:
		log.Fatalf("Error: A payload is required. Use -f or provide inline JSON as an argument.")
	}
	if !json.Valid(payload) {
		log.Fatalf("Payload is not valid JSON.")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	requestTimeout, err := time.ParseDuration(cfg.Detector.RequestTimeout)
	if err != nil {
		log.Fatalf("Failed to parse detector request_timeout: %v", err)
	}
	submitTimeout, err := time.ParseDuration(cfg.Detector.SubmitTimeout)
	if err != nil {
		log.Fatalf("Failed to parse detector submit_timeout: %v", err)
	}
	submitPoll, err := time.ParseDuration(cfg.Detector.SubmitPoll)
	if err != nil {
		log.Fatalf("Failed to parse detector submit_poll: %v", err)
	}

	// 3. Submit and wait for the verdict
	client := detector.NewClient(cfg.Detector.BaseURL, requestTimeout)
	log.Printf("Submitting %d bytes to %s... (waiting for verdict)", len(payload), cfg.Detector.BaseURL)

	res := client.SubmitAndAwait(context.Background(), json.RawMessage(payload), submitTimeout, submitPoll)
	if !res.OK() {
		log.Fatalf("Detector error: %s (%s)", res.ErrKind, res.Detail)
	}

	// 4. Pretty-print the verdict
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, res.Verdict, "", "  "); err != nil {
		fmt.Println(string(res.Verdict))
		return
	}
	log.Printf("Verdict for execution %s:", res.ExecutionID)
	fmt.Println(prettyJSON.String())
}
