package main

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"NetGauntlet/internal/model"
)

// Decodes the gob-encoded packet dumps written by the probe's persistence
// worker and prints them in the same shape as its text encoding.
func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana/main.go <gob_dump_file>")
		os.Exit(1)
	}
	gobFile := os.Args[1]

	file, err := os.Open(gobFile)
	if err != nil {
		log.Fatalf("Unable to open file: %v", err)
	}
	defer file.Close()

	decoder := gob.NewDecoder(file)

	count := 0
	for {
		var rec model.PacketRecord
		if err := decoder.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			log.Fatalf("Failed to decode record %d: %v", count+1, err)
		}
		count++
		fmt.Printf("%.6f - %s:%d -> %s:%d, Proto: %s, Len: %d\n",
			rec.Timestamp, rec.SrcIP, rec.SrcPort, rec.DstIP, rec.DstPort, rec.Protocol, rec.Length)
	}

	fmt.Printf("\n%d records decoded from %s\n", count, gobFile)
}
