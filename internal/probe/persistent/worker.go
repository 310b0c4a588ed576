package persistent

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/model"
)

// Worker persists the captured packet records to disk next to publishing
// them, so a capture session can be replayed or audited later.
type Worker struct {
	recordChan chan model.PacketRecord
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// NewWorker creates and starts a persistence worker pool.
func NewWorker(cfg config.PersistenceConfig) (*Worker, error) {
	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create persistence directory: %w", err)
	}

	bufferSize := cfg.ChannelBufferSize
	if bufferSize <= 0 {
		bufferSize = 10000
	}

	w := &Worker{
		recordChan: make(chan model.PacketRecord, bufferSize),
		stopChan:   make(chan struct{}),
	}
	if err := w.start(cfg); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Worker) start(cfg config.PersistenceConfig) error {
	file, err := w.createOutputFile(cfg)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}

	var workerFunc func(file *os.File)
	switch cfg.Encoding {
	case "jsonl":
		workerFunc = w.runJSONLWorker
	case "text":
		workerFunc = w.runTextWorker
	case "gob":
		workerFunc = w.runGobWorker
	default:
		file.Close()
		return fmt.Errorf("unknown dump encoding %q", cfg.Encoding)
	}

	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = 1 // single writer keeps records in capture order
	}

	w.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer w.wg.Done()
			workerFunc(file)
		}()
	}

	go func() {
		<-w.stopChan
		close(w.recordChan)
		w.wg.Wait()
		if err := file.Close(); err != nil {
			log.Printf("PersistentWorker: Error closing file: %v", err)
		}
		log.Println("Persistent worker stopped and file closed.")
	}()

	log.Printf("Persistent worker started with %d goroutines, encoding: %s, writing to: %s", numWorkers, cfg.Encoding, file.Name())
	return nil
}

func (w *Worker) createOutputFile(cfg config.PersistenceConfig) (*os.File, error) {
	ext := ".log"
	switch cfg.Encoding {
	case "jsonl":
		ext = ".jsonl"
	case "gob":
		ext = ".gob"
	}
	fileName := fmt.Sprintf("%s%s", time.Now().Format("2006-01-02_15-04-05"), ext)
	return os.OpenFile(filepath.Join(cfg.Path, fileName), os.O_CREATE|os.O_WRONLY, 0644)
}

func (w *Worker) runJSONLWorker(file *os.File) {
	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for rec := range w.recordChan {
		if err := encoder.Encode(rec); err != nil {
			log.Printf("PersistentWorker (jsonl): Error encoding record: %v", err)
		}
	}
	writer.Flush()
}

func (w *Worker) runTextWorker(file *os.File) {
	writer := bufio.NewWriter(file)
	for rec := range w.recordChan {
		line := fmt.Sprintf("%.6f - %s:%d -> %s:%d, Proto: %s, Len: %d\n",
			rec.Timestamp, rec.SrcIP, rec.SrcPort, rec.DstIP, rec.DstPort, rec.Protocol, rec.Length)
		if _, err := writer.WriteString(line); err != nil {
			log.Printf("PersistentWorker (text): Error writing record: %v", err)
		}
	}
	writer.Flush()
}

func (w *Worker) runGobWorker(file *os.File) {
	encoder := gob.NewEncoder(file)
	for rec := range w.recordChan {
		if err := encoder.Encode(rec); err != nil {
			log.Printf("PersistentWorker (gob): Error encoding record: %v", err)
		}
	}
}

// Stop gracefully shuts down the worker pool.
func (w *Worker) Stop() {
	close(w.stopChan)
}

// Enqueue hands a record to the workers, dropping it when the buffer is full
// so the capture path never blocks on disk.
func (w *Worker) Enqueue(rec model.PacketRecord) {
	select {
	case w.recordChan <- rec:
	default:
		log.Println("PersistentWorker: Channel is full, dropping record.")
	}
}
