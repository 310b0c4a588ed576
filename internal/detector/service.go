package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/process"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/model"
	"NetGauntlet/internal/results"
)

const (
	// maxSubmitBytes bounds how much payload a single submission may carry.
	maxSubmitBytes = 4 << 20

	// analysisTimeout caps one model call; a stuck backend must not wedge the
	// worker forever.
	analysisTimeout = 2 * time.Minute
)

// job is one queued analysis.
type job struct {
	id      string
	payload string
}

// Service is the detector HTTP boundary: it accepts flow submissions, runs
// the analyzer on a background worker, and serves verdicts from a bounded
// execution-id cache. Handlers never block on the model call.
type Service struct {
	analyzer model.Analyzer
	cache    *ResultCache
	requests *results.Writer // may be nil
	jobs     chan job
	wg       sync.WaitGroup
	proc     *process.Process

	mu   sync.Mutex
	last json.RawMessage
}

// NewService builds the boundary service. requestLog may be nil to disable
// the per-request log.
func NewService(cfg config.ServiceConfig, analyzer model.Analyzer, requestLog *results.Writer) (*Service, error) {
	ttl, err := time.ParseDuration(cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service cache_ttl: %w", err)
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		proc = nil
	}

	return &Service{
		analyzer: analyzer,
		cache:    NewResultCache(cfg.CacheCapacity, ttl),
		requests: requestLog,
		jobs:     make(chan job, cfg.QueueSize),
		proc:     proc,
	}, nil
}

// Start launches the analysis worker.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.runWorker()
	log.Println("Detector service worker started.")
}

// Stop drains the queue and waits for the worker. Call only after the HTTP
// server has stopped accepting requests.
func (s *Service) Stop() {
	close(s.jobs)
	s.wg.Wait()
	log.Println("Detector service worker stopped.")
}

// Router returns the HTTP routes of the boundary service.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/submit", s.handleSubmit).Methods(http.MethodPost)
	r.HandleFunc("/result/{id}", s.handleResult).Methods(http.MethodGet)
	r.HandleFunc("/last-result", s.handleLastResult).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	return r
}

func (s *Service) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmitBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable_body"})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_json"})
		return
	}

	id := uuid.NewString()
	select {
	case s.jobs <- job{id: id, payload: string(body)}:
		writeJSON(w, http.StatusAccepted, map[string]string{"executionId": id})
	default:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue_full"})
	}
}

func (s *Service) handleResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	verdict, ok := s.cache.Take(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "result_not_found"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(verdict)
}

func (s *Service) handleLastResult(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no_analysis_yet"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(last)
}

func (s *Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Service) runWorker() {
	defer s.wg.Done()
	for j := range s.jobs {
		s.analyze(j)
	}
}

func (s *Service) analyze(j job) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
	defer cancel()

	raw, err := s.analyzer.AnalyzeFlows(ctx, j.payload)
	if err != nil {
		log.Printf("Analysis %s failed: %v", j.id, err)
		s.storeFailure(j, start, err)
		return
	}

	verdict, err := ParseVerdict(raw)
	if err != nil {
		log.Printf("Analysis %s returned an unparseable answer: %v", j.id, err)
		s.storeFailure(j, start, err)
		return
	}

	encoded, err := json.Marshal(verdict)
	if err != nil {
		s.storeFailure(j, start, err)
		return
	}

	s.cache.Put(j.id, encoded)
	s.mu.Lock()
	s.last = encoded
	s.mu.Unlock()

	s.logRequest(j, start, encoded, "")
	log.Printf("Analysis %s done: probability=%d", j.id, verdict.DosAttackProbability)
}

// storeFailure caches an error object under the execution id so by-id pollers
// learn about the failure promptly. The last-result snapshot is left
// untouched: a failed analysis is not a new verdict.
func (s *Service) storeFailure(j job, start time.Time, cause error) {
	body, _ := json.Marshal(map[string]string{"error": "analysis_failed", "detail": cause.Error()})
	s.cache.Put(j.id, body)
	s.logRequest(j, start, nil, cause.Error())
}

type requestLogEntry struct {
	ID            string          `json:"id"`
	Datetime      string          `json:"datetime"`
	ElapsedSecs   float64         `json:"elapsed_seconds"`
	MemoryRSSMB   float64         `json:"memory_rss_mb"`
	MemoryVMSMB   float64         `json:"memory_vms_mb"`
	CPUPercent    float64         `json:"cpu_percent"`
	RequestChars  int             `json:"request_chars"`
	Response      json.RawMessage `json:"response,omitempty"`
	Error         string          `json:"error,omitempty"`
}

func (s *Service) logRequest(j job, start time.Time, response json.RawMessage, errDetail string) {
	if s.requests == nil {
		return
	}

	entry := requestLogEntry{
		ID:           j.id,
		Datetime:     start.UTC().Format(time.RFC3339Nano),
		ElapsedSecs:  time.Since(start).Seconds(),
		RequestChars: len(j.payload),
		Response:     response,
		Error:        errDetail,
	}
	if s.proc != nil {
		if mi, err := s.proc.MemoryInfo(); err == nil {
			entry.MemoryRSSMB = roundMB(mi.RSS)
			entry.MemoryVMSMB = roundMB(mi.VMS)
		}
		if pct, err := s.proc.Percent(0); err == nil {
			entry.CPUPercent = pct
		}
	}

	if err := s.requests.Append(entry); err != nil {
		log.Printf("Failed to append request log entry: %v", err)
	}
}

func roundMB(bytes uint64) float64 {
	return math.Round(float64(bytes)/1024/1024*100) / 100
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("Failed to encode response body: %v", err)
	}
}
