package traffic

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/detector"
	"NetGauntlet/internal/model"
	"NetGauntlet/internal/results"
)

// fakeSubmitter plays the detector, recording every payload it is handed.
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []interface{}
	result   detector.AwaitResult
	onSubmit func()
}

func (f *fakeSubmitter) SubmitAndAwait(ctx context.Context, payload interface{}, timeoutTotal, pollInterval time.Duration) detector.AwaitResult {
	f.mu.Lock()
	f.payloads = append(f.payloads, payload)
	f.mu.Unlock()
	if f.onSubmit != nil {
		f.onSubmit()
	}
	return f.result
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

func newTestSimulator(t *testing.T, cfg config.TrafficConfig, fake *fakeSubmitter) (*Simulator, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "traffic.jsonl")
	sink, err := results.NewWriter(logPath)
	if err != nil {
		t.Fatalf("failed to open sink: %v", err)
	}
	t.Cleanup(func() { sink.Close() })

	det := config.DetectorConfig{SubmitTimeout: "1s", SubmitPoll: "10ms"}
	sim, err := NewSimulator(cfg, det, fake, sink)
	if err != nil {
		t.Fatalf("NewSimulator failed: %v", err)
	}
	noop := func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	sim.sleep = noop
	for _, s := range sim.sessions {
		s.sleep = noop
	}
	return sim, logPath
}

func readTrafficLog(t *testing.T, path string) []model.TrafficRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open traffic log: %v", err)
	}
	defer f.Close()

	var records []model.TrafficRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		var rec model.TrafficRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("bad traffic log line: %v", err)
		}
		records = append(records, rec)
	}
	return records
}

// TestSimulatorWritesOneRecordPerScenario runs three scenarios end to end
// against a local target and a fake detector.
func TestSimulatorWritesOneRecordPerScenario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	fake := &fakeSubmitter{result: detector.AwaitResult{
		ExecutionID: "exec-42",
		Verdict:     json.RawMessage(`{"dos_attack_probability": 3.7, "justification": "steady pacing"}`),
	}}

	cfg := testTrafficConfig(srv.URL)
	cfg.Sessions = 2
	cfg.Repetitions = 3
	sim, logPath := newTestSimulator(t, cfg, fake)

	if err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 1. One submission and one record per scenario.
	if got := fake.count(); got != 3 {
		t.Fatalf("expected 3 submissions, got %d", got)
	}
	records := readTrafficLog(t, logPath)
	if len(records) != 3 {
		t.Fatalf("expected 3 traffic records, got %d", len(records))
	}

	// 2. Each record correlates scenario and verdict.
	for i, rec := range records {
		if rec.Scenario != "scenario_browse_realistic" {
			t.Errorf("record %d: unexpected scenario %q", i, rec.Scenario)
		}
		if rec.Label != "normal" {
			t.Errorf("record %d: unexpected label %q", i, rec.Label)
		}
		if rec.SessionIndex < 0 || rec.SessionIndex >= cfg.Sessions {
			t.Errorf("record %d: session index %d out of range", i, rec.SessionIndex)
		}
		if rec.ExecutionID != "exec-42" {
			t.Errorf("record %d: execution id %q", i, rec.ExecutionID)
		}
		// The 3.7 probability is truncated to the integer column value.
		if string(rec.Summary) != "3" {
			t.Errorf("record %d: summary %s, want 3", i, rec.Summary)
		}
		var detail ScenarioOutcome
		if err := json.Unmarshal(rec.ScenarioDetail, &detail); err != nil {
			t.Fatalf("record %d: bad scenario detail: %v", i, err)
		}
		if detail.Name != "scenario_browse_realistic" || len(detail.Actions) == 0 {
			t.Errorf("record %d: scenario detail lost actions: %+v", i, detail)
		}
	}

	// 3. The payload sent to the detector is the action list.
	raw, err := json.Marshal(fake.payloads[0])
	if err != nil {
		t.Fatalf("failed to marshal submitted payload: %v", err)
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("submitted payload is not an object: %v", err)
	}
	if _, ok := payload["actions"]; !ok {
		t.Fatalf("submitted payload missing actions key: %s", raw)
	}
}

// TestSimulatorRecordsDetectorErrors verifies an error result lands in the
// summary column instead of a probability.
func TestSimulatorRecordsDetectorErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	fake := &fakeSubmitter{result: detector.AwaitResult{
		ExecutionID: "exec-7",
		ErrKind:     detector.ErrKindTimeout,
	}}

	cfg := testTrafficConfig(srv.URL)
	cfg.Repetitions = 1
	sim, logPath := newTestSimulator(t, cfg, fake)

	if err := sim.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	records := readTrafficLog(t, logPath)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	var summary string
	if err := json.Unmarshal(records[0].Summary, &summary); err != nil {
		t.Fatalf("summary is not a string: %s", records[0].Summary)
	}
	if summary != detector.ErrKindTimeout {
		t.Errorf("summary %q, want %q", summary, detector.ErrKindTimeout)
	}
	var detRes map[string]string
	if err := json.Unmarshal(records[0].DetectorResult, &detRes); err != nil {
		t.Fatalf("detector result is not an object: %v", err)
	}
	if detRes["execId"] != "exec-7" {
		t.Errorf("detector result lost the execution id: %v", detRes)
	}
}

// TestSimulatorStopsBetweenScenarios verifies cancellation finishes the
// in-flight scenario, flushes its record and runs no further ones.
func TestSimulatorStopsBetweenScenarios(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeSubmitter{
		result:   detector.AwaitResult{ExecutionID: "exec-1", Verdict: json.RawMessage(`{"dos_attack_probability": 1}`)},
		onSubmit: cancel,
	}

	cfg := testTrafficConfig(srv.URL)
	cfg.Repetitions = 50
	sim, logPath := newTestSimulator(t, cfg, fake)

	if err := sim.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := fake.count(); got != 1 {
		t.Fatalf("expected exactly 1 submission before stopping, got %d", got)
	}
	records := readTrafficLog(t, logPath)
	if len(records) != 1 {
		t.Fatalf("expected the in-flight record to be flushed, got %d records", len(records))
	}
}

// TestSummarizeForms checks the three summary shapes: integer probability,
// missing probability, error kind.
func TestSummarizeForms(t *testing.T) {
	cases := []struct {
		name string
		res  detector.AwaitResult
		want string
	}{
		{"numeric", detector.AwaitResult{Verdict: json.RawMessage(`{"dos_attack_probability": 85}`)}, "85"},
		{"fractional", detector.AwaitResult{Verdict: json.RawMessage(`{"dos_attack_probability": 42.9}`)}, "42"},
		{"missing", detector.AwaitResult{Verdict: json.RawMessage(`{"justification": "x"}`)}, `"no_prob"`},
		{"non_numeric", detector.AwaitResult{Verdict: json.RawMessage(`{"dos_attack_probability": "85"}`)}, `"no_prob"`},
		{"error", detector.AwaitResult{ErrKind: "post_exception", Detail: "boom"}, `"post_exception"`},
	}
	for _, c := range cases {
		if got := string(summarize(c.res)); got != c.want {
			t.Errorf("%s: summarize = %s, want %s", c.name, got, c.want)
		}
	}
}
