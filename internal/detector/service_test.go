package detector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"NetGauntlet/internal/config"
)

// fakeAnalyzer plays back scripted answers (or errors) in call order.
type fakeAnalyzer struct {
	mu       sync.Mutex
	answers  []string
	errs     []error
	payloads []string
}

func (a *fakeAnalyzer) AnalyzeFlows(ctx context.Context, payload string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := len(a.payloads)
	a.payloads = append(a.payloads, payload)
	if i < len(a.errs) && a.errs[i] != nil {
		return "", a.errs[i]
	}
	if i < len(a.answers) {
		return a.answers[i], nil
	}
	return "", errors.New("no scripted answer left")
}

func newTestService(t *testing.T, analyzer *fakeAnalyzer) (*Service, *httptest.Server) {
	t.Helper()
	svc, err := NewService(config.ServiceConfig{CacheCapacity: 8, CacheTTL: "1m", QueueSize: 4}, analyzer, nil)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	svc.Start()
	srv := httptest.NewServer(svc.Router())
	t.Cleanup(func() {
		srv.Close()
		svc.Stop()
	})
	return svc, srv
}

func TestServiceSubmitPollRoundTrip(t *testing.T) {
	analyzer := &fakeAnalyzer{answers: []string{`{"dos_attack_probability": 85, "justification": "SYN spike from one source"}`}}
	_, srv := newTestService(t, analyzer)
	c := NewClient(srv.URL, time.Second)

	// 1. Submit flows and poll until the verdict lands.
	res := c.SubmitAndAwait(context.Background(), []map[string]interface{}{{"packet_count": 900}}, 2*time.Second, 20*time.Millisecond)
	if !res.OK() {
		t.Fatalf("expected a verdict, got %s: %s", res.ErrKind, res.Detail)
	}
	var v Verdict
	if err := json.Unmarshal(res.Verdict, &v); err != nil {
		t.Fatalf("verdict is not JSON: %v", err)
	}
	if v.DosAttackProbability != 85 {
		t.Errorf("probability = %d, want 85", v.DosAttackProbability)
	}

	// 2. The analyzer must have seen the submitted payload verbatim.
	analyzer.mu.Lock()
	payload := analyzer.payloads[0]
	analyzer.mu.Unlock()
	if !strings.Contains(payload, "packet_count") {
		t.Errorf("analyzer payload missing flow fields: %s", payload)
	}

	// 3. Results are one-shot: a second fetch of the same id misses.
	resp, err := http.Get(srv.URL + "/result/" + res.ExecutionID)
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second fetch status = %d, want 404", resp.StatusCode)
	}

	// 4. The last-result snapshot now serves the same verdict.
	snap := c.FetchSnapshot(context.Background())
	if !snap.OK() {
		t.Fatalf("expected last-result verdict, got %s", snap.ErrKind)
	}
	var lastV Verdict
	if err := json.Unmarshal(snap.Verdict, &lastV); err != nil || lastV.DosAttackProbability != 85 {
		t.Errorf("unexpected last-result %s", snap.Verdict)
	}
}

func TestServiceFailedAnalysisKeepsLastResult(t *testing.T) {
	analyzer := &fakeAnalyzer{
		answers: []string{`{"dos_attack_probability": 10, "justification": "quiet"}`, ""},
		errs:    []error{nil, errors.New("model unreachable")},
	}
	_, srv := newTestService(t, analyzer)
	c := NewClient(srv.URL, time.Second)

	// 1. Before any analysis the snapshot endpoint reports 404.
	snap := c.FetchSnapshot(context.Background())
	if snap.OK() || snap.ErrKind != "status_404" {
		t.Fatalf("expected status_404 before first analysis, got %q", snap.ErrKind)
	}

	// 2. First submission succeeds and becomes the last result.
	first := c.SubmitAndAwait(context.Background(), "flows-a", 2*time.Second, 20*time.Millisecond)
	if !first.OK() {
		t.Fatalf("first analysis failed: %s %s", first.ErrKind, first.Detail)
	}
	prev := c.FetchSnapshot(context.Background())
	if !prev.OK() {
		t.Fatalf("expected a last-result after success, got %s", prev.ErrKind)
	}

	// 3. Second submission fails inside the analyzer: the by-id poller sees
	// an analysis_failed object instead of hanging until timeout.
	second := c.SubmitAndAwait(context.Background(), "flows-b", 2*time.Second, 20*time.Millisecond)
	if !second.OK() {
		t.Fatalf("poll should return the failure object, got %s", second.ErrKind)
	}
	var failure map[string]string
	if err := json.Unmarshal(second.Verdict, &failure); err != nil {
		t.Fatalf("failure object is not JSON: %v", err)
	}
	if failure["error"] != "analysis_failed" || !strings.Contains(failure["detail"], "model unreachable") {
		t.Errorf("unexpected failure object %s", second.Verdict)
	}

	// 4. The failure must not overwrite the last good verdict.
	cur := c.FetchSnapshot(context.Background())
	if !cur.Equal(prev) {
		t.Errorf("last-result changed after a failed analysis: %s", cur.Verdict)
	}
}

func TestServiceRejectsInvalidSubmission(t *testing.T) {
	_, srv := newTestService(t, &fakeAnalyzer{})

	resp, err := http.Post(srv.URL+"/submit", "application/json", strings.NewReader("not json at all"))
	if err != nil {
		t.Fatalf("post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body["error"] != "invalid_json" {
		t.Errorf("unexpected rejection body %v", body)
	}
}

func TestServiceSubmitBackpressure(t *testing.T) {
	// The worker is deliberately not started so the queue cannot drain.
	svc, err := NewService(config.ServiceConfig{CacheCapacity: 2, CacheTTL: "1m", QueueSize: 1}, &fakeAnalyzer{}, nil)
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	router := svc.Router()

	post := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(`{"flows": []}`))
		router.ServeHTTP(rec, req)
		return rec
	}

	if rec := post(); rec.Code != http.StatusAccepted {
		t.Fatalf("first submit status = %d, want 202", rec.Code)
	}
	rec := post()
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("second submit status = %d, want 503", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] != "queue_full" {
		t.Errorf("unexpected backpressure body %s", rec.Body.String())
	}
}

func TestServiceHealthz(t *testing.T) {
	_, srv := newTestService(t, &fakeAnalyzer{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
