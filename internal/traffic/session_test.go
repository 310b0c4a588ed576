package traffic

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"NetGauntlet/internal/config"
)

func testTrafficConfig(baseHost string) config.TrafficConfig {
	return config.TrafficConfig{
		BaseHost:       baseHost,
		SitePrefix:     "",
		Repetitions:    1,
		Sessions:       1,
		RequestTimeout: "5s",
		PostWait:       "1ms",
		MaxRPS:         500,
		BurstCapacity:  8,
		ThinkMedian:    0.05,
		ThinkSigma:     0.1,
		UserAgents:     []string{"test-agent/1.0", "test-agent/2.0"},
		Sitemap:        []string{"/", "/about.html", "/product-1.html"},
	}
}

func newTestSession(t *testing.T, baseHost string) *Session {
	t.Helper()
	s, err := NewSession(0, testTrafficConfig(baseHost))
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	s.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return s
}

// TestSampleThinkTimeFloor verifies the 50ms lower clamp and that ordinary
// draws still vary.
func TestSampleThinkTimeFloor(t *testing.T) {
	// 1. A microscopic median is always clamped.
	for i := 0; i < 200; i++ {
		if d := sampleThinkTime(0.0001, 0.6); d < 50*time.Millisecond {
			t.Fatalf("think time below floor: %v", d)
		}
	}

	// 2. A realistic median produces spread above the floor.
	min, max := time.Hour, time.Duration(0)
	for i := 0; i < 50; i++ {
		d := sampleThinkTime(0.8, 0.6)
		if d < 50*time.Millisecond {
			t.Fatalf("think time below floor: %v", d)
		}
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	if min == max {
		t.Errorf("expected varying think times, all draws were %v", min)
	}
}

// TestChooseRouteAvoidsRecent verifies the recent-route window keeps fresh
// pages in rotation and slides oldest-first.
func TestChooseRouteAvoidsRecent(t *testing.T) {
	s := newTestSession(t, "http://example.test")
	s.sitemap = []string{"/a", "/b", "/c", "/d", "/e", "/f", "/g", "/h", "/i", "/j"}

	// 1. Fill the window with the first eight routes.
	for _, r := range s.sitemap[:8] {
		s.rememberRoute(r)
	}

	// 2. Every pick must come from the two remaining routes.
	for i := 0; i < 100; i++ {
		route := s.chooseRoute()
		if route != "/i" && route != "/j" {
			t.Fatalf("picked recently visited route %q", route)
		}
	}

	// 3. Remembering a ninth route evicts the oldest.
	s.rememberRoute("/i")
	if len(s.recent) != recentRouteWindow {
		t.Fatalf("expected window of %d, got %d", recentRouteWindow, len(s.recent))
	}
	if s.visitedRecently("/a") {
		t.Errorf("oldest route /a should have been evicted")
	}
	if !s.visitedRecently("/i") {
		t.Errorf("newest route /i missing from the window")
	}

	// 4. With every route recent, the pick falls back to the full sitemap.
	s.sitemap = []string{"/a"}
	s.recent = []string{"/a"}
	if route := s.chooseRoute(); route != "/a" {
		t.Fatalf("expected fallback to full sitemap, got %q", route)
	}
}

// TestRouteToURL verifies prefix joining for the supported route shapes.
func TestRouteToURL(t *testing.T) {
	cases := []struct {
		prefix string
		route  string
		want   string
	}{
		{"/mysite", "/about.html", "http://host.test/mysite/about.html"},
		{"/mysite", "/mysite/about.html", "http://host.test/mysite/about.html"},
		{"/mysite", "about.html", "http://host.test/mysite/about.html"},
		{"", "/about.html", "http://host.test/about.html"},
		{"", "about.html", "http://host.test/about.html"},
	}
	for _, c := range cases {
		s := newTestSession(t, "http://host.test")
		s.sitePrefix = c.prefix
		if got := s.routeToURL(c.route); got != c.want {
			t.Errorf("routeToURL(%q) with prefix %q = %q, want %q", c.route, c.prefix, got, c.want)
		}
	}
}

// TestFetchCapsTextSnippet verifies a textual body is counted in full but
// only the snippet head is kept.
func TestFetchCapsTextSnippet(t *testing.T) {
	body := strings.Repeat("a", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(body))
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	action := s.fetch(context.Background(), http.MethodGet, srv.URL+"/", nil, nil)

	if !action.OK {
		t.Fatalf("expected ok action, got error %q", action.Error)
	}
	if action.Status != http.StatusOK {
		t.Errorf("expected status 200, got %d", action.Status)
	}
	if len(action.TextSnippet) != maxBodySnippet {
		t.Errorf("expected snippet of %d bytes, got %d", maxBodySnippet, len(action.TextSnippet))
	}
	if action.Length != int64(len(body)) {
		t.Errorf("expected full body length %d, got %d", len(body), action.Length)
	}
	if action.ContentType == "" || !strings.Contains(action.ContentType, "text/html") {
		t.Errorf("unexpected content type %q", action.ContentType)
	}
	if len(action.Headers) == 0 {
		t.Errorf("expected response headers to be recorded")
	}
}

// TestFetchBinaryBodyCounted verifies non-textual bodies are drained and
// counted without keeping a snippet.
func TestFetchBinaryBodyCounted(t *testing.T) {
	payload := make([]byte, 5000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(payload)
	}))
	defer srv.Close()

	s := newTestSession(t, srv.URL)
	action := s.fetch(context.Background(), http.MethodGet, srv.URL+"/blob", nil, nil)

	if !action.OK {
		t.Fatalf("expected ok action, got error %q", action.Error)
	}
	if action.Length != int64(len(payload)) {
		t.Errorf("expected length %d, got %d", len(payload), action.Length)
	}
	if action.TextSnippet != "" {
		t.Errorf("expected no snippet for binary body, got %q", action.TextSnippet)
	}
}

// TestFetchRecordsTransportError verifies a dead target produces an error
// action instead of aborting the scenario.
func TestFetchRecordsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	s := newTestSession(t, url)
	action := s.fetch(context.Background(), http.MethodGet, url+"/", nil, nil)

	if action.OK {
		t.Fatal("expected a failed action for a dead server")
	}
	if action.Error == "" {
		t.Error("expected the transport error to be recorded")
	}
	if action.Method != http.MethodGet || action.URL != url+"/" {
		t.Errorf("error action missing request identity: %+v", action)
	}
}
