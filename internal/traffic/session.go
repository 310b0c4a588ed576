package traffic

import (
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/ratelimit"
)

const (
	maxBodySnippet    = 1024
	recentRouteWindow = 8
)

// Action records one HTTP request performed by a scenario, in the shape the
// detector payload and the traffic log expect.
type Action struct {
	OK          bool              `json:"ok"`
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Status      int               `json:"status,omitempty"`
	Length      int64             `json:"len,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	TextSnippet string            `json:"text_snippet,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// ScenarioOutcome is the result of one executed traffic scenario. Field names
// are fixed: the rows feed downstream evaluation tooling.
type ScenarioOutcome struct {
	Name    string   `json:"nome"`
	Actions []Action `json:"actions"`
	Start   string   `json:"start"`
	End     string   `json:"end"`
	Label   string   `json:"label"`
}

// Session is one simulated visitor: its own HTTP client with keep-alive, its
// own token bucket, and its own memory of recently visited routes. Sessions
// never share pacing state, so one slow session cannot starve another.
type Session struct {
	Index int

	client      *http.Client
	rc          *ratelimit.Controller
	recent      []string
	baseHost    string
	sitePrefix  string
	userAgents  []string
	sitemap     []string
	thinkMedian float64
	thinkSigma  float64

	sleep func(context.Context, time.Duration) error // stubbed in tests
}

// NewSession builds one visitor from the traffic configuration.
func NewSession(index int, cfg config.TrafficConfig) (*Session, error) {
	timeout, err := time.ParseDuration(cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return &Session{
		Index:       index,
		client:      &http.Client{Timeout: timeout},
		rc:          ratelimit.NewController(cfg.MaxRPS, cfg.BurstCapacity),
		baseHost:    strings.TrimRight(cfg.BaseHost, "/"),
		sitePrefix:  cfg.SitePrefix,
		userAgents:  cfg.UserAgents,
		sitemap:     cfg.Sitemap,
		thinkMedian: cfg.ThinkMedian,
		thinkSigma:  cfg.ThinkSigma,
		sleep:       sleepCtx,
	}, nil
}

func (s *Session) pickUserAgent() string {
	return s.userAgents[rand.Intn(len(s.userAgents))]
}

// chooseRoute picks a sitemap route outside the recent window, falling back
// to the full sitemap when everything is recent.
func (s *Session) chooseRoute() string {
	var choices []string
	for _, route := range s.sitemap {
		if !s.visitedRecently(route) {
			choices = append(choices, route)
		}
	}
	if len(choices) == 0 {
		choices = s.sitemap
	}
	return choices[rand.Intn(len(choices))]
}

func (s *Session) visitedRecently(route string) bool {
	for _, r := range s.recent {
		if r == route {
			return true
		}
	}
	return false
}

func (s *Session) rememberRoute(route string) {
	s.recent = append(s.recent, route)
	if len(s.recent) > recentRouteWindow {
		s.recent = s.recent[1:]
	}
}

// routeToURL resolves a sitemap route against the host and site prefix.
func (s *Session) routeToURL(route string) string {
	if s.sitePrefix != "" && strings.HasPrefix(route, s.sitePrefix) {
		return s.baseHost + route
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	if s.sitePrefix != "" && s.sitePrefix != "/" {
		return s.baseHost + s.sitePrefix + route
	}
	return s.baseHost + route
}

// fetch performs one paced request and records the outcome. Transport
// failures land in the action, never abort the scenario.
func (s *Session) fetch(ctx context.Context, method, url string, headers map[string]string, body io.Reader) Action {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return Action{Method: method, URL: url, Error: err.Error()}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,pt-BR;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Action{Method: method, URL: url, Error: err.Error()}
	}
	defer resp.Body.Close()

	action := Action{
		OK:          true,
		Method:      method,
		URL:         url,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Headers:     flattenHeaders(resp.Header),
	}

	if isTextual(action.ContentType) {
		head, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippet*2))
		action.Length += int64(len(head))
		snippet := string(head)
		if len(snippet) > maxBodySnippet {
			snippet = snippet[:maxBodySnippet]
		}
		action.TextSnippet = snippet
	}
	rest, _ := io.Copy(io.Discard, resp.Body)
	action.Length += rest
	return action
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, marker := range []string{"text/", "json", "javascript", "xml", "css"} {
		if strings.Contains(ct, marker) {
			return true
		}
	}
	return false
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// sampleThinkTime draws a log-normal pause with the given median, clamped at
// 50ms so a lucky draw never becomes a tight loop.
func sampleThinkTime(median, sigma float64) time.Duration {
	v := math.Exp(math.Log(median) + sigma*rand.NormFloat64())
	if v < 0.05 {
		v = 0.05
	}
	return time.Duration(v * float64(time.Second))
}

func (s *Session) think(ctx context.Context, median, sigma float64) {
	s.sleep(ctx, sampleThinkTime(median, sigma))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
