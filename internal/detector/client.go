package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the detector HTTP boundary. All failures surface as data
// values (Snapshot/AwaitResult error forms), never as Go errors: the caller
// records them and moves on.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the detector at baseURL. requestTimeout
// bounds every single HTTP operation; the poll loops carry their own bounds.
func NewClient(baseURL string, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// FetchSnapshot GETs the last-known verdict. Transport errors, non-200
// statuses and unparseable bodies come back as Err snapshots.
func (c *Client) FetchSnapshot(ctx context.Context) Snapshot {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/last-result", nil)
	if err != nil {
		return ErrSnapshot(ErrKindRequestFailed, err.Error())
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return ErrSnapshot(ErrKindRequestFailed, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ErrSnapshot(ErrKindRequestFailed, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		return ErrSnapshot(fmt.Sprintf("status_%d", resp.StatusCode), string(body))
	}
	if !json.Valid(body) {
		return ErrSnapshot(ErrKindInvalidJSON, string(body))
	}
	return OkSnapshot(body)
}

// WaitForChange polls until the detector snapshot serializes differently from
// prev or maxWait elapses. It returns the newest snapshot, the seconds
// waited, and whether a change was observed. On cancellation it exits with
// the best-known snapshot and changed=false.
func (c *Client) WaitForChange(ctx context.Context, prev Snapshot, maxWait, pollInterval time.Duration) (Snapshot, float64, bool) {
	start := time.Now()
	prevSerial := prev.canonical()
	last := prev

	for time.Since(start) < maxWait {
		cur := c.FetchSnapshot(ctx)
		last = cur
		if cur.canonical() != prevSerial {
			return cur, time.Since(start).Seconds(), true
		}
		if !sleepFor(ctx, pollInterval) {
			return last, time.Since(start).Seconds(), false
		}
	}

	cur := c.FetchSnapshot(ctx)
	return cur, time.Since(start).Seconds(), false
}

// SubmitAndAwait POSTs payload to the detector and polls the by-id endpoint
// until the verdict is ready or timeoutTotal elapses. 404 means not ready yet;
// any other unexpected status is a hard failure carrying the execution id.
func (c *Client) SubmitAndAwait(ctx context.Context, payload interface{}, timeoutTotal, pollInterval time.Duration) AwaitResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return AwaitResult{ErrKind: ErrKindPostException, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(body))
	if err != nil {
		return AwaitResult{ErrKind: ErrKindPostException, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return AwaitResult{ErrKind: ErrKindPostException, Detail: err.Error()}
	}
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return AwaitResult{ErrKind: ErrKindPostException, Detail: err.Error()}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return AwaitResult{ErrKind: fmt.Sprintf("status_%d", resp.StatusCode), Detail: string(raw)}
	}

	var submitted struct {
		ExecutionID string `json:"executionId"`
	}
	if err := json.Unmarshal(raw, &submitted); err != nil || submitted.ExecutionID == "" {
		return AwaitResult{ErrKind: ErrKindNoExecutionID, Detail: string(raw)}
	}
	id := submitted.ExecutionID

	start := time.Now()
	for time.Since(start) < timeoutTotal {
		res, retry := c.fetchByID(ctx, id)
		if !retry {
			return res
		}
		if !sleepFor(ctx, pollInterval) {
			break
		}
	}
	return AwaitResult{ExecutionID: id, ErrKind: ErrKindTimeout}
}

// fetchByID returns the result for one poll attempt, with retry=true when the
// verdict is not ready (404) or the request failed in a recoverable way.
func (c *Client) fetchByID(ctx context.Context, id string) (AwaitResult, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/result/"+id, nil)
	if err != nil {
		return AwaitResult{ExecutionID: id, ErrKind: ErrKindRequestFailed, Detail: err.Error()}, false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		// Transport hiccups are recoverable; the loop bound still applies.
		return AwaitResult{}, true
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AwaitResult{}, true
	}
	switch resp.StatusCode {
	case http.StatusOK:
		if !json.Valid(body) {
			return AwaitResult{ExecutionID: id, ErrKind: ErrKindInvalidJSON, Detail: string(body)}, false
		}
		return AwaitResult{ExecutionID: id, Verdict: body}, false
	case http.StatusNotFound:
		return AwaitResult{}, true
	default:
		return AwaitResult{ExecutionID: id, ErrKind: fmt.Sprintf("status_%d", resp.StatusCode), Detail: string(body)}, false
	}
}

// sleepFor sleeps d unless ctx is cancelled first, reporting whether the full
// sleep completed.
func sleepFor(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
