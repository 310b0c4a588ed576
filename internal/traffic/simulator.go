package traffic

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"NetGauntlet/internal/config"
	"NetGauntlet/internal/detector"
	"NetGauntlet/internal/model"
	"NetGauntlet/internal/results"
)

const (
	probLongIdle = 0.12
	longIdleMin  = 12.0
	longIdleMax  = 40.0
)

// Submitter sends one scenario's actions to the detector and waits for the
// verdict. *detector.Client satisfies it.
type Submitter interface {
	SubmitAndAwait(ctx context.Context, payload interface{}, timeoutTotal, pollInterval time.Duration) detector.AwaitResult
}

// Simulator drives browse scenarios across a session pool, one scenario at a
// time, correlating each with a detector verdict and appending one
// TrafficRecord per scenario to the sink.
type Simulator struct {
	sessions    []*Session
	repetitions int
	submitter   Submitter
	sink        *results.Writer

	postWait      time.Duration
	submitTimeout time.Duration
	submitPoll    time.Duration

	sleep func(context.Context, time.Duration) error // stubbed in tests
}

// NewSimulator builds the session pool and parses the pacing durations.
func NewSimulator(cfg config.TrafficConfig, det config.DetectorConfig, submitter Submitter, sink *results.Writer) (*Simulator, error) {
	postWait, err := time.ParseDuration(cfg.PostWait)
	if err != nil {
		return nil, fmt.Errorf("failed to parse traffic post_wait: %w", err)
	}
	submitTimeout, err := time.ParseDuration(det.SubmitTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detector submit_timeout: %w", err)
	}
	submitPoll, err := time.ParseDuration(det.SubmitPoll)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detector submit_poll: %w", err)
	}

	sessions := make([]*Session, 0, cfg.Sessions)
	for i := 0; i < cfg.Sessions; i++ {
		s, err := NewSession(i, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build traffic session %d: %w", i, err)
		}
		sessions = append(sessions, s)
	}

	return &Simulator{
		sessions:      sessions,
		repetitions:   cfg.Repetitions,
		submitter:     submitter,
		sink:          sink,
		postWait:      postWait,
		submitTimeout: submitTimeout,
		submitPoll:    submitPoll,
		sleep:         sleepCtx,
	}, nil
}

// Run executes repetitions * scenarios browse walks. Each iteration picks a
// random session, browses, submits the recorded actions to the detector and
// appends the correlated record. Cancellation stops before the next scenario;
// every completed scenario is already on disk.
func (s *Simulator) Run(ctx context.Context) error {
	log.Printf("traffic simulation starting: %d sessions, %d repetitions", len(s.sessions), s.repetitions)

	for rep := 0; rep < s.repetitions; rep++ {
		if ctx.Err() != nil {
			break
		}
		if err := s.runScenario(ctx); err != nil {
			return err
		}
	}

	log.Println("traffic simulation complete")
	return nil
}

func (s *Simulator) runScenario(ctx context.Context) error {
	// Natural pause before a visitor shows up.
	if err := s.sleep(ctx, uniformDuration(0.8, 4.5)); err != nil {
		return nil
	}

	idx := rand.Intn(len(s.sessions))
	session := s.sessions[idx]

	tsStart := results.NowISO()
	log.Printf("session %d executing scenario: scenario_browse_realistic", idx)

	outcome := session.BrowseRealistic(ctx)

	if err := s.sleep(ctx, s.postWait); err != nil {
		return nil
	}
	payload := struct {
		Actions []Action `json:"actions"`
	}{Actions: outcome.Actions}
	res := s.submitter.SubmitAndAwait(ctx, payload, s.submitTimeout, s.submitPoll)

	summary := summarize(res)
	log.Printf("scenario %s (session %d) done. detector summary: %s ; execId: %s",
		outcome.Name, idx, string(summary), res.ExecutionID)

	detail, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("failed to marshal scenario outcome: %w", err)
	}
	record := model.TrafficRecord{
		TimestampStart: tsStart,
		TimestampEnd:   results.NowISO(),
		SessionIndex:   idx,
		Scenario:       outcome.Name,
		Label:          outcome.Label,
		ExecutionID:    res.ExecutionID,
		Summary:        summary,
		ScenarioDetail: detail,
		DetectorResult: res.LogValue(),
	}
	if err := s.sink.Append(record); err != nil {
		return err
	}

	if rand.Float64() < probLongIdle {
		idle := uniformDuration(longIdleMin, longIdleMax)
		log.Printf("inserting long idle of %.1fs", idle.Seconds())
		if err := s.sleep(ctx, idle); err != nil {
			return nil
		}
	}
	if err := s.sleep(ctx, uniformDuration(1.0, 3.5)); err != nil {
		return nil
	}
	return nil
}

// summarize reduces a detector result to the detector_summary column: the
// integer probability when the verdict carries a numeric one, otherwise the
// error kind, with "no_prob" for verdicts that lack the field.
func summarize(res detector.AwaitResult) json.RawMessage {
	if !res.OK() {
		b, _ := json.Marshal(res.ErrKind)
		return b
	}
	var v struct {
		Probability *float64 `json:"dos_attack_probability"`
	}
	if err := json.Unmarshal(res.Verdict, &v); err == nil && v.Probability != nil {
		b, _ := json.Marshal(int(*v.Probability))
		return b
	}
	b, _ := json.Marshal("no_prob")
	return b
}

func uniformDuration(minSec, maxSec float64) time.Duration {
	sec := minSec + rand.Float64()*(maxSec-minSec)
	return time.Duration(sec * float64(time.Second))
}
