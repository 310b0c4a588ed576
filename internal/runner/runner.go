package runner

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

// extraRuntime is added to a scenario's expected duration before the
// watchdog deadline caps it.
const extraRuntime = 10 * time.Second

// Supervisor runs one scenario command under resource limits and reports
// (exitCode, reason). *watchdog.Watchdog satisfies it.
type Supervisor interface {
	Run(ctx context.Context, command string, timeout time.Duration) (int, string)
}

// DetectorSync observes the detector's last-result state. *detector.Client
// satisfies it.
type DetectorSync interface {
	FetchSnapshot(ctx context.Context) detector.Snapshot
	WaitForChange(ctx context.Context, prev detector.Snapshot, maxWait, pollInterval time.Duration) (detector.Snapshot, float64, bool)
}

// Runner drives scenarios through their fixed sequence: detector snapshot,
// supervised command, post-wait, wait for the detector to produce a new
// result, one appended row. No step is retried and no scenario runs
// concurrently with another.
type Runner struct {
	scenarios   []model.Scenario
	repetitions int
	supervisor  Supervisor
	det         DetectorSync
	sink        *results.Writer

	maxRuntime   time.Duration
	postWait     time.Duration
	maxWait      time.Duration
	pollInterval time.Duration
	delayBase    float64
	delayJitter  float64

	sleep func(context.Context, time.Duration) error // stubbed in tests
}

// NewRunner wires the orchestrator from configuration.
func NewRunner(cfg config.RunnerConfig, wd config.WatchdogConfig, det config.DetectorConfig,
	scenarios []model.Scenario, supervisor Supervisor, sync DetectorSync, sink *results.Writer) (*Runner, error) {

	postWait, err := time.ParseDuration(det.PostWait)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detector post_wait: %w", err)
	}
	maxWait, err := time.ParseDuration(det.MaxWait)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detector max_wait: %w", err)
	}
	poll, err := time.ParseDuration(det.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to parse detector poll_interval: %w", err)
	}

	return &Runner{
		scenarios:    scenarios,
		repetitions:  cfg.Repetitions,
		supervisor:   supervisor,
		det:          sync,
		sink:         sink,
		maxRuntime:   time.Duration(wd.MaxRuntime) * time.Second,
		postWait:     postWait,
		maxWait:      maxWait,
		pollInterval: poll,
		delayBase:    cfg.DelayBase,
		delayJitter:  cfg.DelayJitter,
		sleep:        sleepCtx,
	}, nil
}

// RunAll executes every scenario `repetitions` times, shuffling the list
// each pass and pausing between scenarios. Cancellation stops before the
// next scenario; every finished scenario is already on disk.
func (r *Runner) RunAll(ctx context.Context) error {
	var seq []model.Scenario
	for i := 0; i < r.repetitions; i++ {
		pass := make([]model.Scenario, len(r.scenarios))
		copy(pass, r.scenarios)
		rand.Shuffle(len(pass), func(a, b int) { pass[a], pass[b] = pass[b], pass[a] })
		seq = append(seq, pass...)
	}

	for _, sc := range seq {
		if ctx.Err() != nil {
			log.Println("run interrupted, stopping before next scenario")
			return nil
		}
		if err := r.RunOne(ctx, sc); err != nil {
			return err
		}
		delay := r.delayBase + rand.Float64()*r.delayJitter
		if err := r.sleep(ctx, time.Duration(delay*float64(time.Second))); err != nil {
			return nil
		}
	}
	return nil
}

// RunOne takes one scenario through snapshot, supervised execution,
// post-wait and detector diff, then appends exactly one result row. Failures
// along the way are recorded in the row, never returned; the only error is a
// sink append failure.
func (r *Runner) RunOne(ctx context.Context, sc model.Scenario) error {
	tsStart := results.NowISO()
	log.Printf("starting scenario: %s -> `%s` (expected %ds)", sc.Name, sc.Command, sc.Duration)

	// Baseline before launch. An error snapshot is a valid baseline: the
	// transition error->verdict still registers as a change.
	prev := r.det.FetchSnapshot(ctx)

	timeout := time.Duration(sc.Duration)*time.Second + extraRuntime
	if timeout > r.maxRuntime {
		timeout = r.maxRuntime
	}
	exitCode, reason := r.supervisor.Run(ctx, sc.Command, timeout)

	r.sleep(ctx, r.postWait)
	cur, waited, changed := r.det.WaitForChange(ctx, prev, r.maxWait, r.pollInterval)

	detRes, err := json.Marshal(cur)
	if err != nil {
		detRes = json.RawMessage(`{"error":"unserializable_snapshot"}`)
	}
	row := model.ScenarioResult{
		TimestampStart:   tsStart,
		TimestampEnd:     results.NowISO(),
		Scenario:         sc.Name,
		Label:            sc.Label,
		Command:          sc.Command,
		WatchdogExitCode: exitCode,
		WatchdogReason:   reason,
		WaitedSeconds:    waited,
		Changed:          changed,
		DetectorResult:   detRes,
	}
	if err := r.sink.Append(row); err != nil {
		return fmt.Errorf("failed to record scenario %s: %w", sc.Name, err)
	}

	log.Printf("scenario %s finished (reason=%s) - ia_changed=%v waited=%.1fs", sc.Name, reason, changed, waited)
	return nil
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
