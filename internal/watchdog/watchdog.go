package watchdog

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"syscall"
	"time"

	"NetGauntlet/internal/config"
)

// Reason codes reported by Run. Exactly one is reported per invocation.
const (
	ReasonFinished    = "finished_normally"
	ReasonHardTimeout = "hard_timeout_kill"
	ReasonHighCPU     = "killed_high_cpu"
	ReasonHighNetwork = "killed_high_network"
	ReasonUserKill    = "killed_by_user"
)

// startErrorReason tags a launch failure so it lands in the result record
// instead of aborting the run.
func startErrorReason(err error) string {
	return fmt.Sprintf("start_error:%v", err)
}

// Watchdog supervises one scenario command at a time: it launches the command
// in its own process group, then polls for completion, a hard wall-clock
// deadline, and resource breaches until one of them wins.
type Watchdog struct {
	pollInterval time.Duration
	gracePeriod  time.Duration
	termGrace    time.Duration

	enableCPUCheck   bool
	maxCPUPercent    float64
	maxNetBytesDelta uint64
	iface            string
	workdir          string

	// timeoutBin wraps commands in coreutils timeout when available, so the
	// command has its own first line of defense before the hard kill.
	timeoutBin string

	launch  func(command, workdir string) (process, error)
	sampler Sampler
}

// NewWatchdog builds a watchdog from configuration. Commands run with workdir
// as their working directory.
func NewWatchdog(cfg config.WatchdogConfig, workdir string) (*Watchdog, error) {
	poll, err := time.ParseDuration(cfg.PollInterval)
	if err != nil {
		return nil, fmt.Errorf("failed to parse watchdog poll_interval: %w", err)
	}
	grace, err := time.ParseDuration(cfg.GracePeriod)
	if err != nil {
		return nil, fmt.Errorf("failed to parse watchdog grace_period: %w", err)
	}

	timeoutBin, _ := exec.LookPath("timeout")

	return &Watchdog{
		pollInterval:     poll,
		gracePeriod:      grace,
		termGrace:        time.Second,
		enableCPUCheck:   cfg.EnableCPUCheck,
		maxCPUPercent:    cfg.MaxCPUPercent,
		maxNetBytesDelta: cfg.MaxNetBytesDelta,
		iface:            cfg.Interface,
		workdir:          workdir,
		timeoutBin:       timeoutBin,
		launch:           launchShell,
		sampler:          hostSampler{},
	}, nil
}

// Run executes command under supervision and reports (exitCode, reason).
// Reasons: the command's own exit ("finished_normally" with its real code),
// the hard deadline timeout+grace ("hard_timeout_kill"), a CPU or
// network-byte breach ("killed_high_cpu"/"killed_high_network"), a cancelled
// ctx ("killed_by_user"), or a launch failure ("start_error:<detail>", exit
// code -1). Kills always target the whole process group.
func (w *Watchdog) Run(ctx context.Context, command string, timeout time.Duration) (int, string) {
	full := command
	if w.timeoutBin != "" {
		full = fmt.Sprintf("timeout %ds %s", int(timeout.Seconds()), command)
	}

	proc, err := w.launch(full, w.workdir)
	if err != nil {
		return -1, startErrorReason(err)
	}

	tx0, err := w.sampler.TxBytes(w.iface)
	if err != nil {
		tx0 = 0
	}

	start := time.Now()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if code, done := proc.Exited(); done {
			w.logOutput(proc)
			return code, ReasonFinished
		}

		if time.Since(start) > timeout+w.gracePeriod {
			proc.Signal(syscall.SIGKILL)
			w.logOutput(proc)
			return -9, ReasonHardTimeout
		}

		if w.enableCPUCheck {
			if pct, err := w.sampler.CPUPercent(); err == nil && pct >= w.maxCPUPercent {
				log.Printf("Watchdog: CPU at %.1f%%, terminating process group", pct)
				w.terminate(proc)
				w.logOutput(proc)
				return -9, ReasonHighCPU
			}
		}

		if tx, err := w.sampler.TxBytes(w.iface); err == nil && tx > tx0 && tx-tx0 > w.maxNetBytesDelta {
			log.Printf("Watchdog: interface %s sent %d bytes during scenario, terminating process group", w.iface, tx-tx0)
			w.terminate(proc)
			w.logOutput(proc)
			return -9, ReasonHighNetwork
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			proc.Signal(syscall.SIGKILL)
			w.logOutput(proc)
			return -9, ReasonUserKill
		}
	}
}

// terminate escalates in two phases: SIGTERM to the group, a short grace for
// voluntary exit, then SIGKILL if the child is still running.
func (w *Watchdog) terminate(p process) {
	p.Signal(syscall.SIGTERM)

	deadline := time.Now().Add(w.termGrace)
	for time.Now().Before(deadline) {
		if _, done := p.Exited(); done {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	p.Signal(syscall.SIGKILL)
}

func (w *Watchdog) logOutput(p process) {
	if snippet := p.OutputSnippet(); snippet != "" {
		log.Printf("Watchdog: command output (truncated): %s", snippet)
	}
}
