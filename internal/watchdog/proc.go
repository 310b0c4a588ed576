package watchdog

import (
	"os/exec"
	"sync"
	"syscall"
)

// outputSnippetCap bounds how much combined stdout/stderr is retained per
// supervised command.
const outputSnippetCap = 1000

// process is one supervised child running in its own process group. The
// watchdog loop only ever talks to this interface, so it can be driven by a
// fake in tests.
type process interface {
	// Exited reports whether the child finished and, if so, its exit code.
	// Children killed by a signal report the negated signal number.
	Exited() (int, bool)

	// Signal delivers sig to the whole process group.
	Signal(sig syscall.Signal) error

	// OutputSnippet returns up to the first outputSnippetCap bytes of the
	// combined stdout/stderr captured so far.
	OutputSnippet() string
}

// cappedBuffer keeps the first max bytes written and silently drops the rest.
// It is written by the exec copier goroutine and read by the watchdog loop,
// possibly while the child is still being torn down.
type cappedBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - len(b.buf); room > 0 {
		if len(p) > room {
			p = p[:room]
		}
		b.buf = append(b.buf, p...)
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

type osProcess struct {
	cmd  *exec.Cmd
	out  *cappedBuffer
	done chan struct{}

	mu     sync.Mutex
	code   int
	exited bool
}

// launchShell starts command through the shell inside workdir, detached into
// its own session so the whole descendant tree can be signalled at once.
func launchShell(command, workdir string) (process, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Dir = workdir
	out := &cappedBuffer{max: outputSnippetCap}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &osProcess{cmd: cmd, out: out, done: make(chan struct{})}
	go p.reap()
	return p, nil
}

func (p *osProcess) reap() {
	err := p.cmd.Wait()
	code := 0
	if err != nil {
		code = -1
		if ee, ok := err.(*exec.ExitError); ok {
			code = ee.ExitCode()
			if ws, ok := ee.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				code = -int(ws.Signal())
			}
		}
	}

	p.mu.Lock()
	p.code = code
	p.exited = true
	p.mu.Unlock()
	close(p.done)
}

func (p *osProcess) Exited() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code, p.exited
}

func (p *osProcess) Signal(sig syscall.Signal) error {
	// A negative pid addresses the process group.
	return syscall.Kill(-p.cmd.Process.Pid, sig)
}

func (p *osProcess) OutputSnippet() string {
	return p.out.String()
}
