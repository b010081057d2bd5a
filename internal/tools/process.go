package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// killGrace is how long a process group gets to exit after SIGTERM before SIGKILL.
const killGrace = 2 * time.Second

// execCommand is swapped out in tests.
var execCommand = exec.CommandContext

// Process wraps an exec.Cmd with context-aware lifecycle management. Output
// from stdout and stderr is collected as it arrives.
type Process struct {
	name    string
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	started time.Time

	out      *outputBuffer
	done     chan struct{}
	waitErr  error
	ended    time.Time
	stopOnce sync.Once
}

// StartProcess launches a command with context cancellation support.
func StartProcess(ctx context.Context, name string, args ...string) (*Process, error) {
	return StartProcessIn(ctx, "", name, args...)
}

// StartProcessIn is StartProcess with a working directory.
func StartProcessIn(ctx context.Context, dir, name string, args ...string) (*Process, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := execCommand(ctx, name, args...)
	cmd.Dir = dir

	// Use process groups so we can kill the entire tree
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	out := &outputBuffer{}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	p := &Process{
		name:    name,
		cmd:     cmd,
		cancel:  cancel,
		started: time.Now(),
		out:     out,
		done:    make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		p.out.mu.Lock()
		p.waitErr = err
		p.ended = time.Now()
		p.out.mu.Unlock()
		close(p.done)
	}()
	return p, nil
}

// RunCapture executes a command and returns its combined output.
func RunCapture(ctx context.Context, name string, args ...string) (string, error) {
	cmd := execCommand(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// RunSilent executes a command and discards output.
func RunSilent(ctx context.Context, name string, args ...string) error {
	return execCommand(ctx, name, args...).Run()
}

func (p *Process) Name() string {
	return p.name
}

func (p *Process) Args() []string {
	return p.cmd.Args
}

// Alive returns true if the process has not exited.
func (p *Process) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Done is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Wait waits for the process to exit.
func (p *Process) Wait() error {
	<-p.done
	p.out.mu.Lock()
	defer p.out.mu.Unlock()
	return p.waitErr
}

// Output is everything the process has written so far.
func (p *Process) Output() string {
	return p.out.String()
}

// LastLine is the most recent non-empty output line. Carriage returns count as
// line breaks since progress output redraws a single line.
func (p *Process) LastLine() string {
	return lastLine(p.out.String())
}

// RunningTime is how long the process has run, or ran if it has exited.
func (p *Process) RunningTime() time.Duration {
	p.out.mu.Lock()
	defer p.out.mu.Unlock()
	if !p.ended.IsZero() {
		return p.ended.Sub(p.started)
	}
	return time.Since(p.started)
}

// Stop sends SIGTERM to the process group, escalates to SIGKILL after a grace
// period and waits for the exit. Calling it again is a no-op.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		defer p.cancel()
		if !p.Alive() {
			return
		}
		p.signal(syscall.SIGTERM)
		select {
		case <-p.done:
		case <-time.After(killGrace):
			p.signal(syscall.SIGKILL)
			<-p.done
		}
	})
	return nil
}

// Pid returns the process ID.
func (p *Process) Pid() int {
	if p.cmd.Process != nil {
		return p.cmd.Process.Pid
	}
	return 0
}

func (p *Process) signal(sig syscall.Signal) {
	if p.cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-p.cmd.Process.Pid, sig); err != nil && !errors.Is(err, syscall.ESRCH) {
		_ = p.cmd.Process.Signal(sig)
	}
}

type outputBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *outputBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(data)
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func lastLine(s string) string {
	lines := strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' })
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
