// Package executil runs external programs: short commands whose output is
// collected, and long-running processes such as audio capture that are
// stopped on demand.
package executil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Executor runs external commands.
type Executor interface {
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
	// Start launches a long-running command. The process is killed if ctx
	// is cancelled.
	Start(ctx context.Context, cmd string, args ...string) (Process, error)
}

// Process is a running command.
type Process interface {
	// Stop asks the process to exit with an interrupt and waits up to grace
	// before killing it. A process that exits because it was interrupted is
	// not an error.
	Stop(grace time.Duration) error
	// Kill terminates the process immediately.
	Kill() error
	// Done is closed once the process has exited.
	Done() <-chan struct{}
}

// RealExecutor calls actual commands.
type RealExecutor struct{}

// Run executes a command and returns its combined output.
func (e *RealExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, cmd, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("exec %s: %w", cmd, err)
	}
	return out, nil
}

// Start launches cmd in the background.
func (e *RealExecutor) Start(ctx context.Context, cmd string, args ...string) (Process, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	p := &process{name: cmd, cmd: c, done: make(chan struct{})}
	c.Stderr = &p.stderr

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("exec %s: %w", cmd, err)
	}

	go func() {
		p.err = c.Wait()
		close(p.done)
	}()

	return p, nil
}

type process struct {
	name   string
	cmd    *exec.Cmd
	stderr bytes.Buffer
	done   chan struct{}
	err    error

	mu          sync.Mutex
	interrupted bool
}

func (p *process) Done() <-chan struct{} { return p.done }

func (p *process) Stop(grace time.Duration) error {
	select {
	case <-p.done:
		return p.exitErr()
	default:
	}

	p.mu.Lock()
	p.interrupted = true
	p.mu.Unlock()

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		// interrupts are not supported everywhere
		_ = p.cmd.Process.Kill()
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(grace):
		_ = p.cmd.Process.Kill()
		<-p.done
		return fmt.Errorf("exec %s: did not exit within %s of interrupt", p.name, grace)
	}
}

func (p *process) Kill() error {
	select {
	case <-p.done:
		return nil
	default:
	}

	p.mu.Lock()
	p.interrupted = true
	p.mu.Unlock()

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("exec %s: kill: %w", p.name, err)
	}
	<-p.done
	return nil
}

func (p *process) exitErr() error {
	if p.err == nil {
		return nil
	}

	msg := strings.TrimSpace(p.stderr.String())
	if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
		msg = msg[i+1:]
	}
	if msg != "" {
		return fmt.Errorf("exec %s: %w: %s", p.name, p.err, msg)
	}
	return fmt.Errorf("exec %s: %w", p.name, p.err)
}
