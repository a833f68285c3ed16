package executil

import (
	"context"
	"sync"
	"time"
)

// RecordedCommand captures a command that was executed.
type RecordedCommand struct {
	Cmd  string
	Args []string
}

// RecordingExecutor captures commands for testing.
// Configure Outputs and Errors maps to control return values.
type RecordingExecutor struct {
	mu       sync.Mutex
	Commands []RecordedCommand

	// Outputs maps command names to their output.
	// Key is the command name (e.g., "ffmpeg").
	Outputs map[string][]byte

	// Errors maps command names to their error.
	Errors map[string]error

	// OnStart, when set, runs for every Start after it has been recorded.
	// Its error is returned from Start. Tests use it to produce the files a
	// real capture command would write.
	OnStart func(cmd RecordedCommand) error

	// StopErr is returned from Stop on processes started by this executor.
	StopErr error

	stopped int
	killed  int
}

// Run records the command and returns configured output/error.
func (e *RecordingExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	return e.record(cmd, args...)
}

// Start records the command and returns a process that exits when stopped.
func (e *RecordingExecutor) Start(ctx context.Context, cmd string, args ...string) (Process, error) {
	if _, err := e.record(cmd, args...); err != nil {
		return nil, err
	}

	if e.OnStart != nil {
		if err := e.OnStart(RecordedCommand{Cmd: cmd, Args: args}); err != nil {
			return nil, err
		}
	}

	return &fakeProcess{exec: e, done: make(chan struct{})}, nil
}

func (e *RecordingExecutor) record(cmd string, args ...string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Commands = append(e.Commands, RecordedCommand{
		Cmd:  cmd,
		Args: args,
	})

	var out []byte
	var err error

	if e.Outputs != nil {
		out = e.Outputs[cmd]
	}
	if e.Errors != nil {
		err = e.Errors[cmd]
	}

	return out, err
}

// Stopped returns how many started processes were stopped gracefully.
func (e *RecordingExecutor) Stopped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Killed returns how many started processes were killed.
func (e *RecordingExecutor) Killed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.killed
}

// Reset clears recorded commands.
func (e *RecordingExecutor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Commands = nil
	e.stopped = 0
	e.killed = 0
}

type fakeProcess struct {
	exec *RecordingExecutor
	once sync.Once
	done chan struct{}
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) Stop(time.Duration) error {
	p.once.Do(func() {
		p.exec.mu.Lock()
		p.exec.stopped++
		p.exec.mu.Unlock()
		close(p.done)
	})

	p.exec.mu.Lock()
	defer p.exec.mu.Unlock()
	return p.exec.StopErr
}

func (p *fakeProcess) Kill() error {
	p.once.Do(func() {
		p.exec.mu.Lock()
		p.exec.killed++
		p.exec.mu.Unlock()
		close(p.done)
	})
	return nil
}
