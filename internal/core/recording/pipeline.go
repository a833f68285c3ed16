// Package recording drives one utterance from microphone to analysis:
// capture, finalize, upload, and store the backend's result.
package recording

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hay-kot/parley/internal/core/cache"
	"github.com/hay-kot/parley/internal/core/speech"
)

// State is a step of the pipeline.
type State int

const (
	Idle State = iota
	Recording
	Stopped
	Analyzing
	Result
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	case Analyzing:
		return "analyzing"
	case Result:
		return "result"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrInvalidTransition is returned when an action is not valid in the
	// current state.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrReset is returned from Submit when the pipeline was reset while the
	// upload was in flight.
	ErrReset = errors.New("pipeline reset")
)

// DeviceError reports that audio capture could not start or finish.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("capture device %s: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Audio is a finalized recording.
type Audio struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Analyzer is the backend surface used to score a recording.
type Analyzer interface {
	StartSpeech(ctx context.Context) (string, error)
	StopSpeech(ctx context.Context, sessionID, filename string, audio io.Reader) (speech.AnalysisResult, error)
}

// Invalidator marks server data stale.
type Invalidator interface {
	Invalidate(key cache.Key)
}

// Transition is delivered to observers after every state change.
type Transition struct {
	From State
	To   State
	Err  error
}

// Pipeline is the recording state machine. Start, Stop and Submit are
// serialized; Reset may be called at any time and abandons an upload in
// flight.
type Pipeline struct {
	log      zerolog.Logger
	device   Device
	analyzer Analyzer
	cache    Invalidator

	op sync.Mutex

	mu        sync.Mutex
	state     State
	epoch     uint64
	capture   Capture
	audio     *Audio
	sessionID string
	result    *speech.AnalysisResult
	err       error
	cancel    context.CancelFunc
	observers []func(Transition)
}

// NewPipeline creates a Pipeline in the Idle state.
func NewPipeline(log zerolog.Logger, device Device, analyzer Analyzer, inv Invalidator) *Pipeline {
	return &Pipeline{
		log:      log,
		device:   device,
		analyzer: analyzer,
		cache:    inv,
		state:    Idle,
	}
}

// OnTransition registers fn to run after each state change. Observers run
// synchronously and must not call pipeline actions.
func (p *Pipeline) OnTransition(fn func(Transition)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Audio returns the finalized recording, if any.
func (p *Pipeline) Audio() (Audio, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio == nil {
		return Audio{}, false
	}
	return *p.audio, true
}

// Result returns the analysis, if the pipeline reached Result.
func (p *Pipeline) Result() (speech.AnalysisResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil {
		return speech.AnalysisResult{}, false
	}
	return *p.result, true
}

// SessionID returns the backend session id of the last submission.
func (p *Pipeline) SessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionID
}

// Err returns the error that moved the pipeline to Error.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Start acquires the capture device and begins recording. When the device
// cannot start a *DeviceError is returned and the pipeline stays Idle.
func (p *Pipeline) Start(ctx context.Context) error {
	p.op.Lock()
	defer p.op.Unlock()

	if err := p.expect("start", Idle); err != nil {
		return err
	}

	capture, err := p.device.Start(ctx)
	if err != nil {
		var derr *DeviceError
		if !errors.As(err, &derr) {
			err = &DeviceError{Device: p.device.Name(), Err: err}
		}
		p.log.Warn().Err(err).Msg("capture failed to start")
		return err
	}

	p.mu.Lock()
	p.capture = capture
	p.audio = nil
	p.result = nil
	p.err = nil
	p.sessionID = ""
	t := p.setLocked(Recording, nil)
	p.mu.Unlock()

	p.emit(t)
	return nil
}

// Stop ends the capture and finalizes the audio payload. If the device fails
// to produce audio the pipeline returns to Idle with a *DeviceError.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.op.Lock()
	defer p.op.Unlock()

	if err := p.expect("stop", Recording); err != nil {
		return err
	}

	p.mu.Lock()
	capture := p.capture
	p.mu.Unlock()

	audio, err := capture.Stop(ctx)
	if err == nil && len(audio.Data) == 0 {
		err = errors.New("no audio captured")
	}
	if err != nil {
		var derr *DeviceError
		if !errors.As(err, &derr) {
			err = &DeviceError{Device: p.device.Name(), Err: err}
		}

		p.mu.Lock()
		p.capture = nil
		t := p.setLocked(Idle, err)
		p.mu.Unlock()

		p.emit(t)
		return err
	}

	p.mu.Lock()
	p.capture = nil
	p.audio = &audio
	t := p.setLocked(Stopped, nil)
	p.mu.Unlock()

	p.log.Debug().Int("bytes", len(audio.Data)).Str("file", audio.Filename).Msg("recording finalized")
	p.emit(t)
	return nil
}

// Submit requests a session id, uploads the audio and waits for the
// analysis. On success the dashboard and history cache entries are
// invalidated. On failure the pipeline moves to Error keeping the audio so
// Submit can be retried.
func (p *Pipeline) Submit(ctx context.Context) (speech.AnalysisResult, error) {
	p.op.Lock()
	defer p.op.Unlock()

	p.mu.Lock()
	if (p.state != Stopped && p.state != Error) || p.audio == nil {
		err := p.invalidLocked("submit")
		p.mu.Unlock()
		return speech.AnalysisResult{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	audio := *p.audio
	epoch := p.epoch
	p.cancel = cancel
	p.err = nil
	t := p.setLocked(Analyzing, nil)
	p.mu.Unlock()

	p.emit(t)

	result, err := p.analyze(ctx, audio)

	if err == nil {
		p.cache.Invalidate(cache.KeyDashboard)
		p.cache.Invalidate(cache.KeyHistory)
	}

	p.mu.Lock()
	p.cancel = nil

	if p.epoch != epoch {
		p.mu.Unlock()
		p.log.Debug().Msg("discarding analysis after reset")
		return speech.AnalysisResult{}, ErrReset
	}

	if err != nil {
		p.err = err
		t = p.setLocked(Error, err)
		p.mu.Unlock()

		p.log.Warn().Err(err).Msg("analysis failed")
		p.emit(t)
		return speech.AnalysisResult{}, err
	}

	p.result = &result
	t = p.setLocked(Result, nil)
	p.mu.Unlock()

	p.log.Info().Str("session_id", result.SessionID).Float64("grammar", result.GrammarScore).Msg("analysis complete")
	p.emit(t)
	return result, nil
}

func (p *Pipeline) analyze(ctx context.Context, audio Audio) (speech.AnalysisResult, error) {
	id, err := p.analyzer.StartSpeech(ctx)
	if err != nil {
		return speech.AnalysisResult{}, fmt.Errorf("start session: %w", err)
	}

	p.mu.Lock()
	p.sessionID = id
	p.mu.Unlock()

	result, err := p.analyzer.StopSpeech(ctx, id, audio.Filename, bytes.NewReader(audio.Data))
	if err != nil {
		return speech.AnalysisResult{}, fmt.Errorf("upload recording: %w", err)
	}
	return result, nil
}

// Reset returns to Idle from any state except Recording, discarding the
// audio payload and any result. An upload in flight is abandoned.
func (p *Pipeline) Reset() error {
	p.mu.Lock()

	if p.state == Recording {
		err := p.invalidLocked("reset")
		p.mu.Unlock()
		return err
	}

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	p.epoch++
	p.audio = nil
	p.result = nil
	p.err = nil
	p.sessionID = ""

	if p.state == Idle {
		p.mu.Unlock()
		return nil
	}

	t := p.setLocked(Idle, nil)
	p.mu.Unlock()

	p.emit(t)
	return nil
}

// Close abandons an active capture and resets the pipeline.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	capture := p.capture
	p.capture = nil
	var t *Transition
	if p.state == Recording {
		t = p.setLocked(Idle, nil)
	}
	p.mu.Unlock()

	var err error
	if capture != nil {
		err = capture.Abort()
	}
	if t != nil {
		p.emit(t)
	}

	if rerr := p.Reset(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

func (p *Pipeline) expect(action string, want State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != want {
		return p.invalidLocked(action)
	}
	return nil
}

func (p *Pipeline) invalidLocked(action string) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, action, p.state)
}

func (p *Pipeline) setLocked(to State, err error) *Transition {
	t := &Transition{From: p.state, To: to, Err: err}
	p.state = to
	p.log.Debug().Stringer("from", t.From).Stringer("to", t.To).Msg("transition")
	return t
}

func (p *Pipeline) emit(t *Transition) {
	p.mu.Lock()
	observers := make([]func(Transition), len(p.observers))
	copy(observers, p.observers)
	p.mu.Unlock()

	for _, fn := range observers {
		fn(*t)
	}
}
