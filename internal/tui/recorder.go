package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hay-kot/parley/internal/core/recording"
	"github.com/hay-kot/parley/internal/report"
)

// recordDoneMsg is sent when a pipeline action finishes.
type recordDoneMsg struct {
	action string
	err    error
}

// Recorder drives the recording pipeline from the Record view.
type Recorder struct {
	pipeline    *recording.Pipeline
	transitions chan recording.Transition
	device      string
	started     time.Time
	busy        bool
}

// NewRecorder wraps p. Transitions are coalesced; the view reads the
// pipeline's current state when notified.
func NewRecorder(p *recording.Pipeline, device string) *Recorder {
	r := &Recorder{
		pipeline:    p,
		transitions: make(chan recording.Transition, 1),
		device:      device,
	}
	p.OnTransition(func(t recording.Transition) {
		latest(r.transitions, t)
	})
	return r
}

// Transitions delivers pipeline state changes.
func (r *Recorder) Transitions() <-chan recording.Transition {
	return r.transitions
}

// Busy reports whether an action is running.
func (r *Recorder) Busy() bool {
	return r.busy
}

// Animating reports whether the view changes without a transition.
func (r *Recorder) Animating() bool {
	switch r.pipeline.State() {
	case recording.Recording, recording.Stopped, recording.Analyzing:
		return true
	}
	return false
}

// Toggle starts a recording, or stops and submits the current one. A shown
// result is discarded before a new recording starts.
func (r *Recorder) Toggle(ctx context.Context) tea.Cmd {
	if r.busy {
		return nil
	}

	switch r.pipeline.State() {
	case recording.Idle, recording.Result:
		r.busy = true
		r.started = time.Now()
		return func() tea.Msg {
			if r.pipeline.State() == recording.Result {
				if err := r.pipeline.Reset(); err != nil {
					return recordDoneMsg{action: "start", err: err}
				}
			}
			return recordDoneMsg{action: "start", err: r.pipeline.Start(ctx)}
		}
	case recording.Recording:
		r.busy = true
		return func() tea.Msg {
			if err := r.pipeline.Stop(ctx); err != nil {
				return recordDoneMsg{action: "stop", err: err}
			}
			_, err := r.pipeline.Submit(ctx)
			return recordDoneMsg{action: "submit", err: err}
		}
	}
	return nil
}

// Resubmit uploads the kept audio again after a failed analysis.
func (r *Recorder) Resubmit(ctx context.Context) tea.Cmd {
	if r.busy || r.pipeline.State() != recording.Error {
		return nil
	}
	if _, ok := r.pipeline.Audio(); !ok {
		return nil
	}

	r.busy = true
	return func() tea.Msg {
		_, err := r.pipeline.Submit(ctx)
		return recordDoneMsg{action: "submit", err: err}
	}
}

// Discard returns the pipeline to Idle, aborting a capture or abandoning an
// upload.
func (r *Recorder) Discard() {
	if r.pipeline.State() == recording.Recording {
		_ = r.pipeline.Close()
		return
	}
	_ = r.pipeline.Reset()
}

// Done clears the busy flag after an action finished. It returns the error
// worth showing, if any.
func (r *Recorder) Done(msg recordDoneMsg) error {
	r.busy = false
	if msg.err == nil || errors.Is(msg.err, recording.ErrReset) || errors.Is(msg.err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("%s: %w", msg.action, msg.err)
}

// Close aborts any capture in progress.
func (r *Recorder) Close() {
	_ = r.pipeline.Close()
}

// View renders the Record view. Results are rendered as markdown.
func (r *Recorder) View(width int, spin string) string {
	var b strings.Builder

	state := r.pipeline.State()
	switch state {
	case recording.Idle:
		b.WriteString(readyStyle.Render("● Ready"))
		fmt.Fprintf(&b, "\n\nPress space to record from %s.", r.device)
	case recording.Recording:
		elapsed := time.Since(r.started).Truncate(time.Second)
		b.WriteString(recordingStyle.Render(fmt.Sprintf("● Recording %s", elapsed)))
		b.WriteString("\n\nPress space to stop and analyze, esc to discard.")
	case recording.Stopped, recording.Analyzing:
		b.WriteString(busyStyle.Render(spin + " Analyzing"))
		if audio, ok := r.pipeline.Audio(); ok {
			fmt.Fprintf(&b, "\n\nUploading %d bytes. Press esc to discard.", len(audio.Data))
		}
	case recording.Error:
		b.WriteString(errorStyle.UnsetPaddingLeft().Render("✘ Analysis failed"))
		if err := r.pipeline.Err(); err != nil {
			fmt.Fprintf(&b, "\n\n%v", err)
		}
		b.WriteString("\n\nPress s to resubmit the same recording, esc to discard.")
	case recording.Result:
		res, _ := r.pipeline.Result()
		b.WriteString(readyStyle.Render("✔ Analysis complete"))
		b.WriteString("\n")
		b.WriteString(report.Render(report.Result(res), width))
		b.WriteString("\nPress space to record again.")
	}

	return b.String()
}
