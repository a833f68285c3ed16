package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hay-kot/parley/internal/core/auth"
	"github.com/hay-kot/parley/internal/core/cache"
	"github.com/hay-kot/parley/internal/core/recording"
)

// queryMsg carries a new state for a subscribed cache key.
type queryMsg struct {
	sub   *cache.Subscription
	state cache.State
}

// queryClosedMsg is sent when a subscription ends, usually because the cache
// was cleared.
type queryClosedMsg struct {
	sub *cache.Subscription
}

// sessionMsg is sent when the authenticated state flips.
type sessionMsg struct {
	state auth.SessionState
}

// reloadMsg is sent when the backend rejected the credential.
type reloadMsg struct{}

// credentialTickMsg triggers a re-read of the stored credential.
type credentialTickMsg struct{}

// transitionMsg reports a recording pipeline state change.
type transitionMsg struct {
	t recording.Transition
}

// waitForQuery returns a command that delivers the next state of sub.
func waitForQuery(sub *cache.Subscription) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-sub.Updates()
		if !ok {
			return queryClosedMsg{sub: sub}
		}
		return queryMsg{sub: sub, state: st}
	}
}

// waitForSession returns a command that delivers the next session change.
func waitForSession(ch <-chan auth.SessionState) tea.Cmd {
	return func() tea.Msg {
		return sessionMsg{state: <-ch}
	}
}

// waitForReload returns a command that fires when the client asks for a
// reload.
func waitForReload(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return reloadMsg{}
	}
}

// waitForTransition returns a command that delivers the next pipeline
// transition.
func waitForTransition(ch <-chan recording.Transition) tea.Cmd {
	return func() tea.Msg {
		return transitionMsg{t: <-ch}
	}
}

// scheduleCredentialRefresh returns a command that schedules the next check
// for credential changes made by other parley processes.
func (m Model) scheduleCredentialRefresh() tea.Cmd {
	interval := m.cfg.TUI.RefreshInterval
	if interval == 0 {
		return nil // Disabled
	}
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return credentialTickMsg{}
	})
}

// refreshCredential re-reads the stored credential. A change is published to
// the gate, which reports back through sessionMsg.
func (m Model) refreshCredential() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.service.Refresh(ctx)
		return nil
	}
}

// latest pushes v into a one-slot channel, replacing any undelivered value.
func latest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
