package tui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hay-kot/parley/internal/api"
	"github.com/hay-kot/parley/internal/coach"
	"github.com/hay-kot/parley/internal/core/auth"
	"github.com/hay-kot/parley/internal/core/cache"
	"github.com/hay-kot/parley/internal/core/config"
	"github.com/hay-kot/parley/internal/store/jsonfile"
	"github.com/hay-kot/parley/pkg/executil"
)

func newTestService(t *testing.T) *coach.Service {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/user/me":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 1, "username": "alice", "email": "a@example.com"})
		case "/user/dashboard":
			_ = json.NewEncoder(w).Encode(map[string]any{"average_grammar": 81.5, "average_fluency": 64, "session_count": 3})
		case "/user/history":
			_ = json.NewEncoder(w).Encode([]map[string]any{{"id": 1, "grammar_score": 80, "created_at": "2025-03-01T10:00:00"}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.API.BaseURL = srv.URL
	cfg.TUI.RefreshInterval = 0

	svc, err := coach.New(&cfg, jsonfile.NewCredentialStore(cfg.CredentialsFile()), &executil.RecordingExecutor{}, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func signIn(t *testing.T, svc *coach.Service) {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, svc.Tokens().Save(context.Background(), tok))
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm
}

// drain waits for the first loaded state of key and feeds it to the model.
func drain(t *testing.T, m Model, key cache.Key) Model {
	t.Helper()
	for range 10 {
		msg := waitForQuery(m.subs[key])()
		qm, ok := msg.(queryMsg)
		require.True(t, ok, "subscription closed")
		m = update(t, m, qm)
		if qm.state.Data != nil && !qm.state.IsFetching {
			return m
		}
	}
	t.Fatalf("%s never loaded", key)
	return m
}

func TestModel_SignedOutShowsAuthForm(t *testing.T) {
	svc := newTestService(t)

	m := New(svc, svc.Config())
	t.Cleanup(m.Close)

	require.NotNil(t, m.authForm)
	assert.Empty(t, m.subs)

	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	assert.Contains(t, m.View(), "Account")
}

func TestModel_SignedInLoadsDashboard(t *testing.T) {
	svc := newTestService(t)
	signIn(t, svc)

	m := New(svc, svc.Config())
	t.Cleanup(m.Close)

	require.Nil(t, m.authForm)
	require.Len(t, m.subs, 3)
	require.NotNil(t, m.recorder)
	assert.Equal(t, svc.CaptureDevice().Name(), m.recorder.device)

	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m = drain(t, m, cache.KeyDashboard)
	m = drain(t, m, cache.KeyUser)

	view := m.View()
	assert.Contains(t, view, "81.5")
	assert.Contains(t, view, "alice")
}

func TestModel_TabNavigation(t *testing.T) {
	svc := newTestService(t)
	signIn(t, svc)

	m := New(svc, svc.Config())
	t.Cleanup(m.Close)
	m = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, ViewHistory, m.activeView)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'4'}})
	assert.Equal(t, ViewRecord, m.activeView)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	assert.Equal(t, ViewAnalytics, m.activeView)
}

func TestModel_SessionEndReturnsToSignIn(t *testing.T) {
	svc := newTestService(t)
	signIn(t, svc)

	m := New(svc, svc.Config())
	t.Cleanup(m.Close)

	subs := make([]*cache.Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}

	m = update(t, m, sessionMsg{state: auth.SessionState{}})

	assert.NotNil(t, m.authForm)
	assert.Empty(t, m.subs)
	assert.Nil(t, m.recorder)
	for _, s := range subs {
		assert.True(t, s.Closed())
	}
}

func TestModel_LogoutConfirmation(t *testing.T) {
	svc := newTestService(t)
	signIn(t, svc)

	m := New(svc, svc.Config())
	t.Cleanup(m.Close)
	m = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	require.True(t, m.confirming)
	assert.Contains(t, m.View(), "Log out")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.confirming)
	assert.True(t, svc.Gate().IsAuthenticated(context.Background()))

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.False(t, next.(Model).confirming)

	done, ok := cmd().(logoutDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)
	assert.False(t, svc.Gate().IsAuthenticated(context.Background()))
}

func TestModel_AuthResult(t *testing.T) {
	svc := newTestService(t)

	m := New(svc, svc.Config())
	t.Cleanup(m.Close)

	t.Run("registration returns to sign in", func(t *testing.T) {
		m := update(t, m, authResultMsg{mode: ModeRegister, username: "bob"})
		assert.Contains(t, m.notice, "bob")
		assert.Equal(t, ModeLogin, m.authForm.mode)
		assert.Equal(t, "bob", m.authForm.username)
	})

	t.Run("rejected login shows backend detail", func(t *testing.T) {
		err := &api.HTTPError{Status: http.StatusUnauthorized, Detail: "Invalid credentials"}
		m := update(t, m, authResultMsg{mode: ModeLogin, username: "bob", err: err})
		require.Error(t, m.err)
		assert.Equal(t, "Invalid credentials", m.err.Error())
		assert.False(t, m.authBusy)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		m := update(t, m, authResultMsg{mode: ModeLogin, err: errors.New("dial tcp: refused")})
		assert.Equal(t, "dial tcp: refused", m.err.Error())
	})
}
