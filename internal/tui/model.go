package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/parley/internal/api"
	"github.com/hay-kot/parley/internal/coach"
	"github.com/hay-kot/parley/internal/core/auth"
	"github.com/hay-kot/parley/internal/core/cache"
	"github.com/hay-kot/parley/internal/core/config"
	"github.com/hay-kot/parley/internal/core/speech"
	"github.com/hay-kot/parley/internal/report"
	"github.com/hay-kot/parley/internal/styles"
)

// Key constants for event handling.
const (
	keyEnter = "enter"
	keyCtrlC = "ctrl+c"
	keyEsc   = "esc"
)

// chrome is the number of lines around the content: banner (4) + tab bar (1)
// + status (1) + help (1).
const chrome = 7

// authResultMsg is sent when a login or registration attempt finishes.
type authResultMsg struct {
	mode     AuthMode
	username string
	err      error
}

// logoutDoneMsg is sent when logout finishes.
type logoutDoneMsg struct {
	err error
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	service *coach.Service

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	viewport viewport.Model
	width    int
	height   int

	// Session
	session   auth.SessionState
	sessionCh chan auth.SessionState
	reloadCh  chan struct{}
	unsubGate func()

	// Signed out
	authForm *AuthForm
	authBusy bool
	notice   string
	err      error

	// Signed in
	activeView ViewType
	subs       map[cache.Key]*cache.Subscription
	states     map[cache.Key]cache.State
	recorder   *Recorder

	// Logout confirmation
	modal      Confirm
	confirming bool

	quitting bool
}

// New creates a new TUI model. The service's gate should already be started
// so credential changes reach the model.
func New(service *coach.Service, cfg *config.Config) Model {
	ctx, cancel := context.WithCancel(context.Background())

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	h := help.New()
	h.Styles.ShortKey = helpStyle
	h.Styles.ShortDesc = helpStyle
	h.Styles.ShortSeparator = helpStyle
	h.ShortSeparator = " " + iconDot + " "

	m := Model{
		ctx:       ctx,
		cancel:    cancel,
		cfg:       cfg,
		service:   service,
		keys:      newKeyMap(),
		help:      h,
		spinner:   s,
		viewport:  viewport.New(0, 0),
		sessionCh: make(chan auth.SessionState, 1),
		reloadCh:  make(chan struct{}, 1),
		subs:      make(map[cache.Key]*cache.Subscription),
		states:    make(map[cache.Key]cache.State),
	}

	m.unsubGate = service.Gate().Subscribe(func(st auth.SessionState) {
		latest(m.sessionCh, st)
	})
	service.Client().SetReload(func() {
		latest(m.reloadCh, struct{}{})
	})

	m.session = service.Gate().State()
	if m.session.Loading {
		m.session = service.Gate().Evaluate(ctx)
	}

	if m.session.Authenticated {
		m.mountQueries()
	} else {
		m.authForm = NewAuthForm(ModeLogin, "")
	}

	return m
}

// Close releases subscriptions and aborts any recording. It is safe to call
// after the program exits.
func (m Model) Close() {
	m.unmountQueries()
	if m.unsubGate != nil {
		m.unsubGate()
	}
	m.service.Client().SetReload(nil)
	m.cancel()
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		waitForSession(m.sessionCh),
		waitForReload(m.reloadCh),
	}
	if cmd := m.scheduleCredentialRefresh(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	cmds = append(cmds, m.queryCmds()...)
	if m.authForm != nil {
		cmds = append(cmds, m.authForm.Form().Init())
	}
	return tea.Batch(cmds...)
}

// mountQueries subscribes to the server state the signed in views show.
func (m *Model) mountQueries() {
	for _, k := range []cache.Key{cache.KeyUser, cache.KeyDashboard, cache.KeyHistory} {
		m.subs[k] = m.service.Cache().Subscribe(k)
	}
	if m.recorder == nil {
		device := m.service.CaptureDevice()
		m.recorder = NewRecorder(m.service.NewPipeline(device), device.Name())
	}
}

// queryCmds returns the listeners for every mounted subscription.
func (m Model) queryCmds() []tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.subs)+1)
	for _, sub := range m.subs {
		cmds = append(cmds, waitForQuery(sub))
	}
	if m.recorder != nil {
		cmds = append(cmds, waitForTransition(m.recorder.Transitions()))
	}
	return cmds
}

func (m *Model) unmountQueries() {
	for k, sub := range m.subs {
		sub.Close()
		delete(m.subs, k)
	}
	for k := range m.states {
		delete(m.states, k)
	}
	if m.recorder != nil {
		m.recorder.Close()
		m.recorder = nil
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(1, msg.Height-chrome)
		m.help.Width = msg.Width
		if m.authForm != nil {
			m.authForm.SetForm(m.authForm.Form().WithWidth(min(msg.Width-2, 60)))
		}
		m.refreshContent()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.activeView == ViewRecord && m.recorder != nil && m.recorder.Animating() {
			m.refreshContent()
		}
		return m, cmd

	case sessionMsg:
		return m.applySession(msg.state)

	case reloadMsg:
		m.notice = "Your session has ended. Sign in again."
		state := m.service.Gate().Evaluate(m.ctx)
		model, cmd := m.applySession(state)
		return model, tea.Batch(cmd, waitForReload(m.reloadCh))

	case credentialTickMsg:
		return m, tea.Batch(m.refreshCredential(), m.scheduleCredentialRefresh())

	case queryMsg:
		key := msg.sub.Key()
		if m.subs[key] != msg.sub {
			return m, nil
		}
		m.states[key] = msg.state
		if k, ok := m.activeView.Key(); ok && k == key {
			m.refreshContent()
		}
		return m, waitForQuery(msg.sub)

	case queryClosedMsg:
		key := msg.sub.Key()
		if m.subs[key] != msg.sub || !m.service.Gate().IsAuthenticated(m.ctx) {
			return m, nil
		}
		// Cleared while still signed in; mount a fresh reader.
		sub := m.service.Cache().Subscribe(key)
		m.subs[key] = sub
		return m, waitForQuery(sub)

	case transitionMsg:
		if m.recorder == nil {
			return m, nil
		}
		if m.activeView == ViewRecord {
			m.refreshContent()
		}
		return m, waitForTransition(m.recorder.Transitions())

	case recordDoneMsg:
		if m.recorder != nil {
			m.err = m.recorder.Done(msg)
			m.refreshContent()
		}
		return m, nil

	case authResultMsg:
		return m.handleAuthResult(msg)

	case logoutDoneMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.authForm != nil && !m.authBusy {
		return m.updateAuthForm(msg)
	}

	return m, nil
}

// applySession switches between the signed out and signed in screens.
func (m Model) applySession(state auth.SessionState) (tea.Model, tea.Cmd) {
	wasAuthenticated := m.session.Authenticated
	m.session = state
	cmds := []tea.Cmd{waitForSession(m.sessionCh)}

	switch {
	case state.Authenticated && !wasAuthenticated:
		m.authForm = nil
		m.authBusy = false
		m.notice = ""
		m.err = nil
		m.activeView = ViewDashboard
		m.mountQueries()
		cmds = append(cmds, m.queryCmds()...)
	case !state.Authenticated && wasAuthenticated:
		m.unmountQueries()
		m.confirming = false
		m.authForm = NewAuthForm(ModeLogin, "")
		m.authForm.SetForm(m.authForm.Form().WithWidth(min(max(m.width-2, 20), 60)))
		cmds = append(cmds, m.authForm.Form().Init())
	}

	m.refreshContent()
	return m, tea.Batch(cmds...)
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keyStr := msg.String()

	if keyStr == keyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}

	if m.confirming {
		return m.handleConfirmModalKey(keyStr)
	}

	if !m.session.Authenticated {
		if m.authBusy || m.authForm == nil {
			return m, nil
		}
		return m.updateAuthForm(msg)
	}

	return m.handleNormalKey(msg)
}

// updateAuthForm routes any message to the form and handles state changes.
func (m Model) updateAuthForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.authForm.Form().Update(msg)
	f, ok := form.(*huh.Form)
	if !ok {
		return m, cmd
	}
	m.authForm.SetForm(f)

	switch {
	case m.authForm.Aborted():
		m.quitting = true
		return m, tea.Quit
	case m.authForm.Completed():
		m.authBusy = true
		m.err = nil
		return m, tea.Batch(cmd, m.submitAuth(m.authForm.Result()))
	}

	return m, cmd
}

// submitAuth returns a command that logs in or registers.
func (m Model) submitAuth(res AuthFormResult) tea.Cmd {
	return func() tea.Msg {
		if res.Mode == ModeRegister {
			err := m.service.Register(m.ctx, res.Register)
			return authResultMsg{mode: res.Mode, username: res.Username, err: err}
		}
		_, err := m.service.Login(m.ctx, res.Username, res.Password)
		return authResultMsg{mode: res.Mode, username: res.Username, err: err}
	}
}

func (m Model) handleAuthResult(msg authResultMsg) (tea.Model, tea.Cmd) {
	m.authBusy = false

	if msg.err == nil && msg.mode == ModeLogin {
		// The gate reports the new session through sessionMsg.
		return m, nil
	}

	mode := msg.mode
	if msg.err == nil {
		m.notice = fmt.Sprintf("Account %s created. Sign in to continue.", msg.username)
		mode = ModeLogin
	} else {
		m.err = describeAuthError(msg.err)
	}

	m.authForm = NewAuthForm(mode, msg.username)
	m.authForm.SetForm(m.authForm.Form().WithWidth(min(max(m.width-2, 20), 60)))
	return m, m.authForm.Form().Init()
}

func describeAuthError(err error) error {
	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) && httpErr.Detail != "" {
		return errors.New(httpErr.Detail)
	}
	return err
}

// handleConfirmModalKey handles keys when the logout dialog is shown.
func (m Model) handleConfirmModalKey(keyStr string) (tea.Model, tea.Cmd) {
	done, ok := m.modal.HandleKey(keyStr)
	if !done {
		return m, nil
	}
	m.confirming = false
	if ok {
		return m, m.logout()
	}
	return m, nil
}

func (m Model) logout() tea.Cmd {
	return func() tea.Msg {
		return logoutDoneMsg{err: m.service.Logout(m.ctx)}
	}
}

// handleNormalKey handles keys on the signed in views.
func (m Model) handleNormalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keyStr := msg.String()

	recording := m.activeView == ViewRecord && m.recorder != nil

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.NextTab):
		return m.switchView(m.activeView.Next())
	case key.Matches(msg, m.keys.PrevTab):
		return m.switchView(m.activeView.Prev())
	case key.Matches(msg, m.keys.Tabs):
		if v, ok := tabForKey(keyStr); ok {
			return m.switchView(v)
		}
	case key.Matches(msg, m.keys.Logout):
		m.modal = NewConfirm("Log out", "Remove the stored credential and return to sign in?", "Log out", "Stay")
		m.confirming = true
		return m, nil
	case recording && key.Matches(msg, m.keys.Record):
		m.err = nil
		cmd := m.recorder.Toggle(m.ctx)
		m.refreshContent()
		return m, cmd
	case recording && key.Matches(msg, m.keys.Discard):
		m.recorder.Discard()
		m.err = nil
		m.refreshContent()
		return m, nil
	case recording && key.Matches(msg, m.keys.Retry):
		m.err = nil
		return m, m.recorder.Resubmit(m.ctx)
	case key.Matches(msg, m.keys.Refresh):
		if k, ok := m.activeView.Key(); ok {
			m.service.Cache().Invalidate(k)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) switchView(v ViewType) (tea.Model, tea.Cmd) {
	m.activeView = v
	m.err = nil
	m.refreshContent()
	m.viewport.GotoTop()
	return m, nil
}

// refreshContent renders the active view into the viewport.
func (m *Model) refreshContent() {
	if !m.session.Authenticated || m.width == 0 {
		return
	}

	offset := m.viewport.YOffset
	m.viewport.SetContent(m.renderContent())
	m.viewport.SetYOffset(offset)
}

func (m Model) renderContent() string {
	width := max(20, min(m.width, 120))

	if m.activeView == ViewRecord {
		if m.recorder == nil {
			return ""
		}
		return lipgloss.NewStyle().PaddingLeft(1).Render(m.recorder.View(width-2, m.spinner.View()))
	}

	k, _ := m.activeView.Key()
	st, ok := m.states[k]
	if !ok || st.IsLoading {
		return "\n " + m.spinner.View() + " Loading " + strings.ToLower(m.activeView.String())
	}
	if st.Data == nil {
		if st.Err != nil {
			return errorStyle.Render("\n" + st.Err.Error())
		}
		return ""
	}

	var md string
	switch m.activeView {
	case ViewDashboard:
		d, _ := st.Data.(speech.Dashboard)
		md = report.Dashboard(d)
	case ViewHistory:
		sessions, _ := st.Data.([]speech.Session)
		md = report.History(sessions)
	case ViewAnalytics:
		sessions, _ := st.Data.([]speech.Session)
		md = report.Analytics(speech.Analyze(sessions))
	}

	return report.Render(md, width)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.confirming && m.width > 0 {
		return m.modal.Render(m.width, m.height)
	}

	banner := bannerStyle.Render(strings.TrimPrefix(styles.Banner, "\n"))

	if !m.session.Authenticated {
		return lipgloss.JoinVertical(lipgloss.Left, banner, m.authView())
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		banner,
		m.tabBar(),
		m.viewport.View(),
		m.statusLine(),
		lipgloss.NewStyle().PaddingLeft(1).Render(m.help.ShortHelpView(m.keys.helpFor(m.activeView))),
	)
}

func (m Model) authView() string {
	var lines []string
	if m.notice != "" {
		lines = append(lines, noticeStyle.Render(m.notice), "")
	}
	if m.err != nil {
		lines = append(lines, errorStyle.Render("✘ "+m.err.Error()), "")
	}

	switch {
	case m.authBusy:
		lines = append(lines, " "+m.spinner.View()+" Contacting "+m.service.Client().BaseURL())
	case m.authForm != nil:
		lines = append(lines, lipgloss.NewStyle().PaddingLeft(1).Render(m.authForm.View()))
	}

	return strings.Join(lines, "\n")
}

func (m Model) tabBar() string {
	tabs := make([]string, 0, viewCount)
	for v := ViewType(0); v < viewCount; v++ {
		label := fmt.Sprintf("%d %s", v+1, v)
		if v == m.activeView {
			tabs = append(tabs, activeTabStyle.Render(label))
		} else {
			tabs = append(tabs, tabStyle.Render(label))
		}
	}
	left := lipgloss.JoinHorizontal(lipgloss.Left, tabs...)

	right := ""
	if st, ok := m.states[cache.KeyUser]; ok {
		if u, ok := st.Data.(speech.User); ok {
			right = userStyle.Render(u.Username) + " "
		}
	}

	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) statusLine() string {
	if m.err != nil {
		return errorStyle.Render("✘ " + m.err.Error())
	}

	k, ok := m.activeView.Key()
	if !ok {
		return statusStyle.Render(fmt.Sprintf("capture: %s", strings.Join(m.cfg.Capture.Command, " ")))
	}

	st := m.states[k]
	switch {
	case st.IsFetching:
		return statusStyle.Render(m.spinner.View() + " refreshing")
	case st.Err != nil:
		return errorStyle.Render("✘ refresh failed: " + st.Err.Error())
	case !st.UpdatedAt.IsZero():
		return statusStyle.Render("updated " + st.UpdatedAt.Local().Format(time.TimeOnly))
	}
	return ""
}
