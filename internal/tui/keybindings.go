package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the bindings of the signed in screens.
type keyMap struct {
	NextTab  key.Binding
	PrevTab  key.Binding
	Tabs     key.Binding
	Refresh  key.Binding
	Logout   key.Binding
	Quit     key.Binding
	Record   key.Binding
	Discard  key.Binding
	Retry    key.Binding
	ScrollUp key.Binding
	ScrollDn key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		NextTab: key.NewBinding(
			key.WithKeys("tab", "right", "l"),
			key.WithHelp("tab", "next view"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab", "left", "h"),
			key.WithHelp("shift+tab", "previous view"),
		),
		Tabs: key.NewBinding(
			key.WithKeys("1", "2", "3", "4"),
			key.WithHelp("1-4", "jump to view"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Logout: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "log out"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Record: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "record/stop"),
		),
		Discard: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "discard"),
		),
		Retry: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "resubmit"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll"),
		),
		ScrollDn: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll"),
		),
	}
}

// helpFor returns the bindings shown in the footer for view v.
func (k keyMap) helpFor(v ViewType) []key.Binding {
	if v == ViewRecord {
		return []key.Binding{k.Record, k.Discard, k.Retry, k.NextTab, k.Logout, k.Quit}
	}
	return []key.Binding{k.NextTab, k.Tabs, k.ScrollDn, k.Refresh, k.Logout, k.Quit}
}

// tabForKey maps the digit keys to views.
func tabForKey(s string) (ViewType, bool) {
	if len(s) != 1 || s[0] < '1' || s[0] > '0'+byte(viewCount) {
		return 0, false
	}
	return ViewType(s[0] - '1'), true
}
