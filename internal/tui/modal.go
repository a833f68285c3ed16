package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Confirm is a two button dialog drawn over the whole screen.
type Confirm struct {
	title   string
	message string
	yes     string
	no      string
	yesSel  bool
}

// NewConfirm creates a dialog with the affirmative button focused.
func NewConfirm(title, message, yes, no string) Confirm {
	return Confirm{title: title, message: message, yes: yes, no: no, yesSel: true}
}

// HandleKey applies a key press. done reports that the dialog should close,
// ok that the user accepted.
func (c *Confirm) HandleKey(k string) (done, ok bool) {
	switch k {
	case "left", "right", "tab", "shift+tab", "h", "l":
		c.yesSel = !c.yesSel
	case keyEsc, "n", "q":
		return true, false
	case "y":
		return true, true
	case keyEnter:
		return true, c.yesSel
	}
	return false, false
}

// Render draws the dialog centered in a width x height area.
func (c Confirm) Render(width, height int) string {
	yes, no := modalButtonStyle, modalButtonSelectedStyle
	if c.yesSel {
		yes, no = no, yes
	}

	buttons := lipgloss.JoinHorizontal(lipgloss.Center, yes.Render(c.yes), "  ", no.Render(c.no))

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		modalTitleStyle.Render(c.title),
		"",
		c.message,
		lipgloss.NewStyle().MarginTop(1).Render(buttons),
		modalHelpStyle.Render("←/→ select  enter confirm  y/n  esc cancel"),
	)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modalStyle.Render(content))
}
