// Package tui implements the Bubble Tea TUI for parley.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/parley/internal/styles"
)

// Tokyo Night color palette.
var (
	colorGreen  = styles.ColorGreen
	colorYellow = styles.ColorYellow
	colorBlue   = styles.ColorBlue
	colorRed    = styles.ColorRed
	colorGray   = styles.ColorGray
	colorWhite  = styles.ColorWhite
)

var (
	bannerStyle = styles.BannerStyle.
			PaddingLeft(1).
			PaddingBottom(1)

	tabStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true).
			Underline(true).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			PaddingLeft(1)

	userStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			PaddingLeft(1)

	noticeStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			PaddingLeft(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(colorBlue)
)

// Recording state styles.
var (
	recordingStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	readyStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	busyStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)

// Modal styles.
var (
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBlue).
			Padding(1, 2)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	modalHelpStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			MarginTop(1)

	modalButtonStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(lipgloss.Color("#3b4261")).
				Foreground(lipgloss.Color("#a9b1d6"))

	modalButtonSelectedStyle = lipgloss.NewStyle().
					Padding(0, 1).
					Background(colorBlue).
					Foreground(lipgloss.Color("#1a1b26")).
					Bold(true)
)

const iconDot = "•"
