// Package tui implements the live room dashboard shown by `scribble top`.
package tui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/hay-kot/scribble/internal/styles"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.ColorBlue).
			PaddingLeft(1)

	summaryStyle = lipgloss.NewStyle().
			Foreground(styles.ColorWhite).
			PaddingLeft(1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGray).
			PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(styles.ColorRed).
			PaddingLeft(1)

	liveStyle = lipgloss.NewStyle().
			Foreground(styles.ColorGreen)

	staleStyle = lipgloss.NewStyle().
			Foreground(styles.ColorYellow)
)

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ColorGray).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.ColorBlue)
	s.Selected = s.Selected.
		Foreground(styles.ColorWhite).
		Background(styles.ColorSelection).
		Bold(false)
	return s
}
