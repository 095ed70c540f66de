// Package styles provides shared lipgloss styles for CLI and TUI components.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Tokyo Night color palette.
var (
	ColorGreen     = lipgloss.Color("#9ece6a")
	ColorYellow    = lipgloss.Color("#e0af68")
	ColorBlue      = lipgloss.Color("#7aa2f7")
	ColorRed       = lipgloss.Color("#f7768e")
	ColorGray      = lipgloss.Color("#565f89")
	ColorWhite     = lipgloss.Color("#c0caf5")
	ColorSelection = lipgloss.Color("#283457")
)

// Dot separates inline fields.
const Dot = "•"

// Banner is printed when the server starts on a terminal.
const Banner = `
 ╔═╗╔═╗╦═╗╦╔╗ ╔╗ ╦  ╔═╗
 ╚═╗║  ╠╦╝║╠╩╗╠╩╗║  ║╣
 ╚═╝╚═╝╩╚═╩╚═╝╚═╝╩═╝╚═╝`

// BannerStyle styles the ASCII art banner.
var BannerStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true)

// EventStyle styles the message type column of `scribble connect`.
var EventStyle = lipgloss.NewStyle().
	Foreground(ColorBlue).
	Bold(true).
	Width(12)

// UserStyle styles user ids.
var UserStyle = lipgloss.NewStyle().
	Foreground(ColorGreen)

// DividerStyle styles muted detail text and horizontal dividers.
var DividerStyle = lipgloss.NewStyle().
	Foreground(ColorGray)
