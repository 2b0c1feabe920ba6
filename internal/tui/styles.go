package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hheimbuerger/code-brainstormer-lm/internal/model"
)

// Color constants matching the dark editor theme
const (
	ColorBg     = "#0d1117"
	ColorCard   = "#161b22"
	ColorBorder = "#30363d"
	ColorBlue   = "#58a6ff"
	ColorGreen  = "#3fb950"
	ColorRed    = "#f85149"
	ColorYellow = "#d29922"
	ColorGray   = "#8b949e"
	ColorText   = "#c9d1d9"
	ColorBright = "#f0f6fc"
)

// Styles holds all lipgloss styles for the TUI
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Help     lipgloss.Style

	// Lifecycle badges
	BadgeUnset  lipgloss.Style
	BadgeAuto   lipgloss.Style
	BadgeEdited lipgloss.Style
	BadgeLocked lipgloss.Style

	// Function list
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style

	// Aspect display
	AspectName lipgloss.Style
	AspectBody lipgloss.Style

	Border       lipgloss.Style
	ActiveBorder lipgloss.Style
}

// DefaultStyles creates the default style set
func DefaultStyles() *Styles {
	badge := lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorBg)).
		Padding(0, 1).
		Bold(true)

	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(ColorBright)).
			MarginBottom(1),

		Subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText)).
			MarginBottom(1),

		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorGray)).
			Italic(true),

		BadgeUnset:  badge.Background(lipgloss.Color(ColorGray)),
		BadgeAuto:   badge.Background(lipgloss.Color(ColorBlue)),
		BadgeEdited: badge.Background(lipgloss.Color(ColorGreen)),
		BadgeLocked: badge.Background(lipgloss.Color(ColorYellow)),

		ListItem: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText)).
			Padding(0, 1),

		ListSelected: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorBright)).
			Background(lipgloss.Color(ColorCard)).
			Bold(true).
			Padding(0, 1),

		AspectName: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorBlue)).
			Bold(true),

		AspectBody: lipgloss.NewStyle().
			Foreground(lipgloss.Color(ColorText)),

		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBorder)).
			Padding(1, 2),

		ActiveBorder: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorBlue)).
			Padding(1, 2),
	}
}

// LifecycleBadge returns the badge style for an aspect lifecycle.
func (s *Styles) LifecycleBadge(l model.Lifecycle) lipgloss.Style {
	switch l {
	case model.LifecycleAutogenerated:
		return s.BadgeAuto
	case model.LifecycleEdited:
		return s.BadgeEdited
	case model.LifecycleLocked:
		return s.BadgeLocked
	default:
		return s.BadgeUnset
	}
}

// LifecycleLabel returns the short badge text for a lifecycle.
func LifecycleLabel(l model.Lifecycle) string {
	switch l {
	case model.LifecycleAutogenerated:
		return "auto"
	case model.LifecycleEdited:
		return "edit"
	case model.LifecycleLocked:
		return "lock"
	default:
		return "----"
	}
}
