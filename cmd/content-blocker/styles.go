package main

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

var theme = newStyles()

func newStyles() styles {
	accent := lipgloss.Color("#4ade80")
	muted := lipgloss.Color("#909090")
	return styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		Label:   lipgloss.NewStyle().Width(18).Foreground(muted),
		Muted:   lipgloss.NewStyle().Foreground(muted),
		Success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#22c55e")),
		Warning: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#eab308")),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ef4444")),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#333333")).
			Padding(0, 1),
	}
}

// field renders one "label value" line
func field(label, value string) string {
	return theme.Label.Render(label) + value
}
