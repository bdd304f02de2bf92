package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/zhouzirui/codetutor/backend/internal/model/mode"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#e53935"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8f98"))
	botStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#f2f2f2"))
	noticeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#FFC107")).
			Padding(0, 1)
	videoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2196F3")).Underline(true)
)

// badge renders the mode badge in the profile's colour.
func badge(p mode.Profile) string {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(p.Color)).
		Foreground(lipgloss.Color("#ffffff")).
		Bold(true).
		Padding(0, 1).
		Render(p.Icon + " " + p.Name)
}
