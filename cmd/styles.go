package cmd

import "github.com/charmbracelet/lipgloss"

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	updStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("8"))
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)
