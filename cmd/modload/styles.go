package main

import "github.com/charmbracelet/lipgloss"

var (
	colorCyan  = lipgloss.Color("14")
	colorGreen = lipgloss.Color("82")
	colorRed   = lipgloss.Color("196")

	styleURL    = lipgloss.NewStyle().Foreground(colorCyan)
	styleFormat = lipgloss.NewStyle().Foreground(colorGreen)
	styleName   = lipgloss.NewStyle().Bold(true)
	styleDim    = lipgloss.NewStyle().Faint(true)
	styleError  = lipgloss.NewStyle().Bold(true).Foreground(colorRed)
)
