package commands

import "github.com/charmbracelet/lipgloss"

func colorRed(text string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(text)
}

func colorGreen(text string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Render(text)
}

func colorYellow(text string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Render(text)
}

func colorCyan(text string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Render(text)
}

func bold(text string) string {
	return lipgloss.NewStyle().Bold(true).Render(text)
}

func faint(text string) string {
	return lipgloss.NewStyle().Faint(true).Render(text)
}
