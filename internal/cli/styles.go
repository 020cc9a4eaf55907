package cli

import "github.com/charmbracelet/lipgloss"

// Terminal styles for chat and session output.
var (
	styleAssistant = lipgloss.NewStyle().Foreground(lipgloss.Color("#7dd3fc")).Bold(true)
	styleNotice    = lipgloss.NewStyle().Foreground(lipgloss.Color("#a3a3a3")).Italic(true)
	styleHeader    = lipgloss.NewStyle().Foreground(lipgloss.Color("#c084fc")).Bold(true)
	stylePrompt    = lipgloss.NewStyle().Foreground(lipgloss.Color("#86efac"))
	styleSequence  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#525252")).
			Padding(0, 1)
)
