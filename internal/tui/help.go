package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

var (
	// HelpOverlayStyle defines the style for the help overlay container.
	HelpOverlayStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 2)
)

// HelpModel wraps the bubbles help component.
type HelpModel struct {
	help    help.Model
	keymap  KeyMap
	ShowAll bool
}

// NewHelpModel creates a help view for keymap.
func NewHelpModel(keymap KeyMap) HelpModel {
	return HelpModel{
		help:   help.New(),
		keymap: keymap,
	}
}

// View renders the short help line, or the full overlay when ShowAll is set.
func (m HelpModel) View(width int) string {
	if !m.ShowAll {
		m.help.Width = width
		return HelpStyle.Render(m.help.ShortHelpView(m.keymap.ShortHelp()))
	}
	m.help.Width = width - 6 // border and padding
	return HelpOverlayStyle.Render(m.help.FullHelpView(m.keymap.FullHelp()))
}
