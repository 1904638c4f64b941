package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/ghpsync/internal/domain"
)

var (
	// TitleStyle is used for screen titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")). // Purple
			MarginBottom(1)

	// SelectedItemStyle is used for highlighted/selected items.
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")). // Light purple
				Bold(true)

	// NormalItemStyle is used for non-selected items.
	NormalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Light gray

	// DimStyle is used for secondary text.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")) // Dark gray

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// HelpStyle is used for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	// HeaderStyle is used for table headers.
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	// CellStyle is used for table cells.
	CellStyle = lipgloss.NewStyle().Padding(0, 1)
)

var statusColors = map[domain.Status]lipgloss.Color{
	domain.StatusTodo: lipgloss.Color("252"),
	domain.StatusWIP:  lipgloss.Color("214"), // Orange
	domain.StatusDone: lipgloss.Color("42"),  // Green
	domain.StatusNone: lipgloss.Color("241"),
}

// StatusStyle returns the cell style of a status column.
func StatusStyle(s domain.Status) lipgloss.Style {
	return CellStyle.Foreground(statusColors[s])
}
