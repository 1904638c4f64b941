// Package tui provides the Bubble Tea project picker and the snapshot
// status table.
package tui

import "github.com/h0rv/ghpsync/internal/domain"

// ProjectsLoadedMsg is emitted when the picker's project list has been
// fetched.
type ProjectsLoadedMsg struct {
	Projects []domain.ProjectSummary
}

// ProjectSelectedMsg is emitted when the user selects a project.
type ProjectSelectedMsg struct {
	Project domain.ProjectSummary
}

// ErrorMsg is emitted when an error occurs.
type ErrorMsg struct {
	Err error
}
