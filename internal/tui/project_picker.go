package tui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/ghpsync/internal/domain"
)

// ErrNoSelection is returned by PickProject when the user quits without
// choosing a project.
var ErrNoSelection = errors.New("no project selected")

// projectItem wraps a domain.ProjectSummary for use in bubbles/list.
type projectItem struct {
	project domain.ProjectSummary
}

func (i projectItem) FilterValue() string {
	return i.project.Title
}

func (i projectItem) Title() string {
	return fmt.Sprintf("%d: %s", i.project.Number, i.project.Title)
}

func (i projectItem) Description() string {
	return fmt.Sprintf("Owner: %s  ID: %s", i.project.Owner, i.project.ID)
}

// projectDelegate is a custom item delegate for project items.
type projectDelegate struct{}

func (d projectDelegate) Height() int                             { return 2 }
func (d projectDelegate) Spacing() int                            { return 1 }
func (d projectDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d projectDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(projectItem)
	if !ok {
		return
	}

	str := fmt.Sprintf("%d. %s", index+1, i.Title())
	desc := i.Description()

	if index == m.Index() {
		fmt.Fprint(w, SelectedItemStyle.Render("> "+str))
		fmt.Fprint(w, "\n  "+NormalItemStyle.Render(desc))
	} else {
		fmt.Fprint(w, NormalItemStyle.Render("  "+str))
		fmt.Fprint(w, "\n  "+DimStyle.Render(desc))
	}
}

// ProjectLoader fetches the projects offered by the picker.
type ProjectLoader func(ctx context.Context) ([]domain.ProjectSummary, error)

// ProjectPickerModel loads a list of projects and lets the user select one.
// Selecting or quitting ends the program.
type ProjectPickerModel struct {
	ctx    context.Context
	load   ProjectLoader
	list   list.Model
	keymap KeyMap
	help   HelpModel
	width  int

	loading bool
	chosen  *domain.ProjectSummary
	err     error
}

// NewProjectPickerModel creates a picker that fetches its projects with load
// on Init.
func NewProjectPickerModel(ctx context.Context, load ProjectLoader) ProjectPickerModel {
	keymap := DefaultKeyMap()

	// Start with a reasonable default - will be resized by WindowSizeMsg
	l := list.New(nil, projectDelegate{}, 80, 20)
	l.Title = "Select a Project"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = TitleStyle
	l.Styles.PaginationStyle = DimStyle
	l.KeyMap.CursorUp = keymap.Up
	l.KeyMap.CursorDown = keymap.Down
	l.KeyMap.Filter = keymap.Filter

	return ProjectPickerModel{
		ctx:     ctx,
		load:    load,
		list:    l,
		keymap:  keymap,
		help:    NewHelpModel(keymap),
		width:   80,
		loading: true,
	}
}

// Init starts loading the projects.
func (m ProjectPickerModel) Init() tea.Cmd {
	return tea.Batch(tea.WindowSize(), m.loadProjects())
}

func (m ProjectPickerModel) loadProjects() tea.Cmd {
	return func() tea.Msg {
		projects, err := m.load(m.ctx)
		if err != nil {
			return ErrorMsg{Err: fmt.Errorf("failed to list projects: %w", err)}
		}
		if len(projects) == 0 {
			return ErrorMsg{Err: errors.New("no projects found")}
		}
		return ProjectsLoadedMsg{Projects: projects}
	}
}

// Update handles messages and updates the model state.
func (m ProjectPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.list.SetWidth(msg.Width - 2)
		m.list.SetHeight(msg.Height - 4)
		return m, nil

	case ProjectsLoadedMsg:
		m.loading = false
		items := make([]list.Item, len(msg.Projects))
		for i, p := range msg.Projects {
			items[i] = projectItem{project: p}
		}
		return m, m.list.SetItems(items)

	case ProjectSelectedMsg:
		project := msg.Project
		m.chosen = &project
		return m, tea.Quit

	case ErrorMsg:
		m.loading = false
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		// keys belong to the filter input while it is open
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case msg.String() == "esc" && m.list.FilterState() == list.FilterApplied:
			// esc clears an applied filter
		case key.Matches(msg, m.keymap.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keymap.Select):
			if item, ok := m.list.SelectedItem().(projectItem); ok {
				return m, func() tea.Msg {
					return ProjectSelectedMsg{Project: item.project}
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the model.
func (m ProjectPickerModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n"
	}
	if m.loading {
		return "Loading projects...\n\n" + DimStyle.Render("Press q to quit")
	}
	return m.list.View() + "\n" + m.help.View(m.width)
}

// Chosen returns the selected project, if any.
func (m ProjectPickerModel) Chosen() (domain.ProjectSummary, bool) {
	if m.chosen == nil {
		return domain.ProjectSummary{}, false
	}
	return *m.chosen, true
}

// Err returns the error that ended the picker, if any.
func (m ProjectPickerModel) Err() error {
	return m.err
}

// PickProject runs the picker until the user selects a project or quits.
func PickProject(ctx context.Context, load ProjectLoader, opts ...tea.ProgramOption) (domain.ProjectSummary, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	final, err := tea.NewProgram(NewProjectPickerModel(ctx, load), opts...).Run()
	if err != nil {
		return domain.ProjectSummary{}, fmt.Errorf("program error: %w", err)
	}

	m, ok := final.(ProjectPickerModel)
	if !ok {
		return domain.ProjectSummary{}, fmt.Errorf("unexpected model %T", final)
	}
	if m.Err() != nil {
		return domain.ProjectSummary{}, m.Err()
	}
	project, ok := m.Chosen()
	if !ok {
		return domain.ProjectSummary{}, ErrNoSelection
	}
	return project, nil
}
