package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/h0rv/ghpsync/internal/domain"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

// DefaultTitleWidth caps the title column of the status table.
const DefaultTitleWidth = 48

// truncateTitle shortens title to width cells, ending it with an ellipsis.
// Titles that already fit are returned unchanged.
func truncateTitle(title string, width int) string {
	if ansi.PrintableRuneWidth(title) <= width {
		return title
	}
	return truncate.StringWithTail(title, uint(width), "…")
}

// StatusCounts summarises a stored project.
type StatusCounts struct {
	Total    int
	Linked   int
	ByStatus map[domain.Status]int
}

// Summarize counts the items of a project by status and Jira link.
func Summarize(project *domain.Project) StatusCounts {
	counts := StatusCounts{ByStatus: make(map[domain.Status]int)}
	for _, item := range project.Items {
		counts.Total++
		counts.ByStatus[item.Status.Value]++
		if item.URL() != "" {
			counts.Linked++
		}
	}
	return counts
}

// RenderStatus renders the stored items of a project as a table followed by
// a summary line. Titles longer than titleWidth are truncated.
func RenderStatus(project *domain.Project, titleWidth int) string {
	if titleWidth <= 0 {
		titleWidth = DefaultTitleWidth
	}

	if len(project.Items) == 0 {
		return DimStyle.Render(fmt.Sprintf("No items stored for %s yet.", project.ID)) + "\n"
	}

	statuses := make([]domain.Status, len(project.Items))
	rows := make([][]string, len(project.Items))
	for i, item := range project.Items {
		statuses[i] = item.Status.Value
		rows[i] = []string{
			item.ID,
			truncateTitle(item.Title.Value, titleWidth),
			statusLabel(item.Status.Value),
			item.IssueType(),
			issueColumn(item),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(DimStyle).
		Headers("ITEM", "TITLE", "STATUS", "TYPE", "JIRA").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return HeaderStyle
			case col == 2 && row >= 0 && row < len(statuses):
				return StatusStyle(statuses[row])
			default:
				return CellStyle
			}
		})

	var b strings.Builder
	b.WriteString(TitleStyle.Render(project.ID))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n")
	b.WriteString(summaryLine(Summarize(project)))
	b.WriteString("\n")
	return b.String()
}

func summaryLine(c StatusCounts) string {
	parts := []string{
		fmt.Sprintf("%d items", c.Total),
		fmt.Sprintf("%d linked", c.Linked),
	}
	for _, s := range []domain.Status{domain.StatusTodo, domain.StatusWIP, domain.StatusDone, domain.StatusNone} {
		if n := c.ByStatus[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", statusLabel(s), n))
		}
	}
	return HelpStyle.Render(strings.Join(parts, " · "))
}

func statusLabel(s domain.Status) string {
	if s == domain.StatusNone {
		return "No Status"
	}
	return string(s)
}

// issueColumn shows the issue key when the URL has one, the raw URL otherwise.
func issueColumn(item domain.Item) string {
	u := item.URL()
	if u == "" {
		return "-"
	}
	if i := strings.LastIndex(u, "/browse/"); i >= 0 {
		return u[i+len("/browse/"):]
	}
	return u
}
