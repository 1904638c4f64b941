package tui

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/h0rv/ghpsync/internal/domain"
)

// RenderSchema renders a validated field schema, one field per row, sorted
// by field name.
func RenderSchema(schema domain.FieldSchema) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(DimStyle).
		Headers("FIELD", "ID", "OPTIONS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return CellStyle
		})

	for _, name := range slices.Sorted(maps.Keys(schema)) {
		field := schema[name]
		options := "-"
		if field.Options != nil {
			names := make([]string, len(field.Options))
			for i, o := range field.Options {
				names[i] = o.Name
			}
			options = strings.Join(names, ", ")
		}
		t.Row(name, field.ID, options)
	}

	return t.Render() + "\n"
}
