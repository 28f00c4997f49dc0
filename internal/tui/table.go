package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/codespectre/internal/models"
)

var tableColumns = []table.Column{
	{Title: "Severity", Width: 10},
	{Title: "Tool", Width: 10},
	{Title: "Rule", Width: 10},
	{Title: "Location", Width: 30},
	{Title: "Message", Width: 40},
}

// buildRows converts findings to table rows.
func buildRows(findings []models.FlatFinding) []table.Row {
	rows := make([]table.Row, 0, len(findings))
	for _, ff := range findings {
		rows = append(rows, table.Row{
			string(ff.Finding.Severity.Normalize()),
			ff.Tool,
			truncate(ff.Finding.RuleID, tableColumns[2].Width),
			truncateLeft(location(ff), tableColumns[3].Width),
			truncate(ff.Finding.Message, tableColumns[4].Width),
		})
	}
	return rows
}

func location(ff models.FlatFinding) string {
	return fmt.Sprintf("%s:%d", ff.File, ff.Finding.Location.Line)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	const ellipsis = "..."
	if maxLen <= len(ellipsis) {
		return s[:maxLen]
	}
	return s[:maxLen-len(ellipsis)] + ellipsis
}

// truncateLeft keeps the end of s, where file names and line numbers are.
func truncateLeft(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	const ellipsis = "..."
	if maxLen <= len(ellipsis) {
		return s[len(s)-maxLen:]
	}
	return ellipsis + s[len(s)-(maxLen-len(ellipsis)):]
}

// newTable creates a bubbles table with standard columns and styling.
func newTable(rows []table.Row, height int) table.Model {
	t := table.New(
		table.WithColumns(tableColumns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(colorAccent).
		Bold(false)
	t.SetStyles(s)

	return t
}
