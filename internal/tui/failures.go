package tui

import (
	"fmt"
	"strings"

	"github.com/ppiankov/codespectre/internal/models"
)

// failedCell is a (file, tool) cell that produced an error placeholder.
type failedCell struct {
	File  string
	Tool  string
	Error models.ErrorResult
}

// failedCells lists error placeholders in analysis order.
func failedCells(result models.AnalysisResult) []failedCell {
	var cells []failedCell
	for _, fa := range result.Files {
		for _, o := range fa.PerTool {
			if o.Error != nil {
				cells = append(cells, failedCell{File: fa.FilePath, Tool: o.Tool, Error: *o.Error})
			}
		}
	}
	return cells
}

// renderFailures lists failed cells with their kind and suggestion, at most
// limit of them.
func renderFailures(cells []failedCell, limit, width int) string {
	if len(cells) == 0 {
		return styleDetailPanel.Width(width).Render("No failed tool runs")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Failed tool runs (%d)\n", len(cells))
	for i, c := range cells {
		if i == limit {
			fmt.Fprintf(&b, "... %d more", len(cells)-limit)
			break
		}
		fmt.Fprintf(&b, "%s  %s %s  exit %d\n",
			styleFailedKind.Render(string(c.Error.Kind)), c.Tool, truncateLeft(c.File, 40), c.Error.ExitCode)
		if c.Error.Suggestion != "" {
			b.WriteString("    " + styleSuggestion.Render(c.Error.Suggestion) + "\n")
		}
	}
	return styleDetailPanel.Width(width).Render(strings.TrimRight(b.String(), "\n"))
}
