package tui

import (
	"sort"
	"strings"

	"github.com/ppiankov/codespectre/internal/models"
)

// filterState holds current active filters.
type filterState struct {
	Tool       string
	Severity   models.Severity
	SearchText string
}

// sortField enumerates columns that can be sorted.
type sortField int

const (
	sortBySeverity sortField = iota
	sortByTool
	sortByRule
	sortByFile
)

// sortFieldCount is the total number of sortable columns.
const sortFieldCount = 4

// applyFilters returns findings matching all active filters.
func applyFilters(findings []models.FlatFinding, f filterState) []models.FlatFinding {
	result := make([]models.FlatFinding, 0, len(findings))
	searchLower := strings.ToLower(f.SearchText)

	for _, ff := range findings {
		if f.Tool != "" && ff.Tool != f.Tool {
			continue
		}
		if f.Severity != "" && ff.Finding.Severity.Normalize() != f.Severity {
			continue
		}
		if searchLower != "" && !matchesSearch(ff, searchLower) {
			continue
		}
		result = append(result, ff)
	}
	return result
}

func matchesSearch(ff models.FlatFinding, searchLower string) bool {
	for _, field := range []string{
		ff.Tool, ff.File, ff.Language,
		ff.Finding.RuleID, ff.Finding.Message, string(ff.Finding.Severity),
	} {
		if strings.Contains(strings.ToLower(field), searchLower) {
			return true
		}
	}
	return false
}

// sortFindings sorts findings in place by the given field.
func sortFindings(findings []models.FlatFinding, field sortField) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		switch field {
		case sortBySeverity:
			return a.Finding.Severity.Rank() > b.Finding.Severity.Rank()
		case sortByTool:
			return a.Tool < b.Tool
		case sortByRule:
			return a.Finding.RuleID < b.Finding.RuleID
		case sortByFile:
			if a.File != b.File {
				return a.File < b.File
			}
			return a.Finding.Location.Line < b.Finding.Location.Line
		default:
			return false
		}
	})
}

// uniqueTools returns deduplicated, sorted tool names from findings.
func uniqueTools(findings []models.FlatFinding) []string {
	seen := make(map[string]bool)
	var tools []string
	for _, ff := range findings {
		if !seen[ff.Tool] {
			seen[ff.Tool] = true
			tools = append(tools, ff.Tool)
		}
	}
	sort.Strings(tools)
	return tools
}

// sortFieldName returns a human-readable name for the sort field.
func sortFieldName(f sortField) string {
	switch f {
	case sortBySeverity:
		return "severity"
	case sortByTool:
		return "tool"
	case sortByRule:
		return "rule"
	case sortByFile:
		return "file"
	default:
		return "unknown"
	}
}
