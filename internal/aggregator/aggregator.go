package aggregator

import (
	"sort"

	"github.com/ppiankov/codespectre/internal/models"
)

// Aggregator accumulates per-file analyses in the order they are added.
// It never reorders, merges or deduplicates entries.
type Aggregator struct {
	files []models.FileAnalysis
}

// New creates an empty aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Add appends the analysis of one file.
func (a *Aggregator) Add(fa models.FileAnalysis) {
	a.files = append(a.files, fa)
}

// Result returns the accumulated analysis. The returned value does not
// share its file slice with the aggregator.
func (a *Aggregator) Result() models.AnalysisResult {
	files := make([]models.FileAnalysis, len(a.files))
	copy(files, a.files)
	return models.AnalysisResult{Files: files}
}

// ProjectSeverity counts findings per canonical severity across all files
// and tools. Unknown severities count as MEDIUM. The result depends only on
// the multiset of findings, not on their order.
func ProjectSeverity(result models.AnalysisResult) models.SeveritySummary {
	summary := make(models.SeveritySummary, len(models.Severities))
	for _, sev := range models.Severities {
		summary[sev] = 0
	}
	for _, fa := range result.Files {
		for _, o := range fa.PerTool {
			for _, f := range o.Findings {
				summary[f.Severity.Normalize()]++
			}
		}
	}
	return summary
}

// Summarize computes the rollup statistics for result.
func Summarize(result models.AnalysisResult) models.Rollup {
	rollup := models.Rollup{
		TotalFiles:   len(result.Files),
		BySeverity:   ProjectSeverity(result),
		ByTool:       make(map[string]int),
		ByLanguage:   make(map[string]int),
		FailedByTool: make(map[string]int),
	}

	tools := make(map[string]bool)
	for _, fa := range result.Files {
		rollup.ByLanguage[fa.Language]++

		for _, o := range fa.PerTool {
			tools[o.Tool] = true
			if o.Failed() {
				rollup.FailedCells++
				rollup.FailedByTool[o.Tool]++
				continue
			}
			rollup.ByTool[o.Tool] += len(o.Findings)
			rollup.TotalFindings += len(o.Findings)
		}

		if fa.HasFailures() {
			rollup.FilesWithFailure++
		} else if fa.FindingCount() == 0 {
			rollup.CleanFiles++
		}
	}

	for tool := range tools {
		rollup.ToolsInvoked = append(rollup.ToolsInvoked, tool)
	}
	sort.Strings(rollup.ToolsInvoked)

	// A file counts as healthy only when every tool ran and found nothing.
	affected := rollup.TotalFiles - rollup.CleanFiles
	rollup.HealthScore, rollup.ScorePercent = models.CalculateHealthScore(affected, rollup.TotalFiles)
	return rollup
}
