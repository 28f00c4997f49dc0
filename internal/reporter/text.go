package reporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ppiankov/codespectre/internal/aggregator"
	"github.com/ppiankov/codespectre/internal/models"
)

const topRecommendations = 5

// TextReporter prints a terminal summary of an audit run.
type TextReporter struct {
	writer io.Writer
}

// NewTextReporter creates a new text reporter
func NewTextReporter(writer io.Writer) *TextReporter {
	return &TextReporter{
		writer: writer,
	}
}

// Generate prints the run summary.
func (r *TextReporter) Generate(run *models.AuditRun) error {
	r.printHeader()
	r.printf("Repository: %s\n", run.Context.Repository.Name)
	r.printf("Timestamp:  %s\n\n", formatTimestamp(run.Timestamp))

	r.printOverallSummary(run)
	r.printFailures(run.Rollup)

	if len(run.Recommendations) > 0 {
		r.printRecommendations(run.Recommendations)
	}

	if run.Trend != nil {
		r.printf("\n")
		r.printTrendInfo(run.Trend)
	}

	if run.Report != nil {
		r.printf("\nReport: %s\n", run.Report.FilePath)
		if run.Report.PDFPath != "" {
			r.printf("PDF:    %s\n", run.Report.PDFPath)
		}
	}

	return nil
}

// printHeader prints the report header
func (r *TextReporter) printHeader() {
	r.printf("╔════════════════════════════════════════════╗\n")
	r.printf("║           codespectre audit summary        ║\n")
	r.printf("╚════════════════════════════════════════════╝\n\n")
}

func (r *TextReporter) printOverallSummary(run *models.AuditRun) {
	s := run.Rollup
	r.printf("Overall Summary:\n")
	r.printf("--------------------------------------------------\n")
	r.printf("  Files Analyzed: %d (%d clean)\n", s.TotalFiles, s.CleanFiles)
	r.printf("  Total Findings: %d\n", s.TotalFindings)
	r.printf("  Health Score: %s (%.1f%%)", strings.ToUpper(s.HealthScore), s.ScorePercent)

	if run.Trend != nil {
		indicator := aggregator.GetTrendIndicator(run.Trend.Direction)
		r.printf(" %s %.1f%% from previous run", indicator, run.Trend.ChangePercent)
	}
	r.printf("\n\n")

	r.printf("Findings by Severity:\n")
	for _, sev := range models.Severities {
		r.printf("  %s %-8s %d\n", sev.Icon(), sev.Title()+":", s.BySeverity.Count(sev))
	}
	r.printf("\n")

	if len(s.ByTool) > 0 {
		r.printf("Findings by Tool:\n")
		for _, tool := range s.ToolsInvoked {
			r.printf("  %s: %d\n", tool, s.ByTool[tool])
		}
		r.printf("\n")
	}
}

func (r *TextReporter) printFailures(s models.Rollup) {
	if s.FailedCells == 0 {
		return
	}
	r.printf("Failed Tool Runs: %d\n", s.FailedCells)
	for _, tool := range s.ToolsInvoked {
		if n := s.FailedByTool[tool]; n > 0 {
			r.printf("  %s: %d\n", tool, n)
		}
	}
	r.printf("\n")
}

func (r *TextReporter) printRecommendations(recommendations []models.Recommendation) {
	r.printf("Recommended Actions:\n")
	r.printf("--------------------------------------------------\n")

	gen := aggregator.NewRecommendationGenerator()
	top := gen.GetTopRecommendations(recommendations, topRecommendations)
	for i, rec := range top {
		r.printf("  %d. [%s] %s\n", i+1, rec.Severity, rec.Action)
		r.printf("     Impact: %s\n", rec.Impact)
	}
	if rest := len(recommendations) - len(top); rest > 0 {
		r.printf("  ... and %d more in the report\n", rest)
	}
}

func (r *TextReporter) printTrendInfo(trend *models.Trend) {
	r.printf("Trend Analysis:\n")
	r.printf("--------------------------------------------------\n")
	r.printf("  Direction: %s %s\n", trend.Direction, aggregator.GetTrendIndicator(trend.Direction))
	r.printf("  Change: %d → %d findings (%.1f%%)\n",
		trend.PreviousFindings,
		trend.CurrentFindings,
		trend.ChangePercent)

	if trend.NewFindings > 0 {
		r.printf("  New Findings: %d\n", trend.NewFindings)
	}
	if trend.ResolvedFindings > 0 {
		r.printf("  Resolved: %d\n", trend.ResolvedFindings)
	}

	r.printf("  Compared With: %s\n", formatTimestamp(trend.ComparedWith))
}

// printf is a helper to write formatted output
func (r *TextReporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.writer, format, args...)
}

// formatTimestamp formats a timestamp for display
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
