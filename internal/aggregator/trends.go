package aggregator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/codespectre/internal/models"
)

// TrendAnalyzer analyzes trends across stored runs of one repository.
type TrendAnalyzer struct{}

// NewTrendAnalyzer creates a new trend analyzer.
func NewTrendAnalyzer() *TrendAnalyzer {
	return &TrendAnalyzer{}
}

// CalculateTrend compares current with previous. New and resolved counts
// come from finding fingerprints, so a finding that moved lines is neither.
func (t *TrendAnalyzer) CalculateTrend(current, previous *models.AuditRun) *models.Trend {
	if previous == nil {
		return nil
	}

	trend := &models.Trend{
		PreviousFindings: previous.Rollup.TotalFindings,
		CurrentFindings:  current.Rollup.TotalFindings,
		ComparedWith:     previous.Timestamp,
	}

	change := trend.CurrentFindings - trend.PreviousFindings
	if trend.PreviousFindings > 0 {
		trend.ChangePercent = float64(change) / float64(trend.PreviousFindings) * 100.0
	}

	switch {
	case change < 0:
		trend.Direction = "improving"
	case change > 0:
		trend.Direction = "degrading"
	default:
		trend.Direction = "stable"
	}

	prev := fingerprints(previous.Context.Analysis)
	curr := fingerprints(current.Context.Analysis)
	for fp, n := range curr {
		if d := n - prev[fp]; d > 0 {
			trend.NewFindings += d
		}
	}
	for fp, n := range prev {
		if d := n - curr[fp]; d > 0 {
			trend.ResolvedFindings += d
		}
	}

	return trend
}

func fingerprints(result models.AnalysisResult) map[string]int {
	counts := make(map[string]int)
	for _, f := range result.Flatten() {
		counts[f.Fingerprint()]++
	}
	return counts
}

// AnalyzeLastNRuns analyzes trends across runs ordered oldest first.
func (t *TrendAnalyzer) AnalyzeLastNRuns(runs []*models.AuditRun) *models.TrendSummary {
	if len(runs) == 0 {
		return nil
	}

	summary := &models.TrendSummary{
		RunsAnalyzed: len(runs),
		ByTool:       make(map[string]*models.ToolTrend),
	}

	if len(runs) > 1 {
		earliest := runs[0].Timestamp
		latest := runs[len(runs)-1].Timestamp
		days := int(latest.Sub(earliest).Hours() / 24)
		summary.TimeRange = fmt.Sprintf("Last %d days", days)
	} else {
		summary.TimeRange = "Single run"
	}

	summary.FindingSparkline = make([]int, len(runs))
	for i, run := range runs {
		summary.FindingSparkline[i] = run.Rollup.TotalFindings
	}

	if len(runs) >= 2 {
		t.calculateToolTrends(runs, summary)
	}

	return summary
}

// calculateToolTrends compares the earliest and latest run per tool.
func (t *TrendAnalyzer) calculateToolTrends(runs []*models.AuditRun, summary *models.TrendSummary) {
	earliest := runs[0]
	latest := runs[len(runs)-1]

	allTools := make(map[string]bool)
	for tool := range earliest.Rollup.ByTool {
		allTools[tool] = true
	}
	for tool := range latest.Rollup.ByTool {
		allTools[tool] = true
	}

	for tool := range allTools {
		previousCount := earliest.Rollup.ByTool[tool]
		currentCount := latest.Rollup.ByTool[tool]
		change := currentCount - previousCount

		changePercent := 0.0
		if previousCount > 0 {
			changePercent = float64(change) / float64(previousCount) * 100.0
		} else if currentCount > 0 {
			changePercent = 100.0
		}

		summary.ByTool[tool] = &models.ToolTrend{
			Name:             tool,
			CurrentFindings:  currentCount,
			PreviousFindings: previousCount,
			Change:           change,
			ChangePercent:    changePercent,
		}
	}
}

// GenerateComparisonReport creates a plain-text comparison of two runs.
func (t *TrendAnalyzer) GenerateComparisonReport(current, previous *models.AuditRun) string {
	if previous == nil {
		return "No previous run to compare with"
	}

	trend := t.CalculateTrend(current, previous)

	var b strings.Builder
	fmt.Fprintf(&b, "Comparison: %s vs %s\n\n", formatDate(current.Timestamp), formatDate(previous.Timestamp))
	fmt.Fprintf(&b, "Overall: %d → %d findings (%.1f%% %s)\n\n",
		trend.PreviousFindings, trend.CurrentFindings, trend.ChangePercent, trend.Direction)

	tools := make([]string, 0, len(current.Rollup.ByTool))
	for tool := range current.Rollup.ByTool {
		tools = append(tools, tool)
	}
	for tool := range previous.Rollup.ByTool {
		if _, ok := current.Rollup.ByTool[tool]; !ok {
			tools = append(tools, tool)
		}
	}
	sort.Strings(tools)

	for _, tool := range tools {
		prevCount := previous.Rollup.ByTool[tool]
		currCount := current.Rollup.ByTool[tool]
		if prevCount == currCount {
			continue
		}
		fmt.Fprintf(&b, "%s:\n  %d → %d (%+d)\n", tool, prevCount, currCount, currCount-prevCount)
	}

	if trend.NewFindings > 0 {
		fmt.Fprintf(&b, "\nNew Findings: %d\n", trend.NewFindings)
	}
	if trend.ResolvedFindings > 0 {
		fmt.Fprintf(&b, "\nResolved Findings: %d\n", trend.ResolvedFindings)
	}

	return b.String()
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// GetTrendIndicator returns a visual indicator for trend direction.
func GetTrendIndicator(direction string) string {
	switch direction {
	case "improving":
		return "↓"
	case "degrading":
		return "↑"
	case "stable":
		return "→"
	default:
		return "?"
	}
}
