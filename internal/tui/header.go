package tui

import (
	"fmt"
	"strings"

	"github.com/ppiankov/codespectre/internal/aggregator"
	"github.com/ppiankov/codespectre/internal/models"
)

// headerHeight is the number of terminal lines the header occupies.
const headerHeight = 5

// renderHeader produces the header string from the run rollup.
func renderHeader(run *models.AuditRun, sparkline []int, width int) string {
	var b strings.Builder
	rollup := run.Rollup

	healthText := healthStyle(rollup.HealthScore).Render(
		fmt.Sprintf("%s (%.0f%%)", strings.ToUpper(rollup.HealthScore), rollup.ScorePercent),
	)
	b.WriteString(fmt.Sprintf("%s  Health: %s", run.Context.Repository.Name, healthText))

	if run.Trend != nil {
		b.WriteString(fmt.Sprintf("  %s %.1f%%", aggregator.GetTrendIndicator(run.Trend.Direction), run.Trend.ChangePercent))
	}
	b.WriteString("\n")

	b.WriteString(fmt.Sprintf("Files: %d  Findings: %d  Failed runs: %d",
		rollup.TotalFiles, rollup.TotalFindings, rollup.FailedCells))
	b.WriteString("\n")

	sevParts := make([]string, 0, len(models.Severities))
	for _, sev := range models.Severities {
		if count := rollup.BySeverity.Count(sev); count > 0 {
			label := fmt.Sprintf("%s:%d", string(sev)[:1], count)
			sevParts = append(sevParts, severityStyle(sev).Render(label))
		}
	}
	if len(sevParts) > 0 {
		b.WriteString(strings.Join(sevParts, "  "))
	}
	b.WriteString("\n")

	if len(sparkline) > 0 {
		b.WriteString("Trend: ")
		b.WriteString(renderSparkline(sparkline))
	}

	return styleHeader.Width(width).Render(b.String())
}

// renderSparkline converts an int slice to a unicode sparkline string.
func renderSparkline(values []int) string {
	if len(values) == 0 {
		return ""
	}

	bars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	var b strings.Builder
	for _, v := range values {
		if hi == lo {
			b.WriteRune(bars[len(bars)/2])
		} else {
			normalized := float64(v-lo) / float64(hi-lo)
			b.WriteRune(bars[int(normalized*float64(len(bars)-1))])
		}
	}

	b.WriteString(fmt.Sprintf(" [%d→%d]", values[0], values[len(values)-1]))
	return b.String()
}
