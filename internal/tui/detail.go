package tui

import (
	"fmt"
	"strings"

	"github.com/ppiankov/codespectre/internal/models"
)

// detailHeight is the fixed number of lines for the detail panel.
const detailHeight = 5

// renderDetail produces the detail view for a selected finding.
func renderDetail(ff *models.FlatFinding, width int) string {
	if ff == nil {
		return styleDetailPanel.Width(width).Render("No finding selected")
	}

	var b strings.Builder
	f := ff.Finding

	sev := f.Severity.Normalize()
	b.WriteString(fmt.Sprintf("%s  %s / %s\n", severityStyle(sev).Render(string(sev)), ff.Tool, orDash(f.RuleID)))

	loc := location(*ff)
	if col := f.Col(); col > 0 {
		loc = fmt.Sprintf("%s:%d", loc, col)
	}
	b.WriteString(fmt.Sprintf("Location: %s\n", loc))
	b.WriteString(fmt.Sprintf("Message: %s\n", f.Message))

	parts := make([]string, 0, 3)
	if f.Confidence != "" {
		parts = append(parts, "Confidence: "+f.Confidence)
	}
	if f.CWE != "" {
		parts = append(parts, "CWE: "+f.CWE)
	}
	if f.RawSeverity != "" && !strings.EqualFold(f.RawSeverity, string(sev)) {
		parts = append(parts, "Reported as: "+f.RawSeverity)
	}
	if len(parts) > 0 {
		b.WriteString(strings.Join(parts, "  "))
	}

	return styleDetailPanel.Width(width).Render(b.String())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
