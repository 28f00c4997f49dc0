package reporter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/aggregator"
	"github.com/ppiankov/codespectre/internal/models"
)

const (
	recommendationsStart = "Top Recommendations"
	recommendationsEnd   = "Overall Project Health"

	noRecommendations = "⚠️ No specific recommendations provided in LLM summary"
	noIssues          = "✅ No significant issues found"
	errorIcon         = "❌"

	// DefaultMaxFindingsPerGroup limits findings listed per (file, tool).
	DefaultMaxFindingsPerGroup = 10
)

// MarkdownReporter renders an audit run as the markdown report.
type MarkdownReporter struct {
	writer   io.Writer
	maxGroup int
	adapters *adapters.Set
}

// NewMarkdownReporter creates a markdown reporter. maxPerGroup caps the
// findings listed for one tool on one file; <= 0 uses the default.
func NewMarkdownReporter(writer io.Writer, maxPerGroup int) *MarkdownReporter {
	if maxPerGroup <= 0 {
		maxPerGroup = DefaultMaxFindingsPerGroup
	}
	return &MarkdownReporter{writer: writer, maxGroup: maxPerGroup}
}

// WithAdapters renders findings of known tools through their adapter's
// Describe. Findings of other tools keep the generic line.
func (r *MarkdownReporter) WithAdapters(set *adapters.Set) *MarkdownReporter {
	r.adapters = set
	return r
}

// Generate writes the full report for run.
func (r *MarkdownReporter) Generate(run *models.AuditRun) error {
	w := &errWriter{w: r.writer}

	r.writeHeader(w, run)

	w.printf("## 🔍 Executive Summary\n\n")
	w.printf("%s\n\n", strings.TrimSpace(run.Summary))

	w.printf("## 🛡️ Security & Quality Overview\n\n")
	r.writeOverview(w, run.Rollup)

	w.printf("## 📝 Detailed Findings\n\n")
	if len(run.Context.Analysis.Files) == 0 {
		w.printf("No files matched the configured extensions.\n\n")
	}
	for _, fa := range run.Context.Analysis.Files {
		r.writeFile(w, fa)
	}

	w.printf("## 🚀 Recommendations\n\n")
	r.writeRecommendations(w, run)

	if run.Trend != nil {
		w.printf("## 📈 Trend\n\n")
		r.writeTrend(w, run.Trend)
	}

	w.printf("## 🔧 Appendix: Tool Versions\n\n")
	r.writeVersions(w, run)

	return w.err
}

func (r *MarkdownReporter) writeHeader(w *errWriter, run *models.AuditRun) {
	repo := run.Context.Repository
	mode := "standard"
	if run.FullScan {
		mode = "full"
	}

	w.printf("# Repository Audit Report\n\n")
	w.printf("**Repository**: `%s`  \n", repo.Name)
	if repo.URL != "" {
		w.printf("**URL**: %s  \n", repo.URL)
	}
	if repo.DefaultBranch != "" {
		w.printf("**Branch**: %s  \n", repo.DefaultBranch)
	}
	w.printf("**Audit Date**: %s  \n", formatTimestamp(run.Timestamp))
	w.printf("**Analyzed Files**: %d  \n", len(run.Context.Analysis.Files))
	w.printf("**Scan Mode**: %s\n\n", mode)
}

func (r *MarkdownReporter) writeOverview(w *errWriter, rollup models.Rollup) {
	w.printf("| Severity | Count |\n|----------|-------|\n")
	for _, sev := range models.Severities {
		w.printf("| %s %s | %d |\n", sev.Icon(), sev.Title(), rollup.BySeverity.Count(sev))
	}
	w.printf("| %s Failed tool runs | %d |\n\n", errorIcon, rollup.FailedCells)

	w.printf("**Health**: %s (%.1f%% of files clean: every tool ran and found nothing)  \n",
		strings.ToUpper(rollup.HealthScore), rollup.ScorePercent)
	w.printf("**Total Findings**: %d across %d files  \n", rollup.TotalFindings, rollup.TotalFiles)
	if len(rollup.ToolsInvoked) > 0 {
		w.printf("**Tools**: %s\n", strings.Join(rollup.ToolsInvoked, ", "))
	}
	w.printf("\n")
}

func (r *MarkdownReporter) writeFile(w *errWriter, fa models.FileAnalysis) {
	w.printf("### 📄 File: `%s`\n\n", fa.FilePath)

	wrote := false
	for _, o := range fa.PerTool {
		if o.Error != nil {
			w.printf("#### %s Results\n\n", strings.ToUpper(o.Tool))
			writeError(w, o.Error)
			wrote = true
			continue
		}
		if len(o.Findings) == 0 {
			continue
		}
		w.printf("#### %s Results\n\n", strings.ToUpper(o.Tool))
		r.writeFindings(w, o.Tool, o.Findings)
		wrote = true
	}

	if !wrote {
		w.printf("%s\n\n", noIssues)
	}
}

func (r *MarkdownReporter) writeFindings(w *errWriter, tool string, findings []models.Finding) {
	sorted := make([]models.Finding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
	})

	shown := sorted
	if len(shown) > r.maxGroup {
		shown = shown[:r.maxGroup]
	}
	for _, f := range shown {
		f.Severity = f.Severity.Normalize()
		f.Message = inline(f.Message)
		if r.adapters != nil {
			if line, ok := r.adapters.Describe(tool, f); ok {
				w.printf("- %s\n", line)
				continue
			}
		}
		writeGenericFinding(w, f)
	}
	if hidden := len(sorted) - len(shown); hidden > 0 {
		w.printf("- ... and %d more\n", hidden)
	}
	w.printf("\n")
}

// writeGenericFinding is the line used when no adapter describes the tool.
func writeGenericFinding(w *errWriter, f models.Finding) {
	w.printf("- %s **%s** line %d", f.Severity.Icon(), f.Severity, f.Location.Line)
	if col := f.Col(); col > 0 {
		w.printf(":%d", col)
	}
	w.printf(": %s", f.Message)
	if f.RuleID != "" {
		w.printf(" (`%s`)", f.RuleID)
	}
	var extra []string
	if f.Confidence != "" {
		extra = append(extra, "confidence "+f.Confidence)
	}
	if f.CWE != "" {
		extra = append(extra, "CWE-"+strings.TrimPrefix(f.CWE, "CWE-"))
	}
	if len(extra) > 0 {
		w.printf(" [%s]", strings.Join(extra, ", "))
	}
	w.printf("\n")
}

func writeError(w *errWriter, e *models.ErrorResult) {
	w.printf("%s **Error**: %s (exit code %d)  \n", errorIcon, e.Kind, e.ExitCode)
	w.printf("**Diagnosis**: %s  \n", inline(orDefault(e.StderrExcerpt, e.Message)))
	w.printf("**Recommendation**: %s\n\n", orDefault(e.Suggestion, "Check tool configuration"))
}

func (r *MarkdownReporter) writeRecommendations(w *errWriter, run *models.AuditRun) {
	if text, ok := ExtractRecommendations(run.Summary); ok {
		w.printf("%s\n\n", text)
		return
	}
	if len(run.Recommendations) == 0 {
		w.printf("%s\n\n", noRecommendations)
		return
	}

	grouped := aggregator.NewRecommendationGenerator().GroupBySeverity(run.Recommendations)
	n := 0
	for _, sev := range models.Severities {
		for _, rec := range grouped[sev] {
			n++
			w.printf("%d. %s **%s** %s  \n", n, sev.Icon(), sev, rec.Action)
			w.printf("   Impact: %s\n", rec.Impact)
		}
	}
	w.printf("\n")
}

func (r *MarkdownReporter) writeTrend(w *errWriter, trend *models.Trend) {
	w.printf("- Direction: %s %s\n", trend.Direction, aggregator.GetTrendIndicator(trend.Direction))
	w.printf("- Findings: %d → %d (%+.1f%%)\n", trend.PreviousFindings, trend.CurrentFindings, trend.ChangePercent)
	w.printf("- New: %d, resolved: %d\n", trend.NewFindings, trend.ResolvedFindings)
	w.printf("- Compared with: %s\n\n", formatTimestamp(trend.ComparedWith))
}

func (r *MarkdownReporter) writeVersions(w *errWriter, run *models.AuditRun) {
	w.printf("| Tool | Version |\n|------|---------|\n")
	tools := make([]string, 0, len(run.ToolVersions))
	for tool := range run.ToolVersions {
		tools = append(tools, tool)
	}
	sort.Strings(tools)
	for _, tool := range tools {
		w.printf("| %s | %s |\n", tool, inline(run.ToolVersions[tool]))
	}
}

// ExtractRecommendations returns the part of an LLM summary starting at
// "Top Recommendations" and ending before "Overall Project Health".
func ExtractRecommendations(summary string) (string, bool) {
	start := strings.Index(summary, recommendationsStart)
	if start == -1 {
		return "", false
	}
	end := strings.Index(summary[start:], recommendationsEnd)
	if end == -1 {
		return "", false
	}
	text := strings.TrimSpace(summary[start : start+end])
	// Drop a dangling heading marker left in front of the end token.
	text = strings.TrimSpace(strings.TrimRight(text, "# "))
	return text, text != ""
}

func inline(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// errWriter keeps the first write error so callers check once.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
