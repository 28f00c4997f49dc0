package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/codespectre/internal/models"
)

var banditSeverities = map[string]models.Severity{
	"high":      models.SeverityHigh,
	"medium":    models.SeverityMedium,
	"low":       models.SeverityLow,
	"undefined": models.SeverityMedium,
}

type banditReport struct {
	Results []banditIssue `json:"results"`
}

type banditIssue struct {
	IssueSeverity   string `json:"issue_severity"`
	IssueConfidence string `json:"issue_confidence"`
	IssueText       string `json:"issue_text"`
	LineNumber      int    `json:"line_number"`
	LineRange       []int  `json:"line_range"`
	ColOffset       *int   `json:"col_offset"`
	TestID          string `json:"test_id"`
	TestName        string `json:"test_name"`
	IssueCWE        *struct {
		ID int `json:"id"`
	} `json:"issue_cwe"`
}

// banditAdapter reads `bandit -f json`. Exit 1 means issues were found.
type banditAdapter struct{ base }

func (a *banditAdapter) Name() string { return Bandit }

func (a *banditAdapter) Failed(exitCode int) bool {
	return exitCode < 0 || exitCode >= 2
}

func (a *banditAdapter) Severity(token string) models.Severity {
	return lookupSeverity(banditSeverities, token)
}

func (a *banditAdapter) Decode(raw []byte) ([]models.Finding, error) {
	body, err := jsonBody(raw, '{')
	if err != nil {
		return nil, err
	}

	var report banditReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode bandit report: %w", err)
	}

	findings := make([]models.Finding, 0, len(report.Results))
	for _, r := range report.Results {
		f := models.Finding{
			Severity:    a.Severity(r.IssueSeverity),
			Message:     r.IssueText,
			Location:    models.Location{Line: r.LineNumber},
			RuleID:      r.TestID,
			Confidence:  strings.ToUpper(r.IssueConfidence),
			RawSeverity: r.IssueSeverity,
		}
		if r.ColOffset != nil {
			f.Location.Column = models.IntPtr(*r.ColOffset + 1)
		}
		if n := len(r.LineRange); n > 1 {
			f.Location.EndLine = r.LineRange[n-1]
		}
		if r.IssueCWE != nil && r.IssueCWE.ID > 0 {
			f.CWE = fmt.Sprintf("CWE-%d", r.IssueCWE.ID)
		}
		if f.Message == "" {
			f.Message = r.TestName
		}
		findings = append(findings, f)
	}
	return findings, nil
}

func (a *banditAdapter) Describe(f models.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s **%s**: %s", f.Severity.Icon(), f.Severity, f.Message)
	if f.RuleID != "" {
		fmt.Fprintf(&b, " (`%s`)", f.RuleID)
	}
	fmt.Fprintf(&b, "  \n  - Location: Line %d", f.Location.Line)
	if f.Confidence != "" {
		fmt.Fprintf(&b, "  \n  - Confidence: %s", f.Confidence)
	}
	cwe := f.CWE
	if cwe == "" {
		cwe = "N/A"
	}
	fmt.Fprintf(&b, "  \n  - CWE: %s", cwe)
	return b.String()
}

// jsonBody skips anything a tool printed before its JSON document.
func jsonBody(raw []byte, open byte) ([]byte, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return nil, fmt.Errorf("empty output")
	}
	i := strings.IndexByte(s, open)
	if i < 0 {
		return nil, fmt.Errorf("no JSON document in output")
	}
	return []byte(s[i:]), nil
}
