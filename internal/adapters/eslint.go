package adapters

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ppiankov/codespectre/internal/models"
)

var eslintSeverities = map[string]models.Severity{
	"fatal": models.SeverityCritical,
	"2":     models.SeverityHigh,
	"1":     models.SeverityMedium,
	"0":     models.SeverityInfo,
	"error": models.SeverityHigh,
	"warn":  models.SeverityMedium,
	"off":   models.SeverityInfo,
}

type eslintFile struct {
	FilePath string          `json:"filePath"`
	Messages []eslintMessage `json:"messages"`
}

type eslintMessage struct {
	RuleID   *string `json:"ruleId"`
	Severity int     `json:"severity"`
	Fatal    bool    `json:"fatal"`
	Message  string  `json:"message"`
	Line     int     `json:"line"`
	Column   *int    `json:"column"`
	EndLine  *int    `json:"endLine"`
}

// eslintAdapter reads `eslint -f json`. Exit 1 means lint errors were found;
// exit 2 is a configuration problem or crash.
type eslintAdapter struct{ base }

func (a *eslintAdapter) Name() string { return ESLint }

func (a *eslintAdapter) Failed(exitCode int) bool {
	return exitCode < 0 || exitCode >= 2
}

func (a *eslintAdapter) Severity(token string) models.Severity {
	return lookupSeverity(eslintSeverities, token)
}

func (a *eslintAdapter) Decode(raw []byte) ([]models.Finding, error) {
	body, err := jsonBody(raw, '[')
	if err != nil {
		return nil, err
	}

	var files []eslintFile
	if err := json.Unmarshal(body, &files); err != nil {
		return nil, fmt.Errorf("decode eslint results: %w", err)
	}

	findings := []models.Finding{}
	for _, file := range files {
		for _, m := range file.Messages {
			token := strconv.Itoa(m.Severity)
			if m.Fatal {
				token = "fatal"
			}
			f := models.Finding{
				Severity:    a.Severity(token),
				Message:     m.Message,
				Location:    models.Location{Line: m.Line, Column: m.Column},
				RawSeverity: token,
			}
			if m.RuleID != nil {
				f.RuleID = *m.RuleID
			}
			if m.EndLine != nil {
				f.Location.EndLine = *m.EndLine
			}
			findings = append(findings, f)
		}
	}
	return findings, nil
}

func (a *eslintAdapter) Describe(f models.Finding) string {
	line := fmt.Sprintf("%s **%s**: Line %d", f.Severity.Icon(), f.Severity, f.Location.Line)
	if f.Location.Column != nil {
		line += fmt.Sprintf(":%d", *f.Location.Column)
	}
	line += " - " + f.Message
	if f.RuleID != "" {
		line += fmt.Sprintf(" (`%s`)", f.RuleID)
	}
	return line
}
