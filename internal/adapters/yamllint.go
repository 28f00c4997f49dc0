package adapters

import (
	"fmt"
	"strings"

	"github.com/ppiankov/codespectre/internal/models"
)

var yamllintSeverities = map[string]models.Severity{
	"error":   models.SeverityHigh,
	"e":       models.SeverityHigh,
	"warning": models.SeverityLow,
	"w":       models.SeverityLow,
}

// yamllintAdapter reads `yamllint -f parsable`:
//
//	path/to/file.yml:3:1: [warning] missing document start "---" (document-start)
type yamllintAdapter struct{ base }

func (a *yamllintAdapter) Name() string { return Yamllint }

// Failed: 1 means errors were reported, 2 means warnings in strict mode.
func (a *yamllintAdapter) Failed(exitCode int) bool {
	return exitCode < 0 || exitCode > 2
}

func (a *yamllintAdapter) Severity(token string) models.Severity {
	return lookupSeverity(yamllintSeverities, token)
}

func (a *yamllintAdapter) Decode(raw []byte) ([]models.Finding, error) {
	return a.DecodeFile(raw, "")
}

func (a *yamllintAdapter) DecodeFile(raw []byte, file string) ([]models.Finding, error) {
	return decodeLines(raw, file, func(rec lineRecord) models.Finding {
		level, _, message := splitLevel(rec.Rest)
		message, rule := trailingRule(message)
		return models.Finding{
			Severity:    a.Severity(level),
			Message:     message,
			Location:    models.Location{Line: rec.Line, Column: rec.Column},
			RuleID:      rule,
			RawSeverity: level,
		}
	})
}

func (a *yamllintAdapter) Describe(f models.Finding) string {
	level := strings.ToUpper(f.RawSeverity)
	if level == "" {
		level = string(f.Severity)
	}
	line := fmt.Sprintf("%s **%s**: Line %d - %s", f.Severity.Icon(), level, f.Location.Line, f.Message)
	if f.RuleID != "" {
		line += fmt.Sprintf(" (`%s`)", f.RuleID)
	}
	return line
}

// trailingRule splits `message (rule-name)` into its parts.
func trailingRule(message string) (string, string) {
	if !strings.HasSuffix(message, ")") {
		return message, ""
	}
	open := strings.LastIndex(message, " (")
	if open < 0 {
		return message, ""
	}
	rule := message[open+2 : len(message)-1]
	if rule == "" || strings.ContainsAny(rule, " ()") {
		return message, ""
	}
	return strings.TrimSpace(message[:open]), rule
}
