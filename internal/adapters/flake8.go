package adapters

import (
	"fmt"
	"strings"

	"github.com/ppiankov/codespectre/internal/models"
)

// flake8 codes keyed by their plugin letter.
var flake8Severities = map[string]models.Severity{
	"f": models.SeverityHigh,   // pyflakes
	"e": models.SeverityMedium, // pycodestyle errors
	"b": models.SeverityMedium, // bugbear
	"w": models.SeverityLow,
	"c": models.SeverityLow,
	"n": models.SeverityLow,
	"d": models.SeverityLow,
}

// flake8Adapter reads the default flake8 format:
//
//	app.py:1:80: E501 line too long (88 > 79 characters)
type flake8Adapter struct{ base }

func (a *flake8Adapter) Name() string { return Flake8 }

func (a *flake8Adapter) Failed(exitCode int) bool {
	return exitCode < 0 || exitCode >= 2
}

func (a *flake8Adapter) Severity(token string) models.Severity {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.SeverityMedium
	}
	return lookupSeverity(flake8Severities, token[:1])
}

func (a *flake8Adapter) Decode(raw []byte) ([]models.Finding, error) {
	return a.DecodeFile(raw, "")
}

func (a *flake8Adapter) DecodeFile(raw []byte, file string) ([]models.Finding, error) {
	return decodeLines(raw, file, func(rec lineRecord) models.Finding {
		level, code, message := splitLevel(rec.Rest)
		return models.Finding{
			Severity:    a.Severity(level),
			Message:     message,
			Location:    models.Location{Line: rec.Line, Column: rec.Column},
			RuleID:      code,
			RawSeverity: level,
		}
	})
}

func (a *flake8Adapter) Describe(f models.Finding) string {
	return fmt.Sprintf("%s Line %d:%d `%s` %s", f.Severity.Icon(), f.Location.Line, f.Col(), f.RuleID, f.Message)
}
