package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/ppiankov/codespectre/internal/models"
)

// pylint message types, both spelled out and as message-id prefixes.
var pylintSeverities = map[string]models.Severity{
	"fatal":      models.SeverityCritical,
	"f":          models.SeverityCritical,
	"error":      models.SeverityHigh,
	"e":          models.SeverityHigh,
	"warning":    models.SeverityMedium,
	"w":          models.SeverityMedium,
	"refactor":   models.SeverityLow,
	"r":          models.SeverityLow,
	"convention": models.SeverityLow,
	"c":          models.SeverityLow,
	"info":       models.SeverityInfo,
	"i":          models.SeverityInfo,
}

// pylint exit status is a bitmask of the message types it emitted.
const (
	pylintFatalBit = 1
	pylintUsageBit = 32
	pylintMaxExit  = 63
)

type pylintMessage struct {
	Type      string `json:"type"`
	Line      int    `json:"line"`
	Column    *int   `json:"column"`
	EndLine   *int   `json:"endLine"`
	Symbol    string `json:"symbol"`
	Message   string `json:"message"`
	MessageID string `json:"message-id"`
}

type pylintAdapter struct{ base }

func (a *pylintAdapter) Name() string { return Pylint }

// Failed is true for usage errors only. The fatal bit still comes with a
// well-formed report (for example a syntax error in the analyzed file).
func (a *pylintAdapter) Failed(exitCode int) bool {
	return exitCode < 0 || exitCode > pylintMaxExit || exitCode&pylintUsageBit != 0
}

func (a *pylintAdapter) Severity(token string) models.Severity {
	return lookupSeverity(pylintSeverities, token)
}

func (a *pylintAdapter) Decode(raw []byte) ([]models.Finding, error) {
	body, err := jsonBody(raw, '[')
	if err != nil {
		return nil, err
	}

	var messages []pylintMessage
	if err := json.Unmarshal(body, &messages); err != nil {
		return nil, fmt.Errorf("decode pylint messages: %w", err)
	}

	findings := make([]models.Finding, 0, len(messages))
	for _, m := range messages {
		token := m.Type
		if token == "" && m.MessageID != "" {
			token = m.MessageID[:1]
		}
		f := models.Finding{
			Severity:    a.Severity(token),
			Message:     m.Message,
			Location:    models.Location{Line: m.Line},
			RuleID:      m.MessageID,
			RawSeverity: token,
		}
		if m.Column != nil {
			f.Location.Column = models.IntPtr(*m.Column + 1)
		}
		if m.EndLine != nil {
			f.Location.EndLine = *m.EndLine
		}
		if f.RuleID == "" {
			f.RuleID = m.Symbol
		}
		findings = append(findings, f)
	}
	return findings, nil
}

func (a *pylintAdapter) Describe(f models.Finding) string {
	line := fmt.Sprintf("%s Line %d: %s", f.Severity.Icon(), f.Location.Line, f.Message)
	if f.RuleID != "" {
		line += fmt.Sprintf(" (`%s`)", f.RuleID)
	}
	return line
}
