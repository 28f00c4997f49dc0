package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ppiankov/codespectre/internal/models"
)

var (
	colorMuted  = lipgloss.Color("#888888")
	colorAccent = lipgloss.Color("#7B68EE")
	colorBorder = lipgloss.Color("#444444")
	colorFailed = lipgloss.Color("#D7005F")
)

// severityStyles share their colors with the health bands below.
var severityStyles = map[models.Severity]lipgloss.Style{
	models.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
	models.SeverityHigh:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8800")).Bold(true),
	models.SeverityMedium:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00")),
	models.SeverityLow:      lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
	models.SeverityInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAFF")),
}

var healthStyles = map[string]lipgloss.Style{
	"excellent": severityStyles[models.SeverityLow].Bold(true),
	"good":      severityStyles[models.SeverityLow],
	"warning":   severityStyles[models.SeverityMedium].Bold(true),
	"critical":  severityStyles[models.SeverityHigh],
	"severe":    severityStyles[models.SeverityCritical],
}

var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder)

	styleDetailPanel = lipgloss.NewStyle().
				Padding(0, 1).
				BorderStyle(lipgloss.NormalBorder()).
				BorderTop(true).
				BorderForeground(colorBorder)

	styleFooter       = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	styleSearchPrompt = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	styleFailedKind   = lipgloss.NewStyle().Foreground(colorFailed).Bold(true)
	styleSuggestion   = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
)

// severityStyle returns the style for a severity. Unknown tokens render
// like MEDIUM, the same way they are counted.
func severityStyle(severity models.Severity) lipgloss.Style {
	if s, ok := severityStyles[severity.Normalize()]; ok {
		return s
	}
	return severityStyles[models.SeverityMedium]
}

func healthStyle(health string) lipgloss.Style {
	if s, ok := healthStyles[health]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
