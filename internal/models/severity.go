package models

import (
	"fmt"
	"strings"
)

// Severity is the canonical severity every tool-specific level maps onto.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Severities lists the canonical severities from most to least severe.
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

var severityRanks = map[Severity]int{
	SeverityCritical: 5,
	SeverityHigh:     4,
	SeverityMedium:   3,
	SeverityLow:      2,
	SeverityInfo:     1,
}

var severityIcons = map[Severity]string{
	SeverityCritical: "🔴",
	SeverityHigh:     "🟠",
	SeverityMedium:   "🟡",
	SeverityLow:      "🔵",
	SeverityInfo:     "⚪",
}

// ParseSeverity parses a canonical severity name, ignoring case.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := severityRanks[sev]; !ok {
		return "", fmt.Errorf("unknown severity %q (want one of critical, high, medium, low, info)", s)
	}
	return sev, nil
}

// Valid reports whether s is one of the canonical severities.
func (s Severity) Valid() bool {
	_, ok := severityRanks[s]
	return ok
}

// Normalize returns s, or MEDIUM when s is not canonical.
func (s Severity) Normalize() Severity {
	if s.Valid() {
		return s
	}
	return SeverityMedium
}

// Rank orders severities; higher is more severe. Unknown values rank as MEDIUM.
func (s Severity) Rank() int {
	return severityRanks[s.Normalize()]
}

// AtLeast reports whether s is as severe as other or more.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Title returns the capitalized display name, e.g. "High".
func (s Severity) Title() string {
	n := string(s.Normalize())
	return n[:1] + strings.ToLower(n[1:])
}

// Icon returns the marker used for s in every report section.
func (s Severity) Icon() string {
	return severityIcons[s.Normalize()]
}

// SeveritySummary maps canonical severity to a finding count.
type SeveritySummary map[Severity]int

// Count returns the number of findings at exactly sev.
func (s SeveritySummary) Count(sev Severity) int {
	return s[sev]
}

// Total returns the number of findings across all severities.
func (s SeveritySummary) Total() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// AtOrAbove returns the number of findings at sev or more severe.
func (s SeveritySummary) AtOrAbove(sev Severity) int {
	total := 0
	for k, n := range s {
		if k.AtLeast(sev) {
			total += n
		}
	}
	return total
}
