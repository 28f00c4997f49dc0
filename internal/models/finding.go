package models

import "strings"

// Location points at a position inside the analyzed file.
type Location struct {
	Line    int  `json:"line"`
	Column  *int `json:"column,omitempty"`
	EndLine int  `json:"end_line,omitempty"`
}

// Finding is one normalized issue reported by an analysis tool for one file.
type Finding struct {
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Location    Location `json:"location"`
	RuleID      string   `json:"rule_id,omitempty"`
	Confidence  string   `json:"confidence,omitempty"`
	RawSeverity string   `json:"raw_severity,omitempty"`
	CWE         string   `json:"cwe,omitempty"`
}

// Col returns the column or 0 when the tool did not report one.
func (f Finding) Col() int {
	if f.Location.Column == nil {
		return 0
	}
	return *f.Location.Column
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// FlatFinding is a Finding together with the cell it came from.
type FlatFinding struct {
	File     string  `json:"file"`
	Language string  `json:"language"`
	Tool     string  `json:"tool"`
	Finding  Finding `json:"finding"`
}

// Fingerprint identifies a finding across runs. Line numbers are left out
// so that unrelated edits above a finding do not make it look new.
func (f FlatFinding) Fingerprint() string {
	return strings.Join([]string{f.File, f.Tool, f.Finding.RuleID, f.Finding.Message}, "|")
}
