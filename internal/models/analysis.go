package models

import "time"

// RepositorySnapshot identifies the working copy being audited.
type RepositorySnapshot struct {
	Name          string `json:"name"`
	URL           string `json:"url"`
	LocalPath     string `json:"local_path"`
	DefaultBranch string `json:"default_branch,omitempty"`
}

// ToolInvocationResult is the raw outcome of running one tool on one file.
type ToolInvocationResult struct {
	ToolName  string        `json:"tool_name"`
	ExitCode  int           `json:"exit_code"`
	RawStdout []byte        `json:"raw_stdout"`
	RawStderr []byte        `json:"raw_stderr"`
	Duration  time.Duration `json:"duration"`
}

// ErrorKind classifies why a (file, tool) cell has no findings.
type ErrorKind string

const (
	ErrorTimeout     ErrorKind = "timeout"
	ErrorNotFound    ErrorKind = "not_found"
	ErrorNonZeroExit ErrorKind = "non_zero_exit"
	ErrorCrash       ErrorKind = "crash"
	ErrorParse       ErrorKind = "parse_error"
)

// ErrorResult is recorded in place of findings when a tool invocation or
// its parse fails.
type ErrorResult struct {
	Kind          ErrorKind `json:"kind"`
	Message       string    `json:"message"`
	ExitCode      int       `json:"exit_code"`
	StderrExcerpt string    `json:"stderr_excerpt,omitempty"`
	Suggestion    string    `json:"suggestion,omitempty"`
}

// ToolOutcome is one (file, tool) cell: findings, or an error placeholder.
type ToolOutcome struct {
	Tool     string        `json:"tool"`
	Findings []Finding     `json:"findings"`
	Error    *ErrorResult  `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Failed reports whether the cell holds an error placeholder.
func (o ToolOutcome) Failed() bool {
	return o.Error != nil
}

// FileAnalysis holds every tool outcome for one scanned file, in the order
// the tools are configured for its extension.
type FileAnalysis struct {
	FilePath string        `json:"file_path"`
	Language string        `json:"language"`
	PerTool  []ToolOutcome `json:"per_tool"`
}

// Outcome returns the cell for tool.
func (f FileAnalysis) Outcome(tool string) (ToolOutcome, bool) {
	for _, o := range f.PerTool {
		if o.Tool == tool {
			return o, true
		}
	}
	return ToolOutcome{}, false
}

// FindingCount returns the number of findings across all tools.
func (f FileAnalysis) FindingCount() int {
	n := 0
	for _, o := range f.PerTool {
		n += len(o.Findings)
	}
	return n
}

// HasFailures reports whether any tool cell failed.
func (f FileAnalysis) HasFailures() bool {
	for _, o := range f.PerTool {
		if o.Failed() {
			return true
		}
	}
	return false
}

// AnalysisResult is the repository-wide result in discovery order.
type AnalysisResult struct {
	Files []FileAnalysis `json:"files"`
}

// Flatten returns every finding with its file and tool, in result order.
func (r AnalysisResult) Flatten() []FlatFinding {
	var out []FlatFinding
	for _, fa := range r.Files {
		for _, o := range fa.PerTool {
			for _, f := range o.Findings {
				out = append(out, FlatFinding{
					File:     fa.FilePath,
					Language: fa.Language,
					Tool:     o.Tool,
					Finding:  f,
				})
			}
		}
	}
	return out
}

// AnalysisContext pairs the repository identity with its analysis result.
type AnalysisContext struct {
	Repository RepositorySnapshot `json:"repository"`
	Analysis   AnalysisResult     `json:"analysis"`
}

// Payload renders the context as nested maps and slices for the summarizer.
// Every finding and error placeholder is kept.
func (c *AnalysisContext) Payload() map[string]any {
	files := make([]any, 0, len(c.Analysis.Files))
	for _, fa := range c.Analysis.Files {
		results := make(map[string]any, len(fa.PerTool))
		for _, o := range fa.PerTool {
			if o.Error != nil {
				results[o.Tool] = map[string]any{"error": errorPayload(o.Error)}
				continue
			}
			findings := make([]any, 0, len(o.Findings))
			for _, f := range o.Findings {
				findings = append(findings, findingPayload(f))
			}
			results[o.Tool] = findings
		}
		files = append(files, map[string]any{
			"file_path": fa.FilePath,
			"language":  fa.Language,
			"results":   results,
		})
	}

	return map[string]any{
		"repository": map[string]any{
			"name":           c.Repository.Name,
			"url":            c.Repository.URL,
			"default_branch": c.Repository.DefaultBranch,
		},
		"files": files,
	}
}

func findingPayload(f Finding) map[string]any {
	loc := map[string]any{"line": f.Location.Line}
	if f.Location.Column != nil {
		loc["column"] = *f.Location.Column
	}
	m := map[string]any{
		"severity": string(f.Severity),
		"message":  f.Message,
		"location": loc,
	}
	if f.RuleID != "" {
		m["rule_id"] = f.RuleID
	}
	if f.Confidence != "" {
		m["confidence"] = f.Confidence
	}
	if f.CWE != "" {
		m["cwe"] = f.CWE
	}
	return m
}

func errorPayload(e *ErrorResult) map[string]any {
	return map[string]any{
		"kind":      string(e.Kind),
		"message":   e.Message,
		"exit_code": e.ExitCode,
		"stderr":    e.StderrExcerpt,
	}
}
