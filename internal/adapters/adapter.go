// Package adapters turns raw analysis-tool output into normalized findings.
//
// Each supported tool has one adapter. The closed set is built by New, the
// single dispatch point keyed by tool name.
package adapters

import (
	"strings"
	"time"

	"github.com/ppiankov/codespectre/internal/models"
)

// FilePlaceholder marks the analyzed file inside an argument template.
const FilePlaceholder = "{file}"

// Invocation describes how to run a tool against one file.
type Invocation struct {
	Binary      string        // executable name (looked up in PATH)
	Args        []string      // argument template; FilePlaceholder is replaced by the file
	VersionArgs []string      // arguments that print the tool version
	MinVersion  string        // oldest version whose output format is understood
	InstallHint string        // shown when the binary is missing
	Timeout     time.Duration // 0 means the runner default
}

// Command expands the argument template for file. When the template has no
// placeholder the file is appended as the last argument.
func (inv Invocation) Command(file string) (string, []string) {
	args := make([]string, 0, len(inv.Args)+1)
	placed := false
	for _, a := range inv.Args {
		if strings.Contains(a, FilePlaceholder) {
			a = strings.ReplaceAll(a, FilePlaceholder, file)
			placed = true
		}
		args = append(args, a)
	}
	if !placed {
		args = append(args, file)
	}
	return inv.Binary, args
}

// Adapter knows how to invoke one tool and how to read what it prints.
type Adapter interface {
	// Name is the tool key used in the extension table.
	Name() string
	Invocation() Invocation
	// Failed reports whether exitCode means the tool could not do its job,
	// as opposed to "ran and found issues".
	Failed(exitCode int) bool
	// Decode parses raw stdout strictly; malformed output is an error.
	Decode(raw []byte) ([]models.Finding, error)
	// Severity maps a tool-specific level token onto the canonical enum.
	// Unmapped tokens return MEDIUM.
	Severity(token string) models.Severity
	// Describe renders one finding as a markdown line for the report.
	Describe(f models.Finding) string
}

// FileDecoder is implemented by adapters whose output names the file on
// every line. Knowing the path lets them split lines whose path contains
// colons.
type FileDecoder interface {
	DecodeFile(raw []byte, file string) ([]models.Finding, error)
}

// DecodeFile decodes raw output produced for file, through the adapter's
// FileDecoder when it has one.
func DecodeFile(a Adapter, raw []byte, file string) ([]models.Finding, error) {
	if fd, ok := a.(FileDecoder); ok {
		return fd.DecodeFile(raw, file)
	}
	return a.Decode(raw)
}

// base carries the invocation shared by every adapter.
type base struct {
	inv Invocation
}

func (b base) Invocation() Invocation { return b.inv }

// lookupSeverity maps token through table, defaulting to MEDIUM.
func lookupSeverity(table map[string]models.Severity, token string) models.Severity {
	if sev, ok := table[strings.ToLower(strings.TrimSpace(token))]; ok {
		return sev
	}
	return models.SeverityMedium
}
