package adapters

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/codespectre/internal/models"
)

// Tool names understood by New.
const (
	Bandit   = "bandit"
	Pylint   = "pylint"
	ESLint   = "eslint"
	Yamllint = "yamllint"
	Flake8   = "flake8"
)

// Defaults is the source of truth for how each tool is invoked.
var Defaults = map[string]Invocation{
	Bandit: {
		Binary:      "bandit",
		Args:        []string{"-f", "json", "-q", FilePlaceholder},
		VersionArgs: []string{"--version"},
		MinVersion:  "1.7.0",
		InstallHint: "pip install bandit",
	},
	Pylint: {
		Binary:      "pylint",
		Args:        []string{"--output-format=json", "--score=n", FilePlaceholder},
		VersionArgs: []string{"--version"},
		MinVersion:  "2.12.0",
		InstallHint: "pip install pylint",
	},
	ESLint: {
		Binary:      "eslint",
		Args:        []string{"-f", "json", "--no-color", FilePlaceholder},
		VersionArgs: []string{"--version"},
		MinVersion:  "7.0.0",
		InstallHint: "npm install -g eslint",
	},
	Yamllint: {
		Binary:      "yamllint",
		Args:        []string{"-f", "parsable", FilePlaceholder},
		VersionArgs: []string{"--version"},
		MinVersion:  "1.20.0",
		InstallHint: "pip install yamllint",
	},
	Flake8: {
		Binary:      "flake8",
		Args:        []string{"--format=default", FilePlaceholder},
		VersionArgs: []string{"--version"},
		MinVersion:  "3.8.0",
		InstallHint: "pip install flake8",
	},
}

// Names returns the supported tool names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Defaults))
	for name := range Defaults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupported reports whether name has an adapter.
func IsSupported(name string) bool {
	_, ok := Defaults[name]
	return ok
}

// New builds the adapter for name with the given invocation.
func New(name string, inv Invocation) (Adapter, error) {
	switch name {
	case Bandit:
		return &banditAdapter{base{inv}}, nil
	case Pylint:
		return &pylintAdapter{base{inv}}, nil
	case ESLint:
		return &eslintAdapter{base{inv}}, nil
	case Yamllint:
		return &yamllintAdapter{base{inv}}, nil
	case Flake8:
		return &flake8Adapter{base{inv}}, nil
	default:
		return nil, fmt.Errorf("no adapter for tool %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
}

// Override replaces parts of a tool's default invocation. Zero fields keep
// the default.
type Override struct {
	Binary  string
	Args    []string
	Timeout time.Duration
}

// Set is the configured collection of adapters for one process.
type Set struct {
	adapters map[string]Adapter
	logger   *zap.Logger
}

// NewSet builds every supported adapter, applying overrides by tool name.
func NewSet(overrides map[string]Override, logger *zap.Logger) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Set{adapters: make(map[string]Adapter, len(Defaults)), logger: logger}
	for name, inv := range Defaults {
		if o, ok := overrides[name]; ok {
			if o.Binary != "" {
				inv.Binary = o.Binary
			}
			if len(o.Args) > 0 {
				inv.Args = append([]string(nil), o.Args...)
			}
			if o.Timeout > 0 {
				inv.Timeout = o.Timeout
			}
		}
		a, err := New(name, inv)
		if err != nil {
			return nil, err
		}
		s.adapters[name] = a
	}

	for name := range overrides {
		if !IsSupported(name) {
			return nil, fmt.Errorf("override for unknown tool %q", name)
		}
	}
	return s, nil
}

// Get returns the adapter registered for name.
func (s *Set) Get(name string) (Adapter, bool) {
	a, ok := s.adapters[name]
	return a, ok
}

// Describe renders f the way the adapter for tool does. ok is false for a
// tool the set does not know.
func (s *Set) Describe(tool string, f models.Finding) (string, bool) {
	a, ok := s.adapters[tool]
	if !ok {
		return "", false
	}
	return a.Describe(f), true
}

// Names returns the tool names in the set, sorted.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.adapters))
	for name := range s.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse converts raw tool output into findings. It never fails: unknown
// tools, empty output and malformed output yield an empty list and a
// logged warning.
func (s *Set) Parse(tool string, raw []byte) []models.Finding {
	a, ok := s.adapters[tool]
	if !ok {
		s.logger.Warn("no adapter for tool output", zap.String("tool", tool))
		return []models.Finding{}
	}
	if isBlank(raw) {
		s.logger.Warn("empty tool output", zap.String("tool", tool))
		return []models.Finding{}
	}

	findings, err := a.Decode(raw)
	if err != nil {
		s.logger.Warn("unparsable tool output",
			zap.String("tool", tool),
			zap.Error(err),
			zap.String("excerpt", Excerpt(string(raw), 200)))
		return []models.Finding{}
	}
	return findings
}

// Excerpt trims s and caps it at max bytes, marking the cut.
func Excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func isBlank(raw []byte) bool {
	return len(strings.TrimSpace(string(raw))) == 0
}
