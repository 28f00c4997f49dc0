package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Quit           key.Binding
	Search         key.Binding
	FilterTool     key.Binding
	FilterSeverity key.Binding
	Sort           key.Binding
	Copy           key.Binding
	Failures       key.Binding
	ClearFilter    key.Binding
}

func binding(help string, keys ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help))
}

var keys = keyMap{
	Quit:           binding("quit", "q", "ctrl+c"),
	Search:         binding("search", "/"),
	FilterTool:     binding("tool", "t"),
	FilterSeverity: binding("severity", "v"),
	Sort:           binding("sort", "s"),
	Copy:           binding("copy", "c"),
	Failures:       binding("errors", "e"),
	ClearFilter:    binding("clear", "esc"),
}

// footerHelp renders the normal-mode bindings as "key:help" pairs.
func footerHelp() string {
	bindings := []key.Binding{
		keys.Quit, keys.Search, keys.FilterTool, keys.FilterSeverity,
		keys.Sort, keys.Copy, keys.Failures, keys.ClearFilter,
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+":"+h.Desc)
	}
	return strings.Join(parts, "  ")
}
