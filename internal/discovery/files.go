package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/codespectre/internal/adapters"
)

// Table maps a lowercase file extension, without the dot, to the tools run
// on files with that extension.
type Table map[string][]string

// DefaultTable returns the built-in extension table.
func DefaultTable() Table {
	return Table{
		"py":   {adapters.Bandit, adapters.Pylint},
		"js":   {adapters.ESLint},
		"yaml": {adapters.Yamllint},
		"yml":  {adapters.Yamllint},
	}
}

// DefaultFullTable returns the tools added by a full scan.
func DefaultFullTable() Table {
	return Table{
		"py": {adapters.Flake8},
	}
}

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{".git", "node_modules", ".venv", "venv", "__pycache__", ".tox", "vendor"}

// Merge returns a copy of t with extra's tools appended per extension.
// Tools already listed for an extension are not repeated.
func (t Table) Merge(extra Table) Table {
	out := make(Table, len(t)+len(extra))
	for ext, tools := range t {
		out[ext] = append([]string(nil), tools...)
	}
	for ext, tools := range extra {
		for _, tool := range tools {
			if !slices.Contains(out[ext], tool) {
				out[ext] = append(out[ext], tool)
			}
		}
	}
	return out
}

// Extensions returns the configured extensions in bucket order.
func (t Table) Extensions() []string {
	exts := make([]string, 0, len(t))
	for ext, tools := range t {
		if len(tools) > 0 {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// Tools returns every distinct tool in the table, sorted.
func (t Table) Tools() []string {
	var tools []string
	for _, list := range t {
		for _, tool := range list {
			if !slices.Contains(tools, tool) {
				tools = append(tools, tool)
			}
		}
	}
	sort.Strings(tools)
	return tools
}

var languages = map[string]string{
	"py":   "python",
	"js":   "javascript",
	"mjs":  "javascript",
	"cjs":  "javascript",
	"jsx":  "javascript",
	"ts":   "typescript",
	"yaml": "yaml",
	"yml":  "yaml",
}

// Language names the language for ext. Unknown extensions name themselves.
func Language(ext string) string {
	if lang, ok := languages[ext]; ok {
		return lang
	}
	return ext
}

// Target is one file scheduled for analysis.
type Target struct {
	Path      string   `json:"path"` // relative to the root, slash separated
	AbsPath   string   `json:"-"`
	Extension string   `json:"extension"`
	Language  string   `json:"language"`
	Tools     []string `json:"tools"`
}

// FileDiscoverer walks a working copy and selects files by extension.
type FileDiscoverer struct {
	table    Table
	skipDirs map[string]bool
	logger   *zap.Logger
}

// NewFileDiscoverer creates a FileDiscoverer over table.
func NewFileDiscoverer(table Table, skipDirs []string, logger *zap.Logger) *FileDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	skip := make(map[string]bool, len(skipDirs))
	for _, d := range skipDirs {
		skip[d] = true
	}
	return &FileDiscoverer{table: table, skipDirs: skip, logger: logger}
}

// Discover returns the files under root that have configured tools.
// Files are ordered by extension bucket (extensions sorted), then by walk
// order. Unreadable directories are logged and skipped; symlinks are never
// followed. Only an unreadable root is an error.
func (d *FileDiscoverer) Discover(root string) ([]Target, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	buckets := make(map[string][]Target)
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			d.logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			if path != root && d.skipDirs[entry.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			d.logger.Debug("skipping symlink", zap.String("path", path))
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(entry.Name()), "."))
		tools := d.table[ext]
		if len(tools) == 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		buckets[ext] = append(buckets[ext], Target{
			Path:      filepath.ToSlash(rel),
			AbsPath:   path,
			Extension: ext,
			Language:  Language(ext),
			Tools:     append([]string(nil), tools...),
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", root, walkErr)
	}

	var targets []Target
	seen := make(map[string]bool)
	for _, ext := range d.table.Extensions() {
		for _, t := range buckets[ext] {
			if seen[t.Path] {
				continue
			}
			seen[t.Path] = true
			targets = append(targets, t)
		}
	}

	d.logger.Debug("discovered files", zap.String("root", root), zap.Int("count", len(targets)))
	return targets, nil
}
