package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/codespectre/internal/models"
)

const (
	runSuffix       = "-audit.json"
	timestampLayout = "2006-01-02T15-04-05"
)

// ErrNoRuns is returned when a repository has no stored runs.
var ErrNoRuns = errors.New("no runs found")

var unsafeKey = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// LocalStorage implements Storage on the local filesystem as
// <base>/runs/<repo>/<timestamp>-audit.json.
type LocalStorage struct {
	baseDir string
}

// NewLocal creates a new local storage instance
func NewLocal(baseDir string) *LocalStorage {
	return &LocalStorage{
		baseDir: baseDir,
	}
}

// RepoKey maps a repository name to its directory name.
func RepoKey(repo string) string {
	key := strings.Trim(unsafeKey.ReplaceAllString(strings.TrimSpace(repo), "_"), ".")
	if key == "" {
		return "_"
	}
	return key
}

// SaveRun stores an audit run to disk.
func (s *LocalStorage) SaveRun(run *models.AuditRun) error {
	dir := s.repoDir(run.Context.Repository.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}

	path := filepath.Join(dir, s.formatTimestamp(run.Timestamp)+runSuffix)

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// LoadRun loads the run of repo stored at timestamp.
func (s *LocalStorage) LoadRun(repo string, timestamp time.Time) (*models.AuditRun, error) {
	path := filepath.Join(s.repoDir(repo), s.formatTimestamp(timestamp)+runSuffix)
	return s.loadRunFromFile(path)
}

// GetLatestRun retrieves the most recent run of repo.
func (s *LocalStorage) GetLatestRun(repo string) (*models.AuditRun, error) {
	timestamps, err := s.ListRuns(repo)
	if err != nil {
		return nil, err
	}

	if len(timestamps) == 0 {
		return nil, ErrNoRuns
	}

	return s.LoadRun(repo, timestamps[len(timestamps)-1])
}

// GetLastNRuns retrieves the last n runs of repo. Files that fail to load
// are skipped.
func (s *LocalStorage) GetLastNRuns(repo string, n int) ([]*models.AuditRun, error) {
	timestamps, err := s.ListRuns(repo)
	if err != nil {
		return nil, err
	}

	if len(timestamps) == 0 {
		return nil, ErrNoRuns
	}

	start := len(timestamps) - n
	if start < 0 || n <= 0 {
		start = 0
	}

	selected := timestamps[start:]
	runs := make([]*models.AuditRun, 0, len(selected))

	for _, timestamp := range selected {
		run, err := s.LoadRun(repo, timestamp)
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}

	return runs, nil
}

// ListRuns returns the run timestamps of repo sorted chronologically.
func (s *LocalStorage) ListRuns(repo string) ([]time.Time, error) {
	dir := s.repoDir(repo)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []time.Time{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var timestamps []time.Time

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), runSuffix) {
			continue
		}

		timestamp, err := s.parseTimestamp(strings.TrimSuffix(entry.Name(), runSuffix))
		if err != nil {
			continue
		}

		timestamps = append(timestamps, timestamp)
	}

	sort.Slice(timestamps, func(i, j int) bool {
		return timestamps[i].Before(timestamps[j])
	})

	return timestamps, nil
}

// ListRepositories returns the repositories that have a runs directory,
// sorted by name.
func (s *LocalStorage) ListRepositories() ([]string, error) {
	runsDir := filepath.Join(s.baseDir, "runs")

	entries, err := os.ReadDir(runsDir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	repos := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			repos = append(repos, entry.Name())
		}
	}
	sort.Strings(repos)
	return repos, nil
}

func (s *LocalStorage) repoDir(repo string) string {
	return filepath.Join(s.baseDir, "runs", RepoKey(repo))
}

func (s *LocalStorage) loadRunFromFile(path string) (*models.AuditRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var run models.AuditRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}

	return &run, nil
}

// formatTimestamp converts a time.Time to filename-safe format
func (s *LocalStorage) formatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// parseTimestamp converts filename format back to time.Time
func (s *LocalStorage) parseTimestamp(str string) (time.Time, error) {
	return time.Parse(timestampLayout, str)
}

// GetStoragePath returns the full path to the storage directory
func (s *LocalStorage) GetStoragePath() string {
	return s.baseDir
}

// EnsureDirectoryExists creates the storage directory if it doesn't exist
func (s *LocalStorage) EnsureDirectoryExists() error {
	return os.MkdirAll(filepath.Join(s.baseDir, "runs"), 0755)
}
