// Package storage persists audit runs so later runs can be compared with
// earlier ones.
package storage

import (
	"time"

	"github.com/ppiankov/codespectre/internal/models"
)

// Storage defines the interface for persisting audit runs, keyed by
// repository name.
type Storage interface {
	// SaveRun stores a complete audit run.
	SaveRun(run *models.AuditRun) error

	// LoadRun loads the run of repo stored at timestamp.
	LoadRun(repo string, timestamp time.Time) (*models.AuditRun, error)

	// GetLatestRun retrieves the most recent run of repo.
	GetLatestRun(repo string) (*models.AuditRun, error)

	// GetLastNRuns retrieves the last n runs of repo, oldest first.
	GetLastNRuns(repo string, n int) ([]*models.AuditRun, error)

	// ListRuns returns the run timestamps of repo, oldest first.
	ListRuns(repo string) ([]time.Time, error)

	// ListRepositories returns every repository with stored runs.
	ListRepositories() ([]string, error)
}
