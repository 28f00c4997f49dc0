// Package repository acquires the working copy an audit runs against.
package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/models"
	"github.com/ppiankov/codespectre/internal/runner"
)

const stderrLimit = 500

// Options controls how a working copy is acquired.
type Options struct {
	GitBinary string
	Token     string
	Branch    string
	// TempDir is the parent for clones. Empty means os.TempDir.
	TempDir string
}

// Checkout is an acquired working copy. Cleanup must be called on every
// exit path once the audit is done with it.
type Checkout struct {
	Snapshot models.RepositorySnapshot
	cleanup  func() error
}

// Cleanup releases the working copy. It is safe to call more than once.
func (c *Checkout) Cleanup() error {
	if c == nil || c.cleanup == nil {
		return nil
	}
	fn := c.cleanup
	c.cleanup = nil
	return fn()
}

// Provider clones remote repositories and opens local ones.
type Provider struct {
	exec   runner.ExecFunc
	opts   Options
	logger *zap.Logger
}

// NewProvider creates a Provider. A nil execFn uses runner.OSExec.
func NewProvider(execFn runner.ExecFunc, opts Options, logger *zap.Logger) *Provider {
	if execFn == nil {
		execFn = runner.OSExec
	}
	if opts.GitBinary == "" {
		opts.GitBinary = "git"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{exec: execFn, opts: opts, logger: logger}
}

// Acquire returns a checkout for target, cloning it when it is a URL.
func (p *Provider) Acquire(ctx context.Context, target string) (*Checkout, error) {
	if IsRemote(target) {
		return p.Clone(ctx, target)
	}
	return p.Open(ctx, target)
}

// Clone shallow-clones rawURL into a fresh temporary directory.
func (p *Provider) Clone(ctx context.Context, rawURL string) (*Checkout, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	name, err := NameFromURL(rawURL)
	if err != nil {
		return nil, err
	}

	tmp, err := os.MkdirTemp(p.opts.TempDir, "codespectre-")
	if err != nil {
		return nil, fmt.Errorf("create clone directory: %w", err)
	}
	remove := func() error { return os.RemoveAll(tmp) }
	dest := filepath.Join(tmp, name)

	args := []string{"clone", "--depth", "1"}
	if p.opts.Branch != "" {
		args = append(args, "--branch", p.opts.Branch)
	}
	// "--" keeps git from reading the URL or destination as an option.
	args = append(args, "--", WithToken(rawURL, p.opts.Token), dest)

	p.logger.Info("cloning repository", zap.String("url", rawURL), zap.String("dest", dest))
	res, err := p.exec(ctx, tmp, p.opts.GitBinary, args...)
	if err == nil && res.ExitCode != 0 {
		err = fmt.Errorf("exit code %d: %s", res.ExitCode, adapters.Excerpt(string(res.Stderr), stderrLimit))
	}
	if err != nil {
		_ = remove()
		return nil, fmt.Errorf("clone %s: %s", rawURL, Redact(err.Error(), p.opts.Token))
	}

	snapshot := models.RepositorySnapshot{
		Name:          name,
		URL:           rawURL,
		LocalPath:     dest,
		DefaultBranch: p.currentBranch(ctx, dest),
	}
	p.logger.Info("repository cloned",
		zap.String("name", name),
		zap.String("branch", snapshot.DefaultBranch))

	return &Checkout{Snapshot: snapshot, cleanup: remove}, nil
}

// Open uses an existing directory in place. Its Cleanup never deletes
// anything.
func (p *Provider) Open(ctx context.Context, path string) (*Checkout, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("repository path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("repository path %s does not exist", path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository path %s is not a directory", path)
	}

	snapshot := models.RepositorySnapshot{
		Name:          filepath.Base(abs),
		URL:           p.remoteURL(ctx, abs),
		LocalPath:     abs,
		DefaultBranch: p.currentBranch(ctx, abs),
	}
	return &Checkout{Snapshot: snapshot}, nil
}

// currentBranch returns the checked-out branch, or "unknown" when dir is not
// a git work tree.
func (p *Provider) currentBranch(ctx context.Context, dir string) string {
	if out, ok := p.git(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD"); ok && out != "HEAD" {
		return out
	}
	return "unknown"
}

func (p *Provider) remoteURL(ctx context.Context, dir string) string {
	out, _ := p.git(ctx, dir, "config", "--get", "remote.origin.url")
	return out
}

func (p *Provider) git(ctx context.Context, dir string, args ...string) (string, bool) {
	full := append([]string{"-C", dir}, args...)
	res, err := p.exec(ctx, dir, p.opts.GitBinary, full...)
	if err != nil || res.ExitCode != 0 {
		p.logger.Debug("git query failed", zap.Strings("args", args), zap.Error(err))
		return "", false
	}
	out := strings.TrimSpace(string(res.Stdout))
	return out, out != ""
}
