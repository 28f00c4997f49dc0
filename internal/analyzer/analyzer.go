// Package analyzer dispatches discovered files to their analysis tools and
// collects the normalized results.
package analyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/aggregator"
	"github.com/ppiankov/codespectre/internal/discovery"
	"github.com/ppiankov/codespectre/internal/models"
	"github.com/ppiankov/codespectre/internal/runner"
)

// ProgressFunc is called after each file is analyzed.
type ProgressFunc func(done, total int, file string)

// Analyzer runs every configured tool on every discovered file, one file
// and one tool at a time. Tool failures are recorded per cell and never
// stop the scan.
type Analyzer struct {
	discoverer *discovery.FileDiscoverer
	runner     *runner.Runner
	adapters   *adapters.Set
	logger     *zap.Logger
	progress   ProgressFunc
}

// New creates an Analyzer.
func New(d *discovery.FileDiscoverer, r *runner.Runner, set *adapters.Set, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{discoverer: d, runner: r, adapters: set, logger: logger}
}

// OnProgress registers fn to be called after each file.
func (a *Analyzer) OnProgress(fn ProgressFunc) {
	a.progress = fn
}

// AnalyzeRepository discovers the files under root and analyzes each one.
// Only a root that cannot be walked, or a cancelled context, is an error.
func (a *Analyzer) AnalyzeRepository(ctx context.Context, root string) (models.AnalysisResult, error) {
	targets, err := a.discoverer.Discover(root)
	if err != nil {
		return models.AnalysisResult{}, fmt.Errorf("discover files: %w", err)
	}

	a.logger.Info("analyzing repository", zap.String("root", root), zap.Int("files", len(targets)))

	agg := aggregator.New()
	for i, target := range targets {
		if err := ctx.Err(); err != nil {
			return models.AnalysisResult{}, fmt.Errorf("analysis interrupted after %d of %d files: %w", i, len(targets), err)
		}
		agg.Add(a.AnalyzeFile(ctx, root, target))
		if a.progress != nil {
			a.progress(i+1, len(targets), target.Path)
		}
	}

	return agg.Result(), nil
}

// AnalyzeFile runs each tool configured for target and records one cell
// per tool, in configuration order.
func (a *Analyzer) AnalyzeFile(ctx context.Context, root string, target discovery.Target) models.FileAnalysis {
	fa := models.FileAnalysis{
		FilePath: target.Path,
		Language: target.Language,
		PerTool:  make([]models.ToolOutcome, 0, len(target.Tools)),
	}
	for _, tool := range target.Tools {
		fa.PerTool = append(fa.PerTool, a.runTool(ctx, root, target, tool))
	}
	return fa
}

func (a *Analyzer) runTool(ctx context.Context, root string, target discovery.Target, tool string) models.ToolOutcome {
	out := models.ToolOutcome{Tool: tool}
	log := a.logger.With(zap.String("tool", tool), zap.String("file", target.Path))

	ad, ok := a.adapters.Get(tool)
	if !ok {
		log.Warn("no adapter registered for tool")
		out.Error = &models.ErrorResult{
			Kind:       models.ErrorNotFound,
			Message:    fmt.Sprintf("no adapter registered for tool %q", tool),
			ExitCode:   -1,
			Suggestion: "Use one of: " + strings.Join(adapters.Names(), ", "),
		}
		return out
	}

	res, toolErr := a.runner.Run(ctx, ad, root, filepath.FromSlash(target.Path))
	out.Duration = res.Duration
	if toolErr != nil {
		log.Warn("tool failed",
			zap.String("kind", string(toolErr.Kind)),
			zap.Int("exit_code", toolErr.ExitCode),
			zap.String("stderr", adapters.Excerpt(toolErr.Stderr, 200)),
			zap.Error(toolErr.Err))
		out.Error = toolErr.Result(ad.Invocation(), a.runner.TimeoutFor(ad))
		return out
	}

	findings, err := decode(ad, res, filepath.FromSlash(target.Path))
	if err != nil {
		log.Warn("tool output could not be parsed",
			zap.Int("exit_code", res.ExitCode),
			zap.String("stdout", adapters.Excerpt(string(res.RawStdout), 200)),
			zap.Error(err))
		out.Error = &models.ErrorResult{
			Kind:          models.ErrorParse,
			Message:       err.Error(),
			ExitCode:      res.ExitCode,
			StderrExcerpt: adapters.Excerpt(string(res.RawStderr), runner.StderrExcerptLimit),
			Suggestion:    runner.Suggestion(models.ErrorParse, tool, ad.Invocation(), a.runner.TimeoutFor(ad)),
		}
		return out
	}

	log.Debug("tool finished", zap.Int("findings", len(findings)), zap.Duration("duration", res.Duration))
	out.Findings = findings
	return out
}

// decode treats empty output from a successful run as a clean result.
func decode(ad adapters.Adapter, res models.ToolInvocationResult, file string) ([]models.Finding, error) {
	if strings.TrimSpace(string(res.RawStdout)) == "" {
		if res.ExitCode == 0 {
			return []models.Finding{}, nil
		}
		return nil, fmt.Errorf("no output despite exit code %d", res.ExitCode)
	}
	return adapters.DecodeFile(ad, res.RawStdout, file)
}
