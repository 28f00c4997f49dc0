package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/aggregator"
	"github.com/ppiankov/codespectre/internal/analyzer"
	"github.com/ppiankov/codespectre/internal/config"
	"github.com/ppiankov/codespectre/internal/discovery"
	"github.com/ppiankov/codespectre/internal/models"
	"github.com/ppiankov/codespectre/internal/policy"
	"github.com/ppiankov/codespectre/internal/reporter"
	"github.com/ppiankov/codespectre/internal/repository"
	"github.com/ppiankov/codespectre/internal/runner"
	"github.com/ppiankov/codespectre/internal/storage"
	"github.com/ppiankov/codespectre/internal/summarizer"
)

// Process hooks. Tests replace them.
var (
	execFn   runner.ExecFunc        = runner.OSExec
	lookPath discovery.LookPathFunc = exec.LookPath
)

// PipelineConfig holds options for one audit.
type PipelineConfig struct {
	Target     string // repository URL or local path
	Branch     string
	Full       bool
	PDF        bool
	Store      bool
	Formats    []string
	FailOn     models.Severity
	PolicyFile string

	// Summarizer is created once by the caller and closed by it. Nil skips
	// the summary.
	Summarizer summarizer.Summarizer

	// Out receives the terminal summary. Nil discards it.
	Out io.Writer

	Exec     runner.ExecFunc
	LookPath discovery.LookPathFunc
	Now      func() time.Time
}

func (p *PipelineConfig) setDefaults() {
	if p.Summarizer == nil {
		p.Summarizer = summarizer.Nop{}
	}
	if p.Out == nil {
		p.Out = io.Discard
	}
	if p.Exec == nil {
		p.Exec = runner.OSExec
	}
	if p.LookPath == nil {
		p.LookPath = exec.LookPath
	}
	if p.Now == nil {
		p.Now = time.Now
	}
}

// RunPipeline audits one repository:
// acquire → analyze → versions → summary → rollup → trend → report → store → gates.
// The working copy is released on every return path. The run is returned
// whenever the report was written, including when a quality gate fails.
func RunPipeline(ctx context.Context, c *config.Config, pcfg PipelineConfig, logger *zap.Logger) (*models.AuditRun, error) {
	pcfg.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	set, err := adapters.NewSet(c.Overrides(), logger)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	// Step 1: Acquire the working copy
	provider := repository.NewProvider(pcfg.Exec, repository.Options{
		GitBinary: c.GitBinary,
		Token:     c.GitHubToken,
		Branch:    pcfg.Branch,
	}, logger)

	checkout, err := provider.Acquire(ctx, pcfg.Target)
	if err != nil {
		return nil, fmt.Errorf("acquire repository: %w", err)
	}
	defer func() {
		if err := checkout.Cleanup(); err != nil {
			logger.Warn("failed to remove working copy", zap.Error(err))
		}
	}()

	snapshot := checkout.Snapshot
	logger.Info("repository ready",
		zap.String("name", snapshot.Name),
		zap.String("path", snapshot.LocalPath),
		zap.String("branch", snapshot.DefaultBranch))

	// Step 2: Analyze every file
	table := c.Table(pcfg.Full)
	an := analyzer.New(
		discovery.NewFileDiscoverer(table, c.SkipDirs, logger),
		runner.New(pcfg.Exec, c.ToolTimeout, logger),
		set,
		logger,
	)
	an.OnProgress(func(done, total int, file string) {
		logger.Debug("file analyzed", zap.Int("done", done), zap.Int("total", total), zap.String("file", file))
	})

	result, err := an.AnalyzeRepository(ctx, snapshot.LocalPath)
	if err != nil {
		return nil, err
	}

	analysis := models.AnalysisContext{Repository: snapshot, Analysis: result}
	run := &models.AuditRun{
		Timestamp: pcfg.Now().UTC(),
		Context:   analysis,
		Rollup:    aggregator.Summarize(result),
		FullScan:  pcfg.Full,
	}

	// Step 3: Tool versions for the appendix
	run.ToolVersions = discovery.NewToolDiscoverer(pcfg.LookPath, pcfg.Exec, logger).
		Versions(ctx, set, table.Tools())

	// Step 4: Summary and recommendations
	run.Summary = pcfg.Summarizer.Summarize(ctx, analysis)
	run.Recommendations = aggregator.NewRecommendationGenerator().GenerateRecommendations(result)

	logger.Info("analysis complete",
		zap.Int("files", run.Rollup.TotalFiles),
		zap.Int("findings", run.Rollup.TotalFindings),
		zap.Int("failed_cells", run.Rollup.FailedCells),
		zap.String("health", run.Rollup.HealthScore))

	// Step 5: Trend against the previous stored run
	var store *storage.LocalStorage
	if pcfg.Store {
		storagePath, err := c.GetStoragePath()
		if err != nil {
			return nil, err
		}
		store = storage.NewLocal(storagePath)

		if previous, err := store.GetLatestRun(snapshot.Name); err == nil {
			logger.Debug("comparing with previous run", zap.Time("previous", previous.Timestamp))
			run.Trend = aggregator.NewTrendAnalyzer().CalculateTrend(run, previous)
		} else if !errors.Is(err, storage.ErrNoRuns) {
			logger.Warn("failed to load previous run", zap.Error(err))
		}
	}

	// Step 6: Write the report
	outputDir, err := c.GetOutputPath()
	if err != nil {
		return nil, err
	}
	writer := reporter.NewWriter(reporter.Options{
		OutputDir:           outputDir,
		JSON:                slices.Contains(pcfg.Formats, config.FormatJSON),
		SARIF:               slices.Contains(pcfg.Formats, config.FormatSARIF),
		PDF:                 pcfg.PDF,
		PandocBinary:        c.PandocBinary,
		MaxFindingsPerGroup: c.MaxFindingsPerGroup,
		Version:             buildVersion,
		Adapters:            set,
	}, pcfg.Exec, logger)

	descriptor, err := writer.Write(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	run.Report = descriptor

	// Step 7: Store for history
	if store != nil {
		if err := saveRun(store, run); err != nil {
			logger.Warn("failed to store run", zap.Error(err))
		} else {
			logger.Debug("run stored", zap.String("path", store.GetStoragePath()))
		}
	}

	if err := reporter.NewTextReporter(pcfg.Out).Generate(run); err != nil {
		logger.Warn("failed to print summary", zap.Error(err))
	}

	// Step 8: Quality gates
	if err := enforcePolicy(run, pcfg.PolicyFile, snapshot.LocalPath, logger); err != nil {
		return run, err
	}
	if pcfg.FailOn != "" {
		if n := run.Rollup.BySeverity.AtOrAbove(pcfg.FailOn); n > 0 {
			logger.Error("findings at or above fail-on severity",
				zap.String("severity", string(pcfg.FailOn)), zap.Int("count", n))
			return run, &ThresholdExceededError{IssueCount: n, Severity: string(pcfg.FailOn)}
		}
	}

	return run, nil
}

func saveRun(store *storage.LocalStorage, run *models.AuditRun) error {
	if err := store.EnsureDirectoryExists(); err != nil {
		return err
	}
	return store.SaveRun(run)
}

// resolvePolicyFile picks the explicit file, else the first policy file
// found from the repository upward, else from the working directory upward.
func resolvePolicyFile(explicit, repoDir string) string {
	if explicit != "" {
		return explicit
	}
	if path := policy.FindPolicyFile(repoDir); path != "" {
		return path
	}
	if wd, err := os.Getwd(); err == nil {
		return policy.FindPolicyFile(wd)
	}
	return ""
}

func enforcePolicy(run *models.AuditRun, explicit, repoDir string, logger *zap.Logger) error {
	path := resolvePolicyFile(explicit, repoDir)
	if path == "" {
		return nil
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return &ValidationError{Message: fmt.Sprintf("policy file: %v", err)}
		}
	}

	logger.Debug("evaluating policy", zap.String("path", path))
	pol, err := policy.LoadFromFile(path)
	if err != nil {
		return &ValidationError{Message: fmt.Sprintf("policy %s: %v", path, err)}
	}

	result := pol.Evaluate(run)
	if result.Pass {
		logger.Info("policy check passed", zap.String("path", path))
		return nil
	}
	for _, v := range result.Violations {
		logger.Error("policy violation", zap.String("rule", v.Rule), zap.String("detail", v.Message))
	}
	return &ThresholdExceededError{IssueCount: len(result.Violations)}
}

// newSummarizer builds the LLM handle for one command invocation.
func newSummarizer(c *config.Config, enabled bool, logger *zap.Logger) (summarizer.Summarizer, error) {
	if !enabled {
		return summarizer.Nop{}, nil
	}
	s, err := summarizer.New(summarizer.Options{
		Endpoint:    c.LLM.Endpoint,
		Model:       c.LLM.Model,
		APIKey:      c.LLM.APIKey,
		Timeout:     c.LLM.Timeout,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temperature,
		TopP:        c.LLM.TopP,
		PromptDir:   c.LLM.PromptDir,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create summarizer: %w", err)
	}
	return s, nil
}

// openStorage returns the run history store from config.
func openStorage(c *config.Config) (*storage.LocalStorage, error) {
	path, err := c.GetStoragePath()
	if err != nil {
		return nil, err
	}
	return storage.NewLocal(path), nil
}
