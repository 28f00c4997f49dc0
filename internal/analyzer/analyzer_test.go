package analyzer

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/aggregator"
	"github.com/ppiankov/codespectre/internal/discovery"
	"github.com/ppiankov/codespectre/internal/models"
	"github.com/ppiankov/codespectre/internal/runner"
)

const banditHigh = `{"results": [{"issue_severity": "HIGH", "issue_confidence": "HIGH",
  "issue_text": "subprocess call with shell=True identified, security issue.",
  "line_number": 3, "col_offset": 0, "test_id": "B602", "issue_cwe": {"id": 78}}]}`

// script answers tool invocations keyed by "binary file".
type script map[string]func(ctx context.Context) (runner.ExecResult, error)

func (s script) exec(ctx context.Context, dir, name string, args ...string) (runner.ExecResult, error) {
	key := name + " " + args[len(args)-1]
	if fn, ok := s[key]; ok {
		return fn(ctx)
	}
	if fn, ok := s[name+" *"]; ok {
		return fn(ctx)
	}
	return runner.ExecResult{ExitCode: -1}, fmt.Errorf("exec: %q: %w", name, exec.ErrNotFound)
}

func reply(stdout string, code int) func(context.Context) (runner.ExecResult, error) {
	return func(context.Context) (runner.ExecResult, error) {
		return runner.ExecResult{Stdout: []byte(stdout), ExitCode: code}, nil
	}
}

func hang(ctx context.Context) (runner.ExecResult, error) {
	<-ctx.Done()
	return runner.ExecResult{ExitCode: -1}, ctx.Err()
}

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("pass\n"), 0o644))
	}
}

func newAnalyzer(t *testing.T, table discovery.Table, s script, timeout time.Duration) (*Analyzer, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	set, err := adapters.NewSet(nil, logger)
	require.NoError(t, err)
	return New(
		discovery.NewFileDiscoverer(table, discovery.DefaultSkipDirs, logger),
		runner.New(s.exec, timeout, logger),
		set,
		logger,
	), logs
}

func TestAnalyzeRepository_TimeoutIsolatedToOneCell(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.py", "b.py", "c.py")

	s := script{
		"bandit b.py": hang,
		"bandit *":    reply(`{"results": []}`, 0),
		"pylint *":    reply(`[]`, 0),
	}
	a, logs := newAnalyzer(t, discovery.Table{"py": {adapters.Bandit, adapters.Pylint}}, s, 50*time.Millisecond)

	result, err := a.AnalyzeRepository(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Files, 3)

	for i, want := range []string{"a.py", "b.py", "c.py"} {
		fa := result.Files[i]
		assert.Equal(t, want, fa.FilePath)
		require.Len(t, fa.PerTool, 2)
		assert.Equal(t, adapters.Bandit, fa.PerTool[0].Tool)
		assert.Equal(t, adapters.Pylint, fa.PerTool[1].Tool)
	}

	timedOut, _ := result.Files[1].Outcome(adapters.Bandit)
	require.True(t, timedOut.Failed())
	assert.Equal(t, models.ErrorTimeout, timedOut.Error.Kind)
	assert.NotEmpty(t, timedOut.Error.Suggestion)

	for _, i := range []int{0, 2} {
		cell, _ := result.Files[i].Outcome(adapters.Bandit)
		assert.False(t, cell.Failed(), "file %d", i)
		assert.NotNil(t, cell.Findings)
	}
	pylintOnB, _ := result.Files[1].Outcome(adapters.Pylint)
	assert.False(t, pylintOnB.Failed())

	assert.Equal(t, 1, logs.FilterMessage("tool failed").Len())
}

func TestAnalyzeRepository_ErrorKinds(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "app.js", "ci.yml", "broken.py")

	s := script{
		"eslint app.js":    reply("", 2),
		"bandit broken.py": reply("Traceback (most recent call last):", 1),
		"pylint broken.py": reply("", 4),
		// yamllint is not installed
	}
	a, _ := newAnalyzer(t, discovery.DefaultTable(), s, time.Second)

	result, err := a.AnalyzeRepository(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Files, 3)

	kinds := map[string]models.ErrorKind{}
	for _, fa := range result.Files {
		for _, o := range fa.PerTool {
			require.NotNil(t, o.Error, "%s/%s", fa.FilePath, o.Tool)
			kinds[fa.FilePath+"/"+o.Tool] = o.Error.Kind
		}
	}
	assert.Equal(t, map[string]models.ErrorKind{
		"app.js/eslint":    models.ErrorNonZeroExit,
		"broken.py/bandit": models.ErrorParse,
		"broken.py/pylint": models.ErrorParse,
		"ci.yml/yamllint":  models.ErrorNotFound,
	}, kinds)
}

func TestAnalyzeRepository_EmptyOutputIsClean(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "ok.yaml")

	a, _ := newAnalyzer(t, discovery.DefaultTable(), script{"yamllint *": reply("", 0)}, time.Second)
	result, err := a.AnalyzeRepository(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	cell, ok := result.Files[0].Outcome(adapters.Yamllint)
	require.True(t, ok)
	assert.False(t, cell.Failed())
	assert.Empty(t, cell.Findings)
}

func TestAnalyzeRepository_UnknownToolInTable(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.py")

	a, _ := newAnalyzer(t, discovery.Table{"py": {"semgrep"}}, script{}, time.Second)
	result, err := a.AnalyzeRepository(context.Background(), root)
	require.NoError(t, err)

	cell, _ := result.Files[0].Outcome("semgrep")
	require.NotNil(t, cell.Error)
	assert.Equal(t, models.ErrorNotFound, cell.Error.Kind)
}

func TestAnalyzeRepository_EmptyRepository(t *testing.T) {
	a, _ := newAnalyzer(t, discovery.DefaultTable(), script{}, time.Second)
	result, err := a.AnalyzeRepository(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, result.Files)
	assert.Equal(t, 0, aggregator.ProjectSeverity(result).Total())
}

func TestAnalyzeRepository_MissingRoot(t *testing.T) {
	a, _ := newAnalyzer(t, discovery.DefaultTable(), script{}, time.Second)
	_, err := a.AnalyzeRepository(context.Background(), filepath.Join(t.TempDir(), "gone"))
	require.Error(t, err)
}

func TestAnalyzeRepository_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.py")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, _ := newAnalyzer(t, discovery.DefaultTable(), script{}, time.Second)
	_, err := a.AnalyzeRepository(ctx, root)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeRepository_InsecureFileReportsHigh(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "bad.py")

	var progress []string
	a, _ := newAnalyzer(t, discovery.DefaultTable(), script{
		"bandit bad.py": reply(banditHigh, 1),
		"pylint bad.py": reply(`[]`, 0),
	}, time.Second)
	a.OnProgress(func(done, total int, file string) {
		progress = append(progress, fmt.Sprintf("%d/%d %s", done, total, file))
	})

	result, err := a.AnalyzeRepository(context.Background(), root)
	require.NoError(t, err)

	summary := aggregator.ProjectSeverity(result)
	assert.GreaterOrEqual(t, summary.Count(models.SeverityHigh), 1)
	assert.Equal(t, []string{"1/1 bad.py"}, progress)

	cell, _ := result.Files[0].Outcome(adapters.Bandit)
	require.Len(t, cell.Findings, 1)
	assert.Equal(t, "B602", cell.Findings[0].RuleID)
}

func TestAnalyzeFile_PathWithColons(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "v:12:app.yml")

	s := script{
		"yamllint *": reply("v:12:app.yml:3:1: [error] wrong indentation (indentation)\n", 1),
	}
	a, _ := newAnalyzer(t, discovery.Table{"yml": {adapters.Yamllint}}, s, time.Second)

	result, err := a.AnalyzeRepository(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)

	cell, ok := result.Files[0].Outcome(adapters.Yamllint)
	require.True(t, ok)
	require.False(t, cell.Failed())
	require.Len(t, cell.Findings, 1)
	assert.Equal(t, 3, cell.Findings[0].Location.Line)
	assert.Equal(t, 1, cell.Findings[0].Col())
	assert.Equal(t, "indentation", cell.Findings[0].RuleID)
}
