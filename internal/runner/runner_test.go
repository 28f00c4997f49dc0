package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/models"
)

// fakeExec returns canned results per binary.
func fakeExec(results map[string]ExecResult, errs map[string]error) ExecFunc {
	return func(ctx context.Context, dir, name string, args ...string) (ExecResult, error) {
		if err, ok := errs[name]; ok {
			return ExecResult{ExitCode: -1}, err
		}
		if res, ok := results[name]; ok {
			return res, nil
		}
		return ExecResult{ExitCode: -1}, fmt.Errorf("exec: %q: %w", name, exec.ErrNotFound)
	}
}

func adapter(t *testing.T, name string, inv adapters.Invocation) adapters.Adapter {
	t.Helper()
	a, err := adapters.New(name, inv)
	require.NoError(t, err)
	return a
}

func TestRun_IssuesFoundIsNotFailure(t *testing.T) {
	r := New(fakeExec(map[string]ExecResult{
		"bandit": {Stdout: []byte(`{"results": []}`), ExitCode: 1},
	}, nil), 0, nil)

	res, toolErr := r.Run(context.Background(), adapter(t, adapters.Bandit, adapters.Defaults[adapters.Bandit]), "/repo", "a.py")
	require.Nil(t, toolErr)
	assert.Equal(t, "bandit", res.ToolName)
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, `{"results": []}`, string(res.RawStdout))
}

func TestRun_NonZeroExit(t *testing.T) {
	r := New(fakeExec(map[string]ExecResult{
		"eslint": {Stderr: []byte("Oops! Something went wrong"), ExitCode: 2},
	}, nil), 0, nil)

	_, toolErr := r.Run(context.Background(), adapter(t, adapters.ESLint, adapters.Defaults[adapters.ESLint]), "/repo", "a.js")
	require.NotNil(t, toolErr)
	assert.Equal(t, models.ErrorNonZeroExit, toolErr.Kind)
	assert.Equal(t, 2, toolErr.ExitCode)

	placeholder := toolErr.Result(adapters.Defaults[adapters.ESLint], time.Minute)
	assert.Equal(t, "Oops! Something went wrong", placeholder.StderrExcerpt)
	assert.Contains(t, placeholder.Message, "exited with code 2")
	assert.Contains(t, placeholder.Suggestion, "eslint -f json --no-color <file>")
}

func TestRun_NotFound(t *testing.T) {
	r := New(fakeExec(nil, nil), 0, nil)

	_, toolErr := r.Run(context.Background(), adapter(t, adapters.Yamllint, adapters.Defaults[adapters.Yamllint]), "/repo", "a.yml")
	require.NotNil(t, toolErr)
	assert.Equal(t, models.ErrorNotFound, toolErr.Kind)
	assert.ErrorIs(t, toolErr, exec.ErrNotFound)

	placeholder := toolErr.Result(adapters.Defaults[adapters.Yamllint], time.Minute)
	assert.Contains(t, placeholder.Suggestion, "pip install yamllint")
}

func TestRun_Crash(t *testing.T) {
	r := New(fakeExec(nil, map[string]error{"pylint": errors.New("signal: segmentation fault")}), 0, nil)

	_, toolErr := r.Run(context.Background(), adapter(t, adapters.Pylint, adapters.Defaults[adapters.Pylint]), "/repo", "a.py")
	require.NotNil(t, toolErr)
	assert.Equal(t, models.ErrorCrash, toolErr.Kind)
}

func TestRun_TimeoutFromContext(t *testing.T) {
	blocking := func(ctx context.Context, dir, name string, args ...string) (ExecResult, error) {
		<-ctx.Done()
		return ExecResult{ExitCode: -1}, ctx.Err()
	}
	r := New(blocking, 20*time.Millisecond, nil)

	_, toolErr := r.Run(context.Background(), adapter(t, adapters.Bandit, adapters.Defaults[adapters.Bandit]), "/repo", "slow.py")
	require.NotNil(t, toolErr)
	assert.Equal(t, models.ErrorTimeout, toolErr.Kind)

	placeholder := toolErr.Result(adapters.Defaults[adapters.Bandit], r.TimeoutFor(adapter(t, adapters.Bandit, adapters.Defaults[adapters.Bandit])))
	assert.Contains(t, placeholder.Suggestion, "tool_overrides.bandit.timeout")
}

func TestRun_PerToolTimeoutOverridesDefault(t *testing.T) {
	r := New(fakeExec(nil, nil), time.Minute, nil)
	inv := adapters.Defaults[adapters.Pylint]
	inv.Timeout = 5 * time.Second

	assert.Equal(t, 5*time.Second, r.TimeoutFor(adapter(t, adapters.Pylint, inv)))
	assert.Equal(t, time.Minute, r.TimeoutFor(adapter(t, adapters.Bandit, adapters.Defaults[adapters.Bandit])))
	assert.Equal(t, DefaultTimeout, New(nil, 0, nil).timeout)
}

func TestRun_PassesFileAndDir(t *testing.T) {
	var gotDir, gotName string
	var gotArgs []string
	record := func(ctx context.Context, dir, name string, args ...string) (ExecResult, error) {
		gotDir, gotName, gotArgs = dir, name, args
		return ExecResult{Stdout: []byte("[]")}, nil
	}

	r := New(record, 0, nil)
	_, toolErr := r.Run(context.Background(), adapter(t, adapters.Pylint, adapters.Defaults[adapters.Pylint]), "/work/repo", "/work/repo/pkg/mod.py")
	require.Nil(t, toolErr)
	assert.Equal(t, "/work/repo", gotDir)
	assert.Equal(t, "pylint", gotName)
	assert.Equal(t, "/work/repo/pkg/mod.py", gotArgs[len(gotArgs)-1])
}

func TestOSExec_KillsOnTimeout(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	inv := adapters.Invocation{Binary: "sh", Args: []string{"-c", "sleep 5"}}
	r := New(OSExec, 100*time.Millisecond, nil)

	start := time.Now()
	_, toolErr := r.Run(context.Background(), adapter(t, adapters.Flake8, inv), t.TempDir(), "x.py")
	require.NotNil(t, toolErr)
	assert.Equal(t, models.ErrorTimeout, toolErr.Kind)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestOSExec_ExitCodeAndOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	res, err := OSExec(context.Background(), "", "sh", "-c", "echo out; echo err >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
}

func TestOSExec_MissingBinary(t *testing.T) {
	r := New(OSExec, time.Second, nil)
	inv := adapters.Invocation{Binary: "codespectre-definitely-missing-tool"}

	_, toolErr := r.Run(context.Background(), adapter(t, adapters.Bandit, inv), "", "a.py")
	require.NotNil(t, toolErr)
	assert.Equal(t, models.ErrorNotFound, toolErr.Kind)
}
