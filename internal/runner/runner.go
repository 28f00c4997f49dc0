package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/codespectre/internal/adapters"
	"github.com/ppiankov/codespectre/internal/models"
)

// DefaultTimeout is the per-tool execution timeout.
const DefaultTimeout = 60 * time.Second

// StderrExcerptLimit caps the stderr kept on an error placeholder.
const StderrExcerptLimit = 500

// ToolError is a failure scoped to one (file, tool) cell.
type ToolError struct {
	Kind     models.ErrorKind
	Tool     string
	File     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s on %s: %s", e.Tool, e.File, e.Kind)
	if e.Kind == models.ErrorNonZeroExit {
		msg += fmt.Sprintf(" (exit code %d)", e.ExitCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// Result converts the error into the placeholder stored in the analysis.
func (e *ToolError) Result(inv adapters.Invocation, timeout time.Duration) *models.ErrorResult {
	msg := string(e.Kind)
	if e.Err != nil {
		msg = e.Err.Error()
	} else if e.Kind == models.ErrorNonZeroExit {
		msg = fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	}
	return &models.ErrorResult{
		Kind:          e.Kind,
		Message:       msg,
		ExitCode:      e.ExitCode,
		StderrExcerpt: adapters.Excerpt(e.Stderr, StderrExcerptLimit),
		Suggestion:    Suggestion(e.Kind, e.Tool, inv, timeout),
	}
}

// Suggestion returns a remediation hint for a failed cell.
func Suggestion(kind models.ErrorKind, tool string, inv adapters.Invocation, timeout time.Duration) string {
	switch kind {
	case models.ErrorNotFound:
		if inv.InstallHint != "" {
			return fmt.Sprintf("Install %s (%s) and make sure it is on PATH", inv.Binary, inv.InstallHint)
		}
		return fmt.Sprintf("Install %s and make sure it is on PATH", inv.Binary)
	case models.ErrorTimeout:
		return fmt.Sprintf("Raise tool_overrides.%s.timeout (currently %s) or exclude the file", tool, timeout)
	case models.ErrorNonZeroExit:
		bin, args := inv.Command("<file>")
		return fmt.Sprintf("Reproduce with `%s %s` and check the tool configuration in the repository", bin, strings.Join(args, " "))
	case models.ErrorParse:
		if inv.MinVersion != "" {
			return fmt.Sprintf("Check that %s is at least version %s and supports the requested output format", inv.Binary, inv.MinVersion)
		}
		return fmt.Sprintf("Check that %s supports the requested output format", inv.Binary)
	default:
		return fmt.Sprintf("Check that %s runs in this environment", inv.Binary)
	}
}

// Runner executes analysis tools one file at a time.
type Runner struct {
	execFn  ExecFunc
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Runner. A zero timeout uses DefaultTimeout.
func New(execFn ExecFunc, timeout time.Duration, logger *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{execFn: execFn, timeout: timeout, logger: logger}
}

// TimeoutFor returns the timeout applied to a.
func (r *Runner) TimeoutFor(a adapters.Adapter) time.Duration {
	if t := a.Invocation().Timeout; t > 0 {
		return t
	}
	return r.timeout
}

// Run invokes a against file with dir as the working directory. The
// invocation result is always returned; a non-nil *ToolError means the cell
// failed and the result must not be parsed.
func (r *Runner) Run(ctx context.Context, a adapters.Adapter, dir, file string) (models.ToolInvocationResult, *ToolError) {
	timeout := r.TimeoutFor(a)
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bin, args := a.Invocation().Command(file)
	r.logger.Debug("running tool",
		zap.String("tool", a.Name()),
		zap.String("binary", bin),
		zap.Strings("args", args),
		zap.Duration("timeout", timeout))

	start := time.Now()
	out, err := r.execFn(toolCtx, dir, bin, args...)
	duration := time.Since(start)

	result := models.ToolInvocationResult{
		ToolName:  a.Name(),
		ExitCode:  out.ExitCode,
		RawStdout: out.Stdout,
		RawStderr: out.Stderr,
		Duration:  duration,
	}

	toolErr := &ToolError{
		Tool:     a.Name(),
		File:     file,
		ExitCode: out.ExitCode,
		Stderr:   string(out.Stderr),
	}

	switch {
	case ctx.Err() != nil:
		toolErr.Kind = models.ErrorCrash
		toolErr.Err = fmt.Errorf("audit cancelled: %w", ctx.Err())
	case errors.Is(toolCtx.Err(), context.DeadlineExceeded):
		toolErr.Kind = models.ErrorTimeout
		toolErr.Err = fmt.Errorf("killed after %s", timeout)
	case err != nil && isNotFound(err):
		toolErr.Kind = models.ErrorNotFound
		toolErr.Err = fmt.Errorf("%s not found: %w", bin, err)
	case err != nil:
		toolErr.Kind = models.ErrorCrash
		toolErr.Err = err
	case a.Failed(out.ExitCode):
		toolErr.Kind = models.ErrorNonZeroExit
	default:
		return result, nil
	}
	return result, toolErr
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
