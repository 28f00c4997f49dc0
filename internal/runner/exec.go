package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait blocks on pipes after the process is
// killed, e.g. when a tool left a child holding stdout open.
const waitDelay = 2 * time.Second

// ExecResult is what a finished process left behind.
type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// ExecFunc runs name with args in dir. A process that starts and exits
// normally returns a nil error whatever its exit code. A non-nil error means
// the process could not be started, was killed, or the context ended.
type ExecFunc func(ctx context.Context, dir, name string, args ...string) (ExecResult, error)

// OSExec is the ExecFunc backed by os/exec.
func OSExec(ctx context.Context, dir, name string, args ...string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode >= 0 && ctx.Err() == nil {
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		return res, err
	}

	res.ExitCode = -1
	return res, err
}
