package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
)

// Result captures the observable output of a finished child process.
// A non-zero ExitCode is not an error at this layer; callers decide
// what an exit code means for the tool they invoked.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes external commands and captures their output.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error)
}

// ExecRunner runs commands as child processes via os/exec.
type ExecRunner struct {
	logger zerolog.Logger
}

// NewExecRunner constructs an ExecRunner with the given logger.
func NewExecRunner(logger zerolog.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Run executes name with args, waiting at most timeout when timeout is
// positive. Exactly one of the following holds on return:
//   - the process ran to completion: Result is populated, err is nil,
//     even when the exit code is non-zero;
//   - the timeout elapsed: err is a *TimeoutError;
//   - the process could not be started: err is a *LaunchError.
func (r *ExecRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.logger.Debug().Str("command", name).Strs("args", args).Msg("running command")

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		return result, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Result{}, &TimeoutError{Command: name, Timeout: timeout, Err: err}
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	return Result{}, &LaunchError{Command: name, Err: err}
}
