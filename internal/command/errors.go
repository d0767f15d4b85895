package command

import (
	"fmt"
	"time"
)

// TimeoutError reports a child process that did not finish within its
// time budget. Callers must treat this differently from a clean
// non-zero exit: a hung tool has produced no trustworthy output.
type TimeoutError struct {
	Command string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %s timed out after %s", e.Command, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// LaunchError reports that a child process could not be started at
// all, for example a missing executable or an OS-level spawn failure.
type LaunchError struct {
	Command string
	Err     error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("command %s failed to launch: %v", e.Command, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
