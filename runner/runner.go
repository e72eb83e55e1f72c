// Package runner launches the LLVM command line tools as bounded subprocesses.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"tlog.app/go/errors"
)

const waitDelay = time.Second

// Cmd describes one tool invocation.
type Cmd struct {
	Tool    string
	Args    []string
	Stdin   string
	Dir     string
	Timeout time.Duration // zero means no limit beyond ctx
}

// Result is what a finished process left behind. A non-zero exit is a
// Result, not an error.
type Result struct {
	ExitCode int
	Signaled bool   // killed by a signal; ExitCode is -1
	State    string // e.g. "exit status 1" or "signal: killed"
	Stdout   string
	Stderr   string
	Elapsed  time.Duration
}

// Failed reports whether the process exited non-zero or was signaled.
func (r *Result) Failed() bool {
	return r.Signaled || r.ExitCode != 0
}

// TimeoutError is returned when the process outlived its budget and was killed.
type TimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Tool, e.Timeout)
}

// Run starts cmd and waits for it. Errors are returned only when the
// process could not be started or did not finish in time.
func Run(ctx context.Context, cmd Cmd) (*Result, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Tool, cmd.Args...)
	c.Dir = cmd.Dir
	// children that inherited the output pipes must not hold Wait open after a kill
	c.WaitDelay = waitDelay
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Elapsed: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		return res, &TimeoutError{Tool: cmd.Tool, Timeout: cmd.Timeout}
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
	default:
		return res, errors.Wrap(err, "run %s", cmd.Tool)
	}

	res.ExitCode = c.ProcessState.ExitCode()
	res.Signaled = res.ExitCode == -1
	res.State = c.ProcessState.String()
	return res, nil
}

// Lookup resolves tool on PATH, returning the absolute path.
func Lookup(tool string) (string, error) {
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", errors.Wrap(err, "find %s", tool)
	}
	return path, nil
}
