// SPDX-License-Identifier: MPL-2.0

package shellexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Wait blocks after the child is killed while
// grandchildren still hold the output pipes open.
const waitDelay = 3 * time.Second

var (
	// ErrEmptyCommand is returned when a Spec has no argument vector.
	ErrEmptyCommand = errors.New("empty command")

	// ErrNotFound is the sentinel error wrapped by NotFoundError.
	ErrNotFound = errors.New("command not found")

	// ErrTimedOut is the sentinel error wrapped by TimeoutError.
	ErrTimedOut = errors.New("command timed out")
)

type (
	// Spec describes one command invocation.
	Spec struct {
		// Argv is the command and its arguments. Argv[0] is resolved via PATH
		// unless it contains a path separator.
		Argv []string
		// Dir is the working directory. Empty means the current directory.
		Dir string
		// Env is an environment overlay merged on top of the inherited
		// process environment. Overlay keys win on conflict.
		Env map[string]string
		// Timeout forcibly terminates the child after the given duration.
		// Zero means no timeout.
		Timeout time.Duration
		// Echo tees captured output to Stdout/Stderr while the child runs.
		Echo bool
		// Stdout is the echo sink for standard output. Defaults to os.Stdout.
		Stdout io.Writer
		// Stderr is the echo sink for standard error. Defaults to os.Stderr.
		Stderr io.Writer
	}

	// Result is the immutable outcome of one command invocation.
	Result struct {
		// Argv is the exact command line that was executed.
		Argv []string
		// ExitCode is the child's exit status. Non-zero is not an error.
		ExitCode int
		// Stdout is the captured standard output.
		Stdout string
		// Stderr is the captured standard error.
		Stderr string
		// StartedAt is when the child was spawned.
		StartedAt time.Time
		// Duration is the wall-clock time from spawn to exit.
		Duration time.Duration
	}

	// NotFoundError is returned when the command's executable cannot be
	// resolved.
	NotFoundError struct {
		Name string
	}

	// TimeoutError is returned when a configured timeout elapses before the
	// child exits. Partial holds whatever output was captured up to the kill.
	TimeoutError struct {
		After   time.Duration
		Partial *Result
	}

	// Executor runs commands. The zero value is ready to use.
	Executor struct {
		// execCommand allows tests to intercept command construction.
		execCommand func(ctx context.Context, name string, arg ...string) *exec.Cmd
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("command %q not found in PATH", e.Name)
}

// Unwrap returns ErrNotFound so callers can use errors.Is for detection.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s", e.After)
}

// Unwrap returns ErrTimedOut so callers can use errors.Is for detection.
func (e *TimeoutError) Unwrap() error { return ErrTimedOut }

// Success returns true if the command exited with status zero.
func (r *Result) Success() bool { return r.ExitCode == 0 }

// CommandLine returns the executed command as a single display string.
func (r *Result) CommandLine() string { return strings.Join(r.Argv, " ") }

// New creates an Executor.
func New() *Executor {
	return &Executor{execCommand: exec.CommandContext}
}

// Execute runs the command described by spec and blocks until it exits.
//
// The returned Result is fully populated on every path that spawned a child,
// including timeout and cancellation: callers recording provenance get the
// partial output alongside the error. Error cases:
//   - executable not resolvable: NotFoundError, nil child, non-nil Result
//     with ExitCode -1
//   - timeout elapsed: TimeoutError wrapping ErrTimedOut, Result holds
//     partial output
//   - ctx canceled: the ctx error, Result holds partial output
func (e *Executor) Execute(ctx context.Context, spec Spec) (*Result, error) {
	if len(spec.Argv) == 0 {
		return nil, ErrEmptyCommand
	}

	res := &Result{Argv: append([]string(nil), spec.Argv...), ExitCode: -1}

	// Resolve up front so "not found" is distinguishable from the child
	// failing to start for other reasons.
	if _, err := exec.LookPath(spec.Argv[0]); err != nil {
		return res, &NotFoundError{Name: spec.Argv[0]}
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	execFn := e.execCommand
	if execFn == nil {
		execFn = exec.CommandContext
	}
	cmd := execFn(runCtx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(os.Environ(), spec.Env)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if spec.Echo {
		out, errw := spec.Stdout, spec.Stderr
		if out == nil {
			out = os.Stdout
		}
		if errw == nil {
			errw = os.Stderr
		}
		cmd.Stdout = io.MultiWriter(&stdout, out)
		cmd.Stderr = io.MultiWriter(&stderr, errw)
	}

	res.StartedAt = time.Now()
	err := cmd.Run()
	res.Duration = time.Since(res.StartedAt)
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	switch {
	case err == nil:
		res.ExitCode = 0
		return res, nil
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		// The context verdict wins over the exit status: a killed child
		// reports -1 or a signal status, but what the caller needs to know
		// is that the deadline elapsed or the run was canceled.
		switch runCtx.Err() {
		case context.DeadlineExceeded:
			// The deadline may come from the parent ctx rather than
			// Spec.Timeout; report the elapsed time in that case.
			after := spec.Timeout
			if after == 0 {
				after = res.Duration
			}
			return res, &TimeoutError{After: after, Partial: res}
		case context.Canceled:
			return res, context.Canceled
		}
		if res.ExitCode >= 0 {
			// Normal non-zero exit: data, not an error.
			return res, nil
		}
		return res, fmt.Errorf("run %q: %w", spec.Argv[0], err)
	}
}

// mergeEnv merges the overlay on top of the base environment. Overlay keys
// replace any matching base entry.
func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if ok {
			if _, shadowed := overlay[key]; shadowed {
				continue
			}
		}
		merged = append(merged, kv)
	}
	for k, v := range overlay {
		merged = append(merged, k+"="+v)
	}
	return merged
}
