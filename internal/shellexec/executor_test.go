// SPDX-License-Identifier: MPL-2.0

package shellexec

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping: test relies on POSIX utilities")
	}
}

func TestExecute_CapturesOutputAndExitCode(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	res, err := New().Execute(context.Background(), Spec{Argv: []string{"echo", "ok"}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.Stdout != "ok\n" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "ok\n")
	}
	if res.Stderr != "" {
		t.Errorf("Stderr = %q, want empty", res.Stderr)
	}
	if res.Duration <= 0 {
		t.Errorf("Duration = %v, want > 0", res.Duration)
	}
	if got := res.CommandLine(); got != "echo ok" {
		t.Errorf("CommandLine() = %q, want %q", got, "echo ok")
	}
}

func TestExecute_NonZeroExitIsNotAnError(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	res, err := New().Execute(context.Background(), Spec{Argv: []string{"sh", "-c", "exit 3"}})
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil (non-zero exit is data)", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Success() {
		t.Error("Success() = true, want false")
	}
}

func TestExecute_CommandNotFound(t *testing.T) {
	t.Parallel()

	res, err := New().Execute(context.Background(), Spec{Argv: []string{"definitely-not-a-real-tool-9981"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Execute() error = %v, want ErrNotFound", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error is not a *NotFoundError: %v", err)
	}
	if nf.Name != "definitely-not-a-real-tool-9981" {
		t.Errorf("NotFoundError.Name = %q", nf.Name)
	}
	if res == nil || res.ExitCode != -1 {
		t.Errorf("Result = %+v, want ExitCode -1", res)
	}
}

func TestExecute_EmptyCommand(t *testing.T) {
	t.Parallel()

	if _, err := New().Execute(context.Background(), Spec{}); !errors.Is(err, ErrEmptyCommand) {
		t.Fatalf("Execute() error = %v, want ErrEmptyCommand", err)
	}
}

func TestExecute_TimeoutKillsChildAndKeepsPartialOutput(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	start := time.Now()
	res, err := New().Execute(context.Background(), Spec{
		Argv:    []string{"sh", "-c", "echo started; sleep 10"},
		Timeout: 500 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("Execute() error = %v, want ErrTimedOut", err)
	}
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error is not a *TimeoutError: %v", err)
	}
	if te.Partial == nil || te.Partial.Stdout != "started\n" {
		t.Errorf("partial stdout = %+v, want %q", te.Partial, "started\n")
	}
	if res.Stdout != "started\n" {
		t.Errorf("Result.Stdout = %q, want %q", res.Stdout, "started\n")
	}
	// Well under the 10s sleep: the child must have been terminated.
	if elapsed > 5*time.Second {
		t.Errorf("Execute returned after %v, child was not killed", elapsed)
	}
}

func TestExecute_ParentContextDeadlineReportsElapsed(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err := New().Execute(ctx, Spec{Argv: []string{"sleep", "10"}})
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("Execute() error = %v, want *TimeoutError", err)
	}
	if te.After <= 0 {
		t.Errorf("After = %v, want the elapsed duration", te.After)
	}
}

func TestExecute_CancellationSurfacesContextError(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	res, err := New().Execute(ctx, Spec{Argv: []string{"sleep", "10"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if res == nil {
		t.Fatal("Result = nil, want partial result")
	}
}

func TestExecute_EnvOverlayWinsOverInherited(t *testing.T) {
	// No t.Parallel: t.Setenv and parallel tests are mutually exclusive.
	skipOnWindows(t)

	t.Setenv("BUENO_TEST_VAR", "inherited")

	res, err := New().Execute(context.Background(), Spec{
		Argv: []string{"sh", "-c", "printf %s \"$BUENO_TEST_VAR\""},
		Env:  map[string]string{"BUENO_TEST_VAR": "overlay"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Stdout != "overlay" {
		t.Errorf("Stdout = %q, want %q", res.Stdout, "overlay")
	}
}

func TestExecute_WorkingDirectory(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	dir := t.TempDir()
	res, err := New().Execute(context.Background(), Spec{Argv: []string{"pwd"}, Dir: dir})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	// pwd may print a symlink-resolved path on some systems; match the suffix.
	if got := res.Stdout; got == "" {
		t.Fatal("pwd produced no output")
	}
}

func TestExecute_EchoTeesOutput(t *testing.T) {
	t.Parallel()
	skipOnWindows(t)

	var sink bytes.Buffer
	res, err := New().Execute(context.Background(), Spec{
		Argv:   []string{"echo", "hello"},
		Echo:   true,
		Stdout: &sink,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Stdout != "hello\n" {
		t.Errorf("captured stdout = %q, want %q", res.Stdout, "hello\n")
	}
	if sink.String() != "hello\n" {
		t.Errorf("echo sink = %q, want %q", sink.String(), "hello\n")
	}
}

func TestMergeEnv(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		base    []string
		overlay map[string]string
		want    map[string]string
	}{
		{
			name: "overlay replaces base",
			base: []string{"A=1", "B=2"},
			overlay: map[string]string{
				"A": "9",
			},
			want: map[string]string{"A": "9", "B": "2"},
		},
		{
			name:    "empty overlay returns base",
			base:    []string{"A=1"},
			overlay: nil,
			want:    map[string]string{"A": "1"},
		},
		{
			name:    "overlay adds new keys",
			base:    []string{"A=1"},
			overlay: map[string]string{"C": "3"},
			want:    map[string]string{"A": "1", "C": "3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			merged := mergeEnv(tt.base, tt.overlay)
			got := make(map[string]string, len(merged))
			for _, kv := range merged {
				for i := 0; i < len(kv); i++ {
					if kv[i] == '=' {
						got[kv[:i]] = kv[i+1:]
						break
					}
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("merged = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("merged[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
