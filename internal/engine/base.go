// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/rbberger/bueno/internal/shellexec"
)

// baseCLIAdapter provides the shared implementation for adapters whose
// runtime is driven through a command-line tool with docker-compatible
// build/run verbs. Docker and Podman embed it; Charliecloud does not, since
// its CLI shape (ch-image/ch-run) diverges too far from the shared builders.
type baseCLIAdapter struct {
	kind Kind
	// binaryPath is resolved at construction via exec.LookPath; empty means
	// the tool is not on PATH.
	binaryPath string
	exec       *shellexec.Executor
	// runArgsTransformer mutates run arguments after they are built. Podman
	// uses it to inject --userns=keep-id for rootless parity with Docker.
	runArgsTransformer func(args []string) []string
}

func newBaseCLIAdapter(kind Kind, binary string) *baseCLIAdapter {
	path, _ := exec.LookPath(binary)
	return &baseCLIAdapter{
		kind:               kind,
		binaryPath:         path,
		exec:               shellexec.New(),
		runArgsTransformer: func(args []string) []string { return args },
	}
}

// Name returns the adapter kind as a string.
func (a *baseCLIAdapter) Name() string { return string(a.kind) }

// BinaryPath returns the resolved path of the runtime tool, or "" when the
// tool is not on PATH.
func (a *baseCLIAdapter) BinaryPath() string { return a.binaryPath }

// Available reports whether the runtime tool resolved on PATH and answers a
// version query.
func (a *baseCLIAdapter) Available() bool {
	if a.binaryPath == "" {
		return false
	}
	res, err := a.exec.Execute(context.Background(), shellexec.Spec{
		Argv: []string{a.binaryPath, "--version"},
	})
	return err == nil && res.ExitCode == 0
}

// Version returns the trimmed first line of the runtime's version output.
func (a *baseCLIAdapter) Version(ctx context.Context) (string, error) {
	res, err := a.exec.Execute(ctx, shellexec.Spec{
		Argv: []string{a.binaryPath, "--version"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get %s version: %w", a.kind, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s --version exited with status %d", a.kind, res.ExitCode)
	}
	return firstLine(res.Stdout), nil
}

// buildArgs translates a BuildSpec into the runtime's build argument vector.
// Map-backed flags are emitted in sorted key order so the same spec always
// produces the same argv.
func (a *baseCLIAdapter) buildArgs(spec BuildSpec) []string {
	args := []string{"build"}

	if spec.Containerfile != "" {
		// Resolve the recipe relative to the context directory; the runtime
		// resolves a bare relative path from CWD otherwise.
		recipe := spec.Containerfile
		if !filepath.IsAbs(recipe) && spec.ContextDir != "" {
			recipe = filepath.Join(spec.ContextDir, recipe)
		}
		args = append(args, "-f", recipe)
	}

	if spec.Tag != "" {
		args = append(args, "-t", spec.Tag)
	}

	if spec.NoCache {
		args = append(args, "--no-cache")
	}

	for _, k := range sortedKeys(spec.BuildArgs) {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, spec.BuildArgs[k]))
	}

	args = append(args, spec.ContextDir)

	return args
}

// runArgs translates a RunSpec into the runtime's run argument vector.
func (a *baseCLIAdapter) runArgs(spec RunSpec) []string {
	args := []string{"run", "--rm"}

	if spec.WorkDir != "" {
		args = append(args, "-w", spec.WorkDir)
	}

	for _, k := range sortedKeys(spec.Env) {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, spec.Env[k]))
	}

	for _, m := range spec.Mounts {
		args = append(args, "-v", m.String())
	}

	args = append(args, string(spec.Image))
	args = append(args, spec.Argv...)

	return a.runArgsTransformer(args)
}

// BuildImage runs the runtime's build verb and returns the produced tag.
func (a *baseCLIAdapter) BuildImage(ctx context.Context, spec BuildSpec) (ImageRef, error) {
	argv := append([]string{a.binaryPath}, a.buildArgs(spec)...)
	res, err := a.exec.Execute(ctx, shellexec.Spec{
		Argv: argv,
		Echo: spec.Echo,
	})
	if err != nil {
		return "", fmt.Errorf("%s build failed: %w", a.kind, err)
	}
	if res.ExitCode != 0 {
		return "", &BuildError{Kind: a.kind, Tag: spec.Tag, Result: res}
	}
	return ImageRef(spec.Tag), nil
}

// RunContainer runs the workload in a transient container and returns its
// captured result. The workload's exit code passes through unchanged.
func (a *baseCLIAdapter) RunContainer(ctx context.Context, spec RunSpec) (*shellexec.Result, error) {
	for _, m := range spec.Mounts {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	argv := append([]string{a.binaryPath}, a.runArgs(spec)...)
	return a.exec.Execute(ctx, shellexec.Spec{
		Argv:    argv,
		Timeout: spec.Timeout,
		Echo:    spec.Echo,
	})
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
