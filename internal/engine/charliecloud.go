// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/rbberger/bueno/internal/shellexec"
)

// CharliecloudAdapter dispatches builds and workloads through Charliecloud's
// unprivileged ch-image/ch-run pair, the runtime of choice on HPC clusters
// where Docker daemons are not an option.
//
// It does not embed baseCLIAdapter: Charliecloud splits build and run across
// two tools and ch-run's flag surface (-b binds, --cd, --set-env, a literal
// "--" before the workload) shares nothing with the docker-compatible CLIs.
type CharliecloudAdapter struct {
	// chImagePath and chRunPath are resolved at construction; empty means
	// the tool is not on PATH.
	chImagePath string
	chRunPath   string
	exec        *shellexec.Executor
}

// NewCharliecloudAdapter creates a Charliecloud adapter.
func NewCharliecloudAdapter() *CharliecloudAdapter {
	imagePath, _ := exec.LookPath("ch-image")
	runPath, _ := exec.LookPath("ch-run")
	return &CharliecloudAdapter{
		chImagePath: imagePath,
		chRunPath:   runPath,
		exec:        shellexec.New(),
	}
}

// Name returns the adapter kind as a string.
func (a *CharliecloudAdapter) Name() string { return string(KindCharliecloud) }

// Available reports whether ch-run resolved on PATH and answers a version
// query. ch-image is optional at this point; its absence only surfaces when
// a build is requested.
func (a *CharliecloudAdapter) Available() bool {
	if a.chRunPath == "" {
		return false
	}
	res, err := a.exec.Execute(context.Background(), shellexec.Spec{
		Argv: []string{a.chRunPath, "--version"},
	})
	return err == nil && res.ExitCode == 0
}

// Version returns ch-run's version string. ch-run prints it on stderr.
func (a *CharliecloudAdapter) Version(ctx context.Context) (string, error) {
	res, err := a.exec.Execute(ctx, shellexec.Spec{
		Argv: []string{a.chRunPath, "--version"},
	})
	if err != nil {
		return "", fmt.Errorf("failed to get charliecloud version: %w", err)
	}
	if v := firstLine(res.Stdout); v != "" {
		return v, nil
	}
	return firstLine(res.Stderr), nil
}

// buildArgs translates a BuildSpec into a ch-image build argument vector.
func (a *CharliecloudAdapter) buildArgs(spec BuildSpec) []string {
	args := []string{"build"}

	if spec.Containerfile != "" {
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
		args = append(args, "--rebuild")
	}

	for _, k := range sortedKeys(spec.BuildArgs) {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, spec.BuildArgs[k]))
	}

	args = append(args, spec.ContextDir)

	return args
}

// runArgs translates a RunSpec into a ch-run argument vector. The workload
// argv follows a literal "--" so ch-run never mistakes it for its own flags.
// ch-run has no per-bind read-only mode; the ReadOnly flag on a mount is
// advisory here.
func (a *CharliecloudAdapter) runArgs(spec RunSpec) []string {
	args := []string{}

	for _, m := range spec.Mounts {
		args = append(args, "-b", m.Host+":"+m.Target)
	}

	if spec.WorkDir != "" {
		args = append(args, "--cd", spec.WorkDir)
	}

	for _, k := range sortedKeys(spec.Env) {
		args = append(args, fmt.Sprintf("--set-env=%s=%s", k, spec.Env[k]))
	}

	args = append(args, string(spec.Image), "--")
	args = append(args, spec.Argv...)

	return args
}

// BuildImage runs ch-image build and returns the produced tag. ch-image keeps
// built images in its own storage; the tag is how ch-run finds them.
func (a *CharliecloudAdapter) BuildImage(ctx context.Context, spec BuildSpec) (ImageRef, error) {
	if a.chImagePath == "" {
		return "", &UnavailableError{
			Kind:   KindCharliecloud,
			Reason: "ch-image is not installed; builds need the charliecloud image builder",
		}
	}
	argv := append([]string{a.chImagePath}, a.buildArgs(spec)...)
	res, err := a.exec.Execute(ctx, shellexec.Spec{
		Argv: argv,
		Echo: spec.Echo,
	})
	if err != nil {
		return "", fmt.Errorf("charliecloud build failed: %w", err)
	}
	if res.ExitCode != 0 {
		return "", &BuildError{Kind: KindCharliecloud, Tag: spec.Tag, Result: res}
	}
	return ImageRef(spec.Tag), nil
}

// RunContainer runs the workload under ch-run and returns its captured
// result. The workload's exit code passes through unchanged.
func (a *CharliecloudAdapter) RunContainer(ctx context.Context, spec RunSpec) (*shellexec.Result, error) {
	for _, m := range spec.Mounts {
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	argv := append([]string{a.chRunPath}, a.runArgs(spec)...)
	return a.exec.Execute(ctx, shellexec.Spec{
		Argv:    argv,
		Timeout: spec.Timeout,
		Echo:    spec.Echo,
	})
}
