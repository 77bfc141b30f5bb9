// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"context"
	"errors"

	"github.com/rbberger/bueno/internal/shellexec"
)

// ErrNoBuildTarget is returned when a build is requested without a runtime
// that can hold the result.
var ErrNoBuildTarget = errors.New("no container runtime to build for")

// NoneAdapter runs workloads directly on the host with no containerization.
// It exists so the rest of the system can treat "no container" as just
// another adapter instead of a special case.
type NoneAdapter struct {
	exec *shellexec.Executor
}

// NewNoneAdapter creates a host passthrough adapter.
func NewNoneAdapter() *NoneAdapter {
	return &NoneAdapter{exec: shellexec.New()}
}

// Name returns the adapter kind as a string.
func (a *NoneAdapter) Name() string { return string(KindNone) }

// Available always reports true; the host is always present.
func (a *NoneAdapter) Available() bool { return true }

// BuildImage rejects builds: there is no image store on the bare host.
func (a *NoneAdapter) BuildImage(context.Context, BuildSpec) (ImageRef, error) {
	return "", ErrNoBuildTarget
}

// RunContainer runs the workload directly on the host. Bind mounts are
// rejected rather than silently ignored: a request for mounts is a request
// for isolation this adapter cannot provide.
func (a *NoneAdapter) RunContainer(ctx context.Context, spec RunSpec) (*shellexec.Result, error) {
	if len(spec.Mounts) > 0 {
		return nil, ErrMountsUnsupported
	}
	return a.exec.Execute(ctx, shellexec.Spec{
		Argv:    spec.Argv,
		Dir:     spec.WorkDir,
		Env:     spec.Env,
		Timeout: spec.Timeout,
		Echo:    spec.Echo,
	})
}
