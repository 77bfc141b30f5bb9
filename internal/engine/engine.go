// SPDX-License-Identifier: MPL-2.0

// Package engine provides an abstraction layer over the container runtimes a
// workload can be dispatched to (Docker, Podman, Charliecloud) plus the
// no-container host passthrough.
//
// Each adapter translates a normalized build or run request into the concrete
// command-line invocation of its runtime; callers above this layer never see
// runtime-specific flags. Adapter selection is explicit per activity and
// never falls back to a different runtime: requesting an unavailable adapter
// fails with an UnavailableError instead of silently substituting another.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rbberger/bueno/internal/shellexec"
)

// Adapter kinds.
const (
	KindNone         Kind = "none"
	KindDocker       Kind = "docker"
	KindPodman       Kind = "podman"
	KindCharliecloud Kind = "charliecloud"
)

var (
	// ErrUnknownKind is returned when an adapter kind is not recognized.
	ErrUnknownKind = errors.New("unknown runtime kind")

	// ErrUnavailable is the sentinel error wrapped by UnavailableError.
	ErrUnavailable = errors.New("runtime unavailable")

	// ErrBuildFailed is the sentinel error wrapped by BuildError.
	ErrBuildFailed = errors.New("image build failed")

	// ErrInvalidMount is the sentinel error wrapped by InvalidMountError.
	ErrInvalidMount = errors.New("invalid bind mount")

	// ErrMountsUnsupported is returned by the host adapter when bind mounts
	// are requested.
	ErrMountsUnsupported = errors.New("bind mounts require a container runtime")
)

type (
	// Kind identifies a runtime adapter variant.
	Kind string

	// ImageRef identifies a built or pulled image in a form the owning
	// adapter understands: a tag for docker/podman, an unpacked image
	// directory for charliecloud.
	ImageRef string

	// BuildSpec is a normalized image build request.
	BuildSpec struct {
		// ContextDir is the build context directory.
		ContextDir string
		// Containerfile is the build recipe path, relative to ContextDir
		// unless absolute. Empty means the runtime's default.
		Containerfile string
		// Tag is the image reference to produce.
		Tag string
		// BuildArgs are build-time variables.
		BuildArgs map[string]string
		// NoCache disables the build cache.
		NoCache bool
		// Echo tees build output to the process streams while capturing it.
		Echo bool
	}

	// RunSpec is a normalized container run request.
	RunSpec struct {
		// Image is the image to run. Ignored by the host adapter.
		Image ImageRef
		// Argv is the workload command.
		Argv []string
		// WorkDir is the working directory for the workload.
		WorkDir string
		// Env is the environment overlay for the workload.
		Env map[string]string
		// Mounts are bind mounts made visible to the workload.
		Mounts []Mount
		// Timeout forcibly terminates the workload after the given duration.
		Timeout time.Duration
		// Echo tees workload output to the process streams while capturing it.
		Echo bool
	}

	// Mount is a normalized bind-mount specification. Adapters translate it
	// into their own flag syntax (-v for docker/podman, -b for charliecloud).
	Mount struct {
		Host     string
		Target   string
		ReadOnly bool
	}

	// Adapter normalizes the divergent CLIs of the supported runtimes into
	// one capability set: probe, build, run.
	Adapter interface {
		// Name returns the adapter kind as a string.
		Name() string
		// Available probes whether the runtime's tool is present and usable.
		Available() bool
		// BuildImage translates spec into the runtime's build invocation.
		// A non-zero exit from the underlying tool is reported as a
		// *BuildError carrying the captured execution result.
		BuildImage(ctx context.Context, spec BuildSpec) (ImageRef, error)
		// RunContainer translates spec into the runtime's run invocation and
		// returns the workload's captured execution result. A non-zero
		// workload exit is data in the result, not an error.
		RunContainer(ctx context.Context, spec RunSpec) (*shellexec.Result, error)
	}

	// UnavailableError is returned when an explicitly requested runtime is
	// not present or not usable on this host.
	UnavailableError struct {
		Kind   Kind
		Reason string
	}

	// BuildError is returned when the underlying build tool exits non-zero.
	// Result carries the captured build output for provenance recording.
	BuildError struct {
		Kind   Kind
		Tag    string
		Result *shellexec.Result
	}

	// InvalidMountError is returned when a Mount has empty paths.
	InvalidMountError struct {
		Value Mount
	}
)

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("container runtime %q is not available: %s", e.Kind, e.Reason)
}

// Unwrap returns ErrUnavailable so callers can use errors.Is for detection.
func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Result != nil {
		return fmt.Sprintf("%s build of %q exited with status %d", e.Kind, e.Tag, e.Result.ExitCode)
	}
	return fmt.Sprintf("%s build of %q failed", e.Kind, e.Tag)
}

// Unwrap returns ErrBuildFailed so callers can use errors.Is for detection.
func (e *BuildError) Unwrap() error { return ErrBuildFailed }

// Error implements the error interface.
func (e *InvalidMountError) Error() string {
	return fmt.Sprintf("invalid bind mount %q: host and target must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidMount so callers can use errors.Is for detection.
func (e *InvalidMountError) Unwrap() error { return ErrInvalidMount }

// Validate returns an error if either side of the mount is empty.
func (m Mount) Validate() error {
	if strings.TrimSpace(m.Host) == "" || strings.TrimSpace(m.Target) == "" {
		return &InvalidMountError{Value: m}
	}
	return nil
}

// String returns the mount in "host:target[:ro]" display format.
func (m Mount) String() string {
	s := m.Host + ":" + m.Target
	if m.ReadOnly {
		s += ":ro"
	}
	return s
}

// ParseMount parses a "host:target[:ro]" string into a Mount.
func ParseMount(s string) (Mount, error) {
	parts := strings.Split(s, ":")
	m := Mount{}
	if len(parts) >= 2 {
		m.Host, m.Target = parts[0], parts[1]
	}
	if len(parts) >= 3 && parts[2] == "ro" {
		m.ReadOnly = true
	}
	if err := m.Validate(); err != nil {
		return m, err
	}
	return m, nil
}

// Kinds returns all recognized adapter kinds.
func Kinds() []Kind {
	return []Kind{KindNone, KindDocker, KindPodman, KindCharliecloud}
}

// New constructs the adapter for the given kind without probing it.
func New(kind Kind) (Adapter, error) {
	switch kind {
	case KindNone:
		return NewNoneAdapter(), nil
	case KindDocker:
		return NewDockerAdapter(), nil
	case KindPodman:
		return NewPodmanAdapter(), nil
	case KindCharliecloud:
		return NewCharliecloudAdapter(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// Select constructs the adapter for the given kind and verifies it is
// usable, for callers that want to fail fast on an unavailable runtime.
// Selection is strict: there is no fallback between runtimes. The pipeline
// instead probes availability per activity, so the rejection lands in the
// provenance record.
func Select(kind Kind) (Adapter, error) {
	a, err := New(kind)
	if err != nil {
		return nil, err
	}
	if !a.Available() {
		return nil, &UnavailableError{
			Kind:   kind,
			Reason: fmt.Sprintf("%s is not installed or not executable on this host", kind),
		}
	}
	return a, nil
}
