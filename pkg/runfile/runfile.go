// SPDX-License-Identifier: MPL-2.0

package runfile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/rbberger/bueno/internal/engine"
)

var (
	// ErrNoWorkload is returned for an activity with neither exec nor shell.
	ErrNoWorkload = errors.New("activity has no workload")

	// ErrAmbiguousWorkload is returned for an activity with both exec and
	// shell.
	ErrAmbiguousWorkload = errors.New("activity has both exec and shell")

	// ErrShellSyntax is the sentinel error wrapped by shell parse failures.
	ErrShellSyntax = errors.New("shell script does not parse")
)

type (
	// Runfile is a decoded experiment definition.
	Runfile struct {
		Name            string     `json:"name"`
		Description     string     `json:"description,omitempty"`
		OutputPath      string     `json:"output_path,omitempty"`
		PostFingerprint bool       `json:"post_fingerprint,omitempty"`
		KeepGoing       bool       `json:"keep_going,omitempty"`
		Runtime         Runtime    `json:"runtime,omitempty"`
		Activities      []Activity `json:"activities"`

		// FilePath is where this runfile was loaded from.
		FilePath string `json:"-"`
	}

	// Runtime selects and configures the dispatch runtime.
	Runtime struct {
		Kind  string `json:"kind,omitempty"`
		Image string `json:"image,omitempty"`
		Build *Build `json:"build,omitempty"`
	}

	// Build describes an image build.
	Build struct {
		Context       string            `json:"context"`
		Containerfile string            `json:"containerfile,omitempty"`
		Tag           string            `json:"tag"`
		Args          map[string]string `json:"args,omitempty"`
		NoCache       bool              `json:"no_cache,omitempty"`
	}

	// Activity is one workload definition.
	Activity struct {
		Name    string            `json:"name"`
		Exec    []string          `json:"exec,omitempty"`
		Shell   string            `json:"shell,omitempty"`
		WorkDir string            `json:"workdir,omitempty"`
		Env     map[string]string `json:"env,omitempty"`
		Mounts  []string          `json:"mounts,omitempty"`
		Timeout string            `json:"timeout,omitempty"`
		Echo    bool              `json:"echo,omitempty"`
		Labels  map[string]string `json:"labels,omitempty"`
	}
)

// RuntimeKind returns the runtime kind, defaulting to none.
func (r *Runfile) RuntimeKind() engine.Kind {
	if r.Runtime.Kind == "" {
		return engine.KindNone
	}
	return engine.Kind(r.Runtime.Kind)
}

// Validate applies the constraints the schema cannot express. It returns all
// problems found, not just the first.
func (r *Runfile) Validate() error {
	var errs []error

	if r.Runtime.Build != nil && r.RuntimeKind() == engine.KindNone {
		errs = append(errs, errors.New("runtime.build requires a container runtime kind"))
	}
	if r.RuntimeKind() != engine.KindNone && r.Runtime.Image == "" && r.Runtime.Build == nil {
		errs = append(errs, fmt.Errorf("runtime %q requires an image or a build", r.RuntimeKind()))
	}

	seen := make(map[string]bool, len(r.Activities))
	for i, act := range r.Activities {
		where := fmt.Sprintf("activities[%d] (%s)", i, act.Name)

		if seen[act.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate activity name", where))
		}
		seen[act.Name] = true

		if err := act.validateWorkload(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if _, err := act.ParsedTimeout(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if _, err := act.ParsedMounts(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if len(act.Mounts) > 0 && r.RuntimeKind() == engine.KindNone {
			errs = append(errs, fmt.Errorf("%s: mounts require a container runtime", where))
		}
	}

	return errors.Join(errs...)
}

// validateWorkload enforces exactly one of exec or shell, and that a shell
// script actually parses before anything runs.
func (a *Activity) validateWorkload() error {
	switch {
	case len(a.Exec) > 0 && a.Shell != "":
		return ErrAmbiguousWorkload
	case len(a.Exec) == 0 && a.Shell == "":
		return ErrNoWorkload
	case a.Shell != "":
		parser := syntax.NewParser()
		if _, err := parser.Parse(strings.NewReader(a.Shell), a.Name); err != nil {
			return fmt.Errorf("%w: %v", ErrShellSyntax, err)
		}
	}
	return nil
}

// Argv returns the workload's argument vector. Shell scripts are wrapped in
// an explicit sh -c invocation.
func (a *Activity) Argv() []string {
	if a.Shell != "" {
		return []string{"sh", "-c", a.Shell}
	}
	return a.Exec
}

// ParsedTimeout parses the timeout field. Zero means no limit.
func (a *Activity) ParsedTimeout() (time.Duration, error) {
	if a.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(a.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", a.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", a.Timeout)
	}
	return d, nil
}

// ParsedMounts parses the mount strings.
func (a *Activity) ParsedMounts() ([]engine.Mount, error) {
	if len(a.Mounts) == 0 {
		return nil, nil
	}
	mounts := make([]engine.Mount, 0, len(a.Mounts))
	for _, s := range a.Mounts {
		m, err := engine.ParseMount(s)
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, m)
	}
	return mounts, nil
}
