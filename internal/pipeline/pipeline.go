// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/rbberger/bueno/internal/engine"
	"github.com/rbberger/bueno/internal/provenance"
	"github.com/rbberger/bueno/internal/shellexec"
	"github.com/rbberger/bueno/internal/sysprobe"
)

// Activity kinds.
const (
	// KindBareExecution runs the workload directly on the host.
	KindBareExecution Kind = "bare-execution"
	// KindContainerBuild builds an image and records the build outcome.
	KindContainerBuild Kind = "container-build"
	// KindContainerRun runs the workload inside a container, building the
	// image first when the activity carries a build spec and no image.
	KindContainerRun Kind = "container-run"
)

// Lifecycle states, in order of progression.
const (
	StatePending        State = "pending"
	StateFingerprinting State = "fingerprinting"
	StateExecuting      State = "executing"
	StateRecording      State = "recording"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

var (
	// ErrActivityFailed is the sentinel error wrapped by ActivityError.
	ErrActivityFailed = errors.New("activity failed")

	// ErrUnknownActivityKind is returned for an unrecognized activity kind.
	ErrUnknownActivityKind = errors.New("unknown activity kind")
)

type (
	// Kind classifies how an activity's workload is dispatched.
	Kind string

	// State is a stage in an activity's lifecycle.
	State string

	// Activity is one unit of work in an experiment.
	Activity struct {
		// Name identifies the activity in logs and provenance records.
		Name string
		// Kind selects the dispatch path.
		Kind Kind
		// Argv is the workload command. Unused for container-build.
		Argv []string
		// Image is the image to run for container-run. When empty and Build
		// is set, the image is built first.
		Image engine.ImageRef
		// Build describes the image build for container-build, or the
		// implicit pre-run build for container-run.
		Build *engine.BuildSpec
		// WorkDir is the workload's working directory.
		WorkDir string
		// Env is the workload's environment overlay.
		Env map[string]string
		// Mounts are bind mounts for containerized workloads.
		Mounts []engine.Mount
		// Timeout aborts the workload after the given duration. Zero means
		// no limit.
		Timeout time.Duration
		// Echo tees workload output to the terminal while capturing it.
		Echo bool
		// PostFingerprint samples a second fingerprint after execution.
		PostFingerprint bool
		// Labels are free-form annotations copied into the record.
		Labels map[string]string
	}

	// ActivityError reports an activity that completed with a failure
	// outcome. The provenance record for the attempt was already appended.
	ActivityError struct {
		Name   string
		Record provenance.Record
		Cause  error
	}

	// Runner executes activities and journals their provenance.
	Runner struct {
		adapter engine.Adapter
		exec    *shellexec.Executor
		prober  *sysprobe.Prober
		journal *provenance.Log
		logger  *log.Logger
		// keepGoing makes RunAll continue past failed activities instead of
		// stopping at the first failure. Aborts and journal write failures
		// always stop the run.
		keepGoing bool
	}

	// RunnerOption configures a Runner.
	RunnerOption func(*Runner)
)

// Error implements the error interface.
func (e *ActivityError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("activity %q failed: %v", e.Name, e.Cause)
	}
	return fmt.Sprintf("activity %q failed", e.Name)
}

// Unwrap exposes the sentinel and the underlying cause.
func (e *ActivityError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrActivityFailed, e.Cause}
	}
	return []error{ErrActivityFailed}
}

// WithProber overrides the default system prober.
func WithProber(p *sysprobe.Prober) RunnerOption {
	return func(r *Runner) { r.prober = p }
}

// WithLogger overrides the default progress logger.
func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithKeepGoing makes RunAll continue past failed activities.
func WithKeepGoing(keepGoing bool) RunnerOption {
	return func(r *Runner) { r.keepGoing = keepGoing }
}

// NewRunner creates a Runner that dispatches containerized activities
// through adapter and journals every attempt to journal.
func NewRunner(adapter engine.Adapter, journal *provenance.Log, opts ...RunnerOption) *Runner {
	r := &Runner{
		adapter: adapter,
		exec:    shellexec.New(),
		prober:  sysprobe.NewProber(),
		journal: journal,
		logger:  log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll executes activities in order. Every attempted activity gets exactly
// one provenance record. The returned count is the number of activities that
// did not succeed; the error is the first fatal condition (abort or journal
// write failure), or the first activity failure unless keep-going is set.
func (r *Runner) RunAll(ctx context.Context, activities []Activity) (int, error) {
	failed := 0
	for _, act := range activities {
		_, err := r.Run(ctx, act)
		if err == nil {
			continue
		}
		failed++
		if errors.Is(err, provenance.ErrWriteFailed) {
			return failed, err
		}
		if rec := recordOf(err); rec != nil && rec.Status == provenance.StatusAborted {
			return failed, err
		}
		if !r.keepGoing {
			return failed, err
		}
	}
	return failed, nil
}

// Run executes one activity through its lifecycle and returns its appended
// provenance record. The record exists in the journal even when an error is
// returned; only a journal write failure (ErrWriteFailed) leaves no record.
func (r *Runner) Run(ctx context.Context, act Activity) (provenance.Record, error) {
	state := StatePending
	r.transition(act, &state, StateFingerprinting)

	fingerprints := []provenance.Fingerprint{
		provenance.FingerprintFrom(provenance.PhasePre, r.prober.Capture(ctx)),
	}

	r.transition(act, &state, StateExecuting)
	outcome := r.execute(ctx, act)

	if act.PostFingerprint {
		fingerprints = append(fingerprints,
			provenance.FingerprintFrom(provenance.PhasePost, r.prober.Capture(ctx)))
	}

	r.transition(act, &state, StateRecording)
	rec := provenance.Record{
		Name:         act.Name,
		Kind:         string(act.Kind),
		Runtime:      r.adapter.Name(),
		Image:        string(outcome.image),
		Status:       outcome.status,
		Result:       provenance.ResultFrom(outcome.result),
		Fingerprints: fingerprints,
		Labels:       act.Labels,
	}
	if outcome.err != nil {
		rec.Error = outcome.err.Error()
	}

	rec, err := r.journal.Append(rec)
	if err != nil {
		r.transition(act, &state, StateFailed)
		return rec, err
	}

	switch outcome.status {
	case provenance.StatusSuccess:
		r.transition(act, &state, StateDone)
		return rec, nil
	case provenance.StatusAborted:
		r.transition(act, &state, StateFailed)
		return rec, &ActivityError{Name: act.Name, Record: rec, Cause: outcome.err}
	default:
		r.transition(act, &state, StateFailed)
		return rec, &ActivityError{Name: act.Name, Record: rec, Cause: outcome.err}
	}
}

// outcome is the classified result of one execution attempt.
type execOutcome struct {
	status provenance.Status
	result *shellexec.Result
	image  engine.ImageRef
	err    error
}

// execute dispatches the workload and classifies what happened. It never
// returns; classification lands in the outcome so Run can record it.
func (r *Runner) execute(ctx context.Context, act Activity) execOutcome {
	switch act.Kind {
	case KindBareExecution:
		res, err := r.exec.Execute(ctx, shellexec.Spec{
			Argv:    act.Argv,
			Dir:     act.WorkDir,
			Env:     act.Env,
			Timeout: act.Timeout,
			Echo:    act.Echo,
		})
		return classify(res, "", err)

	case KindContainerBuild:
		if act.Build == nil {
			return execOutcome{status: provenance.StatusFailure, err: errors.New("container-build activity has no build spec")}
		}
		if err := r.adapterReady(); err != nil {
			return execOutcome{status: provenance.StatusFailure, err: err}
		}
		ref, err := r.adapter.BuildImage(ctx, *act.Build)
		return classifyBuild(ref, err)

	case KindContainerRun:
		if err := r.adapterReady(); err != nil {
			return execOutcome{status: provenance.StatusFailure, err: err}
		}
		image := act.Image
		if image == "" && act.Build != nil {
			ref, err := r.adapter.BuildImage(ctx, *act.Build)
			if err != nil {
				// A failed build skips the run; the record carries the
				// build outcome.
				return classifyBuild(ref, err)
			}
			image = ref
		}
		res, err := r.adapter.RunContainer(ctx, engine.RunSpec{
			Image:   image,
			Argv:    act.Argv,
			WorkDir: act.WorkDir,
			Env:     act.Env,
			Mounts:  act.Mounts,
			Timeout: act.Timeout,
			Echo:    act.Echo,
		})
		return classify(res, image, err)

	default:
		return execOutcome{
			status: provenance.StatusFailure,
			err:    fmt.Errorf("%w: %q", ErrUnknownActivityKind, act.Kind),
		}
	}
}

// adapterReady rejects containerized dispatch when the runtime is not usable
// on this host. The check sits in the activity path rather than at adapter
// construction so the rejection is classified and journaled like any other
// failure: every submitted activity leaves a record.
func (r *Runner) adapterReady() error {
	if r.adapter.Available() {
		return nil
	}
	return &engine.UnavailableError{
		Kind:   engine.Kind(r.adapter.Name()),
		Reason: fmt.Sprintf("%s is not installed or not executable on this host", r.adapter.Name()),
	}
}

// classify maps an execution result and error to a provenance status.
func classify(res *shellexec.Result, image engine.ImageRef, err error) execOutcome {
	out := execOutcome{result: res, image: image, err: err}

	switch {
	case err == nil && res == nil:
		out.status = provenance.StatusFailure
		out.err = errors.New("execution produced no result")
	case err == nil && res.ExitCode == 0:
		out.status = provenance.StatusSuccess
	case err == nil:
		out.status = provenance.StatusFailure
		out.err = fmt.Errorf("workload exited with status %d", res.ExitCode)
	case errors.Is(err, shellexec.ErrTimedOut) || errors.Is(err, context.Canceled):
		out.status = provenance.StatusAborted
		var te *shellexec.TimeoutError
		if errors.As(err, &te) && te.Partial != nil {
			out.result = te.Partial
		}
	default:
		out.status = provenance.StatusFailure
	}
	return out
}

// classifyBuild maps a build outcome to a provenance status.
func classifyBuild(ref engine.ImageRef, err error) execOutcome {
	if err == nil {
		return execOutcome{status: provenance.StatusSuccess, image: ref}
	}
	out := execOutcome{status: provenance.StatusFailure, err: err}
	var be *engine.BuildError
	if errors.As(err, &be) {
		out.result = be.Result
		out.image = engine.ImageRef(be.Tag)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, shellexec.ErrTimedOut) {
		out.status = provenance.StatusAborted
	}
	return out
}

// transition advances the lifecycle state and logs the step.
func (r *Runner) transition(act Activity, state *State, next State) {
	*state = next
	r.logger.Debug("activity state", "activity", act.Name, "state", string(next))
}

// recordOf extracts the provenance record from an ActivityError, if any.
func recordOf(err error) *provenance.Record {
	var ae *ActivityError
	if errors.As(err, &ae) {
		return &ae.Record
	}
	return nil
}
