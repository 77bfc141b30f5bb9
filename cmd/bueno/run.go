// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rbberger/bueno/internal/engine"
	"github.com/rbberger/bueno/internal/experiment"
	"github.com/rbberger/bueno/internal/issue"
	"github.com/rbberger/bueno/internal/pipeline"
	"github.com/rbberger/bueno/internal/provenance"
	"github.com/rbberger/bueno/pkg/runfile"
)

var (
	// runOutputPath overrides the output path template.
	runOutputPath string
	// runKeepGoing continues past failed activities.
	runKeepGoing bool
	// runEcho tees workload output to the terminal.
	runEcho bool

	runCmd = &cobra.Command{
		Use:   "run <runfile>",
		Short: "Run an experiment from a runfile",
		Long: `Run the experiment described in a CUE runfile.

Every activity is bracketed by system fingerprints and journaled to the
experiment's output directory as it completes; a YAML report is rendered
when the run finishes, successfully or not.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperiment(cmd, args[0])
		},
	}
)

func init() {
	runCmd.Flags().StringVarP(&runOutputPath, "output", "o", "", "output path template (overrides runfile and config)")
	runCmd.Flags().BoolVarP(&runKeepGoing, "keep-going", "k", false, "continue past failed activities")
	runCmd.Flags().BoolVar(&runEcho, "echo", false, "tee workload output to the terminal")
}

func runExperiment(cmd *cobra.Command, path string) error {
	// Experiments mutate the system they measure; running them as root is
	// both risky and unrepresentative.
	if os.Geteuid() == 0 {
		return issue.NewErrorContext().
			WithOperation("run experiment").
			WithSuggestion("Run bueno as an unprivileged user").
			Wrap(errors.New("refusing to run as root")).
			BuildError()
	}

	rf, err := runfile.Parse(path)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("load runfile").
			WithResource(path).
			WithSuggestion("Check the file for CUE syntax errors").
			WithSuggestion("Validate activity definitions: each needs exactly one of exec or shell").
			Wrap(err).
			BuildError()
	}

	// A runfile that does not pick a runtime inherits the configured default,
	// so the plan below dispatches through the effective kind.
	if rf.Runtime.Kind == "" {
		rf.Runtime.Kind = cfg.DefaultRuntime
	}
	kind := rf.RuntimeKind()

	// Construction does not probe the tool. Availability is checked per
	// activity inside the pipeline, so a runfile naming an unavailable
	// runtime still leaves a failure record for every submitted activity.
	adapter, err := engine.New(kind)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("select runtime").
			WithResource(string(kind)).
			WithSuggestion("Use one of: none, docker, podman, charliecloud").
			Wrap(err).
			BuildError()
	}

	// Plan before declaring so an invalid runfile does not claim an output
	// directory or leave an empty journal behind.
	plan, err := rf.Plan()
	if err != nil {
		return issue.WrapWithOperation(err, "plan activities")
	}

	outputTemplate := cfg.OutputPath
	if rf.OutputPath != "" {
		outputTemplate = rf.OutputPath
	}
	if runOutputPath != "" {
		outputTemplate = runOutputPath
	}

	expCtx := experiment.New()
	exp, err := expCtx.Declare(rf.Name, rf.Description, outputTemplate)
	if err != nil {
		return issue.WrapWithOperation(err, "declare experiment")
	}

	journal, err := expCtx.Journal()
	if err != nil {
		return issue.WrapWithOperation(err, "open provenance journal")
	}
	outputDir, _ := expCtx.OutputDir()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	logger.Info("experiment declared",
		"name", exp.Name, "id", exp.ID, "runtime", adapter.Name(), "output", outputDir)

	for i := range plan {
		plan[i].Echo = plan[i].Echo || runEcho || cfg.UI.Echo
		plan[i].PostFingerprint = plan[i].PostFingerprint || cfg.PostFingerprint
	}

	runner := pipeline.NewRunner(adapter, journal,
		pipeline.WithLogger(logger),
		pipeline.WithKeepGoing(rf.KeepGoing || cfg.KeepGoing || runKeepGoing),
	)

	failed, runErr := runner.RunAll(cmd.Context(), plan)

	// Finalize regardless of outcome so the records already journaled get a
	// report.
	if err := expCtx.Finalize(); err != nil {
		logger.Error("failed to render report", "error", err)
		if runErr == nil {
			runErr = err
		}
	} else {
		logger.Info("report written", "path", expCtx.ReportPath())
	}

	switch {
	case runErr == nil:
		logger.Info("experiment finished", "activities", len(plan), "failed", failed)
		return nil
	case errors.Is(runErr, provenance.ErrWriteFailed):
		return &ExitError{
			Code: ExitProvenanceLost,
			Err: issue.NewErrorContext().
				WithOperation("record provenance").
				WithResource(outputDir).
				WithSuggestion("Check free space and permissions on the output directory").
				WithSuggestion("The journal is incomplete; do not trust this run's results").
				Wrap(runErr).
				BuildError(),
		}
	default:
		logger.Error("experiment finished with failures", "failed", failed)
		return &ExitError{Code: ExitFailure, Err: runErr}
	}
}
