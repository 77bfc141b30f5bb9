// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for bueno.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/rbberger/bueno/internal/config"
	"github.com/rbberger/bueno/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output.
	verbose bool
	// cfgFile allows specifying a custom config file.
	cfgFile string

	// cfg is the loaded configuration, resolved before any RunE handler.
	cfg *config.Config

	// rootCmd is the base command when called without subcommands.
	rootCmd = &cobra.Command{
		Use:   "bueno",
		Short: "A reproducible-experiment runner with provenance capture",
		Long: TitleStyle.Render("bueno") + SubtitleStyle.Render(" - run experiments, keep the evidence") + `

bueno runs computational experiments described in CUE runfiles and
records everything needed to trust the results: the exact commands,
their captured output, and system fingerprints sampled around every
activity. Workloads run on the bare host or inside a container
runtime (Docker, Podman, Charliecloud).

` + SubtitleStyle.Render("Quick Start:") + `
  1. Describe your experiment in a runfile (CUE format)
  2. Run it:  bueno run experiment.cue
  3. Read the report in the experiment's output directory

` + SubtitleStyle.Render("Examples:") + `
  bueno run experiment.cue     Run an experiment
  bueno host                   Show this host's system fingerprint
  bueno engines                List container runtimes and availability
  bueno config show            Show the effective configuration`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/bueno/config.cue)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(hostCmd)
	rootCmd.AddCommand(enginesCmd)
	rootCmd.AddCommand(configCmd)
}

// initRootConfig loads the configuration before command handlers run.
func initRootConfig() {
	loaded, _, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		loaded = config.DefaultConfig()
	}
	cfg = loaded
	if cfg.UI.Verbose {
		verbose = true
	}
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// formatErrorForDisplay renders actionable errors with their suggestions.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}

// Execute runs the CLI. Called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(ExitFailure)
	}
}
