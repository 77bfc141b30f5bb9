// SPDX-License-Identifier: MPL-2.0

package sysprobe

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rbberger/bueno/internal/shellexec"
)

// Unavailable is the sentinel value recorded for a fact whose probe failed.
const Unavailable = "unavailable"

// Well-known fact names.
const (
	FactKernel        = "kernel"
	FactKernelRelease = "kernel-release"
	FactHostname      = "hostname"
	FactOSPrettyName  = "os-pretty-name"
	FactCPUModel      = "cpu-model"
	FactUser          = "user"
	FactShell         = "shell"
)

type (
	// Probe resolves one fact. Returning an error degrades the fact to the
	// Unavailable sentinel; it never fails the fingerprint.
	Probe func(ctx context.Context) (string, error)

	// Fingerprint is a timestamped snapshot of fact name to value.
	Fingerprint struct {
		SampledAt time.Time
		Facts     map[string]string
	}

	// Prober captures fingerprints from a registered set of probes.
	Prober struct {
		exec   *shellexec.Executor
		probes map[string]Probe
	}

	// ProberOption configures a Prober.
	ProberOption func(*Prober)
)

// WithProbe registers an additional probe under the given fact name,
// replacing any default probe with the same name.
func WithProbe(fact string, probe Probe) ProberOption {
	return func(p *Prober) {
		p.probes[fact] = probe
	}
}

// WithToolVersion registers a probe named "version:<tool>" that captures the
// first line printed by running the tool with the given arguments.
// Typical use: WithToolVersion("gcc", "--version").
func WithToolVersion(tool string, args ...string) ProberOption {
	return func(p *Prober) {
		argv := append([]string{tool}, args...)
		p.probes["version:"+tool] = p.commandProbe(argv...)
	}
}

// NewProber creates a Prober with the default fact set registered.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		exec:   shellexec.New(),
		probes: make(map[string]Probe),
	}
	p.probes[FactKernel] = p.commandProbe("uname", "-s")
	p.probes[FactKernelRelease] = p.commandProbe("uname", "-r")
	p.probes[FactHostname] = p.commandProbe("hostname")
	p.probes[FactOSPrettyName] = osPrettyName
	p.probes[FactCPUModel] = cpuModel
	p.probes[FactUser] = envProbe("USER")
	p.probes[FactShell] = envProbe("SHELL")
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultFacts returns the sorted names of all registered facts.
func (p *Prober) DefaultFacts() []string {
	names := make([]string, 0, len(p.probes))
	for name := range p.probes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Capture samples the named facts and returns a Fingerprint containing an
// entry for every requested fact. Unknown fact names and failing probes are
// recorded with the Unavailable sentinel; Capture never returns an error.
// With no facts given, the full registered set is sampled.
func (p *Prober) Capture(ctx context.Context, facts ...string) Fingerprint {
	if len(facts) == 0 {
		facts = p.DefaultFacts()
	}

	fp := Fingerprint{
		SampledAt: time.Now().UTC(),
		Facts:     make(map[string]string, len(facts)),
	}
	for _, name := range facts {
		probe, ok := p.probes[name]
		if !ok {
			fp.Facts[name] = Unavailable
			continue
		}
		value, err := probe(ctx)
		if err != nil || value == "" {
			fp.Facts[name] = Unavailable
			continue
		}
		fp.Facts[name] = value
	}
	return fp
}

// commandProbe builds a probe that runs argv and returns its chomped first
// line of standard output.
func (p *Prober) commandProbe(argv ...string) Probe {
	return func(ctx context.Context) (string, error) {
		res, err := p.exec.Execute(ctx, shellexec.Spec{
			Argv:    argv,
			Timeout: 10 * time.Second,
		})
		if err != nil {
			return "", err
		}
		if res.ExitCode != 0 {
			return "", fmt.Errorf("%s exited with status %d", argv[0], res.ExitCode)
		}
		return firstLine(res.Stdout), nil
	}
}
