// SPDX-License-Identifier: MPL-2.0

package sysprobe

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestCapture_MixedResolvableAndUnresolvableFacts(t *testing.T) {
	t.Parallel()

	p := NewProber(
		WithProbe("always-ok", func(context.Context) (string, error) {
			return "value", nil
		}),
		WithProbe("always-fails", func(context.Context) (string, error) {
			return "", errors.New("probe exploded")
		}),
		WithProbe("other-ok", func(context.Context) (string, error) {
			return "other", nil
		}),
	)

	fp := p.Capture(context.Background(), "always-ok", "always-fails", "other-ok")

	if len(fp.Facts) != 3 {
		t.Fatalf("got %d facts, want 3: %v", len(fp.Facts), fp.Facts)
	}
	if fp.Facts["always-ok"] != "value" {
		t.Errorf("always-ok = %q, want %q", fp.Facts["always-ok"], "value")
	}
	if fp.Facts["other-ok"] != "other" {
		t.Errorf("other-ok = %q, want %q", fp.Facts["other-ok"], "other")
	}
	if fp.Facts["always-fails"] != Unavailable {
		t.Errorf("always-fails = %q, want sentinel %q", fp.Facts["always-fails"], Unavailable)
	}
	if fp.SampledAt.IsZero() {
		t.Error("SampledAt is zero")
	}
}

func TestCapture_UnknownFactDegradesToSentinel(t *testing.T) {
	t.Parallel()

	fp := NewProber().Capture(context.Background(), "no-such-fact")
	if fp.Facts["no-such-fact"] != Unavailable {
		t.Errorf("no-such-fact = %q, want %q", fp.Facts["no-such-fact"], Unavailable)
	}
}

func TestCapture_DefaultFactSet(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("skipping: default probes rely on POSIX tools")
	}

	p := NewProber()
	fp := p.Capture(context.Background())

	want := p.DefaultFacts()
	if len(fp.Facts) != len(want) {
		t.Fatalf("got %d facts, want %d", len(fp.Facts), len(want))
	}
	// uname -s must resolve on any POSIX host.
	if fp.Facts[FactKernel] == Unavailable || fp.Facts[FactKernel] == "" {
		t.Errorf("kernel fact = %q, want a real value", fp.Facts[FactKernel])
	}
}

func TestCapture_EmptyProbeValueDegradesToSentinel(t *testing.T) {
	t.Parallel()

	p := NewProber(WithProbe("empty", func(context.Context) (string, error) {
		return "", nil
	}))
	fp := p.Capture(context.Background(), "empty")
	if fp.Facts["empty"] != Unavailable {
		t.Errorf("empty fact = %q, want %q", fp.Facts["empty"], Unavailable)
	}
}

func TestWithToolVersion(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("skipping: test relies on POSIX utilities")
	}

	p := NewProber(WithToolVersion("uname", "-s"))
	fp := p.Capture(context.Background(), "version:uname")
	if fp.Facts["version:uname"] == Unavailable {
		t.Errorf("version:uname = %q, want a real value", fp.Facts["version:uname"])
	}
}

func TestFirstLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"Linux\n", "Linux"},
		{"one\ntwo\n", "one"},
		{"  padded  ", "padded"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in); got != tt.want {
			t.Errorf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOSPrettyName_Fixture(t *testing.T) {
	// Not parallel: swaps the package-level fixture path.
	orig := osReleasePath
	t.Cleanup(func() { osReleasePath = orig })

	dir := t.TempDir()
	path := dir + "/os-release"
	if err := writeFile(path, "NAME=\"Test OS\"\nPRETTY_NAME=\"Test OS 1.0 (LTS)\"\n"); err != nil {
		t.Fatal(err)
	}
	osReleasePath = path

	got, err := osPrettyName(context.Background())
	if err != nil {
		t.Fatalf("osPrettyName() error = %v", err)
	}
	if got != "Test OS 1.0 (LTS)" {
		t.Errorf("osPrettyName() = %q", got)
	}
}

func TestCPUModel_Fixture(t *testing.T) {
	// Not parallel: swaps the package-level fixture path.
	orig := cpuinfoPath
	t.Cleanup(func() { cpuinfoPath = orig })

	dir := t.TempDir()
	path := dir + "/cpuinfo"
	if err := writeFile(path, "processor\t: 0\nmodel name\t: Fictional CPU @ 3.00GHz\n"); err != nil {
		t.Fatal(err)
	}
	cpuinfoPath = path

	got, err := cpuModel(context.Background())
	if err != nil {
		t.Fatalf("cpuModel() error = %v", err)
	}
	if got != "Fictional CPU @ 3.00GHz" {
		t.Errorf("cpuModel() = %q", got)
	}
}
