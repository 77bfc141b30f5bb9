// SPDX-License-Identifier: MPL-2.0

package sysprobe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// osReleasePath is a variable so tests can point it at a fixture.
var osReleasePath = "/etc/os-release"

// cpuinfoPath is a variable so tests can point it at a fixture.
var cpuinfoPath = "/proc/cpuinfo"

// envProbe builds a probe that reads an environment variable.
func envProbe(key string) Probe {
	return func(context.Context) (string, error) {
		value, ok := os.LookupEnv(key)
		if !ok {
			return "", fmt.Errorf("environment variable %s not set", key)
		}
		return value, nil
	}
}

// osPrettyName reads PRETTY_NAME from /etc/os-release.
func osPrettyName(context.Context) (string, error) {
	f, err := os.Open(osReleasePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		value, ok := strings.CutPrefix(line, "PRETTY_NAME=")
		if !ok {
			continue
		}
		return strings.Trim(strings.TrimSpace(value), `"`), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("PRETTY_NAME not found in %s", osReleasePath)
}

// cpuModel reads the first "model name" entry from /proc/cpuinfo.
func cpuModel(context.Context) (string, error) {
	f, err := os.Open(cpuinfoPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "model name" {
			return strings.TrimSpace(value), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("model name not found in %s", cpuinfoPath)
}

// firstLine returns the input up to the first newline, with trailing
// whitespace removed.
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
