// SPDX-License-Identifier: MPL-2.0

package provenance

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ReportName is the file name of the rendered report inside an experiment's
// output directory.
const ReportName = "report.yaml"

type (
	// ExperimentInfo is the report header describing the run as a whole.
	ExperimentInfo struct {
		ID          string    `yaml:"id"`
		Name        string    `yaml:"name"`
		Description string    `yaml:"description,omitempty"`
		StartedAt   time.Time `yaml:"started_at"`
		FinishedAt  time.Time `yaml:"finished_at"`
	}

	// Report is the human-readable rendering of an experiment's journal.
	// Serializing a loaded report reproduces the original bytes: map keys
	// are emitted in sorted order and struct fields in declaration order,
	// so the rendering is a pure function of the data.
	Report struct {
		Experiment ExperimentInfo `yaml:"experiment"`
		Records    []Record       `yaml:"records"`
	}
)

// RenderReport serializes the report to YAML.
func RenderReport(r *Report) ([]byte, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return data, nil
}

// WriteReport renders the report into dir, replacing any previous rendering.
func WriteReport(dir string, r *Report) (string, error) {
	data, err := RenderReport(r)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ReportName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &WriteError{Path: path, Err: err}
	}
	return path, nil
}

// LoadReport reads a previously written report back.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &r, nil
}
