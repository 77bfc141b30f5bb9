// SPDX-License-Identifier: MPL-2.0

package provenance

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rbberger/bueno/internal/shellexec"
	"github.com/rbberger/bueno/internal/sysprobe"
)

// JournalName is the file name of the append-only record journal inside an
// experiment's output directory.
const JournalName = "provenance.jsonl"

// Record statuses.
const (
	// StatusSuccess means the activity ran to completion with exit code 0.
	StatusSuccess Status = "success"
	// StatusFailure means the activity completed but reported failure
	// (non-zero exit, or a build error).
	StatusFailure Status = "failure"
	// StatusAborted means the activity was cut short by timeout or
	// cancellation before it could complete.
	StatusAborted Status = "aborted"
)

// Fingerprint phases.
const (
	PhasePre  = "pre"
	PhasePost = "post"
)

// ErrWriteFailed is the sentinel error wrapped by WriteError. A failed
// journal write means the experiment can no longer prove what it ran, so
// callers treat it as fatal.
var ErrWriteFailed = errors.New("provenance write failed")

type (
	// Status classifies the outcome of a recorded activity.
	Status string

	// ExecutionResult is the captured outcome of one process execution,
	// shaped for serialization into the journal and report.
	ExecutionResult struct {
		Argv      []string      `json:"argv" yaml:"argv"`
		ExitCode  int           `json:"exit_code" yaml:"exit_code"`
		Stdout    string        `json:"stdout,omitempty" yaml:"stdout,omitempty"`
		Stderr    string        `json:"stderr,omitempty" yaml:"stderr,omitempty"`
		StartedAt time.Time     `json:"started_at" yaml:"started_at"`
		Duration  time.Duration `json:"duration_ns" yaml:"duration_ns"`
	}

	// Fingerprint is a phase-tagged system snapshot attached to a record.
	Fingerprint struct {
		Phase     string            `json:"phase" yaml:"phase"`
		SampledAt time.Time         `json:"sampled_at" yaml:"sampled_at"`
		Facts     map[string]string `json:"facts" yaml:"facts"`
	}

	// Record is one entry in the provenance trail: what ran, under which
	// runtime, with what outcome, bracketed by system fingerprints.
	// Seq is assigned by the log on append and is gap-free within a journal.
	Record struct {
		Seq          int               `json:"seq" yaml:"seq"`
		Name         string            `json:"name" yaml:"name"`
		Kind         string            `json:"kind" yaml:"kind"`
		Runtime      string            `json:"runtime,omitempty" yaml:"runtime,omitempty"`
		Image        string            `json:"image,omitempty" yaml:"image,omitempty"`
		Status       Status            `json:"status" yaml:"status"`
		Error        string            `json:"error,omitempty" yaml:"error,omitempty"`
		Result       *ExecutionResult  `json:"result,omitempty" yaml:"result,omitempty"`
		Fingerprints []Fingerprint     `json:"fingerprints,omitempty" yaml:"fingerprints,omitempty"`
		Labels       map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
		RecordedAt   time.Time         `json:"recorded_at" yaml:"recorded_at"`
	}

	// WriteError is returned when a record could not be persisted to the
	// journal. The record it carries was NOT durably recorded.
	WriteError struct {
		Path string
		Err  error
	}

	// Log is the append-only provenance journal of one experiment. Appends
	// are safe for concurrent use; each record hits the disk before Append
	// returns.
	Log struct {
		mu      sync.Mutex
		file    *os.File
		path    string
		records []Record
	}
)

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to persist provenance record to %s: %v", e.Path, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *WriteError) Unwrap() []error { return []error{ErrWriteFailed, e.Err} }

// ResultFrom converts a captured execution into its journal form.
func ResultFrom(r *shellexec.Result) *ExecutionResult {
	if r == nil {
		return nil
	}
	return &ExecutionResult{
		Argv:      r.Argv,
		ExitCode:  r.ExitCode,
		Stdout:    r.Stdout,
		Stderr:    r.Stderr,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
	}
}

// FingerprintFrom tags a sampled fingerprint with its capture phase.
func FingerprintFrom(phase string, fp sysprobe.Fingerprint) Fingerprint {
	return Fingerprint{
		Phase:     phase,
		SampledAt: fp.SampledAt,
		Facts:     fp.Facts,
	}
}

// Open opens (or creates) the journal inside dir and loads any records a
// previous process left there, so sequence numbers continue where they
// stopped.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, JournalName)

	records, err := readJournal(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	return &Log{file: f, path: path, records: records}, nil
}

// readJournal loads the records already present in an existing journal.
func readJournal(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("corrupt journal entry in %s: %w", path, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return records, nil
}

// Path returns the journal file path.
func (l *Log) Path() string { return l.path }

// Append assigns the next sequence number to rec, persists it as one JSON
// line, and syncs the journal. The returned record carries the assigned Seq
// and RecordedAt. On write failure the record is not retained and the error
// unwraps to ErrWriteFailed.
func (l *Log) Append(rec Record) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return rec, &WriteError{Path: l.path, Err: os.ErrClosed}
	}

	rec.Seq = len(l.records)
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return rec, &WriteError{Path: l.path, Err: err}
	}
	line = append(line, '\n')

	if _, err := l.file.Write(line); err != nil {
		return rec, &WriteError{Path: l.path, Err: err}
	}
	if err := l.file.Sync(); err != nil {
		return rec, &WriteError{Path: l.path, Err: err}
	}

	l.records = append(l.records, rec)
	return rec, nil
}

// Records returns a copy of all appended records in sequence order.
func (l *Log) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of appended records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Close closes the journal file. Records already appended stay on disk.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
