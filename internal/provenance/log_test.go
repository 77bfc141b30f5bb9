// SPDX-License-Identifier: MPL-2.0

package provenance

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rbberger/bueno/internal/shellexec"
)

func TestLog_AppendAssignsGapFreeSequence(t *testing.T) {
	t.Parallel()

	log, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer log.Close()

	const n = 25
	for i := 0; i < n; i++ {
		rec, err := log.Append(Record{
			Name:   fmt.Sprintf("activity-%d", i),
			Kind:   "bare-execution",
			Status: StatusSuccess,
		})
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		if rec.Seq != i {
			t.Errorf("Append() assigned seq %d, want %d", rec.Seq, i)
		}
	}

	records := log.Records()
	if len(records) != n {
		t.Fatalf("Records() returned %d, want %d", len(records), n)
	}
	for i, rec := range records {
		if rec.Seq != i {
			t.Errorf("records[%d].Seq = %d, want %d", i, rec.Seq, i)
		}
	}
}

func TestLog_AppendIsSafeForConcurrentUse(t *testing.T) {
	t.Parallel()

	log, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer log.Close()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := log.Append(Record{Name: fmt.Sprintf("a-%d", i), Status: StatusSuccess}); err != nil {
				t.Errorf("Append() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for _, rec := range log.Records() {
		if seen[rec.Seq] {
			t.Errorf("duplicate seq %d", rec.Seq)
		}
		seen[rec.Seq] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct seqs, want %d", len(seen), n)
	}
}

func TestLog_ReopenResumesSequence(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	log, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := log.Append(Record{Name: "first-session", Status: StatusSuccess}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// A new process opening the same directory sees the prior records and
	// continues numbering after them.
	log2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer log2.Close()

	if log2.Len() != 3 {
		t.Fatalf("reopened Len() = %d, want 3", log2.Len())
	}
	rec, err := log2.Append(Record{Name: "second-session", Status: StatusFailure})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if rec.Seq != 3 {
		t.Errorf("resumed seq = %d, want 3", rec.Seq)
	}
}

func TestLog_AppendAfterCloseFails(t *testing.T) {
	t.Parallel()

	log, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	_, err = log.Append(Record{Name: "late"})
	if !errors.Is(err, ErrWriteFailed) {
		t.Errorf("error = %v, want ErrWriteFailed", err)
	}
	var we *WriteError
	if !errors.As(err, &we) {
		t.Errorf("error = %v, want *WriteError", err)
	}
}

func TestLog_RecordRoundTripsThroughJournal(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	started := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	want := Record{
		Name:    "stream-triad",
		Kind:    "container-run",
		Runtime: "podman",
		Image:   "bench:latest",
		Status:  StatusFailure,
		Error:   "workload exited with status 2",
		Result: &ExecutionResult{
			Argv:      []string{"./stream", "--ntimes", "20"},
			ExitCode:  2,
			Stdout:    "triad bandwidth: 41 GB/s\n",
			Stderr:    "warning: small array\n",
			StartedAt: started,
			Duration:  1500 * time.Millisecond,
		},
		Fingerprints: []Fingerprint{{
			Phase:     PhasePre,
			SampledAt: started,
			Facts:     map[string]string{"kernel": "Linux", "hostname": "node042"},
		}},
		Labels:     map[string]string{"suite": "memory"},
		RecordedAt: started.Add(2 * time.Second),
	}

	log, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	appended, err := log.Append(want)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	log2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer log2.Close()

	got := log2.Records()
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1", len(got))
	}
	loaded := got[0]
	if loaded.Name != appended.Name || loaded.Status != appended.Status ||
		loaded.Runtime != appended.Runtime || loaded.Error != appended.Error {
		t.Errorf("loaded record header differs: %+v", loaded)
	}
	if loaded.Result == nil || loaded.Result.ExitCode != 2 ||
		loaded.Result.Duration != 1500*time.Millisecond ||
		!loaded.Result.StartedAt.Equal(started) {
		t.Errorf("loaded result differs: %+v", loaded.Result)
	}
	if len(loaded.Fingerprints) != 1 || loaded.Fingerprints[0].Facts["hostname"] != "node042" {
		t.Errorf("loaded fingerprints differ: %+v", loaded.Fingerprints)
	}
}

func TestResultFrom(t *testing.T) {
	t.Parallel()

	if ResultFrom(nil) != nil {
		t.Error("ResultFrom(nil) != nil")
	}

	src := &shellexec.Result{
		Argv:     []string{"true"},
		ExitCode: 0,
		Stdout:   "out",
		Duration: time.Second,
	}
	got := ResultFrom(src)
	if got.ExitCode != 0 || got.Stdout != "out" || got.Duration != time.Second {
		t.Errorf("ResultFrom() = %+v", got)
	}
}

func TestReport_RenderIsDeterministic(t *testing.T) {
	t.Parallel()

	report := &Report{
		Experiment: ExperimentInfo{
			ID:         "0f1e2d3c",
			Name:       "osu-latency",
			StartedAt:  time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC),
			FinishedAt: time.Date(2026, 8, 23, 9, 5, 0, 0, time.UTC),
		},
		Records: []Record{{
			Seq:    0,
			Name:   "warmup",
			Kind:   "bare-execution",
			Status: StatusSuccess,
			Fingerprints: []Fingerprint{{
				Phase:     PhasePre,
				SampledAt: time.Date(2026, 8, 23, 9, 0, 1, 0, time.UTC),
				Facts:     map[string]string{"zeta": "z", "alpha": "a", "mid": "m"},
			}},
			RecordedAt: time.Date(2026, 8, 23, 9, 1, 0, 0, time.UTC),
		}},
	}

	first, err := RenderReport(report)
	if err != nil {
		t.Fatalf("RenderReport() error = %v", err)
	}
	second, err := RenderReport(report)
	if err != nil {
		t.Fatalf("RenderReport() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("two renderings of the same report differ")
	}
}

func TestReport_WriteLoadRenderIsByteStable(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	report := &Report{
		Experiment: ExperimentInfo{
			ID:          "abc123",
			Name:        "hpl",
			Description: "linpack baseline",
			StartedAt:   time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
			FinishedAt:  time.Date(2026, 8, 23, 11, 0, 0, 0, time.UTC),
		},
		Records: []Record{{
			Seq:    0,
			Name:   "xhpl",
			Kind:   "container-run",
			Status: StatusSuccess,
			Result: &ExecutionResult{
				Argv:      []string{"./xhpl"},
				ExitCode:  0,
				Stdout:    "PASSED\n",
				StartedAt: time.Date(2026, 8, 23, 10, 0, 5, 0, time.UTC),
				Duration:  42 * time.Minute,
			},
			RecordedAt: time.Date(2026, 8, 23, 10, 42, 5, 0, time.UTC),
		}},
	}

	path, err := WriteReport(dir, report)
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if filepath.Base(path) != ReportName {
		t.Errorf("report path = %q", path)
	}

	original, err := RenderReport(report)
	if err != nil {
		t.Fatalf("RenderReport() error = %v", err)
	}

	loaded, err := LoadReport(path)
	if err != nil {
		t.Fatalf("LoadReport() error = %v", err)
	}
	reRendered, err := RenderReport(loaded)
	if err != nil {
		t.Fatalf("re-render error = %v", err)
	}
	if !bytes.Equal(original, reRendered) {
		t.Errorf("re-rendered report differs from original:\n--- original\n%s\n--- re-rendered\n%s", original, reRendered)
	}
}
