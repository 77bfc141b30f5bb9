// SPDX-License-Identifier: MPL-2.0

package experiment

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbberger/bueno/internal/provenance"
)

// DefaultOutputTemplate is the output path used when a runfile or the
// configuration does not choose one.
const DefaultOutputTemplate = "bueno-out/%n/%d/%i"

var (
	// ErrAlreadyDeclared is the sentinel error wrapped by AlreadyDeclaredError.
	ErrAlreadyDeclared = errors.New("experiment already declared")

	// ErrNotDeclared is returned when the journal or output directory is
	// requested before Declare.
	ErrNotDeclared = errors.New("experiment not declared")

	// ErrInvalidName is returned for empty names or names that would escape
	// the output directory.
	ErrInvalidName = errors.New("invalid experiment name")
)

type (
	// Experiment is the immutable identity fixed by Declare.
	Experiment struct {
		ID          string
		Name        string
		Description string
		StartedAt   time.Time
	}

	// AlreadyDeclaredError is returned by a second Declare on the same
	// context. The first declaration wins; there is no re-declaration.
	AlreadyDeclaredError struct {
		Existing string
		Rejected string
	}

	// Context carries one experiment from declaration to finalization. It
	// is safe for concurrent use.
	Context struct {
		mu        sync.Mutex
		declared  bool
		exp       Experiment
		outputDir string
		journal   *provenance.Log

		finalizeOnce sync.Once
		finalizeErr  error
		reportPath   string
	}
)

// Error implements the error interface.
func (e *AlreadyDeclaredError) Error() string {
	return fmt.Sprintf("experiment already declared as %q; cannot redeclare as %q", e.Existing, e.Rejected)
}

// Unwrap returns ErrAlreadyDeclared so callers can use errors.Is for detection.
func (e *AlreadyDeclaredError) Unwrap() error { return ErrAlreadyDeclared }

// New creates an undeclared experiment context.
func New() *Context {
	return &Context{}
}

// ValidateName rejects names that are empty or contain path separators.
// The name becomes part of the output path, so it must stay a single
// path element.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// Declare fixes the experiment's identity, resolves the output directory
// from outputTemplate (see ExpandOutputPath), and opens the provenance
// journal inside it. Exactly one declaration is allowed per context; a
// second call returns an AlreadyDeclaredError and changes nothing.
func (c *Context) Declare(name, description, outputTemplate string) (Experiment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.declared {
		return c.exp, &AlreadyDeclaredError{Existing: c.exp.Name, Rejected: name}
	}
	if err := ValidateName(name); err != nil {
		return Experiment{}, err
	}
	if outputTemplate == "" {
		outputTemplate = DefaultOutputTemplate
	}

	started := time.Now().UTC()
	dir, err := ExpandOutputPath(outputTemplate, name, started)
	if err != nil {
		return Experiment{}, err
	}

	journal, err := provenance.Open(dir)
	if err != nil {
		return Experiment{}, err
	}

	c.declared = true
	c.exp = Experiment{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		StartedAt:   started,
	}
	c.outputDir = dir
	c.journal = journal
	return c.exp, nil
}

// Declared reports whether Declare has succeeded on this context.
func (c *Context) Declared() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.declared
}

// Experiment returns the declared identity.
func (c *Context) Experiment() (Experiment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.declared {
		return Experiment{}, ErrNotDeclared
	}
	return c.exp, nil
}

// Journal returns the live provenance journal.
func (c *Context) Journal() (*provenance.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.declared {
		return nil, ErrNotDeclared
	}
	return c.journal, nil
}

// OutputDir returns the resolved output directory.
func (c *Context) OutputDir() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.declared {
		return "", ErrNotDeclared
	}
	return c.outputDir, nil
}

// Finalize renders the report from the journal and closes it. It is
// idempotent: the report is written once, and every call returns the same
// outcome. Records already journaled survive even when rendering fails.
func (c *Context) Finalize() error {
	c.mu.Lock()
	if !c.declared {
		c.mu.Unlock()
		return ErrNotDeclared
	}
	c.mu.Unlock()

	c.finalizeOnce.Do(func() {
		report := &provenance.Report{
			Experiment: provenance.ExperimentInfo{
				ID:          c.exp.ID,
				Name:        c.exp.Name,
				Description: c.exp.Description,
				StartedAt:   c.exp.StartedAt,
				FinishedAt:  time.Now().UTC(),
			},
			Records: c.journal.Records(),
		}

		path, err := provenance.WriteReport(c.outputDir, report)
		if err != nil {
			c.finalizeErr = err
		}
		c.reportPath = path

		if err := c.journal.Close(); err != nil && c.finalizeErr == nil {
			c.finalizeErr = fmt.Errorf("failed to close journal: %w", err)
		}
	})
	return c.finalizeErr
}

// ReportPath returns the path of the rendered report after Finalize.
func (c *Context) ReportPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reportPath
}
