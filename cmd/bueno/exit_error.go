// SPDX-License-Identifier: MPL-2.0

package cmd

import "fmt"

// Exit codes beyond the conventional 0/1.
const (
	// ExitFailure is the generic failure exit code, used when an activity
	// fails or a setup step cannot complete.
	ExitFailure = 1

	// ExitProvenanceLost signals that a provenance record could not be
	// persisted; the experiment's evidence trail is incomplete and results
	// must not be trusted.
	ExitProvenanceLost = 74
)

// ExitError signals a specific exit code without forcing os.Exit inside
// RunE handlers.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the error message for ExitError.
func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// Unwrap returns the underlying error, if any.
func (e *ExitError) Unwrap() error {
	return e.Err
}
