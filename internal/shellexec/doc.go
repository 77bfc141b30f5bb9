// SPDX-License-Identifier: MPL-2.0

// Package shellexec runs a single external command and captures its full
// outcome: exit code, stdout, stderr, wall-clock duration, and the exact
// argument vector that was executed.
//
// Commands are always executed as argument vectors, never through an implicit
// shell, so word splitting and metacharacter interpretation cannot happen by
// accident. Callers that want shell semantics must construct the shell
// invocation explicitly (see pkg/runfile's shell activities).
//
// A non-zero exit code is returned as data in the Result, not as an error.
// Only infrastructure failures produce errors: a missing executable yields a
// NotFoundError, and an elapsed timeout yields a TimeoutError carrying
// whatever output was captured before the child was killed.
package shellexec
