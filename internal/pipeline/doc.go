// SPDX-License-Identifier: MPL-2.0

// Package pipeline drives activities through their lifecycle: fingerprint
// the system, execute the workload through the selected runtime, and append
// exactly one provenance record for the attempt, whatever its outcome.
//
// The pipeline never swallows outcomes. A non-zero workload exit becomes a
// failure record and a surfaced error; a timeout or cancellation becomes an
// aborted record with whatever partial output was captured; only a failure
// to write the record itself is treated as fatal to the experiment.
package pipeline
