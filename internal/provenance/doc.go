// SPDX-License-Identifier: MPL-2.0

// Package provenance persists the evidence trail of an experiment: one
// append-only record per executed activity, carrying the command, its
// captured output, and the system fingerprints sampled around it.
//
// Records are journaled to disk as JSON lines the moment they are appended,
// so a crash mid-experiment loses at most the record being written. A
// human-readable YAML report is rendered from the journal at finalization.
package provenance
