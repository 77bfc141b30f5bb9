// SPDX-License-Identifier: MPL-2.0

// Package experiment owns the identity and lifecycle of one experiment run:
// a single declaration fixes the name and output location, activities append
// to the journal while the run is live, and finalization renders the report
// exactly once.
package experiment
