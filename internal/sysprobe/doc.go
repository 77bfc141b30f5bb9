// SPDX-License-Identifier: MPL-2.0

// Package sysprobe samples host and software identity facts for provenance
// capture: kernel, kernel release, hostname, OS pretty name, CPU model, user,
// and tool version strings.
//
// Each fact is produced by a small independent probe. A failing probe degrades
// that single fact to the Unavailable sentinel instead of aborting the whole
// fingerprint; partial provenance is preferred over none.
package sysprobe
