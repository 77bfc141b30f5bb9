// SPDX-License-Identifier: MPL-2.0

// Package runfile defines the CUE-backed experiment definition format: the
// experiment's identity, the runtime its activities dispatch through, and
// the ordered activities themselves.
//
// Parsing validates against the embedded schema first, then applies the
// checks CUE cannot express: exactly one of exec or shell per activity,
// shell scripts that actually parse, well-formed mounts and timeouts.
package runfile
