// SPDX-License-Identifier: MPL-2.0

// Package cueutil wraps the CUE evaluation flow shared by every schema-backed
// file format in this project: compile the embedded schema, unify it with the
// user's file, validate, and decode into a Go struct.
//
// Errors come back with JSON-path locations (e.g. "activities[1].timeout")
// so users can find the offending field without reading CUE diagnostics.
package cueutil
