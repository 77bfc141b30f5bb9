// SPDX-License-Identifier: MPL-2.0

// Package issue builds user-facing errors that say what failed, on which
// resource, and what to try next.
package issue
