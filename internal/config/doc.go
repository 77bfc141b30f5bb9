// SPDX-License-Identifier: MPL-2.0

// Package config loads bueno's user configuration: a CUE file validated
// against an embedded schema and merged into Viper on top of the built-in
// defaults. Configuration is looked up in the platform config directory
// first, then the current directory; a missing file just means defaults.
package config
