// Copyright 2026 The CaLab Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the calab CLI.
//
// Configuration is optional. When present it is loaded from a single
// file named by either a --config flag (via [LoadFile]) or the
// CALAB_CONFIG environment variable (via [Load]); [Resolve] applies that
// order. There is no ~/.config discovery and no automatic file search,
// so the file in effect is always the one the user named.
//
// Command-line flags override file values. The file only supplies
// defaults for flags the user did not pass.
//
// Variable expansion is performed on string fields after loading:
// ${HOME} and ${VAR:-default} patterns are expanded. No other
// environment variables override config values.
//
// Key exports:
//
//   - [Config] -- master struct with Bridge and Log sections
//   - [Default] -- returns a Config with the built-in defaults
//   - [Load], [LoadFile], and [Resolve] -- the entry points for loading
//
// This package depends on no other CaLab packages.
package config
