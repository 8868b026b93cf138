// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the tether
// binaries.
//
// Configuration comes from at most one file, named by the --config flag
// or, failing that, the TETHER_CONFIG environment variable ([Load]).
// Files ending in .json or .jsonc are JSON with comments and trailing
// commas allowed; anything else is YAML. Values not set in the file
// keep their [Default]. Without a file the defaults are used as they
// are.
//
// The default data directory is the per-user configuration directory
// for tether as reported by github.com/shibukawa/configdir. The backend
// writes its certificate there and the front-end reads it from there.
//
// Path fields are expanded after loading: ${HOME}, ${TETHER_DATA} (the
// effective paths.data_dir) and ${VAR:-default} patterns. No other
// environment variables override config values.
package config
