// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli holds setup shared by the tether binaries: flag
// registration for the configuration file and log level, and the
// structured logger.
package cli
