// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireClosed] and [RequireOpen] wrap the select
// with a time.After fallback so that a test waiting on a channel fails
// with a message instead of hanging. Everything else in the test suite
// uses lib/clock's fake clock rather than wall-clock time.
//
// All helpers call Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
