// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Code that waits, such as the readiness poll in rpc.Session, takes a
// Clock instead of calling the time package. Production code passes
// Real(). Tests pass Fake(), which stands still until Advance is
// called:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go session.WaitForReady(ctx)
//	fake.WaitForTimers(1)      // the poll has registered its timer
//	fake.Advance(time.Second)  // fire it deterministically
//
// WaitForTimers removes the race between a goroutine registering a
// timer and the test advancing the clock.
package clock
