// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package readiness implements the out-of-band readiness notification
// between the backend process and the front-end.
//
// When the backend has written its certificate and is accepting
// connections it prints [Line] ("SERVICE_READY\n") to standard output
// ([Announce]). Whatever owns the backend process hands its standard
// output to a [Watcher] and reports the process exit with
// [Watcher.MarkExited]. [Watcher.Wait] then distinguishes the two ways
// a backend can fail to come up: it never announced in time
// ([ErrNotReady]), or it exited first ([ErrBackendExited]).
//
// Spawning and killing the backend process is left to the caller.
package readiness
