// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpcerr defines the error taxonomy shared by every layer of the
// tether RPC stack.
//
// Every failure is an [*Error] carrying a [Kind]:
//
//   - [KindService]: a required dependency is not wired (no transport
//     attached, backend never became ready).
//   - [KindTransport]: network or TLS failure, non-200 status, and the
//     response sequencing and signature-header checks.
//   - [KindAuthentication]: signature or key-exchange verification failed.
//   - [KindCertificate]: the backend certificate is missing, unreadable,
//     or does not match its recorded pin.
//   - [KindProtocol]: a malformed envelope or call.
//
// Callers branch on the kind with errors.Is against the kind sentinels
// ([ErrService], [ErrTransport], ...). Packages declare their own
// sentinels with [New] for specific conditions; those match both
// themselves (pointer identity) and their kind sentinel:
//
//	var ErrUnexpectedSequence = rpcerr.New(rpcerr.KindTransport, "unexpected sequence")
//
//	return fmt.Errorf("%w: got %d, want %d", ErrUnexpectedSequence, got, want)
//
//	errors.Is(err, ErrUnexpectedSequence) // true
//	errors.Is(err, rpcerr.ErrTransport)   // true
//
// No layer reports failure through a boolean flag: transport-level
// failures travel the same error path as authentication and decoding
// failures.
package rpcerr
