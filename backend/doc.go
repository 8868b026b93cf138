// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend is the server side of the tether RPC channel.
//
// [Server] is an http.Handler for the single RPC path. It answers the
// readiness probe, runs key exchange, and dispatches every other call to
// a registered [Handler] after checking the caller's token, sequence
// number and signature.
//
// Key exchange gives each client its own record: a random client
// token, a fresh Ed25519 keypair the backend signs that client's
// responses with, the client's verification key, and two counters.
// The key exchange request carries the key that verifies it, so the
// backend checks it against that key. Records live in a bounded LRU;
// a client evicted from it must exchange keys again.
//
// Request sequence numbers must increase: a number at or below the
// last accepted one is a replay and is refused. Gaps are allowed
// because clients consume a number for every attempt, including ones
// that never reached the backend. Responses are numbered 1, 2, 3, ...
// per client, and every response to an authenticated call is signed,
// including error responses.
//
// Status codes:
//
//	405  method other than POST
//	404  path other than the RPC path
//	400  malformed headers or body
//	401  unknown token, bad or replayed sequence, missing or invalid signature
//	200  everything else; handler failures travel in the signed
//	     response header
//
// [Service] serves a Server over TLS, and optionally over HTTP/3 on the
// same port.
package backend
