// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity holds the Ed25519 signing identity of one RPC session.
//
// An [Identity] is generated once per session and never persisted or
// mutated: the private key signs every outgoing request payload, and
// the public key travels to the backend exactly once, inside the key
// exchange request, so the backend can verify later requests.
//
// [Verify] is the single verification primitive used by both ends of
// the channel. The client's trust store verifies backend responses with
// it, and the backend verifies client requests with it.
package identity
