// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trust holds what a session has learned about the backend
// through key exchange: the backend's Ed25519 verification key and the
// session token the backend issued.
//
// A [Store] is a two-state machine:
//
//	Untrusted --(CompleteKeyExchange verifies)--> Trusted
//
// There is no transition back. While Untrusted the store has no key,
// its client token is [EmptyToken], and [Store.Verify] rejects every
// input: verification fails closed.
//
// Key exchange is the one place where contents are read before they are
// verified. The key exchange response carries the very key needed to
// verify it, so [Store.CompleteKeyExchange] installs the key and token
// provisionally, verifies the response with the new key, and reverts
// to Untrusted if that fails. Keeping this inside the store makes the
// exception a single, testable transition instead of a special case at
// every call site.
package trust
