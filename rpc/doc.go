// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpc is the client side of the tether RPC channel: a
// [Session] that signs every request, checks the sequence and signature
// of every response, and bootstraps itself against a freshly started
// backend.
//
// A session moves through three phases:
//
//  1. Readiness. [Session.WaitForReady] probes the backend with
//     SERVICE-READY on a fixed interval until it answers "OK" or the
//     attempt budget runs out. Probes are unsigned and carry no
//     sequence number.
//  2. Key exchange. [Session.KeyExchange] sends the session's Ed25519
//     public key. The backend answers with its own key and a client
//     token. The answer can only be verified with the key it carries,
//     so it is verified after the key is installed, and the whole
//     exchange is rolled back if that check fails.
//  3. Traffic. [Session.Request] signs the envelope bytes and sends
//     them with the next send sequence number. The response must carry
//     the next receive sequence number and a valid backend signature;
//     anything else is rejected without advancing the counter.
//
// [Session.Bootstrap] runs all three after waiting for the backend's
// readiness line and loading (and pinning) its certificate.
//
// A session serialises its authenticated traffic: one request is in
// flight at a time and concurrent callers queue. Sessions share nothing;
// a process may hold several.
//
// A response lost after the backend sent it leaves the two sides out of
// step: the backend's response counter has moved and the session's has
// not, so every later response fails with [ErrUnexpectedSequence]. The
// only recovery is a new session.
package rpc
