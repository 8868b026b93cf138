// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries RPC envelopes between the front-end and the
// backend over HTTPS.
//
// A [Transport] sends one [Call] and returns one [Reply]. It knows the
// wire format but nothing about sessions: sequence numbers, tokens and
// signatures arrive already computed in the Call, and the Reply's
// headers are handed back for the session to verify.
//
// # Wire format
//
// Every call is a POST to a single path. Metadata travels in headers:
//
//	Request-Method     method name
//	Message-Sequence   decimal sequence number
//	Client-Token       backend-issued session token ("Empty" before key exchange)
//	Message-Signature  hex Ed25519 signature of the raw envelope bytes
//
// The request body is the hex encoding of the envelope bytes, or empty
// for a call without a payload. A successful reply body is the base64
// encoding of the response envelope; its Message-Signature header is the
// base64 signature of the raw envelope bytes, and it echoes
// Request-Method and carries its own Message-Sequence. The readiness
// probe ([MethodReady]) is answered with the plain body "OK".
//
// Both ends use this package: [ParseCall] and [WriteReply] are the
// server side of the same format.
//
// # Variants
//
// [Native] is the process-level HTTPS client. It trusts only the
// backend certificate loaded from disk, and optionally speaks HTTP/3.
// Until the certificate is loaded it sends nothing but the readiness
// probe, with certificate verification relaxed.
//
// [Hosted] runs inside a sandboxed content context and delegates to an
// http.RoundTripper supplied by the host, whose network stack enforces
// certificate trust. It never touches the filesystem.
//
// # Errors
//
// A malformed Call fails with an rpcerr protocol error before any I/O.
// Network, TLS and timeout failures, and replies with a status other
// than 200, are rpcerr transport errors. Each transport also keeps the
// most recent failure for later inspection ([Native.LastError]).
package transport
