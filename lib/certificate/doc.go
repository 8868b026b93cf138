// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package certificate manages the backend's self-signed TLS certificate
// on both sides of the channel.
//
// The backend generates an ECDSA P-256 certificate covering every local
// name and address on first run and writes it to its data directory
// ([LoadOrGenerate]). Later runs reuse the same certificate, so a pin
// recorded by the front-end stays valid.
//
// The front-end reads that file once the backend has announced
// readiness ([Certificate.Load]). Loading happens at most once per
// [Certificate]: a failure is permanent and every later call returns
// the same error. A loaded certificate becomes the only trust root for
// the native transport.
//
// Trust on first use is implemented by [PinStore]: the BLAKE3
// [Fingerprint] of the certificate seen for an endpoint the first time
// is recorded, and a different certificate for that endpoint later is
// refused until the pin is explicitly forgotten.
package certificate
