// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration for tether's
// on-disk state.
//
// The RPC envelope itself is protobuf (see lib/envelope) because it is a
// contract shared with the backend. Local state that only tether reads
// and writes, such as the certificate pin store, is CBOR. The encoder
// uses Core Deterministic Encoding (RFC 8949 §4.2): sorted map keys,
// smallest integer encoding, no indefinite-length items. Same logical
// data always produces identical bytes, so a rewritten state file only
// changes when its contents do.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Types serialized only through this package use `cbor` struct tags.
package codec
