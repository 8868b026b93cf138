// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope encodes and decodes the RPC envelope messages
// exchanged between the front-end and the backend.
//
// The wire format is the protocol-buffer binary encoding: each field is
// a tag (field number and wire type) followed by its value. Strings,
// byte strings and nested messages are length-delimited; integers are
// varints. Zero values are omitted on encode and absent fields decode
// to their zero value. Unknown fields of any wire type are skipped so
// that either side can add fields without breaking the other.
//
// The schema is a fixed contract shared with the backend, so messages
// are hand-written types implementing [Message] over
// google.golang.org/protobuf/encoding/protowire rather than generated
// code. Every message round-trips: decoding the encoding of a value
// yields an equal value.
//
// The package also carries the backend's status vocabulary: every
// response has a [ResponseHeader] with a [Code], a [Scope] and a status
// string, and [ResponseHeader.Err] turns a failure status into a
// [*StatusError].
package envelope
