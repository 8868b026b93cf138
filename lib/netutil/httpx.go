// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides bounded HTTP body reads and connection
// shutdown classification shared by the transport and the backend.
//
// Every RPC body is read through [ReadBody], which fails with
// [ErrBodyTooLarge] instead of allocating without bound when a peer
// sends more than the limit.
package netutil

import (
	"errors"
	"fmt"
	"io"
)

// MaxBodySize bounds RPC request and response bodies: 16 MB. Envelope
// messages are small; the limit only stops a misbehaving peer from
// exhausting memory.
const MaxBodySize int64 = 16 << 20

// maxErrorBody bounds bodies read only for diagnostics.
const maxErrorBody = 4 << 10

// ErrBodyTooLarge is returned by ReadBody when the body exceeds its
// limit.
var ErrBodyTooLarge = errors.New("body exceeds size limit")

// ReadBody reads all of r, failing with ErrBodyTooLarge if r holds more
// than limit bytes. A limit <= 0 means MaxBodySize.
func ReadBody(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}
	return data, nil
}

// ErrorBody reads the start of an error response body for use in a
// diagnostic message. Read errors are ignored: a partial body is still
// useful.
func ErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return string(data)
}
