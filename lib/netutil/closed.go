// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/quic-go/quic-go"
)

// IsClosedError reports whether err is the normal result of shutting
// down a server or connection: a closed HTTP or HTTP/3 server, a closed
// listener, EOF, a broken pipe or a reset connection. Serve loops use it
// to tell shutdown from failure.
func IsClosedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, quic.ErrServerClosed) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
