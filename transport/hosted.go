// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bureau-foundation/tether/lib/rpcerr"
)

// HostedConfig configures a Hosted transport.
type HostedConfig struct {
	Endpoint Endpoint

	// RoundTripper is the host's network stack. It decides which
	// certificates to trust. Nil means http.DefaultTransport, which
	// under js/wasm is the browser's fetch.
	RoundTripper http.RoundTripper

	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration

	// Compression advertises zstd and lz4 reply encodings.
	Compression bool

	Logger *slog.Logger
}

// Hosted is the transport for a sandboxed content context. It has no
// access to the filesystem and leaves certificate trust to the host.
type Hosted struct {
	url         string
	client      *http.Client
	compression bool
	logger      *slog.Logger

	last lastError
}

var _ Transport = (*Hosted)(nil)

// NewHosted returns a Hosted transport for config.
func NewHosted(config HostedConfig) *Hosted {
	roundTripper := config.RoundTripper
	if roundTripper == nil {
		roundTripper = http.DefaultTransport
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hosted{
		url:         config.Endpoint.URL(),
		client:      &http.Client{Transport: roundTripper, Timeout: timeout},
		compression: config.Compression,
		logger:      logger,
	}
}

// Send delivers call through the host's network stack.
func (h *Hosted) Send(ctx context.Context, call *Call) (*Reply, error) {
	if err := call.Validate(); err != nil {
		return nil, h.last.record(err)
	}
	request, err := newRequest(ctx, h.url, call, h.compression)
	if err != nil {
		return nil, h.last.record(err)
	}

	h.logger.Debug("sending call", "method", call.Method, "sequence", call.Sequence)
	response, err := h.client.Do(request)
	if err != nil {
		h.logger.Debug("call failed", "method", call.Method, "error", err)
		return nil, h.last.record(rpcerr.Transport(fmt.Sprintf("sending %s", call.Method), err))
	}
	reply, err := readReply(response, call.Method)
	if err != nil {
		h.logger.Debug("call failed", "method", call.Method, "error", err)
		return nil, h.last.record(err)
	}
	return reply, nil
}

// LastError returns the most recent Send failure, or nil if no call
// has failed. A later success does not clear it.
func (h *Hosted) LastError() error { return h.last.get() }
