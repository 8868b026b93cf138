// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"github.com/bureau-foundation/tether/lib/certificate"
	"github.com/bureau-foundation/tether/lib/rpcerr"
)

// DefaultTimeout bounds one call, including connection setup, when the
// configuration does not set a timeout.
const DefaultTimeout = 30 * time.Second

// NativeConfig configures a Native transport.
type NativeConfig struct {
	Endpoint Endpoint

	// Certificate is the backend certificate. Required. Native trusts
	// nothing else once it is loaded.
	Certificate *certificate.Certificate

	// HTTP3 selects HTTP/3 over QUIC instead of HTTP/1.1 (or HTTP/2
	// when the server offers it).
	HTTP3 bool

	// Timeout bounds each call. Zero means DefaultTimeout.
	Timeout time.Duration

	// Compression advertises zstd and lz4 reply encodings.
	Compression bool

	Logger *slog.Logger
}

// Native is the process-level HTTPS transport with direct control over
// certificate trust.
type Native struct {
	url         string
	certificate *certificate.Certificate
	http3       bool
	timeout     time.Duration
	compression bool
	logger      *slog.Logger

	mu     sync.Mutex
	probe  *http.Client
	strict *http.Client
	closed bool

	last lastError
}

var _ Transport = (*Native)(nil)

// NewNative returns a Native transport for config. It panics if
// config.Certificate is nil.
func NewNative(config NativeConfig) *Native {
	if config.Certificate == nil {
		panic("transport.NewNative: Certificate is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Native{
		url:         config.Endpoint.URL(),
		certificate: config.Certificate,
		http3:       config.HTTP3,
		timeout:     config.Timeout,
		compression: config.Compression,
		logger:      logger,
	}
}

// Send delivers call to the backend. Before the certificate is loaded
// only MethodReady may be sent, and the server's certificate is not
// verified for it.
func (n *Native) Send(ctx context.Context, call *Call) (*Reply, error) {
	if err := call.Validate(); err != nil {
		return nil, n.last.record(err)
	}
	client, err := n.client(call.Method)
	if err != nil {
		return nil, n.last.record(err)
	}
	request, err := newRequest(ctx, n.url, call, n.compression)
	if err != nil {
		return nil, n.last.record(err)
	}

	n.logger.Debug("sending call", "method", call.Method, "sequence", call.Sequence)
	response, err := client.Do(request)
	if err != nil {
		n.logger.Debug("call failed", "method", call.Method, "error", err)
		return nil, n.last.record(rpcerr.Transport(fmt.Sprintf("sending %s", call.Method), err))
	}
	reply, err := readReply(response, call.Method)
	if err != nil {
		n.logger.Debug("call failed", "method", call.Method, "error", err)
		return nil, n.last.record(err)
	}
	return reply, nil
}

// LastError returns the most recent Send failure, or nil if no call
// has failed. A later success does not clear it.
func (n *Native) LastError() error { return n.last.get() }

// Close releases idle connections. Send fails after Close.
func (n *Native) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	var firstErr error
	for _, client := range []*http.Client{n.probe, n.strict} {
		if client == nil {
			continue
		}
		if err := closeClient(client); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	n.probe, n.strict = nil, nil
	return firstErr
}

// client returns the HTTP client for method, building it on first use.
func (n *Native) client(method string) (*http.Client, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, rpcerr.Transport("transport is closed", nil)
	}

	if n.certificate.Loaded() {
		if n.strict == nil {
			pool, err := n.certificate.Pool()
			if err != nil {
				return nil, err
			}
			n.strict = n.newClient(&tls.Config{
				RootCAs:    pool,
				MinVersion: tls.VersionTLS12,
			})
			n.logger.Debug("trusting loaded backend certificate", "path", n.certificate.Path())
		}
		return n.strict, nil
	}

	if method != MethodReady {
		return nil, fmt.Errorf("%w: cannot send %s", certificate.ErrNotLoaded, method)
	}
	if n.probe == nil {
		n.probe = n.newClient(&tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		})
	}
	return n.probe, nil
}

func (n *Native) newClient(tlsConfig *tls.Config) *http.Client {
	var roundTripper http.RoundTripper
	if n.http3 {
		roundTripper = &http3.Transport{
			TLSClientConfig: tlsConfig,
			QUICConfig: &quic.Config{
				MaxIdleTimeout:  n.timeout,
				KeepAlivePeriod: n.timeout / 2,
			},
		}
	} else {
		roundTripper = &http.Transport{
			TLSClientConfig:     tlsConfig,
			ForceAttemptHTTP2:   true,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: n.timeout,
		}
	}
	return &http.Client{Transport: roundTripper, Timeout: n.timeout}
}

func closeClient(client *http.Client) error {
	switch roundTripper := client.Transport.(type) {
	case *http3.Transport:
		return roundTripper.Close()
	case *http.Transport:
		roundTripper.CloseIdleConnections()
	}
	return nil
}
