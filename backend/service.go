// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"

	"github.com/bureau-foundation/tether/lib/netutil"
)

// ServiceConfig configures a Service.
type ServiceConfig struct {
	// Address is the TCP (and, with HTTP3, UDP) listen address.
	// Required.
	Address string

	// Handler serves every request. Required.
	Handler http.Handler

	// Certificate is the TLS certificate presented to clients.
	// Required.
	Certificate tls.Certificate

	// HTTP3 also serves HTTP/3 on the UDP port matching the bound TCP
	// port.
	HTTP3 bool

	// ShutdownTimeout bounds graceful shutdown. Defaults to 10
	// seconds.
	ShutdownTimeout time.Duration

	// Logger is required.
	Logger *slog.Logger
}

// Service serves a handler over HTTPS. Serve blocks until its context
// is cancelled and in-flight requests drain.
type Service struct {
	address         string
	handler         http.Handler
	certificate     tls.Certificate
	http3           bool
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// ready is closed once the listeners are bound.
	ready chan struct{}

	// addr is the bound TCP address, valid after ready is closed.
	addr net.Addr
}

// NewService returns a Service for config. It panics if a required
// field is missing.
func NewService(config ServiceConfig) *Service {
	if config.Address == "" {
		panic("backend.Service: Address is required")
	}
	if config.Handler == nil {
		panic("backend.Service: Handler is required")
	}
	if config.Certificate.Certificate == nil {
		panic("backend.Service: Certificate is required")
	}
	if config.Logger == nil {
		panic("backend.Service: Logger is required")
	}
	timeout := config.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Service{
		address:         config.Address,
		handler:         config.Handler,
		certificate:     config.Certificate,
		http3:           config.HTTP3,
		shutdownTimeout: timeout,
		logger:          config.Logger,
		ready:           make(chan struct{}),
	}
}

// Ready is closed once the service is accepting connections.
func (s *Service) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound TCP address. Only valid after Ready is closed.
func (s *Service) Addr() net.Addr { return s.addr }

// Serve binds the listeners and serves until ctx is cancelled.
func (s *Service) Serve(ctx context.Context) error {
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{s.certificate},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"h2", "http/1.1"},
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()

	var packetConn net.PacketConn
	if s.http3 {
		// Same port as TCP so that a port-0 address resolves once.
		packetConn, err = net.ListenPacket("udp", s.addr.String())
		if err != nil {
			listener.Close()
			return fmt.Errorf("listening on udp %s: %w", s.addr, err)
		}
	}

	server := &http.Server{
		Handler:           s.handler,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
	}

	serveDone := make(chan error, 2)
	go func() {
		serveDone <- server.Serve(tls.NewListener(listener, tlsConfig))
	}()

	var quicServer *http3.Server
	if packetConn != nil {
		quicServer = &http3.Server{
			Handler:   s.handler,
			TLSConfig: http3.ConfigureTLSConfig(tlsConfig.Clone()),
			QUICConfig: &quic.Config{
				MaxIdleTimeout:  60 * time.Second,
				KeepAlivePeriod: 15 * time.Second,
			},
		}
		go func() {
			serveDone <- quicServer.Serve(packetConn)
		}()
	}

	s.logger.Info("backend listening", "address", s.addr.String(), "http3", s.http3)
	close(s.ready)

	select {
	case <-ctx.Done():
		s.logger.Info("backend shutting down")
	case err := <-serveDone:
		if !netutil.IsClosedError(err) {
			server.Close()
			s.stopQUIC(quicServer, packetConn)
			return fmt.Errorf("serving: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.stopQUIC(quicServer, packetConn)
	if err := server.Shutdown(shutdownCtx); err != nil && !netutil.IsClosedError(err) {
		s.logger.Error("backend shutdown error", "error", err)
		return fmt.Errorf("https shutdown: %w", err)
	}
	s.logger.Info("backend stopped")
	return nil
}

// stopQUIC closes the HTTP/3 server and the UDP socket it was serving.
// The server does not own a socket passed to Serve, so both are closed.
func (s *Service) stopQUIC(quicServer *http3.Server, packetConn net.PacketConn) {
	if quicServer != nil {
		if err := quicServer.Close(); err != nil && !netutil.IsClosedError(err) {
			s.logger.Warn("http3 close error", "error", err)
		}
	}
	if packetConn != nil {
		if err := packetConn.Close(); err != nil && !netutil.IsClosedError(err) {
			s.logger.Warn("udp close error", "error", err)
		}
	}
}
