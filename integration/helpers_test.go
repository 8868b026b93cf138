// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package integration_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/bureau-foundation/tether/backend"
	"github.com/bureau-foundation/tether/lib/certificate"
	"github.com/bureau-foundation/tether/lib/readiness"
	"github.com/bureau-foundation/tether/lib/testutil"
	"github.com/bureau-foundation/tether/rpc"
	"github.com/bureau-foundation/tether/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runningBackend is an in-process backend serving over real TLS.
type runningBackend struct {
	dir      string
	endpoint transport.Endpoint
	server   *backend.Server
	pair     *certificate.KeyPair

	// watcher has seen the backend's readiness line.
	watcher *readiness.Watcher
}

type backendOptions struct {
	dir        string
	http3      bool
	maxClients int
}

// startBackend serves a backend from options.dir (a fresh temporary
// directory when empty) until the test ends. Its readiness line is
// written through a pipe to a watcher, as a launched backend's stdout
// would be.
func startBackend(t *testing.T, options backendOptions) *runningBackend {
	t.Helper()
	if options.dir == "" {
		options.dir = t.TempDir()
	}
	pair, err := certificate.LoadOrGenerate(options.dir, time.Now())
	if err != nil {
		t.Fatalf("LoadOrGenerate: %v", err)
	}

	logger := testLogger()
	server := backend.NewServer(backend.Config{
		Compression: true,
		MaxClients:  options.maxClients,
		Logger:      logger,
	})
	backend.RegisterBuiltins(server)
	service := backend.NewService(backend.ServiceConfig{
		Address:     "127.0.0.1:0",
		Handler:     server,
		Certificate: pair.TLS,
		HTTP3:       options.http3,
		Logger:      logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() { serveDone <- service.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, serveDone, 15*time.Second, "waiting for backend shutdown"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})

	stdoutReader, stdoutWriter := io.Pipe()
	watcher := readiness.NewWatcher(logger)
	go watcher.Consume(stdoutReader)
	go func() {
		<-service.Ready()
		readiness.Announce(stdoutWriter)
		stdoutWriter.Close()
	}()
	testutil.RequireClosed(t, watcher.Ready(), 5*time.Second, "waiting for readiness line")

	return &runningBackend{
		dir: options.dir,
		endpoint: transport.Endpoint{
			Host: "127.0.0.1",
			Port: service.Addr().(*net.TCPAddr).Port,
			Path: backend.DefaultPath,
		},
		server:  server,
		pair:    pair,
		watcher: watcher,
	}
}

// nativeSession bootstraps a session against b over a Native transport
// that loads the backend's certificate file.
func (b *runningBackend) nativeSession(t *testing.T, http3 bool, pins *certificate.PinStore) (*rpc.Session, error) {
	t.Helper()
	cert := certificate.New(b.pair.CertificatePath)
	native := transport.NewNative(transport.NativeConfig{
		Endpoint:    b.endpoint,
		Certificate: cert,
		HTTP3:       http3,
		Timeout:     5 * time.Second,
		Compression: true,
		Logger:      testLogger(),
	})
	t.Cleanup(func() { native.Close() })

	session, err := rpc.New(rpc.Config{Transport: native, Logger: testLogger()})
	if err != nil {
		t.Fatalf("rpc.New: %v", err)
	}
	err = session.Bootstrap(context.Background(), rpc.BootstrapConfig{
		Watcher:     b.watcher,
		Certificate: cert,
		Pins:        pins,
		Endpoint:    b.endpoint.Address(),
	})
	return session, err
}
