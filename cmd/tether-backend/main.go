// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// tether-backend serves the tether RPC channel over HTTPS.
//
// On first run it generates a self-signed certificate in the data
// directory and reuses it afterwards, so front-ends that pin it keep
// trusting it. Once the listener is bound it writes the readiness line
// to stdout; a supervising front-end waits for that line before
// probing. Logs go to stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tether/backend"
	"github.com/bureau-foundation/tether/internal/cli"
	"github.com/bureau-foundation/tether/lib/certificate"
	"github.com/bureau-foundation/tether/lib/readiness"
	"github.com/bureau-foundation/tether/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var flags cli.CommonFlags
	var listen string
	var http3 bool

	flagSet := pflag.NewFlagSet("tether-backend", pflag.ContinueOnError)
	flags.Register(flagSet)
	flagSet.StringVar(&listen, "listen", "", "listen address (overrides backend.listen)")
	flagSet.BoolVar(&http3, "http3", false, "also serve HTTP/3 (overrides backend.http3)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.ShowVersion {
		version.Print(os.Stdout, "tether-backend")
		return nil
	}

	cfg, logger, err := flags.Setup()
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Backend.Listen = listen
	}
	if flagSet.Changed("http3") {
		cfg.Backend.HTTP3 = http3
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pair, err := certificate.LoadOrGenerate(cfg.Paths.DataDir, time.Now())
	if err != nil {
		return fmt.Errorf("preparing certificate: %w", err)
	}
	logger.Info("serving certificate",
		"path", pair.CertificatePath,
		"fingerprint", pair.Fingerprint.String(),
		"generated", pair.Generated,
	)

	server := backend.NewServer(backend.Config{
		Path:        cfg.Endpoint.Path,
		MaxClients:  cfg.Backend.MaxClients,
		Compression: cfg.Backend.Compression,
		Logger:      logger,
	})
	backend.RegisterBuiltins(server)

	service := backend.NewService(backend.ServiceConfig{
		Address:     cfg.Backend.Listen,
		Handler:     server,
		Certificate: pair.TLS,
		HTTP3:       cfg.Backend.HTTP3,
		Logger:      logger,
	})

	serveDone := make(chan error, 1)
	go func() { serveDone <- service.Serve(ctx) }()

	select {
	case <-service.Ready():
	case err := <-serveDone:
		return err
	}
	if err := readiness.Announce(os.Stdout); err != nil {
		return fmt.Errorf("announcing readiness: %w", err)
	}

	return <-serveDone
}
