// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// tether-call bootstraps a tether session and invokes one method.
//
// With --launch it starts the backend itself and waits for its
// readiness line; otherwise it expects a backend already listening on
// the configured endpoint. The call sends an EchoRequest carrying
// --payload and prints the payload of the EchoResponse to stdout.
//
//	tether-call --launch tether-backend --method Ping --payload hello
//
// --list-pins and --forget-pin manage the certificate pin store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tether/internal/cli"
	"github.com/bureau-foundation/tether/lib/certificate"
	"github.com/bureau-foundation/tether/lib/config"
	"github.com/bureau-foundation/tether/lib/envelope"
	"github.com/bureau-foundation/tether/lib/readiness"
	"github.com/bureau-foundation/tether/lib/version"
	"github.com/bureau-foundation/tether/rpc"
	"github.com/bureau-foundation/tether/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	launch     string
	method     string
	payload    string
	listPins   bool
	forgetPin  bool
	skipPinned bool
	expect     string
}

func run() error {
	var flags cli.CommonFlags
	var opts options

	flagSet := pflag.NewFlagSet("tether-call", pflag.ContinueOnError)
	flags.Register(flagSet)
	flagSet.StringVar(&opts.launch, "launch", "", "start this backend command (space-separated) and wait for its readiness line")
	flagSet.StringVarP(&opts.method, "method", "m", "Ping", "method to call")
	flagSet.StringVarP(&opts.payload, "payload", "p", "", "payload of the EchoRequest")
	flagSet.BoolVar(&opts.listPins, "list-pins", false, "list pinned certificate fingerprints and exit")
	flagSet.BoolVar(&opts.forgetPin, "forget-pin", false, "forget the pinned certificate for the configured endpoint and exit")
	flagSet.BoolVar(&opts.skipPinned, "no-pin", false, "do not check or record the certificate pin")
	flagSet.StringVar(&opts.expect, "fingerprint", "", "require the backend certificate to have this hex fingerprint")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if flags.ShowVersion {
		version.Print(os.Stdout, "tether-call")
		return nil
	}

	cfg, logger, err := flags.Setup()
	if err != nil {
		return err
	}

	if opts.listPins || opts.forgetPin {
		return managePins(cfg, opts)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var watcher *readiness.Watcher
	if opts.launch != "" {
		watcher, err = launch(ctx, opts.launch, logger)
		if err != nil {
			return err
		}
		waitCtx, cancel := context.WithTimeout(ctx, cfg.Readiness.Timeout.Std())
		err = watcher.Wait(waitCtx)
		cancel()
		if err != nil {
			return err
		}
	}

	bootstrap := rpc.BootstrapConfig{Watcher: watcher, Endpoint: cfg.Endpoint.Address()}
	endpoint := transport.Endpoint{Host: cfg.Endpoint.Host, Port: cfg.Endpoint.Port, Path: cfg.Endpoint.Path}
	var t transport.Transport
	switch cfg.Transport.Mode {
	case config.ModeHosted:
		t = transport.NewHosted(transport.HostedConfig{
			Endpoint:    endpoint,
			Timeout:     cfg.Transport.Timeout.Std(),
			Compression: cfg.Transport.Compression,
			Logger:      logger,
		})
	default:
		cert := certificate.New(cfg.Paths.Certificate)
		native := transport.NewNative(transport.NativeConfig{
			Endpoint:    endpoint,
			Certificate: cert,
			HTTP3:       cfg.Transport.Protocol == config.ProtocolHTTP3,
			Timeout:     cfg.Transport.Timeout.Std(),
			Compression: cfg.Transport.Compression,
			Logger:      logger,
		})
		defer native.Close()
		t = native
		bootstrap.Certificate = cert
		if opts.expect != "" {
			bootstrap.Fingerprint, err = certificate.ParseFingerprint(opts.expect)
			if err != nil {
				return fmt.Errorf("--fingerprint: %w", err)
			}
		}
		if cfg.Paths.Pins != "" && !opts.skipPinned {
			pins, err := certificate.OpenPinStore(cfg.Paths.Pins)
			if err != nil {
				return err
			}
			bootstrap.Pins = pins
		}
	}

	session, err := rpc.New(rpc.Config{
		Transport:     t,
		ReadyAttempts: cfg.Readiness.Attempts,
		ReadyInterval: cfg.Readiness.Interval.Std(),
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	if err := session.Bootstrap(ctx, bootstrap); err != nil {
		return fmt.Errorf("bootstrapping session: %w", err)
	}

	var response envelope.EchoResponse
	request := &envelope.EchoRequest{Payload: []byte(opts.payload)}
	if err := rpc.Call(ctx, session, opts.method, request, &response); err != nil {
		return fmt.Errorf("calling %s: %w", opts.method, err)
	}
	fmt.Println(string(response.Payload))
	return nil
}

// launch starts the backend command with its stdout feeding a readiness
// watcher. The process is killed when ctx is done.
func launch(ctx context.Context, command string, logger *slog.Logger) (*readiness.Watcher, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("--launch: empty command")
	}
	backend := exec.CommandContext(ctx, fields[0], fields[1:]...)
	backend.Stderr = os.Stderr
	backend.WaitDelay = 5 * time.Second
	stdout, err := backend.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("--launch: %w", err)
	}
	if err := backend.Start(); err != nil {
		return nil, fmt.Errorf("starting backend: %w", err)
	}
	logger.Info("started backend", "command", command, "pid", backend.Process.Pid)

	watcher := readiness.NewWatcher(logger)
	go func() {
		if err := watcher.Consume(stdout); err != nil {
			logger.Warn("reading backend output", "error", err)
		}
		watcher.MarkExited(backend.Wait())
	}()
	return watcher, nil
}

func managePins(cfg *config.Config, opts options) error {
	if cfg.Paths.Pins == "" {
		return errors.New("certificate pinning is disabled (paths.pins is empty)")
	}
	pins, err := certificate.OpenPinStore(cfg.Paths.Pins)
	if err != nil {
		return err
	}
	if opts.forgetPin {
		return pins.Forget(cfg.Endpoint.Address())
	}
	for _, pin := range pins.List() {
		fmt.Printf("%s\t%s\t%s\n", pin.Endpoint, pin.Fingerprint, pin.FirstSeen.Format(time.RFC3339))
	}
	return nil
}
