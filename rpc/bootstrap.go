// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/tether/lib/certificate"
	"github.com/bureau-foundation/tether/lib/readiness"
)

// BootstrapConfig names what Bootstrap waits for and loads. Every
// field is optional.
type BootstrapConfig struct {
	// Watcher reports the backend's readiness line. Nil skips the
	// wait, for a backend this process did not start.
	Watcher *readiness.Watcher

	// Certificate is loaded before the first authenticated call. Nil
	// for a Hosted transport, where the host owns certificate trust.
	Certificate *certificate.Certificate

	// Pins, when set together with Certificate, records the
	// certificate's fingerprint for Endpoint on first use and rejects
	// a different certificate afterwards.
	Pins     *certificate.PinStore
	Endpoint string

	// Fingerprint, when non-zero, is the fingerprint the certificate
	// must have, obtained out of band. It is checked before any pin.
	Fingerprint certificate.Fingerprint
}

// Bootstrap brings a new session to the Trusted state: it waits for the
// readiness line, loads and checks the certificate, probes the backend
// and performs key exchange. Any error is fatal to the session.
func (s *Session) Bootstrap(ctx context.Context, config BootstrapConfig) error {
	if config.Watcher != nil {
		if err := config.Watcher.Wait(ctx); err != nil {
			return s.fail(err)
		}
	}

	if config.Certificate != nil {
		if err := config.Certificate.Load(); err != nil {
			return s.fail(fmt.Errorf("loading backend certificate: %w", err))
		}
		if !config.Fingerprint.IsZero() || config.Pins != nil {
			if err := s.checkPin(config); err != nil {
				return s.fail(err)
			}
		}
	}

	if err := s.WaitForReady(ctx); err != nil {
		return err
	}
	return s.KeyExchange(ctx)
}

func (s *Session) checkPin(config BootstrapConfig) error {
	fingerprint, err := config.Certificate.Fingerprint()
	if err != nil {
		return fmt.Errorf("fingerprinting backend certificate: %w", err)
	}
	if !config.Fingerprint.IsZero() && fingerprint != config.Fingerprint {
		return fmt.Errorf("%w: got %s, want %s", certificate.ErrPinMismatch, fingerprint, config.Fingerprint)
	}
	if config.Pins == nil {
		return nil
	}
	firstUse, err := config.Pins.Check(config.Endpoint, fingerprint)
	if err != nil {
		return fmt.Errorf("checking certificate pin for %s: %w", config.Endpoint, err)
	}
	if firstUse {
		s.logger.Info("pinned backend certificate", "endpoint", config.Endpoint, "fingerprint", fingerprint.String())
	}
	return nil
}
