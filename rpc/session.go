// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/tether/lib/clock"
	"github.com/bureau-foundation/tether/lib/envelope"
	"github.com/bureau-foundation/tether/lib/identity"
	"github.com/bureau-foundation/tether/lib/readiness"
	"github.com/bureau-foundation/tether/lib/rpcerr"
	"github.com/bureau-foundation/tether/lib/trust"
	"github.com/bureau-foundation/tether/transport"
)

// Readiness polling defaults: eleven probes one second apart.
const (
	DefaultReadyAttempts = 11
	DefaultReadyInterval = time.Second
)

var (
	// ErrNoTransport is returned when an operation needs the backend
	// and no transport has been attached.
	ErrNoTransport = rpcerr.New(rpcerr.KindService, "no transport attached")

	// ErrNotReady is returned when the readiness budget is exhausted.
	ErrNotReady = readiness.ErrNotReady

	// ErrReservedMethod is returned by Request for the key exchange
	// and readiness methods, which have their own operations.
	ErrReservedMethod = rpcerr.New(rpcerr.KindProtocol, "method is reserved")

	// ErrUnexpectedSequence is returned when a response's
	// Message-Sequence is not the next receive sequence number. The
	// receive counter is left where it was.
	ErrUnexpectedSequence = rpcerr.New(rpcerr.KindTransport, "unexpected sequence")

	// ErrMissingSequence is returned for a response without a
	// Message-Sequence header.
	ErrMissingSequence = rpcerr.New(rpcerr.KindTransport, "missing sequence")

	// ErrMissingSignature is returned for a response without a
	// Message-Signature header.
	ErrMissingSignature = rpcerr.New(rpcerr.KindTransport, "missing signature")

	// ErrInvalidSignature is a transport error; the underlying
	// identity error also makes it match rpcerr.ErrAuthentication.
	ErrInvalidSignature = rpcerr.New(rpcerr.KindTransport, "invalid signature")

	// ErrKeyExchangeRejected is returned when the backend answers a key
	// exchange with a correctly signed error status. Like every key
	// exchange failure it is fatal to the session.
	ErrKeyExchangeRejected = rpcerr.New(rpcerr.KindAuthentication, "backend rejected key exchange")
)

// Config configures a Session.
type Config struct {
	// Identity is the session's signing identity. Nil generates a
	// fresh one.
	Identity *identity.Identity

	// Transport may be nil and attached later with Attach.
	Transport transport.Transport

	// Clock drives readiness polling. Nil means clock.Real().
	Clock clock.Clock

	// ReadyAttempts is the total number of readiness probes. Zero
	// means DefaultReadyAttempts.
	ReadyAttempts int

	// ReadyInterval is the spacing between readiness probes. Zero
	// means DefaultReadyInterval.
	ReadyInterval time.Duration

	// Logger receives readiness, key exchange and rejection events.
	// Nil discards them.
	Logger *slog.Logger
}

// Session is one client's signed channel to the backend.
type Session struct {
	identity *identity.Identity
	trust    *trust.Store
	clock    clock.Clock
	attempts int
	interval time.Duration
	logger   *slog.Logger

	// mu serialises KeyExchange, Request and Verify, and guards the
	// fields below.
	mu          sync.Mutex
	transport   transport.Transport
	sendCounter uint64
	recvCounter uint64
	lastErr     error
}

// New creates a session. It fails only if a fresh identity cannot be
// generated.
func New(config Config) (*Session, error) {
	id := config.Identity
	if id == nil {
		var err error
		id, err = identity.Generate()
		if err != nil {
			return nil, rpcerr.Service("creating session identity", err)
		}
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	attempts := config.ReadyAttempts
	if attempts <= 0 {
		attempts = DefaultReadyAttempts
	}
	interval := config.ReadyInterval
	if interval <= 0 {
		interval = DefaultReadyInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		identity:  id,
		trust:     trust.NewStore(),
		clock:     clk,
		attempts:  attempts,
		interval:  interval,
		logger:    logger,
		transport: config.Transport,
	}, nil
}

// Attach sets the transport used by later operations.
func (s *Session) Attach(t transport.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = t
}

// WaitForReady probes the backend until it answers the readiness probe,
// sending at most the configured number of probes at the configured
// interval. It returns nil on the first success and an error matching
// ErrNotReady when every probe has failed or ctx is done first.
func (s *Session) WaitForReady(ctx context.Context) error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return s.fail(ErrNoTransport)
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = probe(ctx, t)
		if lastErr == nil {
			s.logger.Debug("backend ready", "attempt", attempt)
			return nil
		}
		s.logger.Debug("readiness probe failed", "attempt", attempt, "error", lastErr)
		if attempt == s.attempts {
			break
		}

		timer := s.clock.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return s.fail(fmt.Errorf("%w: %w", ErrNotReady, context.Cause(ctx)))
		case <-timer.C:
		}
	}
	return s.fail(fmt.Errorf("%w after %d probes: %w", ErrNotReady, s.attempts, lastErr))
}

func probe(ctx context.Context, t transport.Transport) error {
	reply, err := t.Send(ctx, &transport.Call{Method: transport.MethodReady})
	if err != nil {
		return err
	}
	if string(reply.Body) != transport.ProbeReply {
		return rpcerr.Protocol(fmt.Sprintf("readiness probe answered %q", reply.Body), nil)
	}
	return nil
}

// KeyExchange sends the session's public key and installs the backend's
// key and client token from the signed answer. The answer must carry
// sequence 0. The counters are not touched.
func (s *Session) KeyExchange(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport == nil {
		return s.failLocked(ErrNoTransport)
	}
	if s.trust.State() == trust.Trusted {
		return s.failLocked(trust.ErrAlreadyTrusted)
	}

	payload := envelope.Marshal(&envelope.KeyExchangeRequest{
		Header:    &envelope.RequestHeader{Method: transport.MethodKeyExchange},
		PublicKey: s.identity.PublicKey(),
	})
	reply, err := s.transport.Send(ctx, &transport.Call{
		Method:      transport.MethodKeyExchange,
		ClientToken: trust.EmptyToken,
		Payload:     payload,
		Signature:   s.identity.Sign(payload),
	})
	if err != nil {
		return s.failLocked(fmt.Errorf("key exchange: %w", err))
	}

	if err := s.completeKeyExchange(reply); err != nil {
		s.logger.Warn("key exchange failed", "error", err)
		return s.failLocked(err)
	}

	s.logger.Info("key exchange complete")
	return nil
}

// completeKeyExchange checks a key exchange reply and installs its key
// and token. Every failure matches trust.ErrKeyExchangeInvalid except a
// correctly signed error status, which matches ErrKeyExchangeRejected.
// The status is only acted on once the signature over it has been
// checked against the key the reply carries.
func (s *Session) completeKeyExchange(reply *transport.Reply) error {
	if err := checkSequence(reply, 0); err != nil {
		return fmt.Errorf("%w: %w", trust.ErrKeyExchangeInvalid, err)
	}
	signature, err := replySignature(reply)
	if err != nil {
		return fmt.Errorf("%w: %w", trust.ErrKeyExchangeInvalid, err)
	}
	var response envelope.KeyExchangeResponse
	if err := envelope.Unmarshal(reply.Body, &response); err != nil {
		return fmt.Errorf("%w: %w", trust.ErrKeyExchangeInvalid, err)
	}
	if statusErr := response.Header.Err(); statusErr != nil {
		if err := identity.Verify(response.PublicKey, reply.Body, signature); err != nil {
			return fmt.Errorf("%w: %w", trust.ErrKeyExchangeInvalid, err)
		}
		return fmt.Errorf("%w: %w", ErrKeyExchangeRejected, statusErr)
	}
	return s.trust.CompleteKeyExchange(response.PublicKey, response.Token, reply.Body, signature)
}

// Request signs payload, sends it as method with the next send
// sequence number, verifies the response and returns its body. It
// fails closed until key exchange has completed. A nil or empty payload
// is sent as an empty, signed body.
//
// The send counter advances before each attempt, so a failed attempt
// consumes its sequence number. The receive counter advances only for
// a verified response.
func (s *Session) Request(ctx context.Context, method string, payload []byte) ([]byte, error) {
	if method == transport.MethodKeyExchange || method == transport.MethodReady {
		return nil, s.fail(fmt.Errorf("%w: %s", ErrReservedMethod, method))
	}

	if payload == nil {
		payload = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transport == nil {
		return nil, s.failLocked(ErrNoTransport)
	}
	if s.trust.State() != trust.Trusted {
		return nil, s.failLocked(trust.ErrUntrusted)
	}

	call := &transport.Call{
		Method:      method,
		ClientToken: s.trust.ClientToken(),
		Payload:     payload,
		Signature:   s.identity.Sign(payload),
	}
	if err := call.Validate(); err != nil {
		return nil, s.failLocked(err)
	}

	s.sendCounter++
	call.Sequence = s.sendCounter
	reply, err := s.transport.Send(ctx, call)
	if err != nil {
		return nil, s.failLocked(err)
	}
	if err := s.verifyLocked(reply); err != nil {
		s.logger.Warn("rejected response", "method", method, "error", err)
		return nil, s.failLocked(err)
	}
	return reply.Body, nil
}

// Verify checks reply against the session's receive counter and the
// backend key, advancing the receive counter by one on success.
func (s *Session) Verify(reply *transport.Reply) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.verifyLocked(reply); err != nil {
		return s.failLocked(err)
	}
	return nil
}

// verifyLocked checks, in order: trust state, sequence, signature
// presence, signature validity.
func (s *Session) verifyLocked(reply *transport.Reply) error {
	if s.trust.State() != trust.Trusted {
		return trust.ErrUntrusted
	}
	if err := checkSequence(reply, s.recvCounter+1); err != nil {
		return err
	}
	signature, err := replySignature(reply)
	if err != nil {
		return err
	}
	if err := s.trust.Verify(reply.Body, signature); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	s.recvCounter++
	return nil
}

func checkSequence(reply *transport.Reply, want uint64) error {
	sequence, present, err := reply.Sequence()
	if err != nil {
		return err
	}
	if !present {
		return ErrMissingSequence
	}
	if sequence != want {
		return fmt.Errorf("%w: got %d, want %d", ErrUnexpectedSequence, sequence, want)
	}
	return nil
}

func replySignature(reply *transport.Reply) ([]byte, error) {
	signature, err := reply.Signature()
	if err != nil {
		return nil, err
	}
	if signature == nil {
		return nil, ErrMissingSignature
	}
	return signature, nil
}

// Counters returns the send and receive sequence counters.
func (s *Session) Counters() (send, recv uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCounter, s.recvCounter
}

// TrustState reports whether key exchange has completed.
func (s *Session) TrustState() trust.State { return s.trust.State() }

// ClientToken returns the backend-issued token, or trust.EmptyToken
// before key exchange.
func (s *Session) ClientToken() string { return s.trust.ClientToken() }

// PublicKey returns the session's verification key.
func (s *Session) PublicKey() ed25519.PublicKey { return s.identity.PublicKey() }

// LastError returns the most recent failure of any session operation,
// or nil. A later success does not clear it.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failLocked(err)
}

func (s *Session) failLocked(err error) error {
	s.lastErr = err
	return err
}

// IsFatal reports whether err ends the session: the backend never
// became ready or key exchange failed.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNotReady) || errors.Is(err, readiness.ErrBackendExited) ||
		errors.Is(err, trust.ErrKeyExchangeInvalid) || errors.Is(err, ErrKeyExchangeRejected)
}
