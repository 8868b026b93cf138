// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/bureau-foundation/tether/lib/rpcerr"
)

// Reserved method names.
const (
	// MethodReady is the readiness probe. It carries no payload and no
	// signature, and is answered with ProbeReply.
	MethodReady = "SERVICE-READY"

	// MethodKeyExchange establishes a session's keys and token.
	MethodKeyExchange = "KeyExchange"
)

// ProbeReply is the body of a successful readiness probe reply.
const ProbeReply = "OK"

// Header names. net/http canonicalizes them, so matching is
// case-insensitive on the wire.
const (
	HeaderMethod      = "Request-Method"
	HeaderSequence    = "Message-Sequence"
	HeaderClientToken = "Client-Token"
	HeaderSignature   = "Message-Signature"
)

// Errors for calls rejected before any I/O.
var (
	ErrEmptyMethod = rpcerr.New(rpcerr.KindProtocol, "call has no method")

	// ErrSignatureWithoutPayload is returned for a Call whose Payload
	// is nil but whose Signature is set. An empty payload is signed
	// and sent as a non-nil empty slice.
	ErrSignatureWithoutPayload = rpcerr.New(rpcerr.KindProtocol, "call has a signature but no payload")
)

// Transport sends calls to the backend.
type Transport interface {
	// Send delivers call and returns the backend's reply. Every
	// failure is returned as an error; a nil error always comes with
	// a non-nil Reply.
	Send(ctx context.Context, call *Call) (*Reply, error)
}

// Call is one outgoing RPC.
type Call struct {
	Method      string
	Sequence    uint64
	ClientToken string

	// Payload is the raw envelope bytes. Nil means no body.
	Payload []byte

	// Signature is the Ed25519 signature of Payload. Nil means the
	// call is unsigned.
	Signature []byte
}

// Validate reports whether call can be put on the wire.
func (c *Call) Validate() error {
	if c.Method == "" {
		return ErrEmptyMethod
	}
	if c.Signature != nil && c.Payload == nil {
		return fmt.Errorf("%w: method %s", ErrSignatureWithoutPayload, c.Method)
	}
	return nil
}

// Reply is the backend's answer to a Call.
type Reply struct {
	StatusCode int

	// Body is the raw response envelope bytes, already decoded from
	// the wire encoding. For MethodReady it is the literal body.
	Body []byte

	Header http.Header
}

// OK reports whether the reply has HTTP status 200.
func (r *Reply) OK() bool { return r.StatusCode == http.StatusOK }

// HTTPError is a reply with a status other than 200.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Endpoint is where the backend listens.
type Endpoint struct {
	Host string
	Port int
	Path string
}

// Address returns host:port.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL returns https://host:port/path.
func (e Endpoint) URL() string {
	return "https://" + e.Address() + e.Path
}

// lastError records the most recent Send failure.
type lastError struct {
	mu  sync.Mutex
	err error
}

func (l *lastError) record(err error) error {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
	return err
}

func (l *lastError) get() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
