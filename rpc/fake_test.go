// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"testing"

	"github.com/bureau-foundation/tether/lib/envelope"
	"github.com/bureau-foundation/tether/lib/identity"
	"github.com/bureau-foundation/tether/transport"
)

// fakeTransport records every call and answers with handle.
type fakeTransport struct {
	mu     sync.Mutex
	calls  []transport.Call
	handle func(call *transport.Call) (*transport.Reply, error)
}

func (f *fakeTransport) Send(ctx context.Context, call *transport.Call) (*transport.Reply, error) {
	if err := call.Validate(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, *call)
	handle := f.handle
	f.mu.Unlock()
	return handle(call)
}

func (f *fakeTransport) sent() []transport.Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Call(nil), f.calls...)
}

// fakeBackend is a minimal signing backend: it answers key exchange
// with its key and token, and echoes every other request's payload in
// an EchoResponse.
type fakeBackend struct {
	t         *testing.T
	public    ed25519.PublicKey
	private   ed25519.PrivateKey
	token     string
	clientKey ed25519.PublicKey
	sequence  uint64
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return &fakeBackend{t: t, public: public, private: private, token: "abc123"}
}

func (b *fakeBackend) handle(call *transport.Call) (*transport.Reply, error) {
	if call.Method == transport.MethodReady {
		return &transport.Reply{StatusCode: http.StatusOK, Body: []byte(transport.ProbeReply), Header: http.Header{}}, nil
	}
	if call.Method == transport.MethodKeyExchange {
		var request envelope.KeyExchangeRequest
		if err := envelope.Unmarshal(call.Payload, &request); err != nil {
			b.t.Errorf("decoding key exchange request: %v", err)
		}
		if err := identity.Verify(request.PublicKey, call.Payload, call.Signature); err != nil {
			b.t.Errorf("key exchange request signature: %v", err)
		}
		b.clientKey = request.PublicKey
		body := envelope.Marshal(&envelope.KeyExchangeResponse{
			Header:    envelope.NewResponseHeader(),
			PublicKey: b.public,
			Token:     b.token,
		})
		return signedReply(b.private, body, 0), nil
	}

	if err := identity.Verify(b.clientKey, call.Payload, call.Signature); err != nil {
		b.t.Errorf("%s request signature: %v", call.Method, err)
	}
	var request envelope.EchoRequest
	if err := envelope.Unmarshal(call.Payload, &request); err != nil {
		b.t.Errorf("decoding %s request: %v", call.Method, err)
	}
	b.sequence++
	body := envelope.Marshal(&envelope.EchoResponse{Header: envelope.NewResponseHeader(), Payload: request.Payload})
	return signedReply(b.private, body, b.sequence), nil
}

func signedReply(private ed25519.PrivateKey, body []byte, sequence uint64) *transport.Reply {
	header := http.Header{}
	header.Set(transport.HeaderSequence, strconv.FormatUint(sequence, 10))
	header.Set(transport.HeaderSignature, base64.StdEncoding.EncodeToString(ed25519.Sign(private, body)))
	return &transport.Reply{StatusCode: http.StatusOK, Body: body, Header: header}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, config Config) *Session {
	t.Helper()
	if config.Logger == nil {
		config.Logger = testLogger()
	}
	session, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return session
}

// newTrustedSession returns a session that has completed key exchange
// against a fresh fakeBackend.
func newTrustedSession(t *testing.T) (*Session, *fakeBackend, *fakeTransport) {
	t.Helper()
	backend := newFakeBackend(t)
	fake := &fakeTransport{handle: backend.handle}
	session := newTestSession(t, Config{Transport: fake})
	if err := session.KeyExchange(context.Background()); err != nil {
		t.Fatalf("KeyExchange: %v", err)
	}
	return session, backend, fake
}

func echoPayload(t *testing.T, method string, data []byte) []byte {
	t.Helper()
	return envelope.Marshal(&envelope.EchoRequest{Header: &envelope.RequestHeader{Method: method}, Payload: data})
}
