// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/bureau-foundation/tether/lib/envelope"
	"github.com/bureau-foundation/tether/lib/identity"
	"github.com/bureau-foundation/tether/lib/trust"
	"github.com/bureau-foundation/tether/transport"
)

func newTestServer(t *testing.T, config Config) *Server {
	t.Helper()
	config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewServer(config)
	RegisterBuiltins(server)
	return server
}

// testClient is a hand-driven client: it builds wire requests directly
// so tests control every header.
type testClient struct {
	t         *testing.T
	server    *Server
	public    ed25519.PublicKey
	private   ed25519.PrivateKey
	token     string
	serverKey ed25519.PublicKey
}

func newTestClient(t *testing.T, server *Server) *testClient {
	t.Helper()
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return &testClient{t: t, server: server, public: public, private: private, token: trust.EmptyToken}
}

func (c *testClient) send(method string, sequence uint64, payload, signature []byte) *httptest.ResponseRecorder {
	c.t.Helper()
	request := httptest.NewRequest(http.MethodPost, DefaultPath, strings.NewReader(hex.EncodeToString(payload)))
	request.Header.Set(transport.HeaderMethod, method)
	request.Header.Set(transport.HeaderSequence, strconv.FormatUint(sequence, 10))
	request.Header.Set(transport.HeaderClientToken, c.token)
	if signature != nil {
		request.Header.Set(transport.HeaderSignature, hex.EncodeToString(signature))
	}
	recorder := httptest.NewRecorder()
	c.server.ServeHTTP(recorder, request)
	return recorder
}

func (c *testClient) keyExchange() {
	c.t.Helper()
	payload := envelope.Marshal(&envelope.KeyExchangeRequest{
		Header:    &envelope.RequestHeader{Method: transport.MethodKeyExchange},
		PublicKey: c.public,
	})
	recorder := c.send(transport.MethodKeyExchange, 0, payload, ed25519.Sign(c.private, payload))
	if recorder.Code != http.StatusOK {
		c.t.Fatalf("key exchange status = %d: %s", recorder.Code, recorder.Body)
	}
	body, sequence := decodeReply(c.t, recorder, nil)
	if sequence != 0 {
		c.t.Errorf("key exchange sequence = %d, want 0", sequence)
	}
	var response envelope.KeyExchangeResponse
	if err := envelope.Unmarshal(body, &response); err != nil {
		c.t.Fatalf("decoding key exchange response: %v", err)
	}
	if err := verifyReply(recorder, body, response.PublicKey); err != nil {
		c.t.Fatalf("key exchange response signature: %v", err)
	}
	c.token = response.Token
	c.serverKey = response.PublicKey
}

// call sends a signed EchoRequest as method.
func (c *testClient) call(method string, sequence uint64, data []byte) *httptest.ResponseRecorder {
	c.t.Helper()
	payload := envelope.Marshal(&envelope.EchoRequest{Header: &envelope.RequestHeader{Method: method}, Payload: data})
	return c.send(method, sequence, payload, ed25519.Sign(c.private, payload))
}

// decodeReply decodes a 200 reply and, when key is set, checks its
// signature.
func decodeReply(t *testing.T, recorder *httptest.ResponseRecorder, key ed25519.PublicKey) ([]byte, uint64) {
	t.Helper()
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body)
	}
	body, err := base64.StdEncoding.DecodeString(recorder.Body.String())
	if err != nil {
		t.Fatalf("decoding reply body: %v", err)
	}
	sequence, err := strconv.ParseUint(recorder.Header().Get(transport.HeaderSequence), 10, 64)
	if err != nil {
		t.Fatalf("parsing reply sequence: %v", err)
	}
	if key != nil {
		if err := verifyReply(recorder, body, key); err != nil {
			t.Fatalf("reply signature: %v", err)
		}
	}
	return body, sequence
}

func verifyReply(recorder *httptest.ResponseRecorder, body []byte, key ed25519.PublicKey) error {
	signature, err := base64.StdEncoding.DecodeString(recorder.Header().Get(transport.HeaderSignature))
	if err != nil {
		return err
	}
	return identity.Verify(key, body, signature)
}

func TestProbe(t *testing.T) {
	server := newTestServer(t, Config{})
	client := newTestClient(t, server)
	recorder := client.send(transport.MethodReady, 0, nil, nil)
	if recorder.Code != http.StatusOK || recorder.Body.String() != transport.ProbeReply {
		t.Fatalf("probe = %d %q, want 200 %q", recorder.Code, recorder.Body, transport.ProbeReply)
	}
}

func TestStatusCodes(t *testing.T) {
	server := newTestServer(t, Config{})

	get := httptest.NewRecorder()
	server.ServeHTTP(get, httptest.NewRequest(http.MethodGet, DefaultPath, nil))
	if get.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", get.Code)
	}
	if allow := get.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow = %q, want POST", allow)
	}

	wrongPath := httptest.NewRecorder()
	server.ServeHTTP(wrongPath, httptest.NewRequest(http.MethodPost, "/other", nil))
	if wrongPath.Code != http.StatusNotFound {
		t.Errorf("wrong path status = %d, want 404", wrongPath.Code)
	}

	malformed := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, DefaultPath, strings.NewReader("not hex"))
	request.Header.Set(transport.HeaderMethod, MethodPing)
	server.ServeHTTP(malformed, request)
	if malformed.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", malformed.Code)
	}
}

func TestKeyExchangeRegistersClient(t *testing.T) {
	server := newTestServer(t, Config{})
	client := newTestClient(t, server)
	client.keyExchange()

	if client.token == "" || client.token == trust.EmptyToken {
		t.Fatalf("token = %q", client.token)
	}
	raw, err := base64.RawURLEncoding.DecodeString(client.token)
	if err != nil || len(raw) != tokenSize {
		t.Errorf("token %q is not %d base64url bytes (err %v)", client.token, tokenSize, err)
	}
	if server.Clients() != 1 {
		t.Errorf("Clients = %d, want 1", server.Clients())
	}

	other := newTestClient(t, server)
	other.keyExchange()
	if other.token == client.token {
		t.Error("two clients received the same token")
	}
	if string(other.serverKey) == string(client.serverKey) {
		t.Error("two clients received the same backend key")
	}
}

func TestKeyExchangeRejectsBadSignature(t *testing.T) {
	server := newTestServer(t, Config{})
	client := newTestClient(t, server)
	payload := envelope.Marshal(&envelope.KeyExchangeRequest{PublicKey: client.public})
	signature := ed25519.Sign(client.private, payload)
	signature[0] ^= 0xff

	if recorder := client.send(transport.MethodKeyExchange, 0, payload, signature); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", recorder.Code)
	}
	if recorder := client.send(transport.MethodKeyExchange, 0, payload, nil); recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned status = %d, want 401", recorder.Code)
	}
	if server.Clients() != 0 {
		t.Errorf("Clients = %d after rejected exchanges, want 0", server.Clients())
	}
}

func TestPing(t *testing.T) {
	server := newTestServer(t, Config{})
	client := newTestClient(t, server)
	client.keyExchange()

	for i := uint64(1); i <= 3; i++ {
		body, sequence := decodeReply(t, client.call(MethodPing, i, []byte("hello")), client.serverKey)
		if sequence != i {
			t.Errorf("response %d sequence = %d", i, sequence)
		}
		var response envelope.EchoResponse
		if err := envelope.Unmarshal(body, &response); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if string(response.Payload) != "hello" {
			t.Errorf("Payload = %q, want hello", response.Payload)
		}
		if err := response.Header.Err(); err != nil {
			t.Errorf("response header: %v", err)
		}
	}
}

func TestRequestSequenceRules(t *testing.T) {
	server := newTestServer(t, Config{})
	client := newTestClient(t, server)
	client.keyExchange()

	steps := []struct {
		name     string
		sequence uint64
		status   int
	}{
		{"zero", 0, http.StatusUnauthorized},
		{"first", 1, http.StatusOK},
		{"replay", 1, http.StatusUnauthorized},
		{"gap", 5, http.StatusOK},
		{"older", 3, http.StatusUnauthorized},
		{"next", 6, http.StatusOK},
	}
	var responses uint64
	for _, step := range steps {
		recorder := client.call(MethodPing, step.sequence, nil)
		if recorder.Code != step.status {
			t.Fatalf("%s (sequence %d): status = %d, want %d", step.name, step.sequence, recorder.Code, step.status)
		}
		if step.status != http.StatusOK {
			continue
		}
		responses++
		if _, sequence := decodeReply(t, recorder, client.serverKey); sequence != responses {
			t.Errorf("%s: response sequence = %d, want %d", step.name, sequence, responses)
		}
	}
}

func TestRejectsUnauthenticatedCalls(t *testing.T) {
	server := newTestServer(t, Config{})
	client := newTestClient(t, server)
	client.keyExchange()

	payload := envelope.Marshal(&envelope.EchoRequest{Payload: []byte("x")})

	if recorder := client.send(MethodPing, 1, payload, nil); recorder.Code != http.StatusUnauthorized {
		t.Errorf("unsigned call status = %d, want 401", recorder.Code)
	}

	_, otherKey, _ := ed25519.GenerateKey(rand.Reader)
	if recorder := client.send(MethodPing, 1, payload, ed25519.Sign(otherKey, payload)); recorder.Code != http.StatusUnauthorized {
		t.Errorf("wrongly signed call status = %d, want 401", recorder.Code)
	}

	stranger := newTestClient(t, server)
	stranger.token = "not-a-token"
	if recorder := stranger.call(MethodPing, 1, nil); recorder.Code != http.StatusUnauthorized {
		t.Errorf("unknown token status = %d, want 401", recorder.Code)
	}
	stranger.token = trust.EmptyToken
	if recorder := stranger.call(MethodPing, 1, nil); recorder.Code != http.StatusUnauthorized {
		t.Errorf("empty token status = %d, want 401", recorder.Code)
	}

	// None of the rejected calls consumed sequence 1.
	if recorder := client.call(MethodPing, 1, nil); recorder.Code != http.StatusOK {
		t.Errorf("valid call after rejections: status = %d, want 200", recorder.Code)
	}
}

func TestHandlerErrorsAreSigned(t *testing.T) {
	server := newTestServer(t, Config{})
	server.Register("Fail", func(context.Context, []byte) (envelope.Response, error) {
		return nil, errors.New("disk on fire")
	})
	server.Register("Panic", func(context.Context, []byte) (envelope.Response, error) {
		panic("disk on fire")
	})
	Handle(server, "Missing", func(_ context.Context, request *envelope.IDRequest) (envelope.Response, error) {
		return nil, envelope.NewAppError(envelope.ScopeAPI, envelope.ErrorRecordMissing, "no record "+request.ID)
	})
	client := newTestClient(t, server)
	client.keyExchange()

	tests := []struct {
		method      string
		code        envelope.Code
		application bool
		message     string
	}{
		{"Fail", envelope.ErrorInternalEscape, false, ""},
		{"Missing", envelope.ErrorRecordMissing, true, "no record "},
		{"Unregistered", envelope.ErrorLookup, true, "unknown method Unregistered"},
		{"Panic", envelope.ErrorInternalEscape, false, ""},
	}
	for i, test := range tests {
		body, _ := decodeReply(t, client.call(test.method, uint64(i+1), nil), client.serverKey)
		var response envelope.EmptyResponse
		if err := envelope.Unmarshal(body, &response); err != nil {
			t.Fatalf("%s: decoding response: %v", test.method, err)
		}
		var status *envelope.StatusError
		if !errors.As(response.Header.Err(), &status) {
			t.Fatalf("%s: header reports no error", test.method)
		}
		if status.Code != test.code || status.Application != test.application {
			t.Errorf("%s: status = %+v", test.method, status)
		}
		if test.message != "" && status.Message != test.message {
			t.Errorf("%s: message = %q, want %q", test.method, status.Message, test.message)
		}
		if strings.Contains(status.Message, "disk on fire") {
			t.Errorf("%s: internal error text crossed the boundary: %q", test.method, status.Message)
		}
	}
}

func TestPingEmptyPayload(t *testing.T) {
	server := newTestServer(t, Config{})
	client := newTestClient(t, server)
	client.keyExchange()

	body, sequence := decodeReply(t, client.send(MethodPing, 1, []byte{}, ed25519.Sign(client.private, nil)), client.serverKey)
	if sequence != 1 {
		t.Errorf("sequence = %d, want 1", sequence)
	}
	var response envelope.EchoResponse
	if err := envelope.Unmarshal(body, &response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if err := response.Header.Err(); err != nil {
		t.Errorf("status = %v", err)
	}
	if len(response.Payload) != 0 {
		t.Errorf("Payload = %q, want empty", response.Payload)
	}
}

func TestHandleDecodeFailure(t *testing.T) {
	server := newTestServer(t, Config{})
	client := newTestClient(t, server)
	client.keyExchange()

	payload := []byte{0xff, 0xff, 0xff}
	body, _ := decodeReply(t, client.send(MethodPing, 1, payload, ed25519.Sign(client.private, payload)), client.serverKey)
	var response envelope.EmptyResponse
	if err := envelope.Unmarshal(body, &response); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	var status *envelope.StatusError
	if !errors.As(response.Header.Err(), &status) || status.Code != envelope.ErrorDecode {
		t.Errorf("header error = %v, want ErrorDecode", response.Header.Err())
	}
}

func TestClientEviction(t *testing.T) {
	server := newTestServer(t, Config{MaxClients: 2})
	first := newTestClient(t, server)
	first.keyExchange()
	second := newTestClient(t, server)
	second.keyExchange()
	third := newTestClient(t, server)
	third.keyExchange()

	if server.Clients() != 2 {
		t.Errorf("Clients = %d, want 2", server.Clients())
	}
	if recorder := first.call(MethodPing, 1, nil); recorder.Code != http.StatusUnauthorized {
		t.Errorf("evicted client status = %d, want 401", recorder.Code)
	}
	if recorder := third.call(MethodPing, 1, nil); recorder.Code != http.StatusOK {
		t.Errorf("live client status = %d, want 200", recorder.Code)
	}
}

func TestRegisterReserved(t *testing.T) {
	server := newTestServer(t, Config{})
	for _, method := range []string{"", transport.MethodKeyExchange, transport.MethodReady} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Register(%q) did not panic", method)
				}
			}()
			server.Register(method, func(context.Context, []byte) (envelope.Response, error) { return nil, nil })
		}()
	}
}
