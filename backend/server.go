// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bureau-foundation/tether/lib/envelope"
	"github.com/bureau-foundation/tether/lib/identity"
	"github.com/bureau-foundation/tether/lib/trust"
	"github.com/bureau-foundation/tether/transport"
)

// Defaults for Config.
const (
	DefaultPath       = "/rpc"
	DefaultMaxClients = 64
)

// tokenSize is the number of random bytes in a client token.
const tokenSize = 32

// Handler serves one method. request is the verified request envelope.
// A nil response with a nil error is answered with an EmptyResponse. A
// returned error is reported in the response header: *envelope.StatusError
// values as they are, anything else as an internal error.
type Handler func(ctx context.Context, request []byte) (envelope.Response, error)

// Config configures a Server.
type Config struct {
	// Path is the single RPC path. Default DefaultPath.
	Path string

	// MaxClients bounds the number of client records kept. The least
	// recently used record is dropped first. Default DefaultMaxClients.
	MaxClients int

	// Compression allows zstd or lz4 reply bodies when the client
	// accepts them.
	Compression bool

	// MaxBodySize bounds request bodies. Zero means
	// netutil.MaxBodySize.
	MaxBodySize int64

	Logger *slog.Logger
}

// Server is the backend RPC handler.
type Server struct {
	path        string
	compression bool
	maxBody     int64
	logger      *slog.Logger

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	clients *lru.Cache[string, *client]
}

var _ http.Handler = (*Server)(nil)

// client is the backend's record of one key-exchanged client.
type client struct {
	token   string
	key     ed25519.PublicKey
	signing ed25519.PrivateKey

	// mu serialises this client's calls and guards the counters.
	mu sync.Mutex

	// lastRequest is the highest request sequence accepted.
	lastRequest uint64

	// lastResponse is the sequence of the last response sent.
	lastResponse uint64
}

// NewServer returns a Server with no handlers registered.
func NewServer(config Config) *Server {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.MaxClients <= 0 {
		config.MaxClients = DefaultMaxClients
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	clients, err := lru.NewWithEvict(config.MaxClients, func(token string, _ *client) {
		logger.Info("client record evicted", "token", redact(token))
	})
	if err != nil {
		panic(fmt.Sprintf("backend.NewServer: creating client registry: %v", err))
	}

	return &Server{
		path:        config.Path,
		compression: config.Compression,
		maxBody:     config.MaxBodySize,
		logger:      logger,
		handlers:    make(map[string]Handler),
		clients:     clients,
	}
}

// Register installs handler for method, replacing any earlier handler.
// It panics for the reserved key exchange and readiness methods.
func (s *Server) Register(method string, handler Handler) {
	if method == "" || method == transport.MethodKeyExchange || method == transport.MethodReady {
		panic(fmt.Sprintf("backend.Server.Register: method %q is reserved", method))
	}
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[method] = handler
}

// Clients returns the number of client records held.
func (s *Server) Clients() int { return s.clients.Len() }

func (s *Server) handler(method string) (Handler, bool) {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	handler, ok := s.handlers[method]
	return handler, ok
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Path != s.path {
		http.NotFound(w, r)
		return
	}

	call, err := transport.ParseCall(r, s.maxBody)
	if err != nil {
		s.logger.Debug("rejected malformed call", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch call.Method {
	case transport.MethodReady:
		if err := transport.WriteProbeReply(w, r); err != nil {
			s.logger.Debug("writing probe reply", "error", err)
		}
	case transport.MethodKeyExchange:
		s.keyExchange(w, r, call)
	default:
		s.dispatch(w, r, call)
	}
}

// keyExchange registers a new client. The request is verified with the
// public key it carries.
func (s *Server) keyExchange(w http.ResponseWriter, r *http.Request, call *transport.Call) {
	if call.Payload == nil || call.Signature == nil {
		s.reject(w, http.StatusUnauthorized, "key exchange request is not signed", nil)
		return
	}
	var request envelope.KeyExchangeRequest
	if err := envelope.Unmarshal(call.Payload, &request); err != nil {
		s.reject(w, http.StatusBadRequest, "malformed key exchange request", err)
		return
	}
	if err := identity.Verify(request.PublicKey, call.Payload, call.Signature); err != nil {
		s.reject(w, http.StatusUnauthorized, "key exchange request failed verification", err)
		return
	}

	public, signing, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		s.reject(w, http.StatusInternalServerError, "generating client keypair", err)
		return
	}
	token, err := newToken()
	if err != nil {
		s.reject(w, http.StatusInternalServerError, "generating client token", err)
		return
	}
	record := &client{
		token:   token,
		key:     append(ed25519.PublicKey(nil), request.PublicKey...),
		signing: signing,
	}
	s.clients.Add(token, record)

	body := envelope.Marshal(&envelope.KeyExchangeResponse{
		Header:    envelope.NewResponseHeader(),
		PublicKey: public,
		Token:     token,
	})
	s.logger.Info("client registered", "token", redact(token), "clients", s.clients.Len())
	s.write(w, r, transport.MethodKeyExchange, 0, body, signing)
}

// dispatch runs an authenticated call.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, call *transport.Call) {
	if call.ClientToken == "" || call.ClientToken == trust.EmptyToken {
		s.reject(w, http.StatusUnauthorized, "missing client token", nil)
		return
	}
	record, ok := s.clients.Get(call.ClientToken)
	if !ok {
		s.reject(w, http.StatusUnauthorized, "unknown client token", nil)
		return
	}

	record.mu.Lock()
	defer record.mu.Unlock()

	if call.Sequence <= record.lastRequest {
		s.reject(w, http.StatusUnauthorized, "stale request sequence",
			fmt.Errorf("got %d, last accepted %d", call.Sequence, record.lastRequest))
		return
	}
	if call.Signature == nil {
		s.reject(w, http.StatusUnauthorized, "missing request signature", nil)
		return
	}
	if err := identity.Verify(record.key, call.Payload, call.Signature); err != nil {
		s.reject(w, http.StatusUnauthorized, "invalid request signature", err)
		return
	}
	record.lastRequest = call.Sequence

	response := s.invoke(r.Context(), call)
	body := envelope.Marshal(response)

	record.lastResponse++
	s.write(w, r, call.Method, record.lastResponse, body, record.signing)
}

// invoke runs the handler for call and always returns a response with a
// header. A panicking handler is answered with an ErrorInternalEscape
// status instead of dropping the connection.
func (s *Server) invoke(ctx context.Context, call *transport.Call) (response envelope.Response) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("handler panicked", "method", call.Method, "panic", recovered)
			header := envelope.NewResponseHeader()
			header.SetRPCError(envelope.ErrorInternalEscape)
			response = &envelope.EmptyResponse{Header: header}
		}
	}()

	handler, ok := s.handler(call.Method)
	if !ok {
		s.logger.Debug("no handler", "method", call.Method)
		header := envelope.NewResponseHeader()
		header.SetError(envelope.NewAppError(envelope.ScopeRPC, envelope.ErrorLookup,
			fmt.Sprintf("unknown method %s", call.Method)))
		return &envelope.EmptyResponse{Header: header}
	}

	response, err := handler(ctx, call.Payload)
	if err != nil {
		var status *envelope.StatusError
		if !errors.As(err, &status) {
			s.logger.Error("handler failed", "method", call.Method, "error", err)
		}
		header := envelope.NewResponseHeader()
		header.SetError(err)
		return &envelope.EmptyResponse{Header: header}
	}
	if response == nil {
		response = &envelope.EmptyResponse{}
	}
	if response.GetHeader() == nil {
		response.SetHeader(envelope.NewResponseHeader())
	}
	return response
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, method string, sequence uint64, body []byte, signing ed25519.PrivateKey) {
	err := transport.WriteReply(w, r, transport.ReplyOptions{
		Method:      method,
		Sequence:    sequence,
		Body:        body,
		Signature:   ed25519.Sign(signing, body),
		Compression: s.compression,
	})
	if err != nil {
		s.logger.Debug("writing reply", "method", method, "error", err)
	}
}

func (s *Server) reject(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		s.logger.Warn("rejected call", "reason", message, "error", err)
	} else {
		s.logger.Warn("rejected call", "reason", message)
	}
	http.Error(w, message, status)
}

func newToken() (string, error) {
	raw := make([]byte, tokenSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// redact shortens a token for logging.
func redact(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
