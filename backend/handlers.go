// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"

	"github.com/bureau-foundation/tether/lib/envelope"
)

// MethodPing is the echo method registered by RegisterBuiltins.
const MethodPing = "Ping"

// Handle registers a typed handler for method: the request envelope is
// decoded into a fresh Req before fn runs, and a decoding failure is
// reported to the client as an ErrorDecode status.
//
//	backend.Handle(server, "Lookup", func(ctx context.Context, request *envelope.IDRequest) (envelope.Response, error) {
//		...
//	})
func Handle[Req any, P interface {
	*Req
	envelope.Message
}](s *Server, method string, fn func(ctx context.Context, request P) (envelope.Response, error)) {
	s.Register(method, func(ctx context.Context, payload []byte) (envelope.Response, error) {
		request := P(new(Req))
		if err := envelope.Unmarshal(payload, request); err != nil {
			return nil, envelope.NewAppError(envelope.ScopeRPC, envelope.ErrorDecode, err.Error())
		}
		return fn(ctx, request)
	})
}

// Ping answers an EchoRequest with its own payload.
func Ping(_ context.Context, request *envelope.EchoRequest) (envelope.Response, error) {
	return &envelope.EchoResponse{Header: envelope.NewResponseHeader(), Payload: request.Payload}, nil
}

// RegisterBuiltins installs the methods every backend serves.
func RegisterBuiltins(s *Server) {
	Handle(s, MethodPing, Ping)
}
