// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import "google.golang.org/protobuf/encoding/protowire"

// RequestHeader is the optional header of every request body.
type RequestHeader struct {
	Method string // field 1
}

func (m *RequestHeader) AppendWire(b []byte) []byte {
	return appendString(b, 1, m.Method)
}

func (m *RequestHeader) ConsumeWire(b []byte) error {
	*m = RequestHeader{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeString(num, typ, b, &m.Method)
		}
		return skipField(num, typ, b)
	})
}

// ResponseHeader is the header of every response body. A zero Code with
// Status StatusOK (or empty) means success; see Err.
type ResponseHeader struct {
	Code   Code   // field 1
	Scope  Scope  // field 2
	Status string // field 3
}

func (m *ResponseHeader) AppendWire(b []byte) []byte {
	b = appendInt32(b, 1, int32(m.Code))
	b = appendInt32(b, 2, int32(m.Scope))
	return appendString(b, 3, m.Status)
}

func (m *ResponseHeader) ConsumeWire(b []byte) error {
	*m = ResponseHeader{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeInt32(num, typ, b, (*int32)(&m.Code))
		case 2:
			return consumeInt32(num, typ, b, (*int32)(&m.Scope))
		case 3:
			return consumeString(num, typ, b, &m.Status)
		}
		return skipField(num, typ, b)
	})
}

// EmptyRequest is a request with no arguments.
type EmptyRequest struct {
	Header *RequestHeader // field 1
}

func (m *EmptyRequest) AppendWire(b []byte) []byte {
	if m.Header != nil {
		b = appendMessage(b, 1, m.Header)
	}
	return b
}

func (m *EmptyRequest) ConsumeWire(b []byte) error {
	*m = EmptyRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeMessage(num, typ, b, &m.Header)
		}
		return skipField(num, typ, b)
	})
}

// EmptyResponse is a response with no result beyond its status.
type EmptyResponse struct {
	Header *ResponseHeader // field 1
}

func (m *EmptyResponse) AppendWire(b []byte) []byte {
	if m.Header != nil {
		b = appendMessage(b, 1, m.Header)
	}
	return b
}

func (m *EmptyResponse) ConsumeWire(b []byte) error {
	*m = EmptyResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeMessage(num, typ, b, &m.Header)
		}
		return skipField(num, typ, b)
	})
}

// IDRequest addresses a single record by identifier.
type IDRequest struct {
	Header *RequestHeader // field 1
	ID     string         // field 2
}

func (m *IDRequest) AppendWire(b []byte) []byte {
	if m.Header != nil {
		b = appendMessage(b, 1, m.Header)
	}
	return appendString(b, 2, m.ID)
}

func (m *IDRequest) ConsumeWire(b []byte) error {
	*m = IDRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeMessage(num, typ, b, &m.Header)
		case 2:
			return consumeString(num, typ, b, &m.ID)
		}
		return skipField(num, typ, b)
	})
}

// EchoRequest carries an opaque payload that the backend's Ping method
// returns unchanged.
type EchoRequest struct {
	Header  *RequestHeader // field 1
	Payload []byte         // field 2
}

func (m *EchoRequest) AppendWire(b []byte) []byte {
	if m.Header != nil {
		b = appendMessage(b, 1, m.Header)
	}
	return appendBytes(b, 2, m.Payload)
}

func (m *EchoRequest) ConsumeWire(b []byte) error {
	*m = EchoRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeMessage(num, typ, b, &m.Header)
		case 2:
			return consumeBytes(num, typ, b, &m.Payload)
		}
		return skipField(num, typ, b)
	})
}

// EchoResponse is the reply to an EchoRequest.
type EchoResponse struct {
	Header  *ResponseHeader // field 1
	Payload []byte          // field 2
}

func (m *EchoResponse) AppendWire(b []byte) []byte {
	if m.Header != nil {
		b = appendMessage(b, 1, m.Header)
	}
	return appendBytes(b, 2, m.Payload)
}

func (m *EchoResponse) ConsumeWire(b []byte) error {
	*m = EchoResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeMessage(num, typ, b, &m.Header)
		case 2:
			return consumeBytes(num, typ, b, &m.Payload)
		}
		return skipField(num, typ, b)
	})
}

// KeyExchangeRequest carries the client's Ed25519 public key.
type KeyExchangeRequest struct {
	Header    *RequestHeader // field 1
	PublicKey []byte         // field 2
}

func (m *KeyExchangeRequest) AppendWire(b []byte) []byte {
	if m.Header != nil {
		b = appendMessage(b, 1, m.Header)
	}
	return appendBytes(b, 2, m.PublicKey)
}

func (m *KeyExchangeRequest) ConsumeWire(b []byte) error {
	*m = KeyExchangeRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeMessage(num, typ, b, &m.Header)
		case 2:
			return consumeBytes(num, typ, b, &m.PublicKey)
		}
		return skipField(num, typ, b)
	})
}

// KeyExchangeResponse carries the backend's Ed25519 public key and the
// client token the backend assigned to this session.
type KeyExchangeResponse struct {
	Header    *ResponseHeader // field 1
	PublicKey []byte          // field 2
	Token     string          // field 3
}

func (m *KeyExchangeResponse) AppendWire(b []byte) []byte {
	if m.Header != nil {
		b = appendMessage(b, 1, m.Header)
	}
	b = appendBytes(b, 2, m.PublicKey)
	return appendString(b, 3, m.Token)
}

func (m *KeyExchangeResponse) ConsumeWire(b []byte) error {
	*m = KeyExchangeResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeMessage(num, typ, b, &m.Header)
		case 2:
			return consumeBytes(num, typ, b, &m.PublicKey)
		case 3:
			return consumeString(num, typ, b, &m.Token)
		}
		return skipField(num, typ, b)
	})
}

// Compile-time interface checks.
var (
	_ Message = (*RequestHeader)(nil)
	_ Message = (*ResponseHeader)(nil)
	_ Message = (*EmptyRequest)(nil)
	_ Message = (*EmptyResponse)(nil)
	_ Message = (*IDRequest)(nil)
	_ Message = (*EchoRequest)(nil)
	_ Message = (*EchoResponse)(nil)
	_ Message = (*KeyExchangeRequest)(nil)
	_ Message = (*KeyExchangeResponse)(nil)
)
