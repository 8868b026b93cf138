// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

// Request is a request message with a RequestHeader.
type Request interface {
	Message
	SetHeader(*RequestHeader)
}

// Response is a response message with a ResponseHeader.
type Response interface {
	Message
	GetHeader() *ResponseHeader
	SetHeader(*ResponseHeader)
}

func (m *EmptyRequest) SetHeader(h *RequestHeader)       { m.Header = h }
func (m *IDRequest) SetHeader(h *RequestHeader)          { m.Header = h }
func (m *EchoRequest) SetHeader(h *RequestHeader)        { m.Header = h }
func (m *KeyExchangeRequest) SetHeader(h *RequestHeader) { m.Header = h }

func (m *EmptyResponse) SetHeader(h *ResponseHeader)       { m.Header = h }
func (m *EchoResponse) SetHeader(h *ResponseHeader)        { m.Header = h }
func (m *KeyExchangeResponse) SetHeader(h *ResponseHeader) { m.Header = h }

// GetHeader returns the response header, or nil. Safe on a nil receiver.
func (m *EmptyResponse) GetHeader() *ResponseHeader {
	if m == nil {
		return nil
	}
	return m.Header
}

// GetHeader returns the response header, or nil. Safe on a nil receiver.
func (m *EchoResponse) GetHeader() *ResponseHeader {
	if m == nil {
		return nil
	}
	return m.Header
}

// GetHeader returns the response header, or nil. Safe on a nil receiver.
func (m *KeyExchangeResponse) GetHeader() *ResponseHeader {
	if m == nil {
		return nil
	}
	return m.Header
}

var (
	_ Request = (*EmptyRequest)(nil)
	_ Request = (*IDRequest)(nil)
	_ Request = (*EchoRequest)(nil)
	_ Request = (*KeyExchangeRequest)(nil)

	_ Response = (*EmptyResponse)(nil)
	_ Response = (*EchoResponse)(nil)
	_ Response = (*KeyExchangeResponse)(nil)
)
