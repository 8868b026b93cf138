// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bureau-foundation/tether/lib/rpcerr"
)

// Message is an envelope message with a fixed protobuf schema.
type Message interface {
	// AppendWire appends the encoded message to b.
	AppendWire(b []byte) []byte

	// ConsumeWire replaces the receiver with the message decoded from
	// b. b must hold exactly one message.
	ConsumeWire(b []byte) error
}

// Marshal returns the wire encoding of m.
func Marshal(m Message) []byte {
	return m.AppendWire(nil)
}

// Unmarshal decodes data into m. Malformed input returns an error
// matching rpcerr.ErrProtocol.
func Unmarshal(data []byte, m Message) error {
	if err := m.ConsumeWire(data); err != nil {
		return rpcerr.Protocol(fmt.Sprintf("decoding %T", m), err)
	}
	return nil
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendInt32 uses the protobuf int32 encoding: negative values are
// sign-extended to 64 bits.
func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

// appendMessage encodes a nested message. Callers omit nil messages; a
// non-nil message is always written, even when all of its fields are
// zero, so presence survives a round trip.
func appendMessage(b []byte, num protowire.Number, m Message) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.AppendWire(nil))
}

// fieldFunc decodes the value of one field from the front of b and
// returns the number of bytes consumed. Fields it does not recognise
// are passed to skipField.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// consumeFields walks every field of an encoded message.
func consumeFields(b []byte, field fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("reading field tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		n, err := field(num, typ, b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func skipField(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, fmt.Errorf("skipping field %d: %w", num, protowire.ParseError(n))
	}
	return n, nil
}

// A field whose wire type does not match the schema is treated as
// unknown and skipped, as the protobuf runtime does.

func consumeString(num protowire.Number, typ protowire.Type, b []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return skipField(num, typ, b)
	}
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, fmt.Errorf("reading field %d: %w", num, protowire.ParseError(n))
	}
	*dst = v
	return n, nil
}

func consumeBytes(num protowire.Number, typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return skipField(num, typ, b)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, fmt.Errorf("reading field %d: %w", num, protowire.ParseError(n))
	}
	if len(v) == 0 {
		*dst = nil
	} else {
		*dst = append([]byte(nil), v...)
	}
	return n, nil
}

func consumeInt32(num protowire.Number, typ protowire.Type, b []byte, dst *int32) (int, error) {
	if typ != protowire.VarintType {
		return skipField(num, typ, b)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, fmt.Errorf("reading field %d: %w", num, protowire.ParseError(n))
	}
	*dst = int32(v)
	return n, nil
}

// consumeMessage decodes a nested message of type T and stores a
// pointer to it in dst.
func consumeMessage[T any, P interface {
	*T
	Message
}](num protowire.Number, typ protowire.Type, b []byte, dst *P) (int, error) {
	if typ != protowire.BytesType {
		return skipField(num, typ, b)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, fmt.Errorf("reading field %d: %w", num, protowire.ParseError(n))
	}
	m := P(new(T))
	if err := m.ConsumeWire(v); err != nil {
		return 0, fmt.Errorf("field %d: %w", num, err)
	}
	*dst = m
	return n, nil
}
