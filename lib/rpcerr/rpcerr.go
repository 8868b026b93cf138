// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpcerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind uint8

const (
	// KindUnknown is never produced by this package. KindOf returns it
	// for errors that are not an *Error.
	KindUnknown Kind = iota

	// KindService covers failures of the session itself: no transport
	// attached, no identity, a backend that never became ready.
	KindService

	// KindTransport covers the path to the backend: connection errors,
	// non-200 replies, and replies whose sequence or signature headers
	// do not check out.
	KindTransport

	// KindAuthentication covers trust: calls before key exchange, key
	// exchange failures and signatures that do not verify.
	KindAuthentication

	// KindCertificate covers loading and pinning the backend
	// certificate.
	KindCertificate

	// KindProtocol covers input that is not well formed: bodies,
	// headers and envelopes that cannot be decoded.
	KindProtocol
)

// String returns the title used in error messages.
func (k Kind) String() string {
	switch k {
	case KindService:
		return "service error"
	case KindTransport:
		return "transport error"
	case KindAuthentication:
		return "authentication error"
	case KindCertificate:
		return "certificate error"
	case KindProtocol:
		return "protocol error"
	default:
		return "unknown error"
	}
}

// Error is a classified failure. Message is a short lower-case
// description; Err is the optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Kind sentinels. errors.Is(err, ErrTransport) is true for every
// *Error of KindTransport in err's chain.
var (
	ErrService        = &Error{Kind: KindService}
	ErrTransport      = &Error{Kind: KindTransport}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrCertificate    = &Error{Kind: KindCertificate}
	ErrProtocol       = &Error{Kind: KindProtocol}
)

// New returns an *Error with no cause. Use it to declare package-level
// sentinels.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an *Error recording err as its cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Service is Wrap with KindService. err may be nil.
func Service(message string, err error) *Error { return Wrap(KindService, message, err) }

// Transport is Wrap with KindTransport. err may be nil.
func Transport(message string, err error) *Error { return Wrap(KindTransport, message, err) }

// Authentication is Wrap with KindAuthentication. err may be nil.
func Authentication(message string, err error) *Error {
	return Wrap(KindAuthentication, message, err)
}

// Certificate is Wrap with KindCertificate. err may be nil.
func Certificate(message string, err error) *Error { return Wrap(KindCertificate, message, err) }

// Protocol is Wrap with KindProtocol. err may be nil.
func Protocol(message string, err error) *Error { return Wrap(KindProtocol, message, err) }

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return e.Kind.String()
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
}

// Unwrap returns the cause, so errors.Is and errors.As see through an
// *Error to whatever it wraps.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind sentinel for e's kind. Specific
// sentinels created with New only match by identity, which errors.Is
// checks before calling this method.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*Error)
	if !ok {
		return false
	}
	return sentinel.Message == "" && sentinel.Err == nil && sentinel.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnknown if there is none.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindUnknown
}
