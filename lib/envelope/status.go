// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Status strings carried in ResponseHeader.Status.
const (
	StatusOK          = "OK"
	StatusSystemError = "SYSTEM_ERROR"
	StatusAppError    = "APP_ERROR"
)

// Code identifies a backend failure. ErrorOK is success.
type Code int32

const (
	ErrorOK Code = iota
	ErrorUnknown
	// ErrorInternalEscape reports that a handler returned an error that
	// was not a *StatusError.
	ErrorInternalEscape
	ErrorUnauthorized
	ErrorInvalidType
	ErrorMarshal
	ErrorOpenKey
	ErrorEncrypt
	ErrorDecrypt
	ErrorCrypto
	ErrorWriteBucket
	ErrorSave
	ErrorBucketMissing
	ErrorDecode
	ErrorDeriveKey
	ErrorConvertID
	ErrorLookup
	ErrorLoad
	ErrorLoadAll
	ErrorDelete
	ErrorCreate
	ErrorRecordMissing
)

func (c Code) String() string { return strconv.Itoa(int(c)) }

// Message returns the default human-readable description of c.
func (c Code) Message() string {
	switch c {
	case ErrorOK:
		return "ok"
	case ErrorInternalEscape:
		return "internal error escape"
	case ErrorUnauthorized:
		return "error unauthorized"
	case ErrorInvalidType:
		return "error invalid type"
	case ErrorMarshal:
		return "error marshaling"
	case ErrorOpenKey:
		return "error retrieving key"
	case ErrorEncrypt:
		return "error encrypting"
	case ErrorDecrypt:
		return "error decrypting"
	case ErrorCrypto:
		return "cryptography error"
	case ErrorWriteBucket:
		return "error writing to bucket"
	case ErrorSave:
		return "error saving"
	case ErrorBucketMissing:
		return "error bucket missing"
	case ErrorDecode:
		return "error decoding"
	case ErrorDeriveKey:
		return "error deriving key"
	case ErrorConvertID:
		return "error converting id"
	case ErrorLookup:
		return "error looking up"
	case ErrorLoad:
		return "error loading"
	case ErrorLoadAll:
		return "error loading all"
	case ErrorDelete:
		return "error deleting"
	case ErrorCreate:
		return "error creating"
	case ErrorRecordMissing:
		return "error missing record"
	default:
		return "unknown internal error"
	}
}

// Scope identifies the backend subsystem that reported a failure.
type Scope int32

const (
	// ScopeGeneral is used when no narrower scope applies, including
	// internal errors that escaped a handler.
	ScopeGeneral Scope = iota
	ScopeAPI
	ScopeDB

	// ScopeRPC is the RPC layer itself: unknown methods, undecodable
	// requests and panicking handlers.
	ScopeRPC
)

func (s Scope) String() string {
	switch s {
	case ScopeGeneral:
		return "general"
	case ScopeAPI:
		return "api"
	case ScopeDB:
		return "db"
	case ScopeRPC:
		return "rpc"
	default:
		return "scope " + strconv.Itoa(int(s))
	}
}

// StatusError is a failure reported by the backend in a response
// header. Application is true for APP_ERROR statuses: failures that are
// part of normal operation (bad input, wrong state) rather than
// internal faults.
type StatusError struct {
	Scope       Scope
	Code        Code
	Application bool
	Message     string
}

// NewStatusError returns a system error with the default message for
// scope and code.
func NewStatusError(scope Scope, code Code) *StatusError {
	return &StatusError{
		Scope:   scope,
		Code:    code,
		Message: fmt.Sprintf("%s - %s", scope, code.Message()),
	}
}

// NewAppError returns an application error with a caller-supplied
// message.
func NewAppError(scope Scope, code Code, message string) *StatusError {
	return &StatusError{Scope: scope, Code: code, Application: true, Message: message}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend status %s/%s: %s", e.Scope, e.Code, e.Message)
}

// Status returns the header status string for e.
func (e *StatusError) Status() string {
	if e.Application {
		return StatusAppError
	}
	return StatusSystemError
}

// NewResponseHeader returns a success header.
func NewResponseHeader() *ResponseHeader {
	return &ResponseHeader{Code: ErrorOK, Status: StatusOK}
}

// SetError records err in the header. An error that is not a
// *StatusError is reported as ErrorInternalEscape so that internal
// details do not cross the RPC boundary.
func (m *ResponseHeader) SetError(err error) {
	var status *StatusError
	if !errors.As(err, &status) {
		status = NewStatusError(ScopeGeneral, ErrorInternalEscape)
	}
	m.Code = status.Code
	m.Scope = status.Scope
	if status.Application {
		m.Status = StatusAppError + ": " + status.Message
	} else {
		m.Status = StatusSystemError + ": " + status.Message
	}
}

// SetRPCError records an RPC-layer failure with the given code.
func (m *ResponseHeader) SetRPCError(code Code) {
	m.Code = code
	m.Scope = ScopeRPC
	m.Status = StatusSystemError
}

// Err returns nil when the header reports success and a *StatusError
// otherwise. A nil header is success: the header is optional on the
// wire.
func (m *ResponseHeader) Err() error {
	if m == nil {
		return nil
	}
	if m.Code == ErrorOK && (m.Status == "" || m.Status == StatusOK) {
		return nil
	}
	status, message := splitStatus(m.Status)
	if message == "" {
		message = fmt.Sprintf("%s - %s", m.Scope, m.Code.Message())
	}
	return &StatusError{
		Scope:       m.Scope,
		Code:        m.Code,
		Application: status == StatusAppError,
		Message:     message,
	}
}

// splitStatus separates "APP_ERROR: message" into its parts. A status
// without a recognised prefix is returned whole as the message.
func splitStatus(s string) (status, message string) {
	for _, prefix := range []string{StatusAppError, StatusSystemError} {
		if s == prefix {
			return prefix, ""
		}
		if message, ok := strings.CutPrefix(s, prefix+": "); ok {
			return prefix, message
		}
	}
	return StatusSystemError, s
}
