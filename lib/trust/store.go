// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trust

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/bureau-foundation/tether/lib/identity"
	"github.com/bureau-foundation/tether/lib/rpcerr"
)

// EmptyToken is the client token sent before key exchange has
// completed. The backend ignores it for the readiness probe and the key
// exchange itself.
const EmptyToken = "Empty"

// State is the trust state of a Store.
type State int

const (
	// Untrusted is the initial state: no backend key, EmptyToken, and
	// every verification fails.
	Untrusted State = iota

	// Trusted is entered once a key exchange response has verified
	// against the key it carried. There is no way back.
	Trusted
)

func (s State) String() string {
	switch s {
	case Untrusted:
		return "untrusted"
	case Trusted:
		return "trusted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrUntrusted is returned by Verify, and by any caller that needs
	// the backend key, before key exchange has completed.
	ErrUntrusted = rpcerr.New(rpcerr.KindAuthentication, "no verification key: key exchange has not completed")

	// ErrAlreadyTrusted is returned by CompleteKeyExchange on a store
	// that is already Trusted. The installed key and token are kept.
	ErrAlreadyTrusted = rpcerr.New(rpcerr.KindAuthentication, "key exchange already completed")

	// ErrKeyExchangeInvalid is returned when a key exchange response
	// cannot be accepted: it carries no token, or its signature does
	// not verify against the key it carries. A session that sees it
	// cannot recover and must be discarded.
	ErrKeyExchangeInvalid = rpcerr.New(rpcerr.KindAuthentication, "key exchange response failed verification")
)

// Store is the trust state of one session. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	state     State
	verifyKey ed25519.PublicKey
	token     string
}

// NewStore returns an Untrusted store.
func NewStore() *Store {
	return &Store{state: Untrusted, token: EmptyToken}
}

// State returns the current trust state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ClientToken returns the backend-issued session token, or EmptyToken
// before key exchange.
func (s *Store) ClientToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// VerifyKey returns a copy of the backend verification key, or nil
// while Untrusted.
func (s *Store) VerifyKey() ed25519.PublicKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.verifyKey == nil {
		return nil
	}
	return append(ed25519.PublicKey(nil), s.verifyKey...)
}

// CompleteKeyExchange performs the Untrusted to Trusted transition.
// publicKey and token come from the decoded key exchange response; body
// is the exact response envelope bytes and signature the backend's
// signature over them.
//
// The key and token are installed first and the signature is then
// checked with that key. On any failure the store is left Untrusted
// with no key and EmptyToken, and the returned error matches
// ErrKeyExchangeInvalid.
func (s *Store) CompleteKeyExchange(publicKey []byte, token string, body, signature []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Trusted {
		return ErrAlreadyTrusted
	}
	if token == "" || token == EmptyToken {
		return fmt.Errorf("%w: backend issued no client token", ErrKeyExchangeInvalid)
	}

	s.verifyKey = append(ed25519.PublicKey(nil), publicKey...)
	s.token = token

	if err := identity.Verify(s.verifyKey, body, signature); err != nil {
		s.verifyKey = nil
		s.token = EmptyToken
		return fmt.Errorf("%w: %w", ErrKeyExchangeInvalid, err)
	}

	s.state = Trusted
	return nil
}

// Verify checks signature over body against the backend key. It fails
// with ErrUntrusted until key exchange has completed.
func (s *Store) Verify(body, signature []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != Trusted {
		return ErrUntrusted
	}
	return identity.Verify(s.verifyKey, body, signature)
}
