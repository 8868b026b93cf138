// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/bureau-foundation/tether/lib/rpcerr"
)

// SignatureSize is the fixed size of an Ed25519 signature.
const SignatureSize = ed25519.SignatureSize

// Errors returned by Verify.
var (
	ErrInvalidSignature = rpcerr.New(rpcerr.KindAuthentication, "invalid Ed25519 signature")
	ErrInvalidPublicKey = rpcerr.New(rpcerr.KindAuthentication, "invalid Ed25519 public key")
)

// Identity is an Ed25519 keypair owned by a single session.
type Identity struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// Generate creates a fresh identity from crypto/rand. An error means the
// system entropy source is unavailable; callers treat it as fatal.
func Generate() (*Identity, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating Ed25519 keypair: %w", err)
	}
	return &Identity{public: public, private: private}, nil
}

// PublicKey returns a copy of the verification half of the keypair.
func (id *Identity) PublicKey() ed25519.PublicKey {
	return append(ed25519.PublicKey(nil), id.public...)
}

// Sign returns the 64-byte Ed25519 signature of payload. Ed25519 is
// deterministic: the same payload always yields the same signature.
func (id *Identity) Sign(payload []byte) []byte {
	return ed25519.Sign(id.private, payload)
}

// Verify checks that signature is a valid Ed25519 signature of payload
// under publicKey.
func Verify(publicKey ed25519.PublicKey, payload, signature []byte) error {
	if len(publicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: %d bytes, want %d", ErrInvalidPublicKey, len(publicKey), ed25519.PublicKeySize)
	}
	if len(signature) != SignatureSize || !ed25519.Verify(publicKey, payload, signature) {
		return ErrInvalidSignature
	}
	return nil
}
