// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package certificate

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Fingerprint is the BLAKE3 keyed hash of a certificate's DER encoding.
type Fingerprint [32]byte

// fingerprintDomainKey is the BLAKE3 key for certificate fingerprints:
// the ASCII domain name zero-padded to 32 bytes.
var fingerprintDomainKey = [32]byte{
	't', 'e', 't', 'h', 'e', 'r', '.', 'c', 'e', 'r', 't', 'i', 'f', 'i', 'c', 'a',
	't', 'e', '.', 'p', 'i', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// FingerprintOf returns the fingerprint of a DER-encoded certificate.
func FingerprintOf(der []byte) Fingerprint {
	hasher, err := blake3.NewKeyed(fingerprintDomainKey[:])
	if err != nil {
		panic("certificate: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(der)
	var fingerprint Fingerprint
	copy(fingerprint[:], hasher.Sum(nil))
	return fingerprint
}

// String returns the lower-case hex encoding.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether f is the zero value.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// ParseFingerprint parses the output of Fingerprint.String.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fingerprint Fingerprint
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fingerprint, fmt.Errorf("parsing fingerprint: %w", err)
	}
	if len(decoded) != len(fingerprint) {
		return fingerprint, fmt.Errorf("parsing fingerprint: got %d bytes, want %d", len(decoded), len(fingerprint))
	}
	copy(fingerprint[:], decoded)
	return fingerprint, nil
}
