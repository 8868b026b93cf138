// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

type samplePin struct {
	Endpoint    string `cbor:"endpoint"`
	Fingerprint []byte `cbor:"fingerprint"`
	Seen        int64  `cbor:"seen,omitempty"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := samplePin{
		Endpoint:    "localhost:53017",
		Fingerprint: bytes.Repeat([]byte{0xab}, 32),
		Seen:        1700000000,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded samplePin
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Endpoint != original.Endpoint || decoded.Seen != original.Seen ||
		!bytes.Equal(decoded.Fingerprint, original.Fingerprint) {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministicMapOrder(t *testing.T) {
	pins := map[string]int{}
	for _, key := range []string{"zeta", "alpha", "mid", "beta", "omega"} {
		pins[key] = len(key)
	}

	first, err := Marshal(pins)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 20 {
		again, err := Marshal(pins)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("map encoding is not deterministic")
		}
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	data, err := Marshal(map[string]any{
		"endpoint": "localhost:53017",
		"future":   []int{1, 2, 3},
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded samplePin
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Endpoint != "localhost:53017" {
		t.Errorf("Endpoint = %q, want localhost:53017", decoded.Endpoint)
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded.(map[string]any); !ok {
		t.Errorf("decoded type = %T, want map[string]any", decoded)
	}
}

func TestUnmarshalRejectsTruncatedInput(t *testing.T) {
	data, err := Marshal(samplePin{Endpoint: "localhost:53017"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded samplePin
	if err := Unmarshal(data[:len(data)-2], &decoded); err == nil {
		t.Error("Unmarshal of truncated input succeeded")
	}
}
