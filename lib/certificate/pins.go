// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package certificate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/tether/lib/codec"
	"github.com/bureau-foundation/tether/lib/rpcerr"
)

// ErrPinMismatch is returned when an endpoint presents a certificate
// other than the one pinned for it.
var ErrPinMismatch = rpcerr.New(rpcerr.KindCertificate, "certificate does not match the pinned fingerprint")

// pinFileVersion is bumped on incompatible changes to pinFile.
const pinFileVersion = 1

type pinFile struct {
	Version int                  `cbor:"version"`
	Pins    map[string]pinRecord `cbor:"pins"`
}

type pinRecord struct {
	Fingerprint []byte `cbor:"fingerprint"`
	FirstSeen   int64  `cbor:"first_seen"`
}

// Pin is one recorded endpoint fingerprint.
type Pin struct {
	Endpoint    string
	Fingerprint Fingerprint
	FirstSeen   time.Time
}

// PinStore records the certificate fingerprint first seen for each
// endpoint, persisted as a CBOR file. Safe for concurrent use within
// one process.
type PinStore struct {
	path string
	now  func() time.Time

	mu   sync.Mutex
	pins map[string]pinRecord
}

// OpenPinStore reads the pin file at path. A missing file is an empty
// store; it is created on the first write.
func OpenPinStore(path string) (*PinStore, error) {
	store := &PinStore{path: path, now: time.Now, pins: make(map[string]pinRecord)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading pin file: %w", err)
	}

	var file pinFile
	if err := codec.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding pin file %s: %w", path, err)
	}
	if file.Version != pinFileVersion {
		return nil, fmt.Errorf("pin file %s has version %d, want %d", path, file.Version, pinFileVersion)
	}
	for endpoint, record := range file.Pins {
		if len(record.Fingerprint) != len(Fingerprint{}) {
			return nil, fmt.Errorf("pin file %s: endpoint %q has a %d-byte fingerprint", path, endpoint, len(record.Fingerprint))
		}
		store.pins[endpoint] = record
	}
	return store, nil
}

// Check compares fingerprint with the pin for endpoint. With no pin,
// the fingerprint is recorded and firstUse is true. A different
// fingerprint returns ErrPinMismatch and leaves the pin unchanged.
func (s *PinStore) Check(endpoint string, fingerprint Fingerprint) (firstUse bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.pins[endpoint]; ok {
		if Fingerprint(record.Fingerprint) != fingerprint {
			return false, fmt.Errorf("%w: endpoint %s pinned to %s, presented %s",
				ErrPinMismatch, endpoint, Fingerprint(record.Fingerprint), fingerprint)
		}
		return false, nil
	}

	s.pins[endpoint] = pinRecord{Fingerprint: fingerprint[:], FirstSeen: s.now().Unix()}
	if err := s.save(); err != nil {
		delete(s.pins, endpoint)
		return false, err
	}
	return true, nil
}

// Lookup returns the pin for endpoint.
func (s *PinStore) Lookup(endpoint string) (Pin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.pins[endpoint]
	if !ok {
		return Pin{}, false
	}
	return record.pin(endpoint), true
}

// List returns every pin, sorted by endpoint.
func (s *PinStore) List() []Pin {
	s.mu.Lock()
	defer s.mu.Unlock()
	pins := make([]Pin, 0, len(s.pins))
	for endpoint, record := range s.pins {
		pins = append(pins, record.pin(endpoint))
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i].Endpoint < pins[j].Endpoint })
	return pins
}

// Forget removes the pin for endpoint, so the next Check trusts
// whatever certificate it is given. Forgetting an unknown endpoint is
// not an error.
func (s *PinStore) Forget(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.pins[endpoint]
	if !ok {
		return nil
	}
	delete(s.pins, endpoint)
	if err := s.save(); err != nil {
		s.pins[endpoint] = record
		return err
	}
	return nil
}

func (r pinRecord) pin(endpoint string) Pin {
	return Pin{
		Endpoint:    endpoint,
		Fingerprint: Fingerprint(r.Fingerprint),
		FirstSeen:   time.Unix(r.FirstSeen, 0),
	}
}

// save writes the store. Caller holds s.mu.
func (s *PinStore) save() error {
	data, err := codec.Marshal(pinFile{Version: pinFileVersion, Pins: s.pins})
	if err != nil {
		return fmt.Errorf("encoding pin file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating pin directory: %w", err)
	}
	return writeFileAtomic(s.path, data, 0600)
}
