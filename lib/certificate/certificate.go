// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package certificate

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/bureau-foundation/tether/lib/rpcerr"
)

// Errors returned by Certificate. Every error from this package matches
// rpcerr.ErrCertificate.
var (
	ErrNotExist       = rpcerr.New(rpcerr.KindCertificate, "certificate file does not exist")
	ErrPermission     = rpcerr.New(rpcerr.KindCertificate, "certificate file permission denied")
	ErrNotLoaded      = rpcerr.New(rpcerr.KindCertificate, "certificate has not been loaded")
	ErrNoCertificates = rpcerr.New(rpcerr.KindCertificate, "certificate file contains no PEM certificate")
)

// Certificate is the backend certificate as seen by the front-end: a
// path, and the PEM bytes read from it once. Safe for concurrent use.
type Certificate struct {
	path string

	mu        sync.Mutex
	attempted bool
	err       error
	pem       []byte
	leaf      *x509.Certificate
	pool      *x509.CertPool
}

// New returns an unloaded Certificate for the file at path.
func New(path string) *Certificate {
	return &Certificate{path: path}
}

// Path returns the certificate file path.
func (c *Certificate) Path() string { return c.path }

// Load reads and parses the certificate file. Only the first call
// touches the filesystem; later calls return the first call's result.
// A missing file returns ErrNotExist and an unreadable one
// ErrPermission.
func (c *Certificate) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempted {
		return c.err
	}
	c.attempted = true
	c.err = c.load()
	return c.err
}

func (c *Certificate) load() error {
	data, err := os.ReadFile(c.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotExist
	case errors.Is(err, fs.ErrPermission):
		return ErrPermission
	case err != nil:
		return rpcerr.Certificate("reading certificate file", err)
	}

	pool := x509.NewCertPool()
	var leaf *x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		parsed, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return rpcerr.Certificate("parsing certificate", err)
		}
		if leaf == nil {
			leaf = parsed
		}
		pool.AddCert(parsed)
	}
	if leaf == nil {
		return ErrNoCertificates
	}

	c.pem = data
	c.leaf = leaf
	c.pool = pool
	return nil
}

// Loaded reports whether Load has succeeded.
func (c *Certificate) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempted && c.err == nil
}

// Bytes returns a copy of the PEM file contents, or nil before a
// successful Load.
func (c *Certificate) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pem == nil {
		return nil
	}
	return append([]byte(nil), c.pem...)
}

// Pool returns a pool holding every certificate in the file, for use as
// the RootCAs of a TLS client. It returns ErrNotLoaded before a
// successful Load.
func (c *Certificate) Pool() (*x509.CertPool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool == nil {
		return nil, ErrNotLoaded
	}
	return c.pool.Clone(), nil
}

// Fingerprint returns the fingerprint of the first certificate in the
// file.
func (c *Certificate) Fingerprint() (Fingerprint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.leaf == nil {
		return Fingerprint{}, ErrNotLoaded
	}
	return FingerprintOf(c.leaf.Raw), nil
}
