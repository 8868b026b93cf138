// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package certificate

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// File names inside the backend data directory.
const (
	CertificateFile = "certificate"
	KeyFile         = "certificate.key"
)

// notAfter is the last instant representable in UTCTime, the latest
// expiry every TLS stack accepts without GeneralizedTime.
var notAfter = time.Date(2049, 12, 31, 23, 59, 59, 0, time.UTC)

// Subject lists the names and addresses a generated certificate
// covers.
type Subject struct {
	DNSNames    []string
	IPAddresses []net.IP
}

// LocalSubject returns the host name, "localhost", the loopback
// addresses and the address of every local interface.
func LocalSubject() (Subject, error) {
	host, err := os.Hostname()
	if err != nil {
		return Subject{}, fmt.Errorf("getting hostname: %w", err)
	}

	subject := Subject{
		DNSNames:    []string{host},
		IPAddresses: []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}
	if host != "localhost" {
		subject.DNSNames = append(subject.DNSNames, "localhost")
	}

	addresses, err := net.InterfaceAddrs()
	if err != nil {
		return Subject{}, fmt.Errorf("listing interface addresses: %w", err)
	}
	for _, address := range addresses {
		ip, _, err := net.ParseCIDR(address.String())
		if err != nil {
			continue
		}
		if !slices.ContainsFunc(subject.IPAddresses, ip.Equal) {
			subject.IPAddresses = append(subject.IPAddresses, ip)
		}
	}
	return subject, nil
}

// GenerateSelfSigned creates a self-signed ECDSA P-256 certificate for
// subject, valid from a day before now until the end of 2049. It
// returns the certificate and private key PEM-encoded.
func GenerateSelfSigned(subject Subject, now time.Time) (certificatePEM, keyPEM []byte, err error) {
	if len(subject.DNSNames) == 0 && len(subject.IPAddresses) == 0 {
		return nil, nil, errors.New("certificate subject has no names or addresses")
	}

	serialLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, serialLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("generating serial number: %w", err)
	}

	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generating private key: %w", err)
	}

	commonName := "localhost"
	if len(subject.DNSNames) > 0 {
		commonName = subject.DNSNames[0]
	}
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"tether"},
			CommonName:   commonName,
		},
		NotBefore:             now.Add(-24 * time.Hour),
		NotAfter:              notAfter,
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              subject.DNSNames,
		IPAddresses:           subject.IPAddresses,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("creating certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling private key: %w", err)
	}

	certificatePEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certificatePEM, keyPEM, nil
}

// KeyPair is the backend's serving certificate.
type KeyPair struct {
	TLS             tls.Certificate
	CertificatePath string
	Fingerprint     Fingerprint

	// Generated is true when LoadOrGenerate created the files rather
	// than reading existing ones.
	Generated bool
}

// LoadOrGenerate returns the certificate stored in dir, generating and
// writing a new one for LocalSubject when none exists, when either file
// is missing, or when the stored certificate has expired. dir is
// created with mode 0700 if needed; both files are written with mode
// 0600.
func LoadOrGenerate(dir string, now time.Time) (*KeyPair, error) {
	certificatePath := filepath.Join(dir, CertificateFile)
	keyPath := filepath.Join(dir, KeyFile)

	pair, err := loadKeyPair(certificatePath, keyPath, now)
	if err == nil {
		return pair, nil
	}
	if !errors.Is(err, errRegenerate) {
		return nil, err
	}

	subject, err := LocalSubject()
	if err != nil {
		return nil, err
	}
	certificatePEM, keyPEM, err := GenerateSelfSigned(subject, now)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating certificate directory: %w", err)
	}
	// Key first: a certificate file on disk implies its key exists.
	if err := writeFileAtomic(keyPath, keyPEM, 0600); err != nil {
		return nil, err
	}
	if err := writeFileAtomic(certificatePath, certificatePEM, 0600); err != nil {
		return nil, err
	}

	pair, err = keyPairFromPEM(certificatePEM, keyPEM)
	if err != nil {
		return nil, err
	}
	pair.CertificatePath = certificatePath
	pair.Generated = true
	return pair, nil
}

var errRegenerate = errors.New("certificate must be regenerated")

func loadKeyPair(certificatePath, keyPath string, now time.Time) (*KeyPair, error) {
	certificatePEM, err := os.ReadFile(certificatePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errRegenerate
	}
	if err != nil {
		return nil, fmt.Errorf("reading certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errRegenerate
	}
	if err != nil {
		return nil, fmt.Errorf("reading certificate key: %w", err)
	}

	pair, err := keyPairFromPEM(certificatePEM, keyPEM)
	if err != nil {
		return nil, err
	}
	if now.After(pair.TLS.Leaf.NotAfter) {
		return nil, errRegenerate
	}
	pair.CertificatePath = certificatePath
	return pair, nil
}

func keyPairFromPEM(certificatePEM, keyPEM []byte) (*KeyPair, error) {
	keyPair, err := tls.X509KeyPair(certificatePEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing certificate key pair: %w", err)
	}
	if keyPair.Leaf == nil {
		keyPair.Leaf, err = x509.ParseCertificate(keyPair.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("parsing certificate: %w", err)
		}
	}
	return &KeyPair{
		TLS:         keyPair,
		Fingerprint: FingerprintOf(keyPair.Leaf.Raw),
	}, nil
}
