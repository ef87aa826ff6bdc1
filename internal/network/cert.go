package network

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// certValidity is how long a generated node certificate stays valid.
const certValidity = 365 * 24 * time.Hour

// ErrServerKeyMismatch is returned when a ledger node presents a key other than the pinned one.
var ErrServerKeyMismatch = errors.New("server key does not match pinned key")

// serverTLS returns the TLS configuration a ledger node listens with.
// Clients are not asked for certificates.
func serverTLS(key ed25519.PrivateKey) (*tls.Config, error) {
	cert, err := nodeCertificate(key)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{alpnProtocol},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// clientTLS returns the TLS configuration used to query a ledger node.
// The chain is never checked against a CA: the node identity is the ed25519
// key inside its self-signed certificate, matched against pinned when set.
func clientTLS(key ed25519.PrivateKey, pinned ed25519.PublicKey) (*tls.Config, error) {
	cfg := &tls.Config{
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyNodeCertificate(pinned),
		NextProtos:            []string{alpnProtocol},
		MinVersion:            tls.VersionTLS13,
	}

	if key != nil {
		cert, err := nodeCertificate(key)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// verifyNodeCertificate checks that the peer presents a self-signed ed25519
// certificate and, when pinned is set, that it carries the pinned key.
func verifyNodeCertificate(pinned ed25519.PublicKey) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		key, err := nodeKey(rawCerts)
		if err != nil {
			return err
		}

		if pinned != nil && !bytes.Equal(key, pinned) {
			return fmt.Errorf("%w: got %x", ErrServerKeyMismatch, []byte(key))
		}

		return nil
	}
}

// nodeKey extracts the ed25519 identity from the leaf of a raw certificate chain.
func nodeKey(rawCerts [][]byte) (ed25519.PublicKey, error) {
	if len(rawCerts) == 0 {
		return nil, errors.New("no node certificate")
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return nil, fmt.Errorf("parse node certificate: %w", err)
	}

	key, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("node certificate does not carry an ed25519 key")
	}

	if err := cert.CheckSignatureFrom(cert); err != nil {
		return nil, fmt.Errorf("node certificate is not self-signed: %w", err)
	}

	return key, nil
}

// nodeCertificate creates a self-signed certificate for a node identity key.
func nodeCertificate(key ed25519.PrivateKey) (tls.Certificate, error) {
	public := key.Public().(ed25519.PublicKey)

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: fmt.Sprintf("chainsnap-%x", public[:8])},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(certValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, public, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create node certificate: %w", err)
	}

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse node certificate: %w", err)
	}

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, nil
}
