package rpc

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

// Fingerprint returns the sha256 fingerprint of a DER-encoded x509 certificate.
func Fingerprint(cert []byte) string {
	sum := sha256.Sum256(cert)
	return hex.EncodeToString(sum[:])
}

// LoadCertificate loads the certificate stored in dir or generates a new one.
// Identity is fingerprint-based: peers trust each other by pinning the
// returned fingerprint, not through a CA.
func LoadCertificate(dir string) (tls.Certificate, string /* fingerprint */, error) {
	dir = filepath.Join(dir, "tls")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return tls.Certificate{}, "", err
	}

	var (
		certFile = filepath.Join(dir, "cert.pem")
		keyFile  = filepath.Join(dir, "key.pem")
	)

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		// missing or corrupt - mint a new keypair
		certPem, keyPem, err := newSelfSignedCert()
		if err != nil {
			return tls.Certificate{}, "", fmt.Errorf("generating certificate: %w", err)
		}
		if err := os.WriteFile(certFile, certPem, 0644); err != nil {
			return tls.Certificate{}, "", fmt.Errorf("writing certificate: %w", err)
		}
		if err := os.WriteFile(keyFile, keyPem, 0600); err != nil {
			return tls.Certificate{}, "", fmt.Errorf("writing private key: %w", err)
		}

		cert, err = tls.X509KeyPair(certPem, keyPem)
		if err != nil {
			return tls.Certificate{}, "", err
		}
	}

	cert.Leaf, err = x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return tls.Certificate{}, "", err
	}

	return cert, Fingerprint(cert.Leaf.Raw), nil
}

func newSelfSignedCert() ([]byte, []byte, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "preflight"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour * 24 * 3650),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}

	keyDer, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, err
	}

	certPem := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPem := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDer})
	return certPem, keyPem, nil
}
