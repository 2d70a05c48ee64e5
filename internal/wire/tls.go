package wire

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"
)

const (
	certCommonName = "kolibri-node"
	certDaysValid  = 365
)

// SelfSignedCert generates a fresh RSA-2048 key and self-signed
// certificate. Every process start gets a new identity: this encrypts the
// wire against passive sniffing but authenticates nobody, and peers are
// expected to skip verification. A known weakness, kept for
// compatibility.
func SelfSignedCert() (tls.Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("wire: generate key: %w", err)
	}
	now := time.Now()
	template := x509.Certificate{
		SerialNumber: big.NewInt(now.Unix()),
		Subject:      pkix.Name{CommonName: certCommonName},
		NotBefore:    now,
		NotAfter:     now.Add(certDaysValid * 24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("wire: self-sign: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}, nil
}
