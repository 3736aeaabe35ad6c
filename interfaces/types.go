package interfaces

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"strings"
)

// MaxIdentityLength is the largest accepted identity in bytes, terminator excluded.
const MaxIdentityLength = 1024

// Identity is the certificate subject common name requested by a client.
// Two requests refer to the same identity iff their trimmed bytes are equal.
type Identity string

// NewIdentity trims the framed identity bytes. Spaces are the only whitespace
// a well formed request may contain.
func NewIdentity(raw []byte) Identity {
	return Identity(strings.Trim(string(raw), " "))
}

func (i Identity) String() string {
	return string(i)
}

// KeyMaterial is what a client receives on success.
type KeyMaterial struct {
	PrivateKeyPEM  []byte
	CertificatePEM []byte
}

// Outcome is the result of one generation. Exactly one of Material and Err is set.
type Outcome struct {
	Material *KeyMaterial
	Err      error
}

// Succeeded wraps key material into an outcome.
func Succeeded(material *KeyMaterial) Outcome {
	return Outcome{Material: material}
}

// Failed wraps a generation error into an outcome.
func Failed(err error) Outcome {
	return Outcome{Err: err}
}

// IsFailure reports whether the generation failed.
func (o Outcome) IsFailure() bool {
	return o.Err != nil || o.Material == nil
}

// CertificateAuthority issues key pairs and certificates signed by the issuer key.
type CertificateAuthority interface {
	// GenerateKeyPair creates a fresh RSA key pair of the configured size.
	GenerateKeyPair() (*rsa.PrivateKey, error)

	// SignCertificate issues a certificate for subject over the given public key.
	SignCertificate(subject Identity, publicKey crypto.PublicKey) (*x509.Certificate, error)
}
