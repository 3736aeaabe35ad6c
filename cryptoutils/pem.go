package cryptoutils

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"

	hqgoerrors "github.com/hueristiq/hq-go-errors"
)

const (
	pemTypeCertificate   = "CERTIFICATE"
	pemTypePrivateKey    = "PRIVATE KEY"
	pemTypeRSAPrivateKey = "RSA PRIVATE KEY"
	pemTypeECPrivateKey  = "EC PRIVATE KEY"
)

// CertificateToPEM encodes a certificate as a "CERTIFICATE" PEM block.
func CertificateToPEM(certificate *x509.Certificate) (raw []byte, err error) {
	if certificate == nil || len(certificate.Raw) == 0 {
		err = hqgoerrors.New("certificate is empty")

		return
	}

	raw = pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: certificate.Raw})

	return
}

// PrivateKeyToPEM marshals an RSA private key to PKCS#8 and encodes it as a
// "PRIVATE KEY" PEM block.
func PrivateKeyToPEM(privateKey *rsa.PrivateKey) (raw []byte, err error) {
	var privateKeyBytes []byte

	privateKeyBytes, err = x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to marshal private key to PKCS#8")

		return
	}

	raw = pem.EncodeToMemory(&pem.Block{Type: pemTypePrivateKey, Bytes: privateKeyBytes})

	return
}

// ParsePrivateKeyPEM decodes the first PEM block of data as a signing key.
// PKCS#8, PKCS#1 and SEC1 encodings are accepted.
func ParsePrivateKeyPEM(data []byte) (signer crypto.Signer, err error) {
	block, _ := pem.Decode(data)
	if block == nil {
		err = hqgoerrors.New("no PEM block found")

		return
	}

	var key any

	switch block.Type {
	case pemTypePrivateKey:
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case pemTypeRSAPrivateKey:
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case pemTypeECPrivateKey:
		key, err = x509.ParseECPrivateKey(block.Bytes)
	default:
		err = hqgoerrors.New("unsupported PEM block", hqgoerrors.WithField("type", block.Type))

		return
	}

	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to parse private key", hqgoerrors.WithField("type", block.Type))

		return
	}

	signer, ok := key.(crypto.Signer)
	if !ok {
		err = hqgoerrors.New("private key cannot sign")

		return
	}

	return
}

// LoadPrivateKeyPEM reads and parses the issuer private key from path.
func LoadPrivateKeyPEM(path string) (signer crypto.Signer, err error) {
	var data []byte

	data, err = os.ReadFile(path)
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to read private key", hqgoerrors.WithField("path", path))

		return
	}

	signer, err = ParsePrivateKeyPEM(data)
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to load private key", hqgoerrors.WithField("path", path))

		return
	}

	return
}
