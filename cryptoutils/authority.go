package cryptoutils

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"strconv"
	"time"

	hqgoerrors "github.com/hueristiq/hq-go-errors"
	"github.com/ruteri/key-issuer/interfaces"
)

const (
	DefaultKeyBits  = 8192
	DefaultValidity = 365 * 24 * time.Hour
	// DefaultBackdate is subtracted from the issuance time for NotBefore.
	DefaultBackdate = 5 * time.Minute
)

// Authority issues RSA key pairs and certificates signed by a single issuer key.
// It is safe for concurrent use.
type Authority struct {
	issuer    *DistinguishedName
	issuerSKI []byte
	signer    crypto.Signer
	keyBits   int
	validity  time.Duration
	backdate  time.Duration
	now       func() time.Time
}

var _ interfaces.CertificateAuthority = (*Authority)(nil)

// AuthorityOptionFunc configures an Authority.
type AuthorityOptionFunc func(authority *Authority)

// WithKeyBits sets the size of generated RSA keys.
func WithKeyBits(bits int) AuthorityOptionFunc {
	return func(authority *Authority) {
		authority.keyBits = bits
	}
}

// WithValidity sets how long issued certificates stay valid.
func WithValidity(validity time.Duration) AuthorityOptionFunc {
	return func(authority *Authority) {
		authority.validity = validity
	}
}

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) AuthorityOptionFunc {
	return func(authority *Authority) {
		authority.now = now
	}
}

// NewAuthority creates an authority that signs with signer under the issuer
// name issuerDN, e.g. "CN=KeyIssuer,O=NSU".
func NewAuthority(issuerDN string, signer crypto.Signer, ops ...AuthorityOptionFunc) (authority *Authority, err error) {
	if signer == nil {
		err = hqgoerrors.New("issuer signing key is required")

		return
	}

	authority = &Authority{
		signer:   signer,
		keyBits:  DefaultKeyBits,
		validity: DefaultValidity,
		backdate: DefaultBackdate,
		now:      time.Now,
	}

	for _, f := range ops {
		f(authority)
	}

	if authority.keyBits < 1024 {
		err = hqgoerrors.New("key size too small", hqgoerrors.WithField("bits", strconv.Itoa(authority.keyBits)))

		return
	}

	if authority.validity <= 0 {
		err = hqgoerrors.New("validity must be positive", hqgoerrors.WithField("validity", authority.validity.String()))

		return
	}

	authority.issuer, err = ParseDistinguishedName(issuerDN)
	if err != nil {
		err = hqgoerrors.Wrap(err, "invalid issuer name")

		return
	}

	authority.issuerSKI, err = generateSubjectKeyID(signer.Public())
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to derive issuer key identifier")

		return
	}

	return
}

// Issuer returns the parsed issuer name.
func (authority *Authority) Issuer() *DistinguishedName {
	return authority.issuer
}

// KeyBits returns the size of generated keys.
func (authority *Authority) KeyBits() int {
	return authority.keyBits
}

// GenerateKeyPair creates a fresh RSA key pair. With the default size this
// takes seconds, callers run it off the network loop.
func (authority *Authority) GenerateKeyPair() (privateKey *rsa.PrivateKey, err error) {
	privateKey, err = rsa.GenerateKey(rand.Reader, authority.keyBits)
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to generate RSA private key", hqgoerrors.WithField("bits", strconv.Itoa(authority.keyBits)))

		return
	}

	return
}

// SignCertificate issues a certificate for subject over publicKey.
func (authority *Authority) SignCertificate(subject interfaces.Identity, publicKey crypto.PublicKey) (certificate *x509.Certificate, err error) {
	var subjectKeyID []byte

	subjectKeyID, err = generateSubjectKeyID(publicKey)
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to generate subject key ID", hqgoerrors.WithField("subject", subject.String()))

		return
	}

	var serialNumber *big.Int

	serialNumber, err = generateSerialNumber()
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to generate serial")

		return
	}

	issuedAt := authority.now()

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName: subject.String(),
		},
		SubjectKeyId:          subjectKeyID,
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		NotBefore:             issuedAt.Add(-authority.backdate),
		NotAfter:              issuedAt.Add(authority.validity),
	}

	parent := &x509.Certificate{
		RawSubject:   authority.issuer.Raw,
		SubjectKeyId: authority.issuerSKI,
	}

	var certificateInBytes []byte

	certificateInBytes, err = x509.CreateCertificate(rand.Reader, template, parent, publicKey, authority.signer)
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to create certificate", hqgoerrors.WithField("subject", subject.String()))

		return
	}

	certificate, err = x509.ParseCertificate(certificateInBytes)
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to parse certificate")

		return
	}

	return
}

func generateSerialNumber() (serialNumber *big.Int, err error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)

	serialNumber, err = rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to generate random serial number")

		return
	}

	if serialNumber.Sign() == 0 {
		serialNumber = big.NewInt(1)
	}

	return
}

// generateSubjectKeyID is the SHA-1 of the PKIX public key (RFC 5280 4.2.1.2).
func generateSubjectKeyID(publicKey crypto.PublicKey) (keyID []byte, err error) {
	var pkixPublicKey []byte

	pkixPublicKey, err = x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		err = hqgoerrors.Wrap(err, "failed to marshal public key to PKIX format")

		return
	}

	sum := sha1.Sum(pkixPublicKey)

	keyID = sum[:]

	return
}
