package cryptoutils

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	issuerKeyOnce sync.Once
	issuerKey     *rsa.PrivateKey
)

func testIssuerKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	issuerKeyOnce.Do(func() {
		var err error
		issuerKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
	return issuerKey
}

func TestNewAuthority(t *testing.T) {
	key := testIssuerKey(t)

	_, err := NewAuthority("CN=KeyIssuer,O=NSU", nil)
	require.Error(t, err)

	_, err = NewAuthority("not a dn", key)
	require.Error(t, err)

	_, err = NewAuthority("CN=KeyIssuer", key, WithKeyBits(512))
	require.Error(t, err)

	_, err = NewAuthority("CN=KeyIssuer", key, WithValidity(0))
	require.Error(t, err)

	ca, err := NewAuthority("CN=KeyIssuer,O=NSU", key)
	require.NoError(t, err)
	assert.Equal(t, DefaultKeyBits, ca.KeyBits())
	assert.Equal(t, "KeyIssuer", ca.Issuer().Name.CommonName)
	assert.Equal(t, []string{"NSU"}, ca.Issuer().Name.Organization)
}

func TestAuthority_IssueCertificate(t *testing.T) {
	key := testIssuerKey(t)
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	ca, err := NewAuthority("CN=KeyIssuer,O=NSU", key,
		WithKeyBits(2048),
		WithValidity(30*24*time.Hour),
		WithClock(func() time.Time { return issuedAt }),
	)
	require.NoError(t, err)

	privateKey, err := ca.GenerateKeyPair()
	require.NoError(t, err)
	require.Equal(t, 2048, privateKey.N.BitLen())

	cert, err := ca.SignCertificate("alice", privateKey.Public())
	require.NoError(t, err)

	assert.Equal(t, "alice", cert.Subject.CommonName)
	assert.Equal(t, ca.Issuer().Raw, cert.RawIssuer)
	assert.Equal(t, "KeyIssuer", cert.Issuer.CommonName)
	assert.Equal(t, issuedAt.Add(-DefaultBackdate), cert.NotBefore)
	assert.Equal(t, issuedAt.Add(30*24*time.Hour), cert.NotAfter)
	assert.Equal(t, x509.SHA256WithRSA, cert.SignatureAlgorithm)
	assert.Positive(t, cert.SerialNumber.Sign())
	assert.True(t, cert.PublicKey.(*rsa.PublicKey).Equal(privateKey.Public()))

	digest := sha256.Sum256(cert.RawTBSCertificate)
	require.NoError(t, rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], cert.Signature))

	other, err := ca.SignCertificate("alice", privateKey.Public())
	require.NoError(t, err)
	assert.NotEqual(t, cert.SerialNumber, other.SerialNumber)
}

func TestAuthority_ECDSAIssuer(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	ca, err := NewAuthority("CN=EC Issuer", key, WithKeyBits(1024))
	require.NoError(t, err)

	subjectKey, err := ca.GenerateKeyPair()
	require.NoError(t, err)

	cert, err := ca.SignCertificate("bob", subjectKey.Public())
	require.NoError(t, err)
	assert.Equal(t, x509.ECDSAWithSHA256, cert.SignatureAlgorithm)
}

func TestParseDistinguishedName(t *testing.T) {
	dn, err := ParseDistinguishedName("CN=KeyIssuer,OU=Labs,O=NSU,C=RU")
	require.NoError(t, err)
	assert.Equal(t, "CN=KeyIssuer,OU=Labs,O=NSU,C=RU", dn.String())

	dn, err = ParseDistinguishedName("CN=Issuer,DC=example,DC=org")
	require.NoError(t, err)
	assert.Equal(t, "Issuer", dn.Name.CommonName)
	assert.Len(t, dn.Name.Names, 3)

	_, err = ParseDistinguishedName("")
	require.Error(t, err)

	_, err = ParseDistinguishedName("FOO=bar")
	require.Error(t, err)
}

func TestPEMRoundTrip(t *testing.T) {
	key := testIssuerKey(t)

	keyPEM, err := PrivateKeyToPEM(key)
	require.NoError(t, err)
	block, _ := pem.Decode(keyPEM)
	require.NotNil(t, block)
	assert.Equal(t, "PRIVATE KEY", block.Type)

	signer, err := ParsePrivateKeyPEM(keyPEM)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(signer.Public()))

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	signer, err = ParsePrivateKeyPEM(pkcs1)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(signer.Public()))

	_, err = ParsePrivateKeyPEM([]byte("garbage"))
	require.Error(t, err)

	_, err = ParsePrivateKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: []byte{1}}))
	require.Error(t, err)

	_, err = LoadPrivateKeyPEM(t.TempDir() + "/missing.pem")
	require.Error(t, err)
}
