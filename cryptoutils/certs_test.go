package cryptoutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyCertificate(t *testing.T) {
	ca, err := NewAuthority("CN=KeyIssuer,O=NSU", testIssuerKey(t), WithKeyBits(1024))
	require.NoError(t, err)

	key, err := ca.GenerateKeyPair()
	require.NoError(t, err)
	cert, err := ca.SignCertificate("alice", key.Public())
	require.NoError(t, err)

	keyPEM, err := PrivateKeyToPEM(key)
	require.NoError(t, err)
	certPEM, err := CertificateToPEM(cert)
	require.NoError(t, err)

	require.NoError(t, VerifyCertificate(keyPEM, certPEM, "alice"))
	require.Error(t, VerifyCertificate(keyPEM, certPEM, "bob"), "CN mismatch must fail")

	otherKey, err := ca.GenerateKeyPair()
	require.NoError(t, err)
	otherKeyPEM, err := PrivateKeyToPEM(otherKey)
	require.NoError(t, err)
	require.Error(t, VerifyCertificate(otherKeyPEM, certPEM, "alice"), "key mismatch must fail")

	require.Error(t, VerifyCertificate(keyPEM, []byte("not pem"), "alice"))

	_, err = CertificateToPEM(nil)
	require.Error(t, err)
}
