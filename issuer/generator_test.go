package issuer

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/ruteri/key-issuer/cryptoutils"
	"github.com/ruteri/key-issuer/interfaces"
	"github.com/ruteri/key-issuer/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAuthority struct {
	mock.Mock
}

func (m *MockAuthority) GenerateKeyPair() (*rsa.PrivateKey, error) {
	args := m.Called()
	key, _ := args.Get(0).(*rsa.PrivateKey)
	return key, args.Error(1)
}

func (m *MockAuthority) SignCertificate(subject interfaces.Identity, publicKey crypto.PublicKey) (*x509.Certificate, error) {
	args := m.Called(subject, publicKey)
	cert, _ := args.Get(0).(*x509.Certificate)
	return cert, args.Error(1)
}

type MockStorageBackend struct {
	mock.Mock
}

func (m *MockStorageBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	args := m.Called(ctx, id, contentType)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockStorageBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	args := m.Called(ctx, data, contentType)
	return args.Get(0).(interfaces.ContentID), args.Error(1)
}

func (m *MockStorageBackend) Available(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockStorageBackend) Name() string {
	return m.Called().String(0)
}

func (m *MockStorageBackend) LocationURI() string {
	return m.Called().String(0)
}

var (
	fixtureOnce sync.Once
	fixtureKey  *rsa.PrivateKey
	fixtureCA   *cryptoutils.Authority
)

func testFixtures(t *testing.T) (*rsa.PrivateKey, *cryptoutils.Authority) {
	t.Helper()
	fixtureOnce.Do(func() {
		issuerKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		fixtureCA, err = cryptoutils.NewAuthority("CN=Test Issuer", issuerKey, cryptoutils.WithKeyBits(2048))
		require.NoError(t, err)
		fixtureKey, err = fixtureCA.GenerateKeyPair()
		require.NoError(t, err)
	})
	return fixtureKey, fixtureCA
}

func TestGenerator_Success(t *testing.T) {
	key, ca := testFixtures(t)
	cert, err := ca.SignCertificate("alice", key.Public())
	require.NoError(t, err)

	authority := new(MockAuthority)
	authority.On("GenerateKeyPair").Return(key, nil).Once()
	authority.On("SignCertificate", interfaces.Identity("alice"), mock.Anything).Return(cert, nil).Once()

	generate := NewGenerator(authority, nil, testLogger(), metrics.NewMetrics("test"))
	outcome := generate("alice")

	require.False(t, outcome.IsFailure())
	require.NoError(t, cryptoutils.VerifyCertificate(outcome.Material.PrivateKeyPEM, outcome.Material.CertificatePEM, "alice"))
	authority.AssertExpectations(t)
}

func TestGenerator_Failures(t *testing.T) {
	key, _ := testFixtures(t)

	tests := []struct {
		name  string
		setup func(a *MockAuthority)
	}{
		{
			name: "key generation fails",
			setup: func(a *MockAuthority) {
				a.On("GenerateKeyPair").Return(nil, errors.New("no entropy"))
			},
		},
		{
			name: "signing fails",
			setup: func(a *MockAuthority) {
				a.On("GenerateKeyPair").Return(key, nil)
				a.On("SignCertificate", mock.Anything, mock.Anything).Return(nil, errors.New("hsm offline"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authority := new(MockAuthority)
			tt.setup(authority)

			archive := new(MockStorageBackend)
			outcome := NewGenerator(authority, archive, testLogger(), metrics.NewMetrics("test"))("alice")

			require.True(t, outcome.IsFailure())
			require.Error(t, outcome.Err)
			archive.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestGenerator_WithoutMetrics(t *testing.T) {
	key, ca := testFixtures(t)

	archive := new(MockStorageBackend)
	archive.On("Name").Return("mock").Maybe()
	archive.On("Store", mock.Anything, mock.Anything, mock.Anything).Return(interfaces.ContentID{}, errors.New("bucket gone"))

	generate := NewGenerator(&keyReusingAuthority{Authority: ca, key: key}, archive, testLogger(), nil)
	outcome := generate("heidi")
	require.False(t, outcome.IsFailure(), "archive errors never fail a generation")
}

func TestGenerator_Archive(t *testing.T) {
	key, ca := testFixtures(t)

	t.Run("stores certificate and record", func(t *testing.T) {
		archive := new(MockStorageBackend)
		var record IssuanceRecord
		certID := interfaces.ComputeID([]byte("cert"))
		archive.On("Store", mock.Anything, mock.Anything, interfaces.CertificateType).Return(certID, nil).Once()
		archive.On("Store", mock.Anything, mock.Anything, interfaces.IssuanceRecordType).
			Run(func(args mock.Arguments) {
				require.NoError(t, json.Unmarshal(args.Get(1).([]byte), &record))
			}).
			Return(interfaces.ContentID{}, nil).Once()

		generate := NewGenerator(&keyReusingAuthority{Authority: ca, key: key}, archive, testLogger(), metrics.NewMetrics("test"))
		outcome := generate("alice")

		require.False(t, outcome.IsFailure())
		archive.AssertExpectations(t)
		assert.Equal(t, "alice", record.Identity)
		assert.Equal(t, certID.String(), record.CertificateID)
		assert.Equal(t, "CN=Test Issuer", record.Issuer)
		assert.NotEmpty(t, record.SerialNumber)
	})

	t.Run("archive failure does not fail generation", func(t *testing.T) {
		archive := new(MockStorageBackend)
		archive.On("Store", mock.Anything, mock.Anything, interfaces.CertificateType).Return(interfaces.ContentID{}, interfaces.ErrBackendUnavailable)
		archive.On("Name").Return("mock")

		m := metrics.NewMetrics("test")
		outcome := NewGenerator(&keyReusingAuthority{Authority: ca, key: key}, archive, testLogger(), m)("alice")
		require.False(t, outcome.IsFailure())
		archive.AssertExpectations(t)
	})
}

// keyReusingAuthority signs with the real authority but skips slow key generation.
type keyReusingAuthority struct {
	*cryptoutils.Authority
	key *rsa.PrivateKey
}

func (a *keyReusingAuthority) GenerateKeyPair() (*rsa.PrivateKey, error) {
	return a.key, nil
}
