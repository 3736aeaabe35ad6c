package interfaces

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentity(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Identity
	}{
		{"plain", "alice", "alice"},
		{"trailing spaces", "alice   ", "alice"},
		{"leading spaces", "  alice", "alice"},
		{"inner spaces kept", " a b ", "a b"},
		{"only spaces", "    ", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewIdentity([]byte(tt.raw)))
		})
	}
}

func TestOutcome_IsFailure(t *testing.T) {
	assert.False(t, Succeeded(&KeyMaterial{PrivateKeyPEM: []byte("k"), CertificatePEM: []byte("c")}).IsFailure())
	assert.True(t, Failed(errors.New("boom")).IsFailure())
	assert.True(t, Outcome{}.IsFailure())
}

func TestContentID(t *testing.T) {
	id := ComputeID([]byte("certificate"))

	parsed, err := NewContentIDFromHex("0x" + id.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(id))

	_, err = NewContentIDFromHex("abcd")
	assert.Error(t, err)
}

func TestNewStorageBackendLocation(t *testing.T) {
	loc, err := NewStorageBackendLocation("s3://bucket/prefix/?region=eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, "s3", loc.Scheme)
	assert.Equal(t, "bucket", loc.Host)
	assert.Equal(t, "eu-west-1", loc.GetParam("region"))

	_, err = NewStorageBackendLocation("github://owner/repo")
	require.ErrorIs(t, err, ErrInvalidLocationURI)
}
