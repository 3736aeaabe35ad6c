package storage

import (
	"io"
	"log/slog"
	"testing"

	"github.com/ruteri/key-issuer/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageBackendFactory_StorageBackendFor(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := NewStorageBackendFactory(logger)
	dir := t.TempDir()

	tests := []struct {
		name     string
		uri      string
		wantType any
		wantName string
	}{
		{"file", "file://" + dir, &FileBackend{}, ""},
		{"s3 with credentials", "s3://AKIA:secret@archive/issued/?region=eu-west-1&endpoint=http://localhost:9000", &S3Backend{}, "s3-archive"},
		{"ipfs", "ipfs://localhost:5001/?timeout=5s", &IPFSBackend{}, "ipfs-localhost:5001"},
		{"ipfs default port", "ipfs://localhost/", &IPFSBackend{}, "ipfs-localhost:5001"},
		{"vault", "vault://s.token@127.0.0.1:8200/secret/key-issuer?tls=false", &VaultBackend{}, "vault-secret-key-issuer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			location, err := interfaces.NewStorageBackendLocation(tt.uri)
			require.NoError(t, err)

			backend, err := factory.StorageBackendFor(location)
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, backend)
			if tt.wantName != "" {
				assert.Equal(t, tt.wantName, backend.Name())
			}
		})
	}
}

func TestStorageBackendFactory_Errors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := NewStorageBackendFactory(logger)

	_, err := factory.CreateMultiBackend(nil)
	require.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = ParseLocations([]string{"ftp://example.com"})
	require.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	location, err := interfaces.NewStorageBackendLocation("ipfs://localhost:5001/?timeout=soon")
	require.NoError(t, err)
	_, err = factory.StorageBackendFor(location)
	require.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}

func TestStorageBackendFactory_CreateMultiBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := NewStorageBackendFactory(logger)

	locations, err := ParseLocations([]string{"file://" + t.TempDir()})
	require.NoError(t, err)
	single, err := factory.CreateMultiBackend(locations)
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, single, "a single location is not wrapped")

	locations, err = ParseLocations([]string{"file://" + t.TempDir(), "file://" + t.TempDir()})
	require.NoError(t, err)
	multi, err := factory.CreateMultiBackend(locations)
	require.NoError(t, err)
	assert.IsType(t, &MultiStorageBackend{}, multi)
}
