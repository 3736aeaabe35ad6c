package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ruteri/key-issuer/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityReader_Feed(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		complete bool
		consumed int
		identity interfaces.Identity
		err      error
	}{
		{
			name:     "complete identity",
			input:    []byte("alice\x00"),
			complete: true,
			consumed: 6,
			identity: "alice",
		},
		{
			name:     "trailing bytes are not consumed",
			input:    []byte("alice\x00extra"),
			complete: true,
			consumed: 6,
			identity: "alice",
		},
		{
			name:     "partial identity",
			input:    []byte("ali"),
			consumed: 3,
		},
		{
			name:     "whitespace is trimmed",
			input:    []byte("  alice  \x00"),
			complete: true,
			consumed: 10,
			identity: "alice",
		},
		{
			name:     "empty identity",
			input:    []byte{0x00},
			complete: true,
			consumed: 1,
			identity: "",
		},
		{
			name:     "maximum length accepted",
			input:    append(bytes.Repeat([]byte{'a'}, MaxIdentityLength), 0x00),
			complete: true,
			consumed: MaxIdentityLength + 1,
			identity: interfaces.Identity(strings.Repeat("a", MaxIdentityLength)),
		},
		{
			name:     "one byte over maximum rejected",
			input:    bytes.Repeat([]byte{'a'}, MaxIdentityLength+1),
			consumed: MaxIdentityLength,
			err:      ErrIdentityTooLong,
		},
		{
			name:     "control byte rejected",
			input:    []byte("ali\nce\x00"),
			consumed: 3,
			err:      ErrInvalidByte,
		},
		{
			name:     "high byte rejected",
			input:    []byte{'a', 0x80, 0x00},
			consumed: 1,
			err:      ErrInvalidByte,
		},
		{
			name:     "DEL rejected",
			input:    []byte{0x7F, 0x00},
			consumed: 0,
			err:      ErrInvalidByte,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r IdentityReader
			n, err := r.Feed(tt.input)
			assert.Equal(t, tt.consumed, n)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.False(t, r.Complete())

				_, again := r.Feed([]byte{0x00})
				require.ErrorIs(t, again, tt.err, "errors are sticky")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.complete, r.Complete())
			assert.LessOrEqual(t, r.Len(), MaxIdentityLength)
			if tt.complete {
				assert.Equal(t, tt.identity, r.Identity())
			}
		})
	}
}

func TestIdentityReader_ChunkingInvariance(t *testing.T) {
	inputs := [][]byte{
		[]byte("client-42\x00"),
		[]byte(" padded name \x00trailing"),
		append(bytes.Repeat([]byte{'z'}, MaxIdentityLength), 0x00),
		bytes.Repeat([]byte{'z'}, MaxIdentityLength+5),
		[]byte("bad\x01byte\x00"),
	}

	for _, input := range inputs {
		var whole IdentityReader
		_, wholeErr := whole.Feed(input)

		for chunk := 1; chunk <= 7; chunk++ {
			var r IdentityReader
			var err error
			for off := 0; off < len(input) && err == nil && !r.Complete(); off += chunk {
				end := min(off+chunk, len(input))
				_, err = r.Feed(input[off:end])
			}

			if wholeErr != nil {
				require.Error(t, err, "chunk size %d", chunk)
				continue
			}
			require.NoError(t, err, "chunk size %d", chunk)
			require.Equal(t, whole.Complete(), r.Complete(), "chunk size %d", chunk)
			require.Equal(t, whole.Identity(), r.Identity(), "chunk size %d", chunk)
		}
	}
}

func TestIdentityReader_Len(t *testing.T) {
	var r IdentityReader
	assert.Equal(t, 0, r.Len())

	_, err := r.Feed([]byte(" al"))
	require.NoError(t, err)
	assert.Equal(t, 3, r.Len(), "untrimmed bytes are counted")

	_, err = r.Feed([]byte("ice \x00more"))
	require.NoError(t, err)
	assert.Equal(t, 7, r.Len(), "terminator and trailing bytes are not counted")

	var bad IdentityReader
	_, err = bad.Feed([]byte("ab\ncd"))
	require.ErrorIs(t, err, ErrInvalidByte)
	assert.Equal(t, 2, bad.Len())
}
