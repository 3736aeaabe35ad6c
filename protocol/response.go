package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ruteri/key-issuer/interfaces"
)

// EncodeResponse builds the full response for an outcome. A failed outcome
// encodes as two zero length fields.
func EncodeResponse(outcome interfaces.Outcome) []byte {
	if outcome.IsFailure() {
		return make([]byte, 2*LengthFieldBytes)
	}

	key, cert := outcome.Material.PrivateKeyPEM, outcome.Material.CertificatePEM

	out := make([]byte, 0, 2*LengthFieldBytes+len(key)+len(cert))
	out = binary.BigEndian.AppendUint32(out, uint32(len(key)))
	out = append(out, key...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(cert)))
	out = append(out, cert...)
	return out
}

// ReadResponse reads one response from r. A stream that ends early yields an
// io error, an error response yields ErrServerFailure.
func ReadResponse(r io.Reader) (*interfaces.KeyMaterial, error) {
	key, err := readPayload(r, "private key")
	if err != nil {
		return nil, err
	}

	cert, err := readPayload(r, "certificate")
	if err != nil {
		return nil, err
	}

	if len(key) == ErrorLength && len(cert) == ErrorLength {
		return nil, ErrServerFailure
	}

	return &interfaces.KeyMaterial{PrivateKeyPEM: key, CertificatePEM: cert}, nil
}

func readPayload(r io.Reader, what string) ([]byte, error) {
	var lengthField [LengthFieldBytes]byte
	if _, err := io.ReadFull(r, lengthField[:]); err != nil {
		return nil, fmt.Errorf("reading %s length: %w", what, unexpectedEOF(err))
	}

	length := binary.BigEndian.Uint32(lengthField[:])
	if length > MaxPayloadLength {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrPayloadTooLarge, what, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading %s: %w", what, unexpectedEOF(err))
	}
	return payload, nil
}

// A response may not end between fields either.
func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// WriteRequest frames identity and writes it to w in a single call.
func WriteRequest(w io.Writer, identity string) error {
	if len(identity) > MaxIdentityLength {
		return fmt.Errorf("%w: %d bytes, at most %d allowed", ErrInvalidIdentity, len(identity), MaxIdentityLength)
	}
	for i := 0; i < len(identity); i++ {
		if !IsPrintable(identity[i]) {
			return fmt.Errorf("%w: byte 0x%02x at offset %d is not printable ASCII", ErrInvalidIdentity, identity[i], i)
		}
	}

	request := make([]byte, 0, len(identity)+1)
	request = append(request, identity...)
	request = append(request, Terminator)

	_, err := w.Write(request)
	return err
}
