// Package protocol implements the key issuer wire format.
//
// A request is the identity as printable ASCII (0x20-0x7E), at most
// MaxIdentityLength bytes, followed by a single Terminator byte. The response is
//
//	u32be keyLen | key PEM | u32be certLen | certificate PEM
//
// with both lengths zero when generation failed. A malformed request gets no
// response, the server closes the connection.
package protocol

import (
	"errors"

	"github.com/ruteri/key-issuer/interfaces"
)

const (
	// MaxIdentityLength bounds the identity, terminator excluded.
	MaxIdentityLength = interfaces.MaxIdentityLength
	// Terminator ends the identity.
	Terminator byte = 0x00
	// LengthFieldBytes is the size of each big-endian length prefix.
	LengthFieldBytes = 4
	// ErrorLength is the value of both length fields in an error response.
	ErrorLength = 0
	// MaxPayloadLength bounds a single PEM payload accepted by ReadResponse.
	MaxPayloadLength = 16 << 20

	minPrintable byte = 0x20
	maxPrintable byte = 0x7E
)

var (
	// ErrInvalidByte is a request byte that is neither printable nor the terminator.
	ErrInvalidByte = errors.New("invalid byte in identity")

	// ErrIdentityTooLong is an identity that grew past MaxIdentityLength.
	ErrIdentityTooLong = errors.New("identity too long")

	// ErrInvalidIdentity is returned by WriteRequest for identities the server would reject.
	ErrInvalidIdentity = errors.New("invalid identity")

	// ErrServerFailure is a well formed error response: the server could not generate key material.
	ErrServerFailure = errors.New("server failed to generate key material")

	// ErrPayloadTooLarge is a response length prefix above MaxPayloadLength.
	ErrPayloadTooLarge = errors.New("response payload too large")
)

// IsPrintable reports whether b may appear inside an identity.
func IsPrintable(b byte) bool {
	return b >= minPrintable && b <= maxPrintable
}
