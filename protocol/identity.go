package protocol

import (
	"fmt"

	"github.com/ruteri/key-issuer/interfaces"
)

// IdentityReader incrementally frames an identity out of a byte stream. The
// result does not depend on how the stream is split across Feed calls.
// The zero value is ready to use.
type IdentityReader struct {
	buf      []byte
	complete bool
	err      error
}

// Feed consumes bytes from p one at a time until the terminator is seen. It
// returns how many bytes were consumed; bytes after the terminator are left
// to the caller. Once Feed returns an error every later call returns it too.
func (r *IdentityReader) Feed(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}

	for i, b := range p {
		if r.complete {
			return i, nil
		}

		switch {
		case b == Terminator:
			r.complete = true
		case !IsPrintable(b):
			r.err = fmt.Errorf("%w: 0x%02x at offset %d", ErrInvalidByte, b, len(r.buf))
			return i, r.err
		case len(r.buf) >= MaxIdentityLength:
			r.err = fmt.Errorf("%w: more than %d bytes", ErrIdentityTooLong, MaxIdentityLength)
			return i, r.err
		default:
			r.buf = append(r.buf, b)
		}
	}
	return len(p), nil
}

// Complete reports whether the terminator has been consumed.
func (r *IdentityReader) Complete() bool {
	return r.complete
}

// Len returns the number of identity bytes accumulated so far.
func (r *IdentityReader) Len() int {
	return len(r.buf)
}

// Identity returns the trimmed identity. It is only meaningful once Complete.
func (r *IdentityReader) Identity() interfaces.Identity {
	return interfaces.NewIdentity(r.buf)
}
