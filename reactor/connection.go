package reactor

import (
	"github.com/ruteri/key-issuer/protocol"
)

type connState int

const (
	stateReadingIdentity connState = iota
	stateIdentityComplete
	stateDispatched
	stateResponsePending
	stateWriting
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateReadingIdentity:
		return "reading-identity"
	case stateIdentityComplete:
		return "identity-complete"
	case stateDispatched:
		return "dispatched"
	case stateResponsePending:
		return "response-pending"
	case stateWriting:
		return "writing"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// connection is owned by the loop goroutine.
type connection struct {
	fd     int
	id     uint64
	remote string
	state  connState

	identity   protocol.IdentityReader
	dispatched bool

	out     []byte
	written int
	result  string
}

func newConnection(fd int, id uint64, remote string) *connection {
	return &connection{
		fd:     fd,
		id:     id,
		remote: remote,
		state:  stateReadingIdentity,
	}
}

// consume feeds freshly read bytes to the framer. It reports true exactly once,
// when the identity is complete and must be dispatched. Bytes arriving after
// the terminator are discarded.
func (c *connection) consume(p []byte) (dispatch bool, err error) {
	if c.state != stateReadingIdentity {
		return false, nil
	}

	if _, err := c.identity.Feed(p); err != nil {
		return false, err
	}
	if !c.identity.Complete() {
		return false, nil
	}

	c.state = stateIdentityComplete
	if c.dispatched {
		return false, nil
	}
	c.dispatched = true
	c.state = stateDispatched
	return true, nil
}

// respond installs the encoded response. It is accepted only once, and only
// after dispatch.
func (c *connection) respond(out []byte, result string) bool {
	if c.state != stateDispatched {
		return false
	}
	c.out = out
	c.written = 0
	c.result = result
	c.state = stateResponsePending
	return true
}

func (c *connection) startWriting() {
	c.state = stateWriting
}

// unwritten returns the part of the response not yet accepted by the socket.
func (c *connection) unwritten() []byte {
	return c.out[c.written:]
}

// advance records n more bytes written and reports whether the response is flushed.
func (c *connection) advance(n int) bool {
	c.written += n
	return c.written >= len(c.out)
}
