package reactor

import (
	"testing"

	"github.com/ruteri/key-issuer/interfaces"
	"github.com/ruteri/key-issuer/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_Lifecycle(t *testing.T) {
	c := newConnection(7, 1, "127.0.0.1:5000")
	assert.Equal(t, stateReadingIdentity, c.state)

	assert.False(t, c.respond([]byte("early"), "success"), "no response before dispatch")

	dispatch, err := c.consume([]byte("ali"))
	require.NoError(t, err)
	assert.False(t, dispatch)

	dispatch, err = c.consume([]byte("ce\x00trailing"))
	require.NoError(t, err)
	assert.True(t, dispatch)
	assert.Equal(t, stateDispatched, c.state)
	assert.Equal(t, interfaces.Identity("alice"), c.identity.Identity())

	dispatch, err = c.consume([]byte("more\x00"))
	require.NoError(t, err)
	assert.False(t, dispatch, "dispatch happens once")

	require.True(t, c.respond([]byte("0123456789"), "success"))
	assert.Equal(t, stateResponsePending, c.state)
	assert.False(t, c.respond([]byte("again"), "success"), "response is installed once")

	c.startWriting()
	assert.False(t, c.advance(4))
	assert.Equal(t, []byte("456789"), c.unwritten())
	assert.True(t, c.advance(6))
}

func TestConnection_ProtocolViolation(t *testing.T) {
	c := newConnection(7, 1, "")
	_, err := c.consume([]byte("bad\x7fname\x00"))
	require.ErrorIs(t, err, protocol.ErrInvalidByte)
	assert.False(t, c.dispatched)
}

func TestCompletionQueue(t *testing.T) {
	var q completionQueue
	assert.Empty(t, q.drain())

	q.push(completion{fd: 1, connID: 10})
	q.push(completion{fd: 2, connID: 11})

	items := q.drain()
	require.Len(t, items, 2)
	assert.Equal(t, uint64(10), items[0].connID)
	assert.Empty(t, q.drain())
}
