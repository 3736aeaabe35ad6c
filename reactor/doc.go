// Package reactor is the network front end of the key issuer: a single
// goroutine, locked to its OS thread, multiplexes the listening socket and
// every client connection with epoll.
//
// Sockets and connection state are only touched by the loop goroutine. Key
// generation runs elsewhere (see package issuer); its outcome comes back as a
// completion pushed onto a mutex guarded queue, followed by a write to an
// eventfd that wakes the loop. Each loop iteration drains the whole queue
// before handling readiness events.
//
// Connections are keyed by file descriptor. Completions also carry a per
// connection sequence number, so an outcome for a connection that was closed
// (and whose descriptor may have been reused) is dropped.
package reactor
