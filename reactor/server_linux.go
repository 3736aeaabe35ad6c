//go:build linux

package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/ruteri/key-issuer/interfaces"
	"github.com/ruteri/key-issuer/issuer"
	"github.com/ruteri/key-issuer/metrics"
	"github.com/ruteri/key-issuer/protocol"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

const (
	defaultReadBufferSize = 4096
	defaultMaxEvents      = 256

	connReadEvents  = unix.EPOLLIN | unix.EPOLLRDHUP
	connWriteEvents = unix.EPOLLOUT
)

var ErrServerClosed = errors.New("reactor: server closed")

// Obtainer hands out the shared generation handle for an identity.
type Obtainer interface {
	Obtain(identity interfaces.Identity) *issuer.Pending
}

type Config struct {
	// ListenAddr is the host:port to accept clients on.
	ListenAddr string

	// ReadBufferSize is the size of the buffer shared by all reads. Defaults to 4096.
	ReadBufferSize int

	// MaxEvents bounds the readiness events handled per iteration. Defaults to 256.
	MaxEvents int

	Log *slog.Logger
}

// Server is the event loop. New binds the socket, Run drives the loop.
type Server struct {
	cfg     Config
	log     *slog.Logger
	cache   Obtainer
	metrics *metrics.Metrics

	listenFD int
	addr     string
	poller   *poller
	queue    completionQueue

	// loop goroutine only
	conns   map[int]*connection
	nextID  uint64
	readBuf []byte

	active      atomic.Int64
	stopping    atomic.Bool
	started     atomic.Bool
	done        chan struct{}
	releaseOnce sync.Once
	releaseErr  error
}

// New binds the listening socket and prepares the loop. A bind failure is
// returned as is; nothing is left open. m may be nil.
func New(cfg Config, cache Obtainer, m *metrics.Metrics) (*Server, error) {
	if m == nil {
		m = metrics.NewMetrics("")
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufferSize
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = defaultMaxEvents
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	listenFD, addr, err := listenTCP(cfg.ListenAddr)
	if err != nil {
		return nil, err
	}

	p, err := newPoller()
	if err != nil {
		unix.Close(listenFD)
		return nil, err
	}

	if err := p.add(listenFD, unix.EPOLLIN); err != nil {
		p.close()
		unix.Close(listenFD)
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		log:      cfg.Log,
		cache:    cache,
		metrics:  m,
		listenFD: listenFD,
		addr:     addr,
		poller:   p,
		conns:    make(map[int]*connection),
		readBuf:  make([]byte, cfg.ReadBufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Address returns the bound listen address.
func (s *Server) Address() string {
	return s.addr
}

// Connections returns the number of open client connections.
func (s *Server) Connections() int64 {
	return s.active.Load()
}

// Run drives the loop until ctx is cancelled or Close is called. It can only
// be called once.
func (s *Server) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("reactor: Run called twice")
	}
	defer close(s.done)
	defer s.release()

	if s.stopping.Load() {
		return ErrServerClosed
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	stopOnCancel := context.AfterFunc(ctx, s.stop)
	defer stopOnCancel()

	s.log.Info("Accepting connections", "addr", s.addr)

	events := make([]unix.EpollEvent, s.cfg.MaxEvents)
	for !s.stopping.Load() {
		n, err := s.poller.wait(events)
		if err != nil {
			s.log.Error("Event loop failed", "err", err)
			return err
		}

		for i := 0; i < n; i++ {
			if s.poller.isWake(int(events[i].Fd)) {
				s.poller.resetWake()
				break
			}
		}

		s.drainCompletions()

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			switch {
			case s.poller.isWake(fd):
			case fd == s.listenFD:
				s.acceptAll()
			default:
				s.handleEvent(fd)
			}
		}
	}

	s.log.Info("Event loop stopped", "open_connections", len(s.conns))
	return nil
}

// Close stops the loop, waits for it to exit and releases every descriptor.
func (s *Server) Close() error {
	s.stop()
	if s.started.Load() {
		<-s.done
	} else {
		s.release()
	}
	return s.releaseErr
}

func (s *Server) stop() {
	s.stopping.Store(true)
	s.poller.wake()
}

func (s *Server) release() {
	s.releaseOnce.Do(func() {
		for _, c := range s.conns {
			s.closeConnection(c)
		}
		errs := []error{}
		if err := unix.Close(s.listenFD); err != nil {
			errs = append(errs, fmt.Errorf("closing listener: %w", err))
		}
		if err := s.poller.close(); err != nil {
			errs = append(errs, err)
		}
		s.releaseErr = errors.Join(errs...)
	})
}

func (s *Server) acceptAll() {
	for {
		fd, sa, err := unix.Accept4(s.listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == unix.EAGAIN:
			return
		case err == unix.EINTR || err == unix.ECONNABORTED:
			continue
		case err != nil:
			s.log.Error("Failed to accept connection", "err", err)
			return
		}

		c := newConnection(fd, s.nextID, sockaddrString(sa))
		s.nextID++

		if err := s.poller.add(fd, connReadEvents); err != nil {
			s.log.Error("Failed to register connection", "remote", c.remote, "err", err)
			unix.Close(fd)
			continue
		}

		s.conns[fd] = c
		s.active.Inc()
		s.metrics.ConnectionsAccepted.Inc()
		s.metrics.ConnectionsActive.Inc()
		s.log.Debug("Accepted connection", "conn", c.id, "remote", c.remote)
	}
}

func (s *Server) handleEvent(fd int) {
	c, ok := s.conns[fd]
	if !ok {
		return
	}

	if c.state == stateWriting {
		// errors and hangups surface through the write itself
		s.flush(c)
		return
	}
	s.readFrom(c)
}

func (s *Server) readFrom(c *connection) {
	for {
		n, err := unix.Read(c.fd, s.readBuf)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return
		case err != nil:
			s.log.Debug("Read failed", "conn", c.id, "remote", c.remote, "err", err)
			s.closeConnection(c)
			return
		case n == 0:
			s.log.Debug("Peer closed connection", "conn", c.id, "remote", c.remote, "state", c.state)
			s.closeConnection(c)
			return
		}

		dispatch, err := c.consume(s.readBuf[:n])
		if err != nil {
			s.metrics.ProtocolViolations.Inc()
			s.log.Info("Closing connection on malformed request", "conn", c.id, "remote", c.remote, "identity_bytes", c.identity.Len(), "err", err)
			s.closeConnection(c)
			return
		}
		if dispatch {
			s.dispatch(c)
		}
	}
}

func (s *Server) dispatch(c *connection) {
	identity := c.identity.Identity()
	s.log.Debug("Dispatching request", "conn", c.id, "remote", c.remote, "identity", identity)

	fd, connID := c.fd, c.id
	s.cache.Obtain(identity).OnComplete(func(outcome interfaces.Outcome) {
		s.queue.push(completion{fd: fd, connID: connID, outcome: outcome})
		s.poller.wake()
	})
}

func (s *Server) drainCompletions() {
	for _, done := range s.queue.drain() {
		c, ok := s.conns[done.fd]
		if !ok || c.id != done.connID {
			s.log.Debug("Dropping result for closed connection", "conn", done.connID)
			continue
		}

		result := metrics.ResultSuccess
		if done.outcome.IsFailure() {
			result = metrics.ResultError
		}
		if !c.respond(protocol.EncodeResponse(done.outcome), result) {
			continue
		}

		if err := s.poller.modify(c.fd, connWriteEvents); err != nil {
			s.log.Error("Failed to arm connection for writing", "conn", c.id, "err", err)
			s.closeConnection(c)
			continue
		}
		c.startWriting()
	}
}

func (s *Server) flush(c *connection) {
	for {
		n, err := unix.SendmsgN(c.fd, c.unwritten(), nil, nil, unix.MSG_NOSIGNAL)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return
		case err != nil:
			s.log.Debug("Write failed", "conn", c.id, "remote", c.remote, "err", err)
			s.closeConnection(c)
			return
		}

		if c.advance(n) {
			s.metrics.ResponsesWritten.WithLabelValues(c.result).Inc()
			s.log.Debug("Response sent", "conn", c.id, "remote", c.remote, "bytes", c.written, "result", c.result)
			s.closeConnection(c)
			return
		}
	}
}

// closeConnection is the only place a connection is destroyed.
func (s *Server) closeConnection(c *connection) {
	if c.state == stateClosed {
		return
	}
	c.state = stateClosed

	if err := s.poller.remove(c.fd); err != nil {
		s.log.Debug("Failed to deregister connection", "conn", c.id, "err", err)
	}
	if err := unix.Close(c.fd); err != nil {
		s.log.Debug("Failed to close connection", "conn", c.id, "err", err)
	}
	delete(s.conns, c.fd)
	s.active.Dec()
	s.metrics.ConnectionsActive.Dec()
}
