package signal

import (
	"bufio"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pierrecuevas/Tarea-Chat/internal/core"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

// outbound is one unit for the write pump: a control line, optionally
// followed by a raw payload written back to back with it.
type outbound struct {
	line []byte
	body io.ReadCloser
	size int64
}

// connSession is the server side of one connection. The write pump is the
// only writer of conn; everything else queues on send.
type connSession struct {
	id     string
	conn   net.Conn
	logger zerolog.Logger

	// user is written once by the read loop before the session is published
	// to the Directory.
	user string

	writeTimeout time.Duration
	send         chan outbound
	writerDone   chan struct{}

	mu     sync.RWMutex
	closed bool

	teardown sync.Once
}

var _ core.Session = (*connSession)(nil)

func newConnSession(conn net.Conn, buffer int, writeTimeout time.Duration) *connSession {
	id := uuid.NewString()
	return &connSession{
		id:           id,
		conn:         conn,
		logger:       log.With().Str("module", "adapters.signal").Str("conn", id).Logger(),
		writeTimeout: writeTimeout,
		send:         make(chan outbound, buffer),
		writerDone:   make(chan struct{}),
	}
}

func (s *connSession) ID() string       { return s.id }
func (s *connSession) Username() string { return s.user }

func (s *connSession) Send(ev protocol.Event) error {
	line, err := protocol.Encode(ev)
	if err != nil {
		return err
	}
	return s.trySend(outbound{line: line})
}

func (s *connSession) SendFile(announce protocol.Event, body io.ReadCloser, size int64) error {
	line, err := protocol.Encode(announce)
	if err != nil {
		_ = body.Close()
		return err
	}
	if err := s.trySend(outbound{line: line, body: body, size: size}); err != nil {
		_ = body.Close()
		return err
	}
	return nil
}

func (s *connSession) trySend(item outbound) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.ErrSessionClosed
	}
	select {
	case s.send <- item:
		return nil
	default:
		return core.ErrBackpressure
	}
}

// Close stops the session now. The read loop sees the closed socket and
// runs teardown.
func (s *connSession) Close() {
	s.closeQueue()
	_ = s.conn.Close()
}

// drain closes the queue, lets the write pump flush what is already queued
// and then closes the socket.
func (s *connSession) drain() {
	s.closeQueue()
	<-s.writerDone
	_ = s.conn.Close()
}

func (s *connSession) closeQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

func (s *connSession) writePump() {
	defer close(s.writerDone)
	w := bufio.NewWriter(s.conn)
	for item := range s.send {
		if err := s.write(w, item); err != nil {
			s.logger.Debug().Err(err).Msg("write pump stopped")
			_ = s.conn.Close()
			for rest := range s.send {
				if rest.body != nil {
					_ = rest.body.Close()
				}
			}
			return
		}
	}
	if err := s.flush(w); err != nil {
		s.logger.Debug().Err(err).Msg("final flush failed")
	}
}

func (s *connSession) write(w *bufio.Writer, item outbound) error {
	if item.body != nil {
		defer item.body.Close()
	}
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	if _, err := w.Write(item.line); err != nil {
		return err
	}
	if item.body != nil && item.size > 0 {
		for sent := int64(0); sent < item.size; {
			// Large payloads get a fresh deadline per chunk.
			if s.writeTimeout > 0 {
				if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
					return err
				}
			}
			n, err := io.CopyN(w, item.body, min(item.size-sent, 64<<10))
			sent += n
			if err != nil {
				return err
			}
		}
	}
	if len(s.send) == 0 {
		return w.Flush()
	}
	return nil
}

func (s *connSession) flush(w *bufio.Writer) error {
	if w.Buffered() == 0 {
		return nil
	}
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	return w.Flush()
}
