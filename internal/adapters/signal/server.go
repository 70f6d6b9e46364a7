// Package signal serves the line-oriented control protocol: one session per
// connection, authenticate first, then commands until the socket closes.
package signal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/pierrecuevas/Tarea-Chat/internal/app"
	"github.com/pierrecuevas/Tarea-Chat/internal/app/orch"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

// Deps are the components every connection works with.
type Deps struct {
	Directory *app.Directory
	Router    *app.Router
	Auth      *app.Authenticator
	Notes     *app.VoiceNotes
	Orch      *orch.Orchestrator
	Limiter   *LoginLimiter
}

type Options struct {
	MaxConnections int
	ReadLimit      int
	SendBuffer     int
	WriteTimeout   time.Duration
}

type Server struct {
	deps Deps
	opts Options
	sem  *semaphore.Weighted

	mu      sync.Mutex
	closing bool
	conns   map[net.Conn]struct{}
	wg      sync.WaitGroup
}

func NewServer(deps Deps, opts Options) *Server {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 64
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	return &Server{
		deps:  deps,
		opts:  opts,
		sem:   semaphore.NewWeighted(int64(opts.MaxConnections)),
		conns: make(map[net.Conn]struct{}),
	}
}

// Serve accepts on ln until ctx is done. Each connection gets its own worker.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := log.With().Str("module", "adapters.signal").Logger()
	logger.Info().Str("addr", ln.Addr().String()).Msg("control server listening")

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				srv.shutdown()
				logger.Info().Msg("control server stopped")
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				logger.Warn().Err(err).Msg("accept timeout")
				continue
			}
			srv.shutdown()
			return fmt.Errorf("accept: %w", err)
		}
		go srv.ServeConn(ctx, conn)
	}
}

// ServeConn runs one connection to completion. Both the TCP listener and the
// WebSocket gateway come through here, so both count against MaxConnections.
// A connection over the bound, or one arriving during shutdown, is told so
// and closed.
func (srv *Server) ServeConn(ctx context.Context, conn net.Conn) {
	if !srv.sem.TryAcquire(1) {
		log.Warn().Str("module", "adapters.signal").Str("remote", conn.RemoteAddr().String()).Msg("connection limit reached")
		srv.refuse(conn)
		return
	}
	defer srv.sem.Release(1)
	if !srv.track(conn) {
		srv.refuse(conn)
		return
	}
	defer srv.untrack(conn)

	s := newConnSession(conn, srv.opts.SendBuffer, srv.opts.WriteTimeout)
	go s.writePump()

	h := &handler{
		Deps:   srv.deps,
		sess:   s,
		logger: s.logger,
		framer: protocol.NewFramer(conn, srv.opts.ReadLimit),
		remote: remoteHost(conn),
	}
	s.logger.Info().Str("remote", conn.RemoteAddr().String()).Msg("connection opened")
	h.run(ctx)
	s.logger.Info().Str("user", s.user).Msg("connection closed")
}

// track registers a live worker. It fails once shutdown has begun.
func (srv *Server) track(conn net.Conn) bool {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.closing {
		return false
	}
	srv.conns[conn] = struct{}{}
	srv.wg.Add(1)
	return true
}

func (srv *Server) untrack(conn net.Conn) {
	srv.mu.Lock()
	delete(srv.conns, conn)
	srv.mu.Unlock()
	srv.wg.Done()
}

// shutdown closes every live connection and waits for the workers.
func (srv *Server) shutdown() {
	srv.mu.Lock()
	srv.closing = true
	for c := range srv.conns {
		_ = c.Close()
	}
	srv.mu.Unlock()
	srv.wg.Wait()
}

func (srv *Server) refuse(conn net.Conn) {
	line, err := protocol.Encode(protocol.Failure(protocol.CodeBusy, "server is full, try again later"))
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_, _ = conn.Write(line)
	}
	_ = conn.Close()
}

func remoteHost(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
