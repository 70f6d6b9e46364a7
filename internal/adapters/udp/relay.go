// Package udp relays call audio between paired users over one shared socket.
package udp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pierrecuevas/Tarea-Chat/internal/domain"
)

// flowIdle is how long a source may stay silent before its RTP tracker goes.
const flowIdle = 30 * time.Second

// helloPrefix marks a registration datagram: "hello:<username>".
var helloPrefix = []byte("hello:")

// Registrar accepts voice channel registrations.
type Registrar interface {
	OnMediaRegistered(user string, addr netip.AddrPort) bool
}

// Router resolves where audio from src goes.
type Router interface {
	Route(src netip.AddrPort) (netip.AddrPort, bool)
}

type Relay struct {
	conn    *net.UDPConn
	reg     Registrar
	routes  Router
	bufSize int
	stats   *Stats
	logger  zerolog.Logger
}

func Listen(addr string, reg Registrar, routes Router, bufSize int) (*Relay, error) {
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udp relay: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", ua)
	if err != nil {
		return nil, fmt.Errorf("udp relay: listen %s: %w", addr, err)
	}
	if bufSize <= 0 {
		bufSize = 2048
	}
	return &Relay{
		conn:    conn,
		reg:     reg,
		routes:  routes,
		bufSize: bufSize,
		stats:   newStats(),
		logger:  log.With().Str("module", "adapters.udp").Logger(),
	}, nil
}

func (r *Relay) Addr() net.Addr { return r.conn.LocalAddr() }

func (r *Relay) Stats() *Stats { return r.stats }

// Run receives until ctx is done or the socket fails.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info().Str("addr", r.conn.LocalAddr().String()).Msg("udp relay listening")
	stop := context.AfterFunc(ctx, func() { _ = r.conn.Close() })
	defer stop()

	sweepCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.sweep(sweepCtx)

	buf := make([]byte, r.bufSize)
	for {
		n, src, err := r.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				r.logger.Info().Msg("udp relay stopped")
				return nil
			}
			r.logger.Error().Err(err).Msg("udp read error")
			return fmt.Errorf("udp relay: read: %w", err)
		}
		r.handle(buf[:n], netip.AddrPortFrom(src.Addr().Unmap(), src.Port()))
	}
}

func (r *Relay) Close() error { return r.conn.Close() }

func (r *Relay) sweep(ctx context.Context) {
	t := time.NewTicker(flowIdle)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.stats.prune(flowIdle); n > 0 {
				r.logger.Debug().Int("flows", n).Msg("idle flows pruned")
			}
		}
	}
}

func (r *Relay) handle(pkt []byte, src netip.AddrPort) {
	if bytes.HasPrefix(pkt, helloPrefix) {
		r.register(string(pkt[len(helloPrefix):]), src)
		return
	}
	dst, ok := r.routes.Route(src)
	if !ok {
		r.stats.dropped(src)
		return
	}
	if _, err := r.conn.WriteToUDPAddrPort(pkt, dst); err != nil {
		r.logger.Debug().Err(err).Str("dst", dst.String()).Msg("forward failed")
		r.stats.dropped(src)
		return
	}
	r.stats.forwarded(src, pkt)
}

func (r *Relay) register(user string, src netip.AddrPort) {
	user = strings.TrimSpace(user)
	if domain.ValidateUsername(user) != nil {
		r.stats.dropped(src)
		return
	}
	if !r.reg.OnMediaRegistered(user, src) {
		r.stats.dropped(src)
		return
	}
	r.stats.registered(src)
	r.logger.Debug().Str("user", user).Str("addr", src.String()).Msg("voice channel registered")
}
