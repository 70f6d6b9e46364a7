package orch

import (
	"net/netip"

	"github.com/rs/zerolog/log"

	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

// OnMediaRegistered binds a voice channel announced over UDP. Only online
// users may register; anything else is dropped. It shares the lock with
// Disconnect so a departing user cannot be bound again.
func (o *Orchestrator) OnMediaRegistered(user string, addr netip.AddrPort) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, ok := o.Directory.Lookup(user)
	if !ok {
		log.Debug().Str("module", "app.orch").Str("user", user).Str("addr", addr.String()).Msg("registration from offline user")
		return false
	}
	if cur, ok := o.Calls.Addr(user); ok && cur == addr {
		return true
	}
	o.Calls.RegisterAddr(user, addr)
	o.send(sess, protocol.Notify("voice channel ready"))
	return true
}
