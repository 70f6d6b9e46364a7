package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/pierrecuevas/Tarea-Chat/internal/core"
	"github.com/pierrecuevas/Tarea-Chat/internal/domain"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

// Request rings callee. Both parties must be idle and have a voice channel.
func (o *Orchestrator) Request(caller core.Session, callee string) {
	from := caller.Username()
	o.mu.Lock()
	defer o.mu.Unlock()

	if callee == from {
		o.fail(caller, protocol.CodeUnavailable, "you cannot call yourself")
		return
	}
	if !o.states[from].IsIdle() {
		o.fail(caller, protocol.CodeBusy, "you are already in a call")
		return
	}
	peer, ok := o.Directory.Lookup(callee)
	if !ok {
		o.fail(caller, protocol.CodeUnavailable, callee+" is not online")
		return
	}
	if !o.states[callee].IsIdle() {
		o.fail(caller, protocol.CodeBusy, callee+" is busy")
		return
	}
	if _, ok := o.Calls.Addr(from); !ok {
		o.fail(caller, protocol.CodeUnavailable, "your voice channel is not registered")
		return
	}
	if _, ok := o.Calls.Addr(callee); !ok {
		o.fail(caller, protocol.CodeUnavailable, callee+" has no voice channel")
		return
	}

	o.set(from, domain.Outgoing(callee))
	o.set(callee, domain.Incoming(from))
	log.Info().Str("module", "app.orch").Str("from", from).Str("to", callee).Msg("ringing")
	o.send(peer, protocol.IncomingCall(from))
	o.send(caller, protocol.Notify("calling "+callee))
}

// Accept answers a pending call from requester. The requester is checked
// again here since it may have hung up or left after ringing.
func (o *Orchestrator) Accept(callee core.Session, requester string) {
	me := callee.Username()
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.states[me].Is(domain.CallIncoming, requester) {
		o.fail(callee, protocol.CodeNotFound, "no pending call from "+requester)
		return
	}
	peer, ok := o.Directory.Lookup(requester)
	if !ok || !o.states[requester].Is(domain.CallOutgoing, me) {
		o.set(me, domain.Idle())
		o.fail(callee, protocol.CodeUnavailable, requester+" is no longer calling")
		return
	}
	if err := o.Calls.Bind(requester, me); err != nil {
		o.set(me, domain.Idle())
		o.set(requester, domain.Idle())
		log.Warn().Str("module", "app.orch").Str("a", requester).Str("b", me).Err(err).Msg("bind failed")
		o.fail(callee, protocol.CodeUnavailable, "call could not be connected")
		o.fail(peer, protocol.CodeUnavailable, "call could not be connected")
		return
	}

	o.set(me, domain.InCall(requester))
	o.set(requester, domain.InCall(me))
	o.send(peer, protocol.CallAccepted(me))
	o.send(callee, protocol.CallAccepted(requester))
}

func (o *Orchestrator) Reject(callee core.Session, requester string) {
	me := callee.Username()
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.states[me].Is(domain.CallIncoming, requester) {
		o.fail(callee, protocol.CodeNotFound, "no pending call from "+requester)
		return
	}
	o.set(me, domain.Idle())
	if o.states[requester].Is(domain.CallOutgoing, me) {
		o.set(requester, domain.Idle())
		o.sendTo(requester, protocol.CallRejected(me))
	}
	o.send(callee, protocol.Notify("call from "+requester+" rejected"))
}

// Hangup ends or cancels whatever call sess takes part in. It does nothing
// when sess is already idle.
func (o *Orchestrator) Hangup(sess core.Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.endLocked(sess.Username()) {
		o.send(sess, protocol.CallEnded())
	}
}

// Disconnect is an implicit hangup that also drops the user's voice channel
// and takes sess out of the Directory. It reports whether sess was the
// user's live session. A stale session leaves the newer one untouched.
func (o *Orchestrator) Disconnect(sess core.Session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	user := sess.Username()
	if cur, ok := o.Directory.Lookup(user); !ok || cur != sess {
		return false
	}
	o.endLocked(user)
	o.Calls.Forget(user)
	return o.Directory.Remove(sess)
}

// endLocked moves user and its peer back to idle and tells the peer.
func (o *Orchestrator) endLocked(user string) bool {
	st := o.states[user]
	if st.IsIdle() {
		return false
	}
	o.set(user, domain.Idle())
	if ps := o.states[st.Peer]; !ps.IsIdle() && ps.Peer == user {
		o.set(st.Peer, domain.Idle())
		o.sendTo(st.Peer, protocol.CallEnded())
	}
	if st.Phase == domain.CallActive {
		o.Calls.Unbind(user)
	}
	log.Info().Str("module", "app.orch").Str("user", user).Str("peer", st.Peer).Str("phase", st.Phase.String()).Msg("call ended")
	return true
}
