// Package orch drives the call state machine across sessions.
package orch

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pierrecuevas/Tarea-Chat/internal/app"
	"github.com/pierrecuevas/Tarea-Chat/internal/core"
	"github.com/pierrecuevas/Tarea-Chat/internal/domain"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

// Orchestrator owns every user's call state. Transitions touching two users
// happen under one lock so both sides always agree. Notifications are queued
// while the lock is held, which keeps their order per session.
type Orchestrator struct {
	Directory *app.Directory
	Calls     *app.CallRegistry
	Policy    app.Policy

	mu     sync.Mutex
	states map[string]domain.CallState // absent means idle
}

func New(dir *app.Directory, calls *app.CallRegistry, policy app.Policy) *Orchestrator {
	if policy == nil {
		policy = app.SimplePolicy{}
	}
	return &Orchestrator{
		Directory: dir,
		Calls:     calls,
		Policy:    policy,
		states:    make(map[string]domain.CallState),
	}
}

func (o *Orchestrator) State(user string) domain.CallState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.states[user]
}

func (o *Orchestrator) set(user string, st domain.CallState) {
	if st.IsIdle() {
		delete(o.states, user)
		return
	}
	o.states[user] = st
}

func (o *Orchestrator) send(sess core.Session, ev protocol.Event) {
	app.Deliver(o.Policy, sess, ev)
}

func (o *Orchestrator) sendTo(user string, ev protocol.Event) {
	if sess, ok := o.Directory.Lookup(user); ok {
		o.send(sess, ev)
	}
}

func (o *Orchestrator) fail(sess core.Session, code, msg string) {
	log.Debug().Str("module", "app.orch").Str("user", sess.Username()).Str("code", code).Msg(msg)
	o.send(sess, protocol.Failure(code, msg))
}
