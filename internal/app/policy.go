package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/pierrecuevas/Tarea-Chat/internal/core"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

// DeliveryAction is what to do with a session whose outbound queue refused
// an envelope.
type DeliveryAction int

const (
	NoAction DeliveryAction = iota
	DropEnvelope
	KickSession
)

type Policy interface {
	OnSendFailure(sess core.Session, err error) DeliveryAction
}

// SimplePolicy kicks a session that cannot keep up. A slow reader would
// otherwise lose envelopes out of order.
type SimplePolicy struct{}

func (SimplePolicy) OnSendFailure(_ core.Session, err error) DeliveryAction {
	if errors.Is(err, core.ErrBackpressure) {
		return KickSession
	}
	return NoAction
}

// Deliver sends ev to sess and applies policy on failure.
func Deliver(policy Policy, sess core.Session, ev protocol.Event) {
	err := sess.Send(ev)
	if err == nil {
		return
	}
	switch policy.OnSendFailure(sess, err) {
	case KickSession:
		log.Warn().Str("module", "app.policy").Str("user", sess.Username()).Err(err).Msg("kicking session")
		sess.Close()
	case DropEnvelope:
		log.Debug().Str("module", "app.policy").Str("user", sess.Username()).Str("type", ev.Type).Msg("dropped envelope")
	}
}
