package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pierrecuevas/Tarea-Chat/internal/core"
	"github.com/pierrecuevas/Tarea-Chat/internal/domain"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

var ErrInvalidTarget = errors.New("exactly one of recipient or group_name is required")

// Router decides recipients and delivers chat traffic through the Directory.
// Every persistence and membership check runs before the first delivery.
type Router struct {
	dir          *Directory
	store        core.Store
	policy       Policy
	historyLimit int
	now          func() time.Time
}

func NewRouter(dir *Directory, store core.Store, policy Policy, historyLimit int) *Router {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Router{dir: dir, store: store, policy: policy, historyLimit: historyLimit, now: time.Now}
}

func (r *Router) Policy() Policy { return r.policy }

// Public persists text and delivers it to every online session, sender included.
func (r *Router) Public(ctx context.Context, sender core.Session, text string) error {
	from := sender.Username()
	err := r.store.SaveMessage(ctx, domain.ChatMessage{
		Kind: domain.KindPublic, Sender: from, Body: text, CreatedAt: r.now(),
	})
	if err != nil {
		return err
	}
	ev := protocol.Chat(protocol.SubPublic, from, "", "", text)
	r.dir.ForEach(func(s core.Session) { Deliver(r.policy, s, ev) })
	return nil
}

// Private delivers to the recipient if online and always confirms to the sender.
func (r *Router) Private(ctx context.Context, sender core.Session, recipient, text string) error {
	return r.private(ctx, sender, recipient, text, false)
}

// Group fans text out to the online members of group, sender included.
func (r *Router) Group(ctx context.Context, sender core.Session, group, text string) error {
	return r.group(ctx, sender, group, text, false)
}

// CheckVoiceNoteTarget validates a send_audio target before its payload is
// stored.
func (r *Router) CheckVoiceNoteTarget(ctx context.Context, sender core.Session, recipient, group string) error {
	switch {
	case (recipient == "") == (group == ""):
		return ErrInvalidTarget
	case recipient != "":
		return r.checkRecipient(ctx, recipient)
	default:
		return r.checkMember(ctx, group, sender.Username())
	}
}

// VoiceNote announces a stored note to its target like a text message.
func (r *Router) VoiceNote(ctx context.Context, sender core.Session, recipient, group, stored string) error {
	if recipient != "" {
		return r.private(ctx, sender, recipient, stored, true)
	}
	return r.group(ctx, sender, group, stored, true)
}

func (r *Router) private(ctx context.Context, sender core.Session, recipient, text string, audio bool) error {
	from := sender.Username()
	if err := r.checkRecipient(ctx, recipient); err != nil {
		return err
	}
	err := r.store.SaveMessage(ctx, domain.ChatMessage{
		Kind: domain.KindPrivate, Sender: from, Target: recipient, Body: text, Audio: audio, CreatedAt: r.now(),
	})
	if err != nil {
		return err
	}
	subFrom, subTo := protocol.SubPrivateFrom, protocol.SubPrivateTo
	if audio {
		subFrom, subTo = protocol.SubPrivateAudioFrom, protocol.SubPrivateAudioTo
	}
	if peer, ok := r.dir.Lookup(recipient); ok {
		Deliver(r.policy, peer, protocol.Chat(subFrom, from, recipient, "", text))
	} else {
		log.Debug().Str("module", "app.router").Str("from", from).Str("to", recipient).Msg("recipient offline, not delivered")
	}
	Deliver(r.policy, sender, protocol.Chat(subTo, from, recipient, "", text))
	return nil
}

func (r *Router) group(ctx context.Context, sender core.Session, group, text string, audio bool) error {
	from := sender.Username()
	if err := r.checkMember(ctx, group, from); err != nil {
		return err
	}
	members, err := r.store.GroupMembers(ctx, group)
	if err != nil {
		return err
	}
	err = r.store.SaveMessage(ctx, domain.ChatMessage{
		Kind: domain.KindGroup, Sender: from, Target: group, Body: text, Audio: audio, CreatedAt: r.now(),
	})
	if err != nil {
		return err
	}
	sub := protocol.SubGroup
	if audio {
		sub = protocol.SubGroupAudio
	}
	ev := protocol.Chat(sub, from, "", group, text)
	for _, m := range members {
		if s, ok := r.dir.Lookup(m); ok {
			Deliver(r.policy, s, ev)
		}
	}
	return nil
}

func (r *Router) checkRecipient(ctx context.Context, recipient string) error {
	if err := domain.ValidateUsername(recipient); err != nil {
		return err
	}
	ok, err := r.store.UserExists(ctx, recipient)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrUserNotFound
	}
	return nil
}

func (r *Router) checkMember(ctx context.Context, group, user string) error {
	ok, err := r.store.IsMember(ctx, group, user)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrNotMember
	}
	return nil
}

// Presence tells every other online user that user came or went.
func (r *Router) Presence(user string, online bool) {
	msg := user + " disconnected"
	if online {
		msg = user + " connected"
	}
	ev := protocol.Notify(msg)
	r.dir.ForEach(func(s core.Session) {
		if s.Username() != user {
			Deliver(r.policy, s, ev)
		}
	})
}

// PublicHistory replays the newest public messages to sess.
func (r *Router) PublicHistory(ctx context.Context, sess core.Session, limit int) error {
	msgs, err := r.store.PublicHistory(ctx, r.limit(limit))
	if err != nil {
		return err
	}
	r.replay(sess, "public", msgs)
	return nil
}

func (r *Router) PrivateHistory(ctx context.Context, sess core.Session, with string, limit int) error {
	if err := r.checkRecipient(ctx, with); err != nil {
		return err
	}
	msgs, err := r.store.PrivateHistory(ctx, sess.Username(), with, r.limit(limit))
	if err != nil {
		return err
	}
	r.replay(sess, "private with "+with, msgs)
	return nil
}

func (r *Router) GroupHistory(ctx context.Context, sess core.Session, group string, limit int) error {
	if err := r.checkMember(ctx, group, sess.Username()); err != nil {
		return err
	}
	msgs, err := r.store.GroupHistory(ctx, group, r.limit(limit))
	if err != nil {
		return err
	}
	r.replay(sess, "group "+group, msgs)
	return nil
}

func (r *Router) limit(requested int) int {
	if requested <= 0 || requested > r.historyLimit {
		return r.historyLimit
	}
	return requested
}

func (r *Router) replay(sess core.Session, label string, msgs []domain.ChatMessage) {
	Deliver(r.policy, sess, protocol.Notify("--- "+label+" history ---"))
	for _, m := range msgs {
		Deliver(r.policy, sess, protocol.History(m))
	}
	Deliver(r.policy, sess, protocol.Notify("--- end of history ---"))
}
