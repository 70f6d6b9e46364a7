package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/pierrecuevas/Tarea-Chat/internal/core"
	"github.com/pierrecuevas/Tarea-Chat/internal/domain"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

func (r *Router) CreateGroup(ctx context.Context, sess core.Session, group string) error {
	if err := domain.ValidateGroupName(group); err != nil {
		return err
	}
	if err := r.store.CreateGroup(ctx, group, sess.Username()); err != nil {
		return err
	}
	log.Info().Str("module", "app.groups").Str("group", group).Str("owner", sess.Username()).Msg("group created")
	Deliver(r.policy, sess, protocol.Notify("group "+group+" created"))
	return nil
}

// Invite adds invitee to group. Only members may invite.
func (r *Router) Invite(ctx context.Context, sess core.Session, group, invitee string) error {
	inviter := sess.Username()
	if err := r.checkMember(ctx, group, inviter); err != nil {
		return err
	}
	if err := r.store.AddMember(ctx, group, invitee); err != nil {
		return err
	}
	log.Info().Str("module", "app.groups").Str("group", group).Str("user", invitee).Str("by", inviter).Msg("member added")
	Deliver(r.policy, sess, protocol.Notify(invitee+" added to "+group))
	if peer, ok := r.dir.Lookup(invitee); ok {
		Deliver(r.policy, peer, protocol.Notify(inviter+" added you to "+group))
	}
	return nil
}

func (r *Router) Leave(ctx context.Context, sess core.Session, group string) error {
	if err := r.store.RemoveMember(ctx, group, sess.Username()); err != nil {
		return err
	}
	log.Info().Str("module", "app.groups").Str("group", group).Str("user", sess.Username()).Msg("member left")
	Deliver(r.policy, sess, protocol.Notify("you left "+group))
	return nil
}

func (r *Router) GroupMembers(ctx context.Context, sess core.Session, group string) error {
	if err := r.checkMember(ctx, group, sess.Username()); err != nil {
		return err
	}
	members, err := r.store.GroupMembers(ctx, group)
	if err != nil {
		return err
	}
	Deliver(r.policy, sess, protocol.UserList(group, members))
	return nil
}

// OnlineUsers sends the list of connected users.
func (r *Router) OnlineUsers(sess core.Session) {
	Deliver(r.policy, sess, protocol.UserList("", r.dir.Online()))
}
