package signal

import (
	"context"

	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

// dispatch runs one authenticated command. Only I/O failures and an explicit
// disconnect come back as errors.
func (h *handler) dispatch(ctx context.Context, cmd protocol.Command) error {
	var err error
	switch c := cmd.(type) {
	case *protocol.Login, *protocol.Register:
		h.reply(protocol.AuthError(protocol.CodeAuthFailure, "already logged in"))
	case *protocol.PublicMessage:
		err = h.Router.Public(ctx, h.sess, c.Text)
	case *protocol.PrivateMessage:
		err = h.Router.Private(ctx, h.sess, c.Recipient, c.Text)
	case *protocol.GroupMessage:
		err = h.Router.Group(ctx, h.sess, c.GroupName, c.Text)
	case *protocol.CreateGroup:
		err = h.Router.CreateGroup(ctx, h.sess, c.GroupName)
	case *protocol.InviteToGroup:
		err = h.Router.Invite(ctx, h.sess, c.GroupName, c.UserToInvite)
	case *protocol.LeaveGroup:
		err = h.Router.Leave(ctx, h.sess, c.GroupName)
	case *protocol.GetGroupMembers:
		err = h.Router.GroupMembers(ctx, h.sess, c.GroupName)
	case *protocol.GetAllUsers:
		h.Router.OnlineUsers(h.sess)
	case *protocol.GetPublicHistory:
		err = h.Router.PublicHistory(ctx, h.sess, c.Limit)
	case *protocol.GetPrivateHistory:
		err = h.Router.PrivateHistory(ctx, h.sess, c.WithUser, c.Limit)
	case *protocol.GetGroupHistory:
		err = h.Router.GroupHistory(ctx, h.sess, c.GroupName, c.Limit)
	case *protocol.SendAudio:
		return h.sendAudio(ctx, c)
	case *protocol.RequestAudio:
		err = h.requestAudio(c)
	case *protocol.CallRequest:
		h.Orch.Request(h.sess, c.Callee)
	case *protocol.CallAccept:
		h.Orch.Accept(h.sess, c.Requester)
	case *protocol.CallReject:
		h.Orch.Reject(h.sess, c.Requester)
	case *protocol.CallHangup:
		h.Orch.Hangup(h.sess)
	case *protocol.Ping:
		h.handlePing()
	case *protocol.Disconnect:
		return h.handleDisconnect()
	default:
		h.reply(protocol.Failure(protocol.CodeMalformed, "unsupported command "+cmd.Name()))
	}
	if err != nil {
		h.fail(err)
	}
	return nil
}
