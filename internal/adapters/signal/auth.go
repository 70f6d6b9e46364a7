package signal

import (
	"context"
	"errors"

	"github.com/pierrecuevas/Tarea-Chat/internal/app"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

// authenticate loops until a login or register succeeds. Failures are
// answered and the client may retry.
func (h *handler) authenticate(ctx context.Context) error {
	for {
		cmd, err := h.next()
		if err != nil {
			return err
		}
		switch c := cmd.(type) {
		case nil:
		case *protocol.Login:
			if h.login(ctx, c.Username, c.Password, false) {
				return nil
			}
		case *protocol.Register:
			if h.login(ctx, c.Username, c.Password, true) {
				return nil
			}
		case *protocol.Ping:
			h.reply(protocol.Pong())
		case *protocol.Disconnect:
			return errQuit
		case *protocol.SendAudio:
			if err := h.skip(c.FileSize); err != nil {
				return err
			}
			h.reply(protocol.AuthError(protocol.CodeAuthFailure, "login first"))
		default:
			h.reply(protocol.AuthError(protocol.CodeAuthFailure, "login first"))
		}
	}
}

// login checks credentials, optionally creating the account first, and
// claims the username in the Directory.
func (h *handler) login(ctx context.Context, username, password string, register bool) bool {
	if h.Limiter.Blocked(h.remote) {
		h.reply(protocol.AuthError(protocol.CodeRateLimited, "too many failed attempts, try again later"))
		return false
	}
	var err error
	if register {
		err = h.Auth.Register(ctx, username, password)
	} else {
		err = h.Auth.Login(ctx, username, password)
	}
	if err != nil {
		if errors.Is(err, app.ErrBadCredentials) {
			h.Limiter.Fail(h.remote)
		}
		h.logger.Info().Str("user", username).Err(err).Msg("authentication failed")
		notice := app.Notice(err)
		h.reply(protocol.AuthError(notice.Code, notice.Message))
		return false
	}

	h.sess.user = username
	if err := h.Directory.Put(h.sess); err != nil {
		h.sess.user = ""
		h.reply(protocol.AuthError(protocol.CodeAuthFailure, "user is already logged in"))
		return false
	}
	h.online = true
	h.Limiter.Reset(h.remote)
	h.logger = h.logger.With().Str("user", username).Logger()
	h.logger.Info().Bool("register", register).Msg("authenticated")

	msg := "welcome " + username
	if register {
		msg = "account created, welcome " + username
	}
	h.reply(protocol.AuthOK(msg))
	return true
}

// welcome replays recent public history and announces the new user.
func (h *handler) welcome(ctx context.Context) {
	if err := h.Router.PublicHistory(ctx, h.sess, 0); err != nil {
		h.fail(err)
	}
	h.Router.Presence(h.sess.user, true)
}
