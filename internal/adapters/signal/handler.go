package signal

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/pierrecuevas/Tarea-Chat/internal/app"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

// errQuit ends the read loop without an I/O failure.
var errQuit = errors.New("client disconnected")

// handler is the read side of one connection.
type handler struct {
	Deps
	sess   *connSession
	logger zerolog.Logger
	framer *protocol.Framer
	remote string
	online bool
}

func (h *handler) run(ctx context.Context) {
	defer h.teardown()

	h.reply(protocol.AuthRequired())
	if err := h.authenticate(ctx); err != nil {
		h.logEnd(err)
		return
	}
	h.welcome(ctx)
	h.logEnd(h.serve(ctx))
}

// serve reads commands until the connection fails or the client leaves.
// Protocol errors are answered and the loop goes on.
func (h *handler) serve(ctx context.Context) error {
	for {
		cmd, err := h.next()
		if err != nil {
			return err
		}
		if cmd == nil {
			continue
		}
		if err := h.dispatch(ctx, cmd); err != nil {
			return err
		}
	}
}

// next reads one command. A nil command with a nil error means the line was
// rejected and already answered.
func (h *handler) next() (protocol.Command, error) {
	line, err := h.framer.ReadLine()
	if errors.Is(err, protocol.ErrLineTooLong) {
		h.reply(protocol.Failure(protocol.CodeMalformed, err.Error()))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, nil
	}
	cmd, err := protocol.Decode(line)
	if err != nil {
		var me *protocol.MalformedError
		if errors.As(err, &me) && me.Payload > 0 {
			if err := h.skip(me.Payload); err != nil {
				return nil, err
			}
		}
		h.logger.Debug().Err(err).Msg("malformed envelope")
		h.reply(protocol.Failure(protocol.CodeMalformed, err.Error()))
		return nil, nil
	}
	return cmd, nil
}

// skip drops n payload bytes that follow a refused line.
func (h *handler) skip(n int64) error {
	if err := h.framer.Expect(n); err != nil {
		return err
	}
	return h.framer.Discard()
}

func (h *handler) reply(ev protocol.Event) {
	app.Deliver(h.Router.Policy(), h.sess, ev)
}

func (h *handler) fail(err error) {
	h.logger.Debug().Err(err).Msg("request failed")
	h.reply(app.Notice(err))
}

// teardown runs once per connection: end calls, leave the Directory, tell
// the others, then flush and close the socket.
func (h *handler) teardown() {
	h.sess.teardown.Do(func() {
		if h.online {
			if h.Orch.Disconnect(h.sess) {
				h.Router.Presence(h.sess.user, false)
			}
		}
		h.sess.drain()
	})
}

func (h *handler) logEnd(err error) {
	switch {
	case err == nil, errors.Is(err, errQuit):
		h.logger.Debug().Msg("session ended by client")
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		h.logger.Debug().Err(err).Msg("peer closed connection")
	default:
		h.logger.Info().Err(err).Msg("connection error")
	}
}
