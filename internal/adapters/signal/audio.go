package signal

import (
	"context"
	"errors"

	"github.com/pierrecuevas/Tarea-Chat/internal/app"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

// sendAudio takes the payload announced by c off the stream. The target is
// checked first; a refused note is still read off the wire so the next line
// starts where expected. A stream that ends inside the payload ends the
// connection.
func (h *handler) sendAudio(ctx context.Context, c *protocol.SendAudio) error {
	if err := h.framer.Expect(c.FileSize); err != nil {
		return err
	}
	if err := h.Router.CheckVoiceNoteTarget(ctx, h.sess, c.Recipient, c.GroupName); err != nil {
		if derr := h.framer.Discard(); derr != nil {
			return derr
		}
		h.fail(err)
		return nil
	}

	stored, err := h.Notes.Upload(h.framer.Payload(), c.FileSize, c.FileName)
	if err != nil {
		h.fail(err)
		if errors.Is(err, app.ErrTransferSizeMismatch) {
			return err
		}
		return h.framer.Discard()
	}
	h.logger.Info().Str("file", stored).Int64("size", c.FileSize).Msg("voice note received")
	if err := h.Router.VoiceNote(ctx, h.sess, c.Recipient, c.GroupName, stored); err != nil {
		h.fail(err)
	}
	return nil
}

func (h *handler) requestAudio(c *protocol.RequestAudio) error {
	body, size, err := h.Notes.Open(c.FileName)
	if err != nil {
		return err
	}
	if err := h.sess.SendFile(protocol.AudioTransfer(c.FileName, size), body, size); err != nil {
		h.logger.Warn().Err(err).Str("file", c.FileName).Msg("voice note not queued")
		if h.Router.Policy().OnSendFailure(h.sess, err) == app.KickSession {
			h.sess.Close()
		}
	}
	return nil
}
