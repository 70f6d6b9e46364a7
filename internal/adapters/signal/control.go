package signal

import "github.com/pierrecuevas/Tarea-Chat/internal/protocol"

func (h *handler) handlePing() {
	h.reply(protocol.Pong())
}

func (h *handler) handleDisconnect() error {
	h.reply(protocol.Notify("goodbye"))
	return errQuit
}
