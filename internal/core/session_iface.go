package core

import (
	"errors"
	"io"

	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrBackpressure  = errors.New("backpressure")
)

// Session is the server-side handle of one authenticated connection.
// Owned by the signal adapter; other components only enqueue output on it.
type Session interface {
	ID() string
	Username() string
	// Send queues one envelope. It never blocks; a full queue yields ErrBackpressure.
	Send(protocol.Event) error
	// SendFile queues an announcement followed by exactly size raw bytes from
	// body. Nothing else is written to the connection in between. The session
	// closes body once written.
	SendFile(announce protocol.Event, body io.ReadCloser, size int64) error
	Close()
}
