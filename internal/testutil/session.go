// Package testutil holds fakes shared by package tests.
package testutil

import (
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/pierrecuevas/Tarea-Chat/internal/core"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
)

// File is one SendFile call captured by Session.
type File struct {
	Announce protocol.Event
	Body     []byte
	Size     int64
}

// Session is a core.Session that records everything queued on it.
type Session struct {
	id   string
	user string

	mu     sync.Mutex
	events []protocol.Event
	files  []File
	closed bool
	// Full makes Send and SendFile fail with core.ErrBackpressure.
	Full bool
}

var _ core.Session = (*Session)(nil)

func NewSession(user string) *Session {
	return &Session{id: uuid.NewString(), user: user}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Username() string { return s.user }

func (s *Session) Send(ev protocol.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrSessionClosed
	}
	if s.Full {
		return core.ErrBackpressure
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *Session) SendFile(announce protocol.Event, body io.ReadCloser, size int64) error {
	defer body.Close()
	data, err := io.ReadAll(io.LimitReader(body, size))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrSessionClosed
	}
	if s.Full {
		return core.ErrBackpressure
	}
	s.files = append(s.files, File{Announce: announce, Body: data, Size: size})
	return nil
}

func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Events returns a copy of the recorded envelopes.
func (s *Session) Events() []protocol.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Event(nil), s.events...)
}

// OfType returns the recorded envelopes whose Type is typ.
func (s *Session) OfType(typ string) []protocol.Event {
	var out []protocol.Event
	for _, ev := range s.Events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Codes returns the failure codes of recorded notifications, in order.
func (s *Session) Codes() []string {
	var out []string
	for _, ev := range s.OfType(protocol.TypeNotification) {
		if ev.Code != "" {
			out = append(out, ev.Code)
		}
	}
	return out
}

func (s *Session) Files() []File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]File(nil), s.files...)
}

func (s *Session) Reset() {
	s.mu.Lock()
	s.events, s.files = nil, nil
	s.mu.Unlock()
}
