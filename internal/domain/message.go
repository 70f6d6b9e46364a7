package domain

import "time"

type MessageKind string

const (
	KindPublic  MessageKind = "public"
	KindPrivate MessageKind = "private"
	KindGroup   MessageKind = "group"
)

// ChatMessage is one persisted history entry. Target is the recipient for
// private messages and the group name for group messages; empty for public.
// Audio entries carry the stored voice-note name in Body.
type ChatMessage struct {
	Kind      MessageKind
	Sender    string
	Target    string
	Body      string
	Audio     bool
	CreatedAt time.Time
}
