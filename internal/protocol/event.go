package protocol

import "github.com/pierrecuevas/Tarea-Chat/internal/domain"

// Wire names of server events.
const (
	TypeAuth          = "auth"
	TypeNotification  = "notification"
	TypeChat          = "chat"
	TypeUserList      = "user_list"
	TypeAudioTransfer = "audio_transfer"
	TypeCallRequest   = "call_request"
	TypeCallAccepted  = "call_accepted"
	TypeCallRejected  = "call_rejected"
	TypeCallEnded     = "call_ended"
	TypePong          = "pong"
)

// Chat sub types.
const (
	SubPublic           = "public"
	SubGroup            = "group"
	SubPrivateFrom      = "private_from"
	SubPrivateTo        = "private_to"
	SubHistory          = "history"
	SubHistoryAudio     = "history_audio"
	SubGroupAudio       = "group_audio"
	SubPrivateAudioFrom = "private_audio_from"
	SubPrivateAudioTo   = "private_audio_to"
)

// Auth statuses.
const (
	StatusAuthRequired = "auth_required"
	StatusOK           = "ok"
	StatusError        = "error"
)

// Failure codes carried by notifications.
const (
	CodeMalformed    = "malformed_envelope"
	CodeAuthFailure  = "auth_failure"
	CodeNotMember    = "not_member"
	CodeNotFound     = "not_found"
	CodeSizeMismatch = "transfer_size_mismatch"
	CodeUnavailable  = "peer_unavailable"
	CodeBusy         = "busy"
	CodeRateLimited  = "rate_limited"
	CodeConflict     = "conflict"
	CodeInternal     = "internal"
)

// Event is a server envelope. Which fields are set depends on Type.
type Event struct {
	Type      string   `json:"type"`
	Status    string   `json:"status,omitempty"`
	Code      string   `json:"code,omitempty"`
	Message   string   `json:"message,omitempty"`
	SubType   string   `json:"sub_type,omitempty"`
	Sender    string   `json:"sender,omitempty"`
	Party     string   `json:"party,omitempty"`
	Group     string   `json:"group,omitempty"`
	Text      string   `json:"text,omitempty"`
	Timestamp int64    `json:"ts,omitempty"`
	FileName  string   `json:"file_name,omitempty"`
	FileSize  *int64   `json:"file_size,omitempty"`
	From      string   `json:"from,omitempty"`
	With      string   `json:"with,omitempty"`
	User      string   `json:"user,omitempty"`
	Users     []string `json:"users,omitempty"`
}

func AuthRequired() Event {
	return Event{Type: TypeAuth, Status: StatusAuthRequired, Message: "login or register"}
}

func AuthOK(msg string) Event { return Event{Type: TypeAuth, Status: StatusOK, Message: msg} }

func AuthError(code, msg string) Event {
	return Event{Type: TypeAuth, Status: StatusError, Code: code, Message: msg}
}

func Notify(msg string) Event { return Event{Type: TypeNotification, Message: msg} }

// Failure is a notification carrying one of the Code* values.
func Failure(code, msg string) Event {
	return Event{Type: TypeNotification, Code: code, Message: msg}
}

func Chat(subType, sender, party, group, text string) Event {
	return Event{Type: TypeChat, SubType: subType, Sender: sender, Party: party, Group: group, Text: text}
}

// History renders a stored message for replay. Voice notes replay as
// history_audio with the stored file name as text, ready for request_audio.
func History(m domain.ChatMessage) Event {
	ev := Event{
		Type:    TypeChat,
		SubType: SubHistory,
		Sender:  m.Sender,
		Text:    m.Body,
	}
	if m.Audio {
		ev.SubType = SubHistoryAudio
	}
	switch m.Kind {
	case domain.KindGroup:
		ev.Group = m.Target
	case domain.KindPrivate:
		ev.Party = m.Target
	}
	if !m.CreatedAt.IsZero() {
		ev.Timestamp = m.CreatedAt.UnixMilli()
	}
	return ev
}

func UserList(group string, users []string) Event {
	if users == nil {
		users = []string{}
	}
	return Event{Type: TypeUserList, Group: group, Users: users}
}

func AudioTransfer(name string, size int64) Event {
	return Event{Type: TypeAudioTransfer, FileName: name, FileSize: &size}
}

func IncomingCall(from string) Event { return Event{Type: TypeCallRequest, From: from} }

func CallAccepted(with string) Event { return Event{Type: TypeCallAccepted, With: with} }

func CallRejected(user string) Event { return Event{Type: TypeCallRejected, User: user} }

func CallEnded() Event { return Event{Type: TypeCallEnded} }

func Pong() Event { return Event{Type: TypePong} }
