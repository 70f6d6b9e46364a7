package protocol

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var ErrMalformed = errors.New("malformed envelope")

// MalformedError describes an envelope that could not be turned into a
// Command. Payload is non-zero when the rejected line was a send_audio whose
// declared bytes still follow on the stream and must be discarded.
type MalformedError struct {
	Command string
	Reason  string
	Payload int64
}

func (e *MalformedError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("malformed envelope: %s", e.Reason)
	}
	return fmt.Sprintf("malformed %s: %s", e.Command, e.Reason)
}

func (e *MalformedError) Unwrap() error { return ErrMalformed }

type fieldError struct {
	field  string
	reason string
}

func (e *fieldError) Error() string { return e.field + ": " + e.reason }

func errField(field, reason string) error { return &fieldError{field: field, reason: reason} }

var commands = map[string]func() Command{
	CmdLogin:             func() Command { return &Login{} },
	CmdRegister:          func() Command { return &Register{} },
	CmdPublicMessage:     func() Command { return &PublicMessage{} },
	CmdPrivateMessage:    func() Command { return &PrivateMessage{} },
	CmdGroupMessage:      func() Command { return &GroupMessage{} },
	CmdCreateGroup:       func() Command { return &CreateGroup{} },
	CmdInviteToGroup:     func() Command { return &InviteToGroup{} },
	CmdLeaveGroup:        func() Command { return &LeaveGroup{} },
	CmdGetGroupHistory:   func() Command { return &GetGroupHistory{} },
	CmdGetPrivateHistory: func() Command { return &GetPrivateHistory{} },
	CmdGetPublicHistory:  func() Command { return &GetPublicHistory{} },
	CmdGetGroupMembers:   func() Command { return &GetGroupMembers{} },
	CmdGetAllUsers:       func() Command { return &GetAllUsers{} },
	CmdSendAudio:         func() Command { return &SendAudio{} },
	CmdRequestAudio:      func() Command { return &RequestAudio{} },
	CmdCallRequest:       func() Command { return &CallRequest{} },
	CmdCallAccept:        func() Command { return &CallAccept{} },
	CmdCallReject:        func() Command { return &CallReject{} },
	CmdCallHangup:        func() Command { return &CallHangup{} },
	CmdDisconnect:        func() Command { return &Disconnect{} },
	CmdPing:              func() Command { return &Ping{} },
}

// Decode parses one control line into its Command. Every failure is a
// *MalformedError.
func Decode(line []byte) (Command, error) {
	var head struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return nil, &MalformedError{Reason: "invalid json"}
	}
	if head.Command == "" {
		return nil, &MalformedError{Reason: "missing command"}
	}
	newCmd, ok := commands[head.Command]
	if !ok {
		return nil, &MalformedError{Command: head.Command, Reason: "unknown command"}
	}

	// A rejected send_audio still owes its payload; recover the size alone so
	// the caller can keep the stream in frame.
	var owed int64
	if head.Command == CmdSendAudio {
		var size struct {
			FileSize int64 `json:"file_size"`
		}
		if json.Unmarshal(line, &size) == nil && size.FileSize > 0 {
			owed = size.FileSize
		}
	}

	cmd := newCmd()
	if err := json.Unmarshal(line, cmd); err != nil {
		return nil, &MalformedError{Command: head.Command, Reason: "invalid field types", Payload: owed}
	}
	if err := cmd.validate(); err != nil {
		return nil, &MalformedError{Command: head.Command, Reason: err.Error(), Payload: owed}
	}
	return cmd, nil
}

// Encode renders an event as one newline-terminated line.
func Encode(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type, err)
	}
	return append(b, '\n'), nil
}

// EncodeCommand renders a client command as a wire line. Clients and tests use it.
func EncodeCommand(cmd Command) ([]byte, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Name(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Name(), err)
	}
	name, _ := json.Marshal(cmd.Name())
	fields["command"] = name
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Name(), err)
	}
	return append(out, '\n'), nil
}
