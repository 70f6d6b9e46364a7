// Package protocol implements the control-stream envelope: one JSON object per
// line, discriminated by "command" from clients and by "type" from the server.
package protocol

// Wire names of client commands.
const (
	CmdLogin             = "login"
	CmdRegister          = "register"
	CmdPublicMessage     = "public_message"
	CmdPrivateMessage    = "private_message"
	CmdGroupMessage      = "group_message"
	CmdCreateGroup       = "create_group"
	CmdInviteToGroup     = "invite_to_group"
	CmdLeaveGroup        = "leave_group"
	CmdGetGroupHistory   = "get_group_history"
	CmdGetPrivateHistory = "get_private_history"
	CmdGetPublicHistory  = "get_public_history"
	CmdGetGroupMembers   = "get_group_members"
	CmdGetAllUsers       = "get_all_users"
	CmdSendAudio         = "send_audio"
	CmdRequestAudio      = "request_audio"
	CmdCallRequest       = "call_request"
	CmdCallAccept        = "call_accept"
	CmdCallReject        = "call_reject"
	CmdCallHangup        = "call_hangup"
	CmdDisconnect        = "disconnect"
	CmdPing              = "ping"
)

// Command is a decoded client envelope. The implementations below are the
// complete set; handlers match on them with a type switch.
type Command interface {
	Name() string
	validate() error
}

type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Register struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type PublicMessage struct {
	Text string `json:"text"`
}

type PrivateMessage struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

type GroupMessage struct {
	GroupName string `json:"group_name"`
	Text      string `json:"text"`
}

type CreateGroup struct {
	GroupName string `json:"group_name"`
}

type InviteToGroup struct {
	GroupName    string `json:"group_name"`
	UserToInvite string `json:"user_to_invite"`
}

type LeaveGroup struct {
	GroupName string `json:"group_name"`
}

type GetGroupHistory struct {
	GroupName string `json:"group_name"`
	Limit     int    `json:"limit,omitempty"`
}

type GetPrivateHistory struct {
	WithUser string `json:"with_user"`
	Limit    int    `json:"limit,omitempty"`
}

type GetPublicHistory struct {
	Limit int `json:"limit,omitempty"`
}

type GetGroupMembers struct {
	GroupName string `json:"group_name"`
}

type GetAllUsers struct{}

// SendAudio announces a voice note. Exactly FileSize raw bytes follow the
// line on the same stream. Either Recipient or GroupName names the target.
type SendAudio struct {
	Recipient string `json:"recipient,omitempty"`
	GroupName string `json:"group_name,omitempty"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
}

type RequestAudio struct {
	FileName string `json:"file_name"`
}

type CallRequest struct {
	Callee string `json:"callee"`
}

type CallAccept struct {
	Requester string `json:"requester"`
}

type CallReject struct {
	Requester string `json:"requester"`
}

type CallHangup struct{}

type Disconnect struct{}

type Ping struct{}

func (*Login) Name() string             { return CmdLogin }
func (*Register) Name() string          { return CmdRegister }
func (*PublicMessage) Name() string     { return CmdPublicMessage }
func (*PrivateMessage) Name() string    { return CmdPrivateMessage }
func (*GroupMessage) Name() string      { return CmdGroupMessage }
func (*CreateGroup) Name() string       { return CmdCreateGroup }
func (*InviteToGroup) Name() string     { return CmdInviteToGroup }
func (*LeaveGroup) Name() string        { return CmdLeaveGroup }
func (*GetGroupHistory) Name() string   { return CmdGetGroupHistory }
func (*GetPrivateHistory) Name() string { return CmdGetPrivateHistory }
func (*GetPublicHistory) Name() string  { return CmdGetPublicHistory }
func (*GetGroupMembers) Name() string   { return CmdGetGroupMembers }
func (*GetAllUsers) Name() string       { return CmdGetAllUsers }
func (*SendAudio) Name() string         { return CmdSendAudio }
func (*RequestAudio) Name() string      { return CmdRequestAudio }
func (*CallRequest) Name() string       { return CmdCallRequest }
func (*CallAccept) Name() string        { return CmdCallAccept }
func (*CallReject) Name() string        { return CmdCallReject }
func (*CallHangup) Name() string        { return CmdCallHangup }
func (*Disconnect) Name() string        { return CmdDisconnect }
func (*Ping) Name() string              { return CmdPing }

func (c *Login) validate() error {
	return require("username", c.Username, "password", c.Password)
}

func (c *Register) validate() error {
	return require("username", c.Username, "password", c.Password)
}

func (c *PublicMessage) validate() error { return require("text", c.Text) }

func (c *PrivateMessage) validate() error {
	return require("recipient", c.Recipient, "text", c.Text)
}

func (c *GroupMessage) validate() error {
	return require("group_name", c.GroupName, "text", c.Text)
}

func (c *CreateGroup) validate() error { return require("group_name", c.GroupName) }

func (c *InviteToGroup) validate() error {
	return require("group_name", c.GroupName, "user_to_invite", c.UserToInvite)
}

func (c *LeaveGroup) validate() error { return require("group_name", c.GroupName) }

func (c *GetGroupHistory) validate() error {
	if err := require("group_name", c.GroupName); err != nil {
		return err
	}
	return checkLimit(c.Limit)
}

func (c *GetPrivateHistory) validate() error {
	if err := require("with_user", c.WithUser); err != nil {
		return err
	}
	return checkLimit(c.Limit)
}

func (c *GetPublicHistory) validate() error { return checkLimit(c.Limit) }

func (c *GetGroupMembers) validate() error { return require("group_name", c.GroupName) }

func (*GetAllUsers) validate() error { return nil }

func (c *SendAudio) validate() error {
	if c.FileSize < 0 {
		return errField("file_size", "must not be negative")
	}
	if c.Recipient == "" && c.GroupName == "" {
		return errField("recipient", "recipient or group_name required")
	}
	if c.Recipient != "" && c.GroupName != "" {
		return errField("recipient", "recipient and group_name are exclusive")
	}
	return require("file_name", c.FileName)
}

func (c *RequestAudio) validate() error { return require("file_name", c.FileName) }

func (c *CallRequest) validate() error { return require("callee", c.Callee) }

func (c *CallAccept) validate() error { return require("requester", c.Requester) }

func (c *CallReject) validate() error { return require("requester", c.Requester) }

func (*CallHangup) validate() error { return nil }

func (*Disconnect) validate() error { return nil }

func (*Ping) validate() error { return nil }

// require takes name/value pairs and reports the first empty value.
func require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return errField(pairs[i], "required")
		}
	}
	return nil
}

func checkLimit(limit int) error {
	if limit < 0 {
		return errField("limit", "must not be negative")
	}
	return nil
}
