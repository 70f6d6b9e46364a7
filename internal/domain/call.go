package domain

// CallPhase is the per-user position in the call state machine.
type CallPhase int

const (
	CallIdle CallPhase = iota
	CallOutgoing
	CallIncoming
	CallActive
)

func (p CallPhase) String() string {
	switch p {
	case CallIdle:
		return "idle"
	case CallOutgoing:
		return "outgoing"
	case CallIncoming:
		return "incoming"
	case CallActive:
		return "in_call"
	}
	return "unknown"
}

// CallState pairs a phase with the other party. Peer is empty only when Idle.
type CallState struct {
	Phase CallPhase
	Peer  string
}

func Idle() CallState                  { return CallState{} }
func Outgoing(callee string) CallState { return CallState{Phase: CallOutgoing, Peer: callee} }
func Incoming(caller string) CallState { return CallState{Phase: CallIncoming, Peer: caller} }
func InCall(partner string) CallState  { return CallState{Phase: CallActive, Peer: partner} }
func (s CallState) IsIdle() bool       { return s.Phase == CallIdle }
func (s CallState) Is(p CallPhase, peer string) bool {
	return s.Phase == p && s.Peer == peer
}
