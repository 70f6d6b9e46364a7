package orch_test

import (
	"math/rand/v2"
	"net/netip"
	"testing"

	"github.com/pierrecuevas/Tarea-Chat/internal/app"
	"github.com/pierrecuevas/Tarea-Chat/internal/app/orch"
	"github.com/pierrecuevas/Tarea-Chat/internal/domain"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
	"github.com/pierrecuevas/Tarea-Chat/internal/testutil"
)

type harness struct {
	dir      *app.Directory
	calls    *app.CallRegistry
	o        *orch.Orchestrator
	sessions map[string]*testutil.Session
	port     uint16
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := app.NewDirectory()
	calls := app.NewCallRegistry()
	return &harness{
		dir:      dir,
		calls:    calls,
		o:        orch.New(dir, calls, app.SimplePolicy{}),
		sessions: make(map[string]*testutil.Session),
		port:     41000,
	}
}

func (h *harness) login(t *testing.T, user string, withVoice bool) *testutil.Session {
	t.Helper()
	s := testutil.NewSession(user)
	if err := h.dir.Put(s); err != nil {
		t.Fatal(err)
	}
	h.sessions[user] = s
	if withVoice {
		h.port++
		addr := netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), h.port)
		if !h.o.OnMediaRegistered(user, addr) {
			t.Fatalf("registration for %s refused", user)
		}
	}
	return s
}

func (h *harness) logout(user string) {
	h.o.Disconnect(h.sessions[user])
	delete(h.sessions, user)
}

func TestRequestWithoutVoiceChannelIsUnavailable(t *testing.T) {
	h := newHarness(t)
	alice := h.login(t, "alice", true)
	bob := h.login(t, "bob", false)

	h.o.Request(alice, "bob")

	if codes := alice.Codes(); len(codes) != 1 || codes[0] != protocol.CodeUnavailable {
		t.Fatalf("alice codes = %v", codes)
	}
	if !h.o.State("alice").IsIdle() || !h.o.State("bob").IsIdle() {
		t.Fatalf("states = %v / %v", h.o.State("alice"), h.o.State("bob"))
	}
	if len(bob.OfType(protocol.TypeCallRequest)) != 0 {
		t.Fatal("bob was rung")
	}
}

func TestRequestAcceptHangup(t *testing.T) {
	h := newHarness(t)
	alice := h.login(t, "alice", true)
	bob := h.login(t, "bob", true)

	h.o.Request(alice, "bob")
	if got := bob.OfType(protocol.TypeCallRequest); len(got) != 1 || got[0].From != "alice" {
		t.Fatalf("bob got %+v", got)
	}
	if !h.o.State("alice").Is(domain.CallOutgoing, "bob") || !h.o.State("bob").Is(domain.CallIncoming, "alice") {
		t.Fatal("ringing states wrong")
	}

	h.o.Accept(bob, "alice")
	if got := alice.OfType(protocol.TypeCallAccepted); len(got) != 1 || got[0].With != "bob" {
		t.Fatalf("alice got %+v", got)
	}
	if got := bob.OfType(protocol.TypeCallAccepted); len(got) != 1 || got[0].With != "alice" {
		t.Fatalf("bob got %+v", got)
	}
	if p, _ := h.calls.Partner("alice"); p != "bob" {
		t.Fatalf("registry partner = %q", p)
	}

	h.o.Hangup(alice)
	h.o.Hangup(alice)
	h.o.Hangup(bob)
	for _, s := range []*testutil.Session{alice, bob} {
		if n := len(s.OfType(protocol.TypeCallEnded)); n != 1 {
			t.Fatalf("%s got %d call_ended", s.Username(), n)
		}
		if !h.o.State(s.Username()).IsIdle() {
			t.Fatalf("%s not idle", s.Username())
		}
	}
	if _, ok := h.calls.Partner("bob"); ok {
		t.Fatal("pair survived hangup")
	}
}

func TestRejectNotifiesRequester(t *testing.T) {
	h := newHarness(t)
	alice := h.login(t, "alice", true)
	bob := h.login(t, "bob", true)

	h.o.Request(alice, "bob")
	h.o.Reject(bob, "alice")

	if got := alice.OfType(protocol.TypeCallRejected); len(got) != 1 || got[0].User != "bob" {
		t.Fatalf("alice got %+v", got)
	}
	if !h.o.State("alice").IsIdle() || !h.o.State("bob").IsIdle() {
		t.Fatal("not idle after reject")
	}
}

func TestAcceptAfterRequesterLeft(t *testing.T) {
	h := newHarness(t)
	alice := h.login(t, "alice", true)
	bob := h.login(t, "bob", true)

	h.o.Request(alice, "bob")
	h.logout("alice")
	bob.Reset()

	h.o.Accept(bob, "alice")
	if !h.o.State("bob").IsIdle() {
		t.Fatalf("bob state = %v", h.o.State("bob"))
	}
	if _, ok := h.calls.Partner("bob"); ok {
		t.Fatal("bob bound to a departed user")
	}
	if len(bob.OfType(protocol.TypeCallAccepted)) != 0 {
		t.Fatal("accept went through")
	}
}

func TestBusyCallee(t *testing.T) {
	h := newHarness(t)
	alice := h.login(t, "alice", true)
	h.login(t, "bob", true)
	carol := h.login(t, "carol", true)

	h.o.Request(alice, "bob")
	h.o.Request(carol, "bob")
	if codes := carol.Codes(); len(codes) != 1 || codes[0] != protocol.CodeBusy {
		t.Fatalf("carol codes = %v", codes)
	}
	if !h.o.State("carol").IsIdle() {
		t.Fatal("carol left idle")
	}
}

func TestDisconnectMidCallEndsCallForPeer(t *testing.T) {
	h := newHarness(t)
	alice := h.login(t, "alice", true)
	bob := h.login(t, "bob", true)
	h.o.Request(alice, "bob")
	h.o.Accept(bob, "alice")

	h.logout("alice")
	if n := len(bob.OfType(protocol.TypeCallEnded)); n != 1 {
		t.Fatalf("bob got %d call_ended", n)
	}
	if !h.o.State("bob").IsIdle() {
		t.Fatal("bob not idle")
	}
	if _, ok := h.calls.Addr("alice"); ok {
		t.Fatal("alice's voice channel survived disconnect")
	}
	if _, ok := h.calls.Addr("bob"); !ok {
		t.Fatal("bob's voice channel dropped")
	}
}

func TestRegistrationAfterDisconnectRefused(t *testing.T) {
	h := newHarness(t)
	alice := h.login(t, "alice", true)

	if !h.o.Disconnect(alice) {
		t.Fatal("live session not removed")
	}
	if h.o.OnMediaRegistered("alice", netip.MustParseAddrPort("127.0.0.1:5555")) {
		t.Fatal("registration accepted after disconnect")
	}
	if addr, ok := h.calls.Addr("alice"); ok {
		t.Fatalf("offline alice still has voice channel %s", addr)
	}
	if h.dir.IsOnline("alice") {
		t.Fatal("alice still online")
	}
}

func TestStaleDisconnectKeepsNewSession(t *testing.T) {
	h := newHarness(t)
	old := h.login(t, "alice", true)
	h.o.Disconnect(old)
	h.login(t, "alice", true)
	bob := h.login(t, "bob", true)
	h.o.Request(bob, "alice")
	h.o.Accept(h.sessions["alice"], "bob")

	if h.o.Disconnect(old) {
		t.Fatal("stale session removed the live one")
	}
	if _, ok := h.calls.Addr("alice"); !ok {
		t.Fatal("new voice channel dropped")
	}
	if st := h.o.State("alice"); st.Phase != domain.CallActive || st.Peer != "bob" {
		t.Fatalf("alice state = %v", st)
	}
}

func TestOfflineRegistrationRefused(t *testing.T) {
	h := newHarness(t)
	if h.o.OnMediaRegistered("ghost", netip.MustParseAddrPort("127.0.0.1:9")) {
		t.Fatal("offline user registered")
	}
}

// TestCallSymmetryUnderRandomEvents drives random event sequences and checks
// after every step that call states and registry pairs agree on both sides.
func TestCallSymmetryUnderRandomEvents(t *testing.T) {
	users := []string{"a", "b", "c", "d"}
	for seed := range uint64(200) {
		rng := rand.New(rand.NewPCG(seed, 7))
		h := newHarness(t)
		for i, u := range users {
			h.login(t, u, i != 3)
		}
		for step := range 60 {
			u := users[rng.IntN(len(users))]
			v := users[rng.IntN(len(users))]
			s, online := h.sessions[u]
			switch op := rng.IntN(6); {
			case !online:
				h.login(t, u, rng.IntN(2) == 0)
			case op == 0:
				h.o.Request(s, v)
			case op == 1:
				h.o.Accept(s, v)
			case op == 2:
				h.o.Reject(s, v)
			case op == 3:
				h.o.Hangup(s)
			case op == 4:
				h.logout(u)
			default:
				h.o.Accept(s, h.o.State(u).Peer)
			}
			checkSymmetry(t, h, users, seed, step)
		}
	}
}

func checkSymmetry(t *testing.T, h *harness, users []string, seed uint64, step int) {
	t.Helper()
	for _, u := range users {
		st := h.o.State(u)
		partner, paired := h.calls.Partner(u)
		switch st.Phase {
		case domain.CallActive:
			if !h.o.State(st.Peer).Is(domain.CallActive, u) {
				t.Fatalf("seed %d step %d: %s in call with %s but %s is %v", seed, step, u, st.Peer, st.Peer, h.o.State(st.Peer))
			}
			if !paired || partner != st.Peer {
				t.Fatalf("seed %d step %d: %s in call but registry says %q", seed, step, u, partner)
			}
		case domain.CallOutgoing:
			if !h.o.State(st.Peer).Is(domain.CallIncoming, u) {
				t.Fatalf("seed %d step %d: %s calling %s who is %v", seed, step, u, st.Peer, h.o.State(st.Peer))
			}
		case domain.CallIncoming:
			if !h.o.State(st.Peer).Is(domain.CallOutgoing, u) {
				t.Fatalf("seed %d step %d: %s rung by %s who is %v", seed, step, u, st.Peer, h.o.State(st.Peer))
			}
		}
		if st.Phase != domain.CallActive && paired {
			t.Fatalf("seed %d step %d: %s is %v but paired with %s", seed, step, u, st, partner)
		}
		if st.Phase != domain.CallIdle {
			if _, online := h.sessions[u]; !online {
				t.Fatalf("seed %d step %d: offline %s holds %v", seed, step, u, st)
			}
		}
	}
}
