package app_test

import (
	"context"
	"errors"
	"testing"

	"github.com/pierrecuevas/Tarea-Chat/internal/app"
	"github.com/pierrecuevas/Tarea-Chat/internal/core"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
	"github.com/pierrecuevas/Tarea-Chat/internal/testutil"
)

type fixture struct {
	dir    *app.Directory
	router *app.Router
	store  core.Store
}

func newFixture(t *testing.T, users ...string) *fixture {
	t.Helper()
	dir := app.NewDirectory()
	st := newStore(t, users...)
	return &fixture{dir: dir, router: app.NewRouter(dir, st, app.SimplePolicy{}, 15), store: st}
}

func (f *fixture) online(t *testing.T, user string) *testutil.Session {
	t.Helper()
	s := testutil.NewSession(user)
	if err := f.dir.Put(s); err != nil {
		t.Fatal(err)
	}
	return s
}

func chats(s *testutil.Session) []protocol.Event { return s.OfType(protocol.TypeChat) }

func TestPublicReachesEveryoneIncludingSender(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	alice, bob := f.online(t, "alice"), f.online(t, "bob")

	if err := f.router.Public(context.Background(), alice, "hi"); err != nil {
		t.Fatal(err)
	}
	for _, s := range []*testutil.Session{alice, bob} {
		got := chats(s)
		if len(got) != 1 {
			t.Fatalf("%s got %d chats", s.Username(), len(got))
		}
		if got[0].SubType != protocol.SubPublic || got[0].Sender != "alice" || got[0].Text != "hi" {
			t.Fatalf("%s got %+v", s.Username(), got[0])
		}
	}
}

func TestPrivateDeliveryAndConfirmation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob", "carol")
	alice, bob := f.online(t, "alice"), f.online(t, "bob")

	if err := f.router.Private(ctx, alice, "bob", "psst"); err != nil {
		t.Fatal(err)
	}
	if got := chats(bob); len(got) != 1 || got[0].SubType != protocol.SubPrivateFrom || got[0].Sender != "alice" {
		t.Fatalf("bob got %+v", got)
	}
	if got := chats(alice); len(got) != 1 || got[0].SubType != protocol.SubPrivateTo || got[0].Party != "bob" {
		t.Fatalf("alice got %+v", got)
	}

	// Offline recipients are not queued, but the sender is still confirmed.
	alice.Reset()
	if err := f.router.Private(ctx, alice, "carol", "later"); err != nil {
		t.Fatal(err)
	}
	if got := chats(alice); len(got) != 1 {
		t.Fatalf("alice got %d confirmations", len(got))
	}

	alice.Reset()
	if err := f.router.Private(ctx, alice, "nobody", "x"); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("unknown recipient: %v", err)
	}
	if len(alice.Events()) != 0 {
		t.Fatal("failed check produced a delivery")
	}
}

func TestGroupDeliveredToOnlineMembersAtSendTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob", "carol", "dave", "erin")
	alice := f.online(t, "alice")
	bob := f.online(t, "bob")
	carol := f.online(t, "carol")
	dave := f.online(t, "dave") // not a member
	// erin is a member but offline.

	if err := f.router.CreateGroup(ctx, alice, "team"); err != nil {
		t.Fatal(err)
	}
	for _, u := range []string{"bob", "carol", "erin"} {
		if err := f.router.Invite(ctx, alice, "team", u); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.router.Leave(ctx, carol, "team"); err != nil {
		t.Fatal(err)
	}
	for _, s := range []*testutil.Session{alice, bob, carol, dave} {
		s.Reset()
	}

	if err := f.router.Group(ctx, bob, "team", "standup"); err != nil {
		t.Fatal(err)
	}
	for _, s := range []*testutil.Session{alice, bob} {
		if got := chats(s); len(got) != 1 || got[0].Group != "team" || got[0].Text != "standup" {
			t.Fatalf("%s got %+v", s.Username(), got)
		}
	}
	for _, s := range []*testutil.Session{carol, dave} {
		if got := chats(s); len(got) != 0 {
			t.Fatalf("%s got %+v", s.Username(), got)
		}
	}

	// Joining later does not deliver the earlier message.
	if err := f.router.Invite(ctx, alice, "team", "dave"); err != nil {
		t.Fatal(err)
	}
	if got := chats(dave); len(got) != 0 {
		t.Fatalf("dave got %+v after joining", got)
	}
}

func TestGroupNonMemberGetsNothingDelivered(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	alice, bob := f.online(t, "alice"), f.online(t, "bob")
	if err := f.router.CreateGroup(ctx, alice, "team"); err != nil {
		t.Fatal(err)
	}
	alice.Reset()

	if err := f.router.Group(ctx, bob, "team", "let me in"); !errors.Is(err, core.ErrNotMember) {
		t.Fatalf("got %v", err)
	}
	if len(alice.Events())+len(bob.Events()) != 0 {
		t.Fatal("non-member message was delivered")
	}
	if err := f.router.Invite(ctx, bob, "team", "bob"); !errors.Is(err, core.ErrNotMember) {
		t.Fatalf("non-member invite: %v", err)
	}
	ev := app.Notice(core.ErrNotMember)
	if ev.Code != protocol.CodeNotMember {
		t.Fatalf("notice code = %q", ev.Code)
	}
}

func TestHistoryIsBracketedAndLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	alice := f.online(t, "alice")
	for _, text := range []string{"one", "two", "three"} {
		if err := f.router.Public(ctx, alice, text); err != nil {
			t.Fatal(err)
		}
	}
	alice.Reset()

	if err := f.router.PublicHistory(ctx, alice, 2); err != nil {
		t.Fatal(err)
	}
	evs := alice.Events()
	if len(evs) != 4 {
		t.Fatalf("got %d envelopes", len(evs))
	}
	if evs[0].Type != protocol.TypeNotification || evs[3].Type != protocol.TypeNotification {
		t.Fatalf("history not bracketed: %+v", evs)
	}
	if evs[1].SubType != protocol.SubHistory || evs[1].Text != "two" || evs[2].Text != "three" {
		t.Fatalf("history body = %+v", evs[1:3])
	}

	bob := f.online(t, "bob")
	if err := f.router.Private(ctx, alice, "bob", "listen"); err != nil {
		t.Fatal(err)
	}
	if err := f.router.VoiceNote(ctx, alice, "bob", "", "x.ogg"); err != nil {
		t.Fatal(err)
	}
	bob.Reset()
	if err := f.router.PrivateHistory(ctx, bob, "alice", 10); err != nil {
		t.Fatal(err)
	}
	evs = bob.OfType(protocol.TypeChat)
	if len(evs) != 2 {
		t.Fatalf("private history = %+v", evs)
	}
	if evs[0].SubType != protocol.SubHistory || evs[0].Text != "listen" {
		t.Fatalf("text entry = %+v", evs[0])
	}
	if evs[1].SubType != protocol.SubHistoryAudio || evs[1].Text != "x.ogg" || evs[1].Party != "bob" {
		t.Fatalf("voice note entry = %+v", evs[1])
	}
}

func TestVoiceNoteTargets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "alice", "bob")
	alice, bob := f.online(t, "alice"), f.online(t, "bob")

	if err := f.router.CheckVoiceNoteTarget(ctx, alice, "", ""); !errors.Is(err, app.ErrInvalidTarget) {
		t.Fatalf("no target: %v", err)
	}
	if err := f.router.CheckVoiceNoteTarget(ctx, alice, "bob", "team"); !errors.Is(err, app.ErrInvalidTarget) {
		t.Fatalf("two targets: %v", err)
	}
	if err := f.router.CheckVoiceNoteTarget(ctx, alice, "", "team"); !errors.Is(err, core.ErrNotMember) {
		t.Fatalf("group target: %v", err)
	}
	if err := f.router.CheckVoiceNoteTarget(ctx, alice, "bob", ""); err != nil {
		t.Fatal(err)
	}
	if err := f.router.VoiceNote(ctx, alice, "bob", "", "note.ogg"); err != nil {
		t.Fatal(err)
	}
	if got := chats(bob); len(got) != 1 || got[0].SubType != protocol.SubPrivateAudioFrom || got[0].Text != "note.ogg" {
		t.Fatalf("bob got %+v", got)
	}
	if got := chats(alice); len(got) != 1 || got[0].SubType != protocol.SubPrivateAudioTo {
		t.Fatalf("alice got %+v", got)
	}
}

func TestBackpressureKicksSlowSession(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	alice, bob := f.online(t, "alice"), f.online(t, "bob")
	bob.Full = true

	if err := f.router.Public(context.Background(), alice, "hi"); err != nil {
		t.Fatal(err)
	}
	if !bob.Closed() {
		t.Fatal("slow session was not kicked")
	}
	if alice.Closed() {
		t.Fatal("sender was kicked")
	}
}
