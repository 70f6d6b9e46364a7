package udp_test

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"

	"github.com/pierrecuevas/Tarea-Chat/internal/adapters/udp"
	"github.com/pierrecuevas/Tarea-Chat/internal/app"
	"github.com/pierrecuevas/Tarea-Chat/internal/app/orch"
	"github.com/pierrecuevas/Tarea-Chat/internal/protocol"
	"github.com/pierrecuevas/Tarea-Chat/internal/testutil"
)

type env struct {
	dir   *app.Directory
	calls *app.CallRegistry
	relay *udp.Relay
}

func start(t *testing.T) *env {
	t.Helper()
	dir := app.NewDirectory()
	calls := app.NewCallRegistry()
	o := orch.New(dir, calls, app.SimplePolicy{})
	relay, err := udp.Listen("127.0.0.1:0", o, calls, 2048)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("run: %v", err)
		}
	})
	return &env{dir: dir, calls: calls, relay: relay}
}

func (e *env) client(t *testing.T) *net.UDPConn {
	t.Helper()
	c, err := net.DialUDP("udp", nil, e.relay.Addr().(*net.UDPAddr))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (e *env) register(t *testing.T, c *net.UDPConn, user string) {
	t.Helper()
	if _, err := c.Write([]byte("hello:" + user)); err != nil {
		t.Fatal(err)
	}
	eventually(t, user+" registration", func() bool {
		_, ok := e.calls.Addr(user)
		return ok
	})
}

func TestRelayForwardsVerbatimBetweenPartners(t *testing.T) {
	e := start(t)
	alice, bob := testutil.NewSession("alice"), testutil.NewSession("bob")
	for _, s := range []*testutil.Session{alice, bob} {
		if err := e.dir.Put(s); err != nil {
			t.Fatal(err)
		}
	}
	ca, cb := e.client(t), e.client(t)
	e.register(t, ca, "alice")
	e.register(t, cb, "bob")
	if n := len(alice.OfType(protocol.TypeNotification)); n != 1 {
		t.Fatalf("alice got %d notifications", n)
	}
	if err := e.calls.Bind("alice", "bob"); err != nil {
		t.Fatal(err)
	}

	pkt := &rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 0, SequenceNumber: 10, SSRC: 42},
		Payload: []byte{1, 2, 3, 4},
	}
	frames := make([][]byte, 0, 3)
	for i := range 3 {
		pkt.SequenceNumber = uint16(10 + 2*i) // every other packet lost
		b, err := pkt.Marshal()
		if err != nil {
			t.Fatal(err)
		}
		frames = append(frames, b)
	}
	frames = append(frames, []byte("raw pcm"))

	buf := make([]byte, 2048)
	for _, f := range frames {
		if _, err := ca.Write(f); err != nil {
			t.Fatal(err)
		}
		_ = cb.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, err := cb.Read(buf)
		if err != nil {
			t.Fatalf("bob read: %v", err)
		}
		if !bytes.Equal(buf[:n], f) {
			t.Fatalf("frame altered: %x != %x", buf[:n], f)
		}
	}

	snap := e.relay.Stats().Snapshot()
	if snap.Forwarded != 4 || snap.RTPPackets != 3 || snap.RTPLost != 2 {
		t.Fatalf("stats = %+v", snap)
	}
}

func TestRelayDropsUnpairedAndOfflineTraffic(t *testing.T) {
	e := start(t)
	c := e.client(t)

	// Registration from a user who is not logged in is ignored.
	if _, err := c.Write([]byte("hello:ghost")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Write([]byte("audio")); err != nil {
		t.Fatal(err)
	}
	eventually(t, "drops", func() bool { return e.relay.Stats().Snapshot().Dropped == 2 })
	if _, ok := e.calls.Addr("ghost"); ok {
		t.Fatal("offline user registered")
	}
}
