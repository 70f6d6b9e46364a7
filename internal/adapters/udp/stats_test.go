package udp

import (
	"net/netip"
	"testing"
	"time"

	"github.com/pion/rtp"
)

func TestStatsPrunesSilentFlows(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := newStats()
	s.now = func() time.Time { return now }

	frame := func(seq uint16) []byte {
		b, err := (&rtp.Packet{Header: rtp.Header{Version: 2, SSRC: 7, SequenceNumber: seq}}).Marshal()
		if err != nil {
			t.Fatal(err)
		}
		return b
	}
	quiet := netip.MustParseAddrPort("127.0.0.1:4000")
	busy := netip.MustParseAddrPort("127.0.0.1:4001")

	s.forwarded(quiet, frame(1))
	s.forwarded(busy, frame(1))
	now = now.Add(20 * time.Second)
	s.forwarded(busy, frame(2))
	now = now.Add(20 * time.Second)

	if n := s.prune(30 * time.Second); n != 1 {
		t.Fatalf("pruned %d flows", n)
	}
	if got := s.Snapshot().Flows; got != 1 {
		t.Fatalf("flows = %d", got)
	}
	s.forwarded(busy, frame(3))
	if lost := s.Snapshot().RTPLost; lost != 0 {
		t.Fatalf("surviving flow lost its sequence: lost = %d", lost)
	}
}
