package udp

import (
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtp"
)

// Stats counts relay traffic. Frames that parse as RTP also feed a per
// source sequence tracker used to estimate loss; frames are never altered.
type Stats struct {
	registrations atomic.Uint64
	forwardedPkts atomic.Uint64
	forwardedB    atomic.Uint64
	droppedPkts   atomic.Uint64
	rtpPkts       atomic.Uint64
	rtpLost       atomic.Uint64

	now   func() time.Time
	mu    sync.Mutex
	flows map[netip.AddrPort]*flow
}

type flow struct {
	ssrc    uint32
	lastSeq uint16
	seen    time.Time
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Registrations  uint64 `json:"registrations"`
	Forwarded      uint64 `json:"forwarded"`
	ForwardedBytes uint64 `json:"forwarded_bytes"`
	Dropped        uint64 `json:"dropped"`
	RTPPackets     uint64 `json:"rtp_packets"`
	RTPLost        uint64 `json:"rtp_lost"`
	Flows          int    `json:"flows"`
}

func newStats() *Stats {
	return &Stats{now: time.Now, flows: make(map[netip.AddrPort]*flow)}
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	flows := len(s.flows)
	s.mu.Unlock()
	return Snapshot{
		Registrations:  s.registrations.Load(),
		Forwarded:      s.forwardedPkts.Load(),
		ForwardedBytes: s.forwardedB.Load(),
		Dropped:        s.droppedPkts.Load(),
		RTPPackets:     s.rtpPkts.Load(),
		RTPLost:        s.rtpLost.Load(),
		Flows:          flows,
	}
}

func (s *Stats) registered(src netip.AddrPort) {
	s.registrations.Add(1)
	s.forget(src)
}

func (s *Stats) dropped(src netip.AddrPort) {
	s.droppedPkts.Add(1)
	s.forget(src)
}

func (s *Stats) forwarded(src netip.AddrPort, pkt []byte) {
	s.forwardedPkts.Add(1)
	s.forwardedB.Add(uint64(len(pkt)))

	var h rtp.Header
	if _, err := h.Unmarshal(pkt); err != nil || h.Version != 2 {
		return
	}
	s.rtpPkts.Add(1)

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[src]
	if !ok || f.ssrc != h.SSRC {
		s.flows[src] = &flow{ssrc: h.SSRC, lastSeq: h.SequenceNumber, seen: now}
		return
	}
	f.seen = now
	// Gaps only; reordered or duplicate packets count as nothing lost.
	if gap := h.SequenceNumber - f.lastSeq; gap > 1 && gap < 1<<15 {
		s.rtpLost.Add(uint64(gap - 1))
	}
	if int16(h.SequenceNumber-f.lastSeq) > 0 {
		f.lastSeq = h.SequenceNumber
	}
}

func (s *Stats) forget(src netip.AddrPort) {
	s.mu.Lock()
	delete(s.flows, src)
	s.mu.Unlock()
}

// prune drops flows that have been silent for longer than idle and reports
// how many went.
func (s *Stats) prune(idle time.Duration) int {
	cutoff := s.now().Add(-idle)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for src, f := range s.flows {
		if f.seen.Before(cutoff) {
			delete(s.flows, src)
			n++
		}
	}
	return n
}
