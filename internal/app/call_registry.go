package app

import (
	"errors"
	"net/netip"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoMediaAddr   = errors.New("no registered media address")
	ErrAlreadyInCall = errors.New("already in a call")
)

// Pair is one active call binding.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// CallRegistry holds UDP address bindings and active call pairs.
// Address bindings outlive calls; they are dropped only by Forget.
type CallRegistry struct {
	// pairMu is always taken before addrMu.
	pairMu sync.RWMutex
	pairs  map[string]string

	addrMu sync.RWMutex
	addrs  map[string]netip.AddrPort
	users  map[netip.AddrPort]string
}

func NewCallRegistry() *CallRegistry {
	return &CallRegistry{
		pairs: make(map[string]string),
		addrs: make(map[string]netip.AddrPort),
		users: make(map[netip.AddrPort]string),
	}
}

// RegisterAddr binds username to addr, replacing any previous binding of
// either side.
func (r *CallRegistry) RegisterAddr(username string, addr netip.AddrPort) {
	r.addrMu.Lock()
	defer r.addrMu.Unlock()
	if old, ok := r.addrs[username]; ok {
		delete(r.users, old)
	}
	if prev, ok := r.users[addr]; ok && prev != username {
		delete(r.addrs, prev)
	}
	r.addrs[username] = addr
	r.users[addr] = username
	log.Debug().Str("module", "app.calls").Str("user", username).Str("addr", addr.String()).Msg("media address registered")
}

func (r *CallRegistry) Addr(username string) (netip.AddrPort, bool) {
	r.addrMu.RLock()
	defer r.addrMu.RUnlock()
	a, ok := r.addrs[username]
	return a, ok
}

func (r *CallRegistry) UserByAddr(addr netip.AddrPort) (string, bool) {
	r.addrMu.RLock()
	defer r.addrMu.RUnlock()
	u, ok := r.users[addr]
	return u, ok
}

// Bind pairs a and b. Both need a media address and neither may be paired.
func (r *CallRegistry) Bind(a, b string) error {
	r.pairMu.Lock()
	defer r.pairMu.Unlock()
	if _, busy := r.pairs[a]; busy {
		return ErrAlreadyInCall
	}
	if _, busy := r.pairs[b]; busy {
		return ErrAlreadyInCall
	}
	r.addrMu.RLock()
	_, okA := r.addrs[a]
	_, okB := r.addrs[b]
	r.addrMu.RUnlock()
	if !okA || !okB {
		return ErrNoMediaAddr
	}
	r.pairs[a] = b
	r.pairs[b] = a
	log.Info().Str("module", "app.calls").Str("a", a).Str("b", b).Msg("call bound")
	return nil
}

// Unbind removes the pair containing username, if any, and returns the
// former partner.
func (r *CallRegistry) Unbind(username string) (string, bool) {
	r.pairMu.Lock()
	defer r.pairMu.Unlock()
	return r.unbindLocked(username)
}

func (r *CallRegistry) unbindLocked(username string) (string, bool) {
	partner, ok := r.pairs[username]
	if !ok {
		return "", false
	}
	delete(r.pairs, username)
	if r.pairs[partner] == username {
		delete(r.pairs, partner)
	}
	log.Info().Str("module", "app.calls").Str("a", username).Str("b", partner).Msg("call unbound")
	return partner, true
}

func (r *CallRegistry) Partner(username string) (string, bool) {
	r.pairMu.RLock()
	defer r.pairMu.RUnlock()
	p, ok := r.pairs[username]
	return p, ok
}

// Route resolves the forwarding target of a datagram received from src:
// source address, its user, that user's partner, the partner's address.
func (r *CallRegistry) Route(src netip.AddrPort) (netip.AddrPort, bool) {
	r.pairMu.RLock()
	defer r.pairMu.RUnlock()
	r.addrMu.RLock()
	defer r.addrMu.RUnlock()
	user, ok := r.users[src]
	if !ok {
		return netip.AddrPort{}, false
	}
	partner, ok := r.pairs[user]
	if !ok {
		return netip.AddrPort{}, false
	}
	dst, ok := r.addrs[partner]
	return dst, ok
}

// Forget drops every binding of username: its pair and its address.
func (r *CallRegistry) Forget(username string) {
	r.pairMu.Lock()
	defer r.pairMu.Unlock()
	r.unbindLocked(username)
	r.addrMu.Lock()
	defer r.addrMu.Unlock()
	if a, ok := r.addrs[username]; ok {
		delete(r.addrs, username)
		delete(r.users, a)
	}
}

// Pairs returns every active pair once, A < B.
func (r *CallRegistry) Pairs() []Pair {
	r.pairMu.RLock()
	defer r.pairMu.RUnlock()
	out := make([]Pair, 0, len(r.pairs)/2)
	for a, b := range r.pairs {
		if a < b {
			out = append(out, Pair{A: a, B: b})
		}
	}
	return out
}
