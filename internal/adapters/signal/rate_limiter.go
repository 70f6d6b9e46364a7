package signal

import (
	"sync"
	"time"
)

// LoginLimiter throttles failed logins per remote host over a sliding window.
type LoginLimiter struct {
	mu       sync.Mutex
	history  map[string][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
	swept    time.Time
}

func NewLoginLimiter(limit int, interval time.Duration) *LoginLimiter {
	return &LoginLimiter{
		history:  make(map[string][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

// Blocked reports whether host has used up its failed attempts.
func (rl *LoginLimiter) Blocked(host string) bool {
	if rl == nil || rl.limit <= 0 {
		return false
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.freshLocked(host)) >= rl.limit
}

// Fail records one failed attempt from host.
func (rl *LoginLimiter) Fail(host string) {
	if rl == nil || rl.limit <= 0 {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.sweepLocked()
	rl.history[host] = append(rl.freshLocked(host), rl.now())
}

// sweepLocked drops hosts whose attempts have all aged out, at most once per
// window, so hosts that never come back do not pile up.
func (rl *LoginLimiter) sweepLocked() {
	now := rl.now()
	if now.Sub(rl.swept) < rl.interval {
		return
	}
	rl.swept = now
	for host := range rl.history {
		rl.freshLocked(host)
	}
}

// Reset forgets host after a successful login.
func (rl *LoginLimiter) Reset(host string) {
	if rl == nil {
		return
	}
	rl.mu.Lock()
	delete(rl.history, host)
	rl.mu.Unlock()
}

func (rl *LoginLimiter) freshLocked(host string) []time.Time {
	windowStart := rl.now().Add(-rl.interval)
	attempts := rl.history[host]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) == 0 {
		delete(rl.history, host)
		return nil
	}
	rl.history[host] = fresh
	return fresh
}
