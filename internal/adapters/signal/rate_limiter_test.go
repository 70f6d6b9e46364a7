package signal

import (
	"testing"
	"time"
)

func TestLoginLimiterWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewLoginLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	rl.Fail("10.0.0.1")
	if rl.Blocked("10.0.0.1") {
		t.Fatal("blocked after one failure")
	}
	rl.Fail("10.0.0.1")
	if !rl.Blocked("10.0.0.1") {
		t.Fatal("not blocked after two failures")
	}
	if rl.Blocked("10.0.0.2") {
		t.Fatal("other host blocked")
	}

	now = now.Add(61 * time.Second)
	if rl.Blocked("10.0.0.1") {
		t.Fatal("still blocked after the window")
	}

	rl.Fail("10.0.0.1")
	rl.Fail("10.0.0.1")
	rl.Reset("10.0.0.1")
	if rl.Blocked("10.0.0.1") {
		t.Fatal("blocked after reset")
	}
}

func TestLoginLimiterForgetsHostsThatNeverReturn(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewLoginLimiter(3, time.Minute)
	rl.now = func() time.Time { return now }

	for _, host := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		rl.Fail(host)
	}
	now = now.Add(2 * time.Minute)
	rl.Fail("10.0.0.4")

	if len(rl.history) != 1 {
		t.Fatalf("history keeps %d hosts", len(rl.history))
	}
	if _, ok := rl.history["10.0.0.4"]; !ok {
		t.Fatal("fresh host dropped")
	}
}

func TestNilLimiterNeverBlocks(t *testing.T) {
	var rl *LoginLimiter
	rl.Fail("h")
	if rl.Blocked("h") {
		t.Fatal("nil limiter blocked")
	}
}
