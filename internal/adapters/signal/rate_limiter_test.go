package signal

import (
	"testing"
	"time"
)

func TestRoomRateLimiter_SlidingWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRoomRateLimiter(2, 10*time.Second)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two joins refused")
	}
	if rl.Allow("a") {
		t.Fatal("third join inside the window allowed")
	}
	if !rl.Allow("b") {
		t.Fatal("limit leaked across participants")
	}

	now = now.Add(11 * time.Second)
	if !rl.Allow("a") {
		t.Fatal("join refused after the window passed")
	}

	rl.Allow("a")
	rl.Forget("a")
	if !rl.Allow("a") {
		t.Fatal("history kept after Forget")
	}
}

func TestRoomRateLimiter_ZeroLimitIsUnlimited(t *testing.T) {
	rl := NewRoomRateLimiter(0, time.Second)
	for i := 0; i < 100; i++ {
		if !rl.Allow("a") {
			t.Fatalf("join %d refused", i)
		}
	}
}
